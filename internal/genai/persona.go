// ABOUTME: Persona synthesis for bot creation
// ABOUTME: Asks the backend for a persona/greeting/fallback JSON object and parses it defensively

package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPersona is returned when the backend's persona response cannot be
// parsed into the expected JSON shape.
var ErrInvalidPersona = errors.New("invalid persona response")

// PersonaDetails is the generated personality bundle for a new bot.
// Persona is kept as raw JSON text; the pipeline embeds it verbatim in prompts.
type PersonaDetails struct {
	Persona  string
	Greeting string
	Fallback string
}

const personaPromptTemplate = `Generate a JSON object containing the following for an assistant bot based on this personality prompt: %q. The JSON object should have the keys "persona" (a detailed JSON object representing the bot's personality traits, tone, style, and specific instructions), "greeting" (a short and engaging greeting message), and "fallback" (a polite and helpful fallback response when the bot doesn't understand).`

// jsComments matches /* ... */ and // ... comments that some models wrap
// around their JSON output.
var jsComments = regexp.MustCompile(`/\*[\s\S]*?\*/|//[^\n]*`)

// GeneratePersona asks the backend to synthesize a persona, greeting, and
// fallback for the given personality prompt. The backend's output is cleaned
// of code fences and comments before parsing.
func GeneratePersona(ctx context.Context, backend Backend, personalityPrompt string) (*PersonaDetails, error) {
	raw, err := backend.Generate(ctx, fmt.Sprintf(personaPromptTemplate, personalityPrompt))
	if err != nil {
		return nil, fmt.Errorf("generating persona: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidPersona)
	}

	cleaned := extractJSONObject(jsComments.ReplaceAllString(raw, ""))
	if cleaned == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrInvalidPersona)
	}

	var parsed struct {
		Persona  json.RawMessage `json:"persona"`
		Greeting string          `json:"greeting"`
		Fallback string          `json:"fallback"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPersona, err)
	}
	if len(parsed.Persona) == 0 || parsed.Greeting == "" || parsed.Fallback == "" {
		return nil, fmt.Errorf("%w: missing expected keys", ErrInvalidPersona)
	}

	return &PersonaDetails{
		Persona:  string(parsed.Persona),
		Greeting: parsed.Greeting,
		Fallback: parsed.Fallback,
	}, nil
}

// extractJSONObject returns the outermost {...} span of s, tolerating code
// fences and prose around the object. Empty string if no braces are found.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || start >= end {
		return ""
	}
	return s[start : end+1]
}
