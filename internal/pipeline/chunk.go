// ABOUTME: Outbound reply chunking for channel delivery limits
// ABOUTME: Rune-based splitting that prefers line boundaries past half the limit

package pipeline

// MaxChunkLen is the channel's maximum message length in runes.
const MaxChunkLen = 4096

// SplitMessage splits text into chunks of at most max runes. Within each
// chunk it prefers the last newline at or before the limit; a newline in the
// first half of the chunk is ignored and the split falls back to the hard
// limit. Concatenating the chunks reproduces the input exactly.
func SplitMessage(text string, max int) []string {
	if max <= 0 {
		max = MaxChunkLen
	}

	runes := []rune(text)
	if len(runes) <= max {
		return []string{text}
	}

	var chunks []string
	for len(runes) > max {
		cut := max
		if idx := lastNewline(runes, max); idx >= max/2 {
			cut = idx
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// lastNewline returns the index of the last '\n' at or before position max,
// or -1 if there is none.
func lastNewline(runes []rune, max int) int {
	for i := max; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}
