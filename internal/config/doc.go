// ABOUTME: Package documentation for the config package
// ABOUTME: Describes configuration loading behavior

// Package config loads and validates docbot-gateway configuration from YAML
// files. Environment variables referenced as ${VAR_NAME} are expanded before
// parsing, and duration fields accept Go duration strings such as "20s".
package config
