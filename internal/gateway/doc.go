// ABOUTME: Package documentation for the gateway package
// ABOUTME: Describes the server orchestration and HTTP surface

// Package gateway wires the docbot-gateway components together and exposes
// them over HTTP: the Telegram webhook that feeds the conversation pipeline,
// the dashboard CRUD API for bots and knowledge documents, and health checks.
package gateway
