package core

import (
	"context"
	"encoding/json"
)

// Tool is the interface for tools the capability engine can call. Every tool
// in this module is read-only: findings are persisted by the pipeline, never
// through a tool call.
type Tool interface {
	// Name returns the tool's unique identifier.
	Name() string

	// Description returns a human-readable description for Claude.
	Description() string

	// Schema returns the JSON Schema for the tool's parameters.
	Schema() map[string]interface{}

	// Execute runs the tool with the given parameters.
	Execute(ctx context.Context, params *ToolParams) (*ToolResult, error)
}

// ToolParams contains all parameters needed for tool execution.
type ToolParams struct {
	// UserID is the user the capability run is on behalf of.
	UserID string

	// Input is the tool parameters as JSON.
	Input json.RawMessage

	// RequestID for tracing/logging.
	RequestID string
}

// ToolResult contains the result of a tool execution.
type ToolResult struct {
	// Success indicates whether the tool executed successfully.
	Success bool `json:"success"`

	// Data is the result payload to send back to Claude.
	Data interface{} `json:"data,omitempty"`

	// Error is set on failure.
	Error string `json:"error,omitempty"`
}
