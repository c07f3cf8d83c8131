// Package types defines the JSON payloads of the headless HTTP API.
package types

// ModelInfo is one selectable model as reported by GET /api/models.
type ModelInfo struct {
	// Display label shown in the GUI selector.
	Label string `json:"label"`
	// Task kind: "text" or "image".
	Kind string `json:"kind"`
	// Model identifier passed to the pipeline factory.
	Model string `json:"model"`
	// Short informational text about the model.
	Brief string `json:"brief,omitempty"`
}

// ModelsResponse wraps the list returned by GET /api/models.
type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// GenerateRequest is the payload for POST /api/generate.
type GenerateRequest struct {
	// Required prompt text.
	Prompt string `json:"prompt"`
	// Maximum number of new tokens; 0 uses the adapter default.
	MaxNewTokens int `json:"max_new_tokens,omitempty"`
	// Sampling temperature; 0 uses the adapter default.
	Temperature float64 `json:"temperature,omitempty"`
	// Disable sampling when true (sampling is on by default).
	Greedy bool `json:"greedy,omitempty"`
}

// GenerateResponse is the result of a generation or caption call.
type GenerateResponse struct {
	// Extracted generated_text of the first result record.
	Text string `json:"text"`
	// Model identifier that produced the text.
	Model string `json:"model"`
	// Wall-clock seconds spent in the pipeline call (including lazy load).
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// ErrorResponse is the consistent JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
