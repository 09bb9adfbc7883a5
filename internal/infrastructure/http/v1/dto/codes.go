// Package dto provides Data Transfer Objects for API requests/responses.
package dto

// GenerateRequest asks for one code. Exactly one of PatternKey or
// Template selects the pattern; both empty selects the default pattern.
type GenerateRequest struct {
	PatternKey string         `json:"pattern_key"`
	Template   string         `json:"template"`
	Overrides  map[string]any `json:"overrides"`
}

// GenerateResponse carries the generated code.
type GenerateResponse struct {
	Code string `json:"code"`
}

// ConfirmRequest asks to confirm a previously generated code as used.
type ConfirmRequest struct {
	Code       string `json:"code" binding:"required"`
	PatternKey string `json:"pattern_key"`
}

// ConfirmResponse reports whether the reservation was committed.
// Confirmed is false for late, repeated, or unknown confirmations.
type ConfirmResponse struct {
	Confirmed bool `json:"confirmed"`
}
