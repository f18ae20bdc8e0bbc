// Package types holds the JSON envelopes every API response is wrapped in.
package types

// SuccessEnvelope wraps a 2xx payload as {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public shape of a failure. Details is only set for codes
// whose metadata allows it (validation field errors, stock shortfalls).
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
