package models

import (
	"encoding/json"
	"fmt"
)

// ForgotPasswordRequest is the body of POST /api/password/forgot/.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// ResetPasswordRequest is the body of POST /api/password/reset/.
type ResetPasswordRequest struct {
	Email           string `json:"email" binding:"required"`
	OTP             string `json:"otp" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// MessageResponse is the success body of both endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the failure body. The backend fills one of the two
// fields, either with a string or with a list of strings.
type ErrorResponse struct {
	Error  json.RawMessage `json:"error,omitempty"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// Text returns error, falling back to detail. For a list the first
// non-empty entry is used.
func (r ErrorResponse) Text() string {
	if msg := messageText(r.Error); msg != "" {
		return msg
	}
	return messageText(r.Detail)
}

func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return one
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		for _, m := range many {
			if m != "" {
				return m
			}
		}
	}
	return ""
}

// APIError is a non-2xx response that carried a decodable body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
}
