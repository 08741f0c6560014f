package server

import (
	"github.com/gomlx/kernelscope/inspect"
	"github.com/gomlx/kernelscope/program"
)

// InspectRequest is the body of /v1/count and /v1/structure.
type InspectRequest struct {
	Program *program.Document `json:"program"`
	// Dialect overrides the dialect named in the program document.
	Dialect string `json:"dialect,omitempty"`
}

// CheckRequest is the body of /v1/check. At least one expectation is required.
type CheckRequest struct {
	InspectRequest
	ExpectedCount     *int            `json:"expected_count,omitempty"`
	ExpectedStructure *inspect.Report `json:"expected_structure,omitempty"`
}

// CountResponse is returned by /v1/count.
type CountResponse struct {
	Program          string `json:"program"`
	ID               string `json:"id"`
	FusedKernelCount int    `json:"fused_kernel_count"`
}

// CheckResponse is returned by /v1/check, with status 200 when OK and 422 otherwise.
type CheckResponse struct {
	OK        bool            `json:"ok"`
	Program   string          `json:"program"`
	Error     string          `json:"error,omitempty"`
	Diff      []string        `json:"diff,omitempty"`
	Structure *inspect.Report `json:"structure,omitempty"`
}

// ErrorResponse is the body of every 4xx/5xx reply other than a check mismatch.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
