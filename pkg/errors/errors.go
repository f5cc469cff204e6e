package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies one of the domain-level error kinds from
// SPEC_FULL.md §7's error-handling table. Kinds are values, not exceptions:
// node and tool code returns them rather than panicking, so policy stays
// explicit and testable.
type ErrorCode string

const (
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeAlreadyExists      ErrorCode = "ALREADY_EXISTS"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavail     ErrorCode = "SERVICE_UNAVAILABLE"

	// Core agent runtime error kinds (spec.md §7).
	CodeToolNotFound        ErrorCode = "TOOL_NOT_FOUND"
	CodeToolInvocationError ErrorCode = "TOOL_INVOCATION_ERROR"
	CodeHITLDenied          ErrorCode = "HITL_DENIED"
	CodeLLMTransient        ErrorCode = "LLM_TRANSIENT_ERROR"
	CodeLLMContextOverflow  ErrorCode = "LLM_CONTEXT_OVERFLOW"
	CodeCompressionFailure  ErrorCode = "COMPRESSION_FAILURE"
	CodeLoopBudgetExhausted ErrorCode = "LOOP_BUDGET_EXHAUSTED"
	CodeSubagentFailure     ErrorCode = "SUBAGENT_FAILURE"
	CodeCancelled           ErrorCode = "CANCELLED"
	CodePathEscape          ErrorCode = "PATH_ESCAPE"
)

// AppError is the concrete error type every layer returns instead of a bare
// error, so callers can recover the kind with errors.As.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func new_(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func NewInvalidInputError(message string) *AppError   { return new_(CodeInvalidInput, message) }
func NewNotFoundError(message string) *AppError        { return new_(CodeNotFound, message) }
func NewAlreadyExistsError(message string) *AppError   { return new_(CodeAlreadyExists, message) }
func NewInternalError(message string) *AppError        { return new_(CodeInternal, message) }

func NewInternalErrorWithCause(message string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: cause}
}

// NewToolNotFoundError — model emits a call to an unknown tool name.
func NewToolNotFoundError(toolName string) *AppError {
	return new_(CodeToolNotFound, fmt.Sprintf("%s is not a valid tool; try one of the bound tools", toolName))
}

// NewToolInvocationError — the handler raised or returned a non-zero result.
func NewToolInvocationError(toolName string, cause error) *AppError {
	return &AppError{Code: CodeToolInvocationError, Message: "tool " + toolName + " failed", Err: cause}
}

// NewHITLDeniedError — the user denied an approval request.
func NewHITLDeniedError(reason string) *AppError {
	return new_(CodeHITLDenied, "denied by user: "+reason)
}

// NewLLMTransientError — timeout or 5xx from the chat model.
func NewLLMTransientError(cause error) *AppError {
	return &AppError{Code: CodeLLMTransient, Message: "chat model call failed", Err: cause}
}

// NewLLMContextOverflowError — provider reports a context-length error.
func NewLLMContextOverflowError(cause error) *AppError {
	return &AppError{Code: CodeLLMContextOverflow, Message: "context window exceeded", Err: cause}
}

// NewCompressionFailureError — the summarizer LLM call failed or returned empty.
func NewCompressionFailureError(cause error) *AppError {
	return &AppError{Code: CodeCompressionFailure, Message: "compression failed, falling back to truncation", Err: cause}
}

// NewLoopBudgetExhaustedError — loops == max_loops with pending calls.
func NewLoopBudgetExhaustedError(maxLoops int) *AppError {
	return new_(CodeLoopBudgetExhausted, fmt.Sprintf("loop budget of %d exhausted with calls still pending", maxLoops))
}

// NewSubagentFailureError — a subagent raised before finalization.
func NewSubagentFailureError(contextID string, cause error) *AppError {
	return &AppError{Code: CodeSubagentFailure, Message: "subagent " + contextID + " failed", Err: cause}
}

// NewCancelledError — the session's cancellation token fired.
func NewCancelledError() *AppError {
	return new_(CodeCancelled, "cancelled")
}

func IsNotFound(err error) bool        { return hasCode(err, CodeNotFound) }
func IsInvalidInput(err error) bool    { return hasCode(err, CodeInvalidInput) }
func IsToolNotFound(err error) bool    { return hasCode(err, CodeToolNotFound) }
func IsHITLDenied(err error) bool      { return hasCode(err, CodeHITLDenied) }
func IsContextOverflow(err error) bool { return hasCode(err, CodeLLMContextOverflow) }
func IsCancelled(err error) bool       { return hasCode(err, CodeCancelled) }

func hasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
