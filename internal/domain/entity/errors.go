package entity

import "errors"

var (
	// Message errors
	ErrInvalidMessageID  = errors.New("invalid message id")
	ErrInvalidToolCallID = errors.New("invalid tool call id")

	// Session state errors
	ErrInvalidThreadID   = errors.New("invalid thread id")
	ErrNestedDelegation  = errors.New("delegate_task is not allowed inside a subagent")
	ErrLoopBudgetInvalid = errors.New("max_loops must be positive")
)
