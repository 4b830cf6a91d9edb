package approval

import "errors"

var (
	// ErrNotFound indicates the request ID does not exist.
	ErrNotFound = errors.New("request not found")
	// ErrPermissionDenied indicates the actor's role is not qualified for the
	// request's category and phase.
	ErrPermissionDenied = errors.New("actor not qualified for this request")
	// ErrTerminalStatus indicates the request has already been approved or
	// rejected and accepts no further votes.
	ErrTerminalStatus = errors.New("request is in a terminal status")
	// ErrNoApprovers indicates the required approver pool for the current
	// phase is empty, so the request can never advance.
	ErrNoApprovers = errors.New("no qualified approvers for this phase")
	// ErrValidation indicates a malformed submission.
	ErrValidation = errors.New("invalid request")
)
