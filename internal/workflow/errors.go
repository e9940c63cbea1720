package workflow

import "errors"

// 工作流错误
var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrAssignmentNotFound  = errors.New("no assignment for this user in the current status")
	ErrNotPermitted        = errors.New("not permitted")
	ErrPreviousPending     = errors.New("previous team member must finish first")
	ErrAlreadyCompleted    = errors.New("step already completed")
	ErrStatusNotInWorkflow = errors.New("status is not part of the workflow")
	ErrTaskClosed          = errors.New("task is closed")
	ErrConcurrentUpdate    = errors.New("task was modified concurrently")
	ErrInvalidAssignees    = errors.New("invalid assignee list")
	ErrEmptyCatalog        = errors.New("workflow catalog payload is empty")
)
