package model

// TaskStatus represents the status of an export task
type TaskStatus string

const (
	// TaskStatusPending means the task is queued but not started
	TaskStatusPending TaskStatus = "Pending"

	// TaskStatusStarting means the task is in the process of starting
	TaskStatusStarting TaskStatus = "Starting"

	// TaskStatusRunning means the task is writing output
	TaskStatusRunning TaskStatus = "Running"

	// TaskStatusStopping means the task is in the process of stopping
	TaskStatusStopping TaskStatus = "Stopping"

	// TaskStatusStopped means the task was stopped by user
	TaskStatusStopped TaskStatus = "Stopped"

	// TaskStatusCompleted means the task finished successfully
	TaskStatusCompleted TaskStatus = "Completed"

	// TaskStatusError means the task failed with an error
	TaskStatusError TaskStatus = "Error"
)

// String returns the string representation of TaskStatus
func (ts TaskStatus) String() string {
	return string(ts)
}

// IsActive returns true if the task is in an active state
func (ts TaskStatus) IsActive() bool {
	return ts == TaskStatusStarting || ts == TaskStatusRunning || ts == TaskStatusStopping
}

// IsFinished returns true if the task is in a finished state (completed, stopped, or error)
func (ts TaskStatus) IsFinished() bool {
	return ts == TaskStatusCompleted || ts == TaskStatusStopped || ts == TaskStatusError
}

// RequestStatus is the lifecycle state of a decode request.
//
// Queued -> Running -> {Completed | Cancelled}; a Queued request replaced by a
// newer one for the same key becomes Superseded.
type RequestStatus string

const (
	RequestQueued     RequestStatus = "queued"
	RequestRunning    RequestStatus = "running"
	RequestCompleted  RequestStatus = "completed"
	RequestCancelled  RequestStatus = "cancelled"
	RequestSuperseded RequestStatus = "superseded"
)

// IsFinished returns true once the request can no longer produce a result.
func (rs RequestStatus) IsFinished() bool {
	return rs == RequestCompleted || rs == RequestCancelled || rs == RequestSuperseded
}

// SessionStatus is the lifecycle state of a gallery download run.
type SessionStatus string

const (
	SessionResolving   SessionStatus = "resolving"
	SessionDownloading SessionStatus = "downloading"
	SessionCompleted   SessionStatus = "completed"
	SessionCancelled   SessionStatus = "cancelled"
	SessionFailed      SessionStatus = "failed"
)

// IsActive returns true while the run may still emit batches.
func (ss SessionStatus) IsActive() bool {
	return ss == SessionResolving || ss == SessionDownloading
}

// IsFinished returns true for terminal states.
func (ss SessionStatus) IsFinished() bool {
	return ss == SessionCompleted || ss == SessionCancelled || ss == SessionFailed
}
