package processor

import "time"

// State is a job's position in the pipeline.
type State string

const (
	StateFetching   State = "fetching"
	StateConverting State = "converting"
	StatePublishing State = "publishing"
	StateCleaningUp State = "cleaning_up"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// RawVideoRef names the source object and its local staging file.
type RawVideoRef struct {
	ObjectName string
	LocalName  string
}

// ProcessedVideoRef names the output object and its local staging file.
type ProcessedVideoRef struct {
	ObjectName string
	LocalName  string
}

// Job is one invocation of the pipeline.
type Job struct {
	ID        string
	Raw       RawVideoRef
	Processed ProcessedVideoRef
}

// Result describes how a job ended.
type Result struct {
	JobID           string
	ProcessedObject string
	State           State
	// FailedStage is set when State is StateFailed.
	FailedStage State
	PublicURL   string
	Duration    time.Duration
}
