package plan

// StepStatus is the lifecycle state of one action inside a run.
type StepStatus string

const (
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Step is a transient progress record emitted to observers.
type Step struct {
	Index   int        `json:"step_index"`
	Action  ActionKind `json:"action_name"`
	Status  StepStatus `json:"status"`
	Message string     `json:"message,omitempty"`
	Attempt int        `json:"attempt,omitempty"`
}

// OutcomeStatus is the terminal state of a plan run.
type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeFailed    OutcomeStatus = "failed"
	// OutcomeNoop marks a plan that had nothing to execute.
	OutcomeNoop OutcomeStatus = "noop"
)

// Outcome is the terminal result of executing a plan. FailedIndex is -1
// unless Status is failed.
type Outcome struct {
	Status      OutcomeStatus `json:"status"`
	FailedIndex int           `json:"failed_index"`
	Message     string        `json:"message,omitempty"`
	// Results holds the success message of each completed step, in order.
	Results []string `json:"results,omitempty"`
}

func (o Outcome) Succeeded() bool { return o.Status == OutcomeCompleted }
