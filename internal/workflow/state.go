package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/apflow/invoice-reconciler/constants"
	"github.com/apflow/invoice-reconciler/internal/entity"
)

// Step names one stage of a reconciliation run.
type Step string

const (
	StepQueued    Step = "queued"
	StepFetch     Step = "fetch"
	StepReconcile Step = "reconcile"
	StepReport    Step = "report"
	StepDone      Step = "done"
)

// State is an immutable snapshot of one run's progress. Transitions never
// mutate a snapshot; Reduce returns a fresh value and the previous one stays
// valid for anyone still holding it.
type State struct {
	RunID      uuid.UUID
	Step       Step
	Status     constants.RunStatus
	InvoiceIDs []uuid.UUID
	POIDs      []uuid.UUID
	Matrix     *entity.MatrixResult
	Err        string
	UpdatedAt  time.Time
}

// NewState is the initial snapshot for a freshly accepted run.
func NewState(runID uuid.UUID, at time.Time) State {
	return State{
		RunID:     runID,
		Step:      StepQueued,
		Status:    constants.RunStatusQueued,
		UpdatedAt: at,
	}
}

// Event is a reducer input. Exactly one concrete event type applies per
// transition.
type Event interface {
	isEvent()
}

type Started struct{ At time.Time }

type DocumentsFetched struct {
	InvoiceIDs []uuid.UUID
	POIDs      []uuid.UUID
	At         time.Time
}

type MatrixBuilt struct {
	Matrix *entity.MatrixResult
	At     time.Time
}

type Reported struct{ At time.Time }

type Failed struct {
	Err string
	At  time.Time
}

func (Started) isEvent()          {}
func (DocumentsFetched) isEvent() {}
func (MatrixBuilt) isEvent()      {}
func (Reported) isEvent()         {}
func (Failed) isEvent()           {}

// Reduce is the single place run state changes. It copies slice fields so
// the input snapshot can never be aliased into the output, and ignores
// events that do not apply to the current step rather than corrupting the
// run. A Failed event applies from any non-terminal step.
func Reduce(s State, ev Event) State {
	if s.Status == constants.RunStatusFailed || s.Step == StepDone {
		return s
	}

	switch e := ev.(type) {
	case Started:
		if s.Step != StepQueued {
			return s
		}
		s.Step = StepFetch
		s.Status = constants.RunStatusRunning
		s.UpdatedAt = e.At

	case DocumentsFetched:
		if s.Step != StepFetch {
			return s
		}
		s.InvoiceIDs = append([]uuid.UUID(nil), e.InvoiceIDs...)
		s.POIDs = append([]uuid.UUID(nil), e.POIDs...)
		s.Step = StepReconcile
		s.UpdatedAt = e.At

	case MatrixBuilt:
		if s.Step != StepReconcile {
			return s
		}
		s.Matrix = e.Matrix
		s.Step = StepReport
		s.UpdatedAt = e.At

	case Reported:
		if s.Step != StepReport {
			return s
		}
		s.Step = StepDone
		s.Status = constants.RunStatusCompleted
		s.UpdatedAt = e.At

	case Failed:
		s.Err = e.Err
		s.Status = constants.RunStatusFailed
		s.UpdatedAt = e.At
	}
	return s
}
