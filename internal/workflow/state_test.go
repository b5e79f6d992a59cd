package workflow

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/apflow/invoice-reconciler/constants"
	"github.com/apflow/invoice-reconciler/internal/entity"
)

func TestReduceHappyPath(t *testing.T) {
	now := time.Now().UTC()
	s0 := NewState(uuid.New(), now)
	assert.Equal(t, StepQueued, s0.Step)
	assert.Equal(t, constants.RunStatusQueued, s0.Status)

	s1 := Reduce(s0, Started{At: now})
	assert.Equal(t, StepFetch, s1.Step)
	assert.Equal(t, constants.RunStatusRunning, s1.Status)

	invIDs := []uuid.UUID{uuid.New()}
	s2 := Reduce(s1, DocumentsFetched{InvoiceIDs: invIDs, POIDs: []uuid.UUID{uuid.New()}, At: now})
	assert.Equal(t, StepReconcile, s2.Step)
	assert.Len(t, s2.InvoiceIDs, 1)

	s3 := Reduce(s2, MatrixBuilt{Matrix: &entity.MatrixResult{}, At: now})
	assert.Equal(t, StepReport, s3.Step)
	assert.NotNil(t, s3.Matrix)

	s4 := Reduce(s3, Reported{At: now})
	assert.Equal(t, StepDone, s4.Step)
	assert.Equal(t, constants.RunStatusCompleted, s4.Status)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	now := time.Now().UTC()
	s0 := NewState(uuid.New(), now)
	s1 := Reduce(s0, Started{At: now})

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	s2 := Reduce(s1, DocumentsFetched{InvoiceIDs: ids, At: now})

	// the snapshot chain keeps each earlier value intact
	assert.Equal(t, StepQueued, s0.Step)
	assert.Equal(t, StepFetch, s1.Step)
	assert.Nil(t, s1.InvoiceIDs)

	// reducer copied the input slice
	ids[0] = uuid.Nil
	assert.NotEqual(t, uuid.Nil, s2.InvoiceIDs[0])
}

func TestReduceIgnoresOutOfOrderEvents(t *testing.T) {
	now := time.Now().UTC()
	s0 := NewState(uuid.New(), now)

	// matrix cannot land before documents are fetched
	s1 := Reduce(s0, MatrixBuilt{Matrix: &entity.MatrixResult{}, At: now})
	assert.Equal(t, s0, s1)

	s2 := Reduce(s0, Reported{At: now})
	assert.Equal(t, s0, s2)
}

func TestReduceFailureIsTerminal(t *testing.T) {
	now := time.Now().UTC()
	s := NewState(uuid.New(), now)
	s = Reduce(s, Started{At: now})
	s = Reduce(s, Failed{Err: "record 0 is nil", At: now})

	assert.Equal(t, constants.RunStatusFailed, s.Status)
	assert.Equal(t, "record 0 is nil", s.Err)

	// no event un-fails a run
	after := Reduce(s, DocumentsFetched{At: now})
	assert.Equal(t, s, after)
	after = Reduce(s, Reported{At: now})
	assert.Equal(t, s, after)
}
