package sales

import "fmt"

// Stage is a step of the create pipeline.
type Stage string

const (
	StageValidating        Stage = "VALIDATING"
	StageBuilding          Stage = "BUILDING"
	StageInventoryPending  Stage = "INVENTORY_PENDING"
	StageAccountingPending Stage = "ACCOUNTING_PENDING"
	StageCommitted         Stage = "COMMITTED"
	StageRolledBack        Stage = "ROLLED_BACK"
)

var stageTransitions = map[Stage]Stage{
	StageValidating:        StageBuilding,
	StageBuilding:          StageInventoryPending,
	StageInventoryPending:  StageAccountingPending,
	StageAccountingPending: StageCommitted,
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageCommitted || s == StageRolledBack
}

// pipeline tracks one create request through its stages.
type pipeline struct {
	stage Stage
}

func newPipeline() *pipeline {
	return &pipeline{stage: StageValidating}
}

func (p *pipeline) advance(to Stage) error {
	if next, ok := stageTransitions[p.stage]; !ok || next != to {
		return fmt.Errorf("%w: pipeline %s -> %s", ErrInvalidStatus, p.stage, to)
	}
	p.stage = to
	return nil
}

// fail moves a non-terminal pipeline to ROLLED_BACK and returns the stage it
// failed in.
func (p *pipeline) fail() Stage {
	failed := p.stage
	if !p.stage.Terminal() {
		p.stage = StageRolledBack
	}
	return failed
}

// Lifecycle is the derived state of a booking's side effects.
type Lifecycle string

const (
	LifecycleCreated          Lifecycle = "CREATED"
	LifecycleInventoryApplied Lifecycle = "INVENTORY_APPLIED"
	LifecycleLedgerPosted     Lifecycle = "LEDGER_POSTED"
	LifecycleCommitted        Lifecycle = "COMMITTED"
	LifecycleCompleted        Lifecycle = "COMPLETED"
	LifecycleCancelled        Lifecycle = "CANCELLED"
)

var lifecycleTransitions = map[Lifecycle][]Lifecycle{
	LifecycleCreated:          {LifecycleInventoryApplied},
	LifecycleInventoryApplied: {LifecycleLedgerPosted},
	LifecycleLedgerPosted:     {LifecycleCommitted, LifecycleCancelled},
	LifecycleCommitted:        {LifecycleCancelled, LifecycleCompleted},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Lifecycle) bool {
	for _, next := range lifecycleTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Lifecycle derives the state of a persisted booking. Anything readable has
// been committed, so only the status distinguishes the terminal states.
func (b Booking) Lifecycle() Lifecycle {
	switch b.Status {
	case StatusCancelled:
		return LifecycleCancelled
	case StatusCompleted:
		return LifecycleCompleted
	}
	return LifecycleCommitted
}

// CheckCancel returns why b cannot be cancelled, or nil.
func (b Booking) CheckCancel() error {
	switch b.Lifecycle() {
	case LifecycleCancelled:
		return ErrAlreadyCancelled
	case LifecycleCompleted:
		return ErrCompleted
	}
	if !CanTransition(b.Lifecycle(), LifecycleCancelled) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, b.Lifecycle(), LifecycleCancelled)
	}
	return nil
}

// tracker walks a new booking through its lifecycle. The zero value has not
// created anything yet.
type tracker struct {
	state Lifecycle
}

func (t *tracker) created() {
	t.state = LifecycleCreated
}

// reached reports the furthest side effect applied, for logging.
func (t *tracker) reached() string {
	if t.state == "" {
		return "NONE"
	}
	return string(t.state)
}

func (t *tracker) to(next Lifecycle) error {
	if !CanTransition(t.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, t.state, next)
	}
	t.state = next
	return nil
}
