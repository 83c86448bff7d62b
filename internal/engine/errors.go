package engine

import (
	"fmt"

	"finiate/internal/domain"
)

// ValidationError reports bad input (unparseable deadline, empty title,
// nonsensical slot number). The command aborts with no state change.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError reports a slot beyond the ongoing list, or an unknown
// agenda id.
type NotFoundError struct {
	Slot int
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("agenda %s not found", e.ID)
	}
	return fmt.Sprintf("no ongoing agenda in slot %d", e.Slot)
}

// InvalidTransitionError reports a lifecycle move the state machine
// forbids, e.g. terminating an already terminated agenda.
type InvalidTransitionError struct {
	AgendaID string
	From     domain.Status
	To       domain.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s for agenda %s", e.From, e.To, e.AgendaID)
}

// PartialFailureError is raised only on non-transactional backends when one
// half of an agenda+log pair committed and the other failed. It names the
// surviving half so the store can be reconciled by hand; no automatic
// rollback is attempted.
type PartialFailureError struct {
	Survived string
	Err      error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("partial failure: %s committed, paired write failed: %v", e.Survived, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }
