package domain

import "context"

// AgendaRepo is the storage contract for agendas. Implementations assign
// ids and initiate_at on create. Delete and update are idempotent: absent
// ids succeed and affect nothing. GetAgendaByID returns nil (not an error)
// when the agenda does not exist.
type AgendaRepo interface {
	CreateAgenda(ctx context.Context, agenda AgendaCreate) (string, error)
	DeleteAgendaByID(ctx context.Context, id string) error
	UpdateAgenda(ctx context.Context, id string, update AgendaUpdate) error
	GetAgendaByID(ctx context.Context, id string) (*Agenda, error)
	GetAgendasByTitle(ctx context.Context, title string) ([]Agenda, error)
	// GetAgendasByStatus returns all agendas when status is nil.
	GetAgendasByStatus(ctx context.Context, status *Status) ([]Agenda, error)
	CountAgendasByStatus(ctx context.Context, status *Status) (int64, error)
	// Bounds are inclusive on both ends, in epoch milliseconds.
	GetAgendasByTerminateTimeRange(ctx context.Context, start, end int64) ([]Agenda, error)
}

// LogRepo is the storage contract for the append-only log. Logs are never
// updated; DeleteLog exists for administrative cleanup only and is
// idempotent.
type LogRepo interface {
	CreateLog(ctx context.Context, log LogCreate) (string, error)
	DeleteLog(ctx context.Context, id string) error
	GetLogsByAgendaID(ctx context.Context, agendaID string) ([]Log, error)
	// Bounds are inclusive on both ends, in epoch milliseconds.
	GetLogsByTimeRange(ctx context.Context, start, end int64) ([]Log, error)
}

// Store combines both contracts with an atomicity hook. The lifecycle
// service issues every transition as one agenda write plus one log write;
// transactional backends make that pair atomic via WithTx, others report
// Transactional() == false and accept that a crash between the halves is
// surfaced to the caller instead of rolled back.
type Store interface {
	AgendaRepo
	LogRepo
	// WithTx runs fn against a Store view whose writes commit together.
	// Nested calls run in the enclosing transaction.
	WithTx(ctx context.Context, fn func(Store) error) error
	Transactional() bool
}
