package domain

import "time"

// Status is the lifecycle state of an agenda.
type Status string

const (
	StatusStored     Status = "stored"
	StatusOngoing    Status = "ongoing"
	StatusTerminated Status = "terminated"
)

// ParseStatus decodes the persisted status string. An unknown value means
// the store was mutated outside the contract and is reported as corruption,
// never coerced to a default.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusStored, StatusOngoing, StatusTerminated:
		return Status(s), nil
	}
	return "", &DataCorruptionError{Field: "agenda_status", Value: s}
}

// LogType classifies a log entry.
type LogType string

const (
	LogActivate  LogType = "activate"
	LogPutOff    LogType = "put_off"
	LogTerminate LogType = "terminate"
	LogCommon    LogType = "common_log"
)

// ParseLogType decodes the persisted log type string, with the same
// corruption policy as ParseStatus.
func ParseLogType(s string) (LogType, error) {
	switch LogType(s) {
	case LogActivate, LogPutOff, LogTerminate, LogCommon:
		return LogType(s), nil
	}
	return "", &DataCorruptionError{Field: "log_type", Value: s}
}

// Agenda is a tracked item with a lifecycle status and deadline.
// Timestamps are milliseconds since epoch; TerminateAt == 0 means the
// agenda is shelved without a deadline.
type Agenda struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Status      Status `json:"agenda_status" enum:"stored,ongoing,terminated"`
	InitiateAt  int64  `json:"initiate_at"`
	TerminateAt int64  `json:"terminate_at,omitempty"`
}

// HasDeadline reports whether a real terminate time is set.
func (a Agenda) HasDeadline() bool { return a.TerminateAt != 0 }

// Deadline returns TerminateAt as wall-clock time. Only meaningful when
// HasDeadline is true.
func (a Agenda) Deadline() time.Time { return time.UnixMilli(a.TerminateAt) }

// AgendaCreate is the payload for a new agenda; id and initiate_at are
// assigned by the store.
type AgendaCreate struct {
	Title       string
	Status      Status
	TerminateAt int64
}

// AgendaUpdate applies only the fields that are set. All nil is a no-op.
type AgendaUpdate struct {
	Title       *string
	Status      *Status
	TerminateAt *int64
}

// Log is one immutable entry in an agenda's audit trail.
type Log struct {
	ID       string  `json:"id"`
	AgendaID string  `json:"agenda_id"`
	Content  string  `json:"content"`
	Type     LogType `json:"log_type" enum:"activate,put_off,terminate,common_log"`
	CreateAt int64   `json:"create_at"`
}

// LogCreate is the payload for a new log entry; id and create_at are
// assigned by the store.
type LogCreate struct {
	AgendaID string
	Content  string
	Type     LogType
}
