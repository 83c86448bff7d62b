package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"finiate/internal/config"
	"finiate/internal/domain"
)

// MaxStatusAmount caps the status display size.
const MaxStatusAmount = 5

// Engine is the agenda lifecycle service. Every status transition it
// performs writes exactly one paired log entry; slot numbers are never
// stored, only derived from the ongoing list on demand.
type Engine struct {
	Store  domain.Store
	Config *config.Config
	Now    func() time.Time
}

func New(store domain.Store, cfg *config.Config) Engine {
	return Engine{Store: store, Config: cfg, Now: time.Now}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

var deadlineLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDeadline accepts a Go duration offset from now (optionally with a
// leading '+'), or an absolute time in RFC3339, "2006-01-02 15:04" or
// "2006-01-02" form. Past times are accepted: an overdue agenda is a
// legitimate state, an unparseable one is not.
func (e Engine) ParseDeadline(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ValidationError{Msg: "terminate time is required"}
	}
	if d, err := time.ParseDuration(strings.TrimPrefix(s, "+")); err == nil {
		return e.now().Add(d).UnixMilli(), nil
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, &ValidationError{Msg: fmt.Sprintf("cannot parse terminate time %q", s)}
}

// transition runs the agenda half and the paired log append as one unit.
// Transactional stores commit both or neither; on other stores a log
// failure after a committed agenda write surfaces as PartialFailureError.
func (e Engine) transition(ctx context.Context, agendaHalf func(domain.Store) (string, error), logType domain.LogType, content string) (string, error) {
	if e.Store.Transactional() {
		var agendaID string
		err := e.Store.WithTx(ctx, func(s domain.Store) error {
			id, err := agendaHalf(s)
			if err != nil {
				return err
			}
			agendaID = id
			_, err = s.CreateLog(ctx, domain.LogCreate{AgendaID: id, Content: content, Type: logType})
			return err
		})
		return agendaID, err
	}
	id, err := agendaHalf(e.Store)
	if err != nil {
		return "", err
	}
	if _, err := e.Store.CreateLog(ctx, domain.LogCreate{AgendaID: id, Content: content, Type: logType}); err != nil {
		return id, &PartialFailureError{Survived: "agenda write", Err: err}
	}
	return id, nil
}

func (e Engine) getAgenda(ctx context.Context, id string) (domain.Agenda, error) {
	a, err := e.Store.GetAgendaByID(ctx, id)
	if err != nil {
		return domain.Agenda{}, err
	}
	if a == nil {
		return domain.Agenda{}, &NotFoundError{ID: id}
	}
	return *a, nil
}

// Add creates an ongoing agenda with the given deadline and its activate
// log.
func (e Engine) Add(ctx context.Context, title, terminateAt string) (domain.Agenda, error) {
	if strings.TrimSpace(title) == "" {
		return domain.Agenda{}, &ValidationError{Msg: "agenda title is required"}
	}
	deadline, err := e.ParseDeadline(terminateAt)
	if err != nil {
		return domain.Agenda{}, err
	}
	id, err := e.transition(ctx, func(s domain.Store) (string, error) {
		return s.CreateAgenda(ctx, domain.AgendaCreate{
			Title:       title,
			Status:      domain.StatusOngoing,
			TerminateAt: deadline,
		})
	}, domain.LogActivate, "")
	if err != nil {
		return domain.Agenda{}, err
	}
	return e.getAgenda(ctx, id)
}

// Shelve creates a stored agenda without a deadline. A stored agenda with
// the same title already pending is rejected; the check is an explicit
// pre-read, not a storage constraint, since duplicate titles are otherwise
// allowed.
func (e Engine) Shelve(ctx context.Context, title string) (domain.Agenda, error) {
	if strings.TrimSpace(title) == "" {
		return domain.Agenda{}, &ValidationError{Msg: "agenda title is required"}
	}
	existing, err := e.Store.GetAgendasByTitle(ctx, title)
	if err != nil {
		return domain.Agenda{}, err
	}
	for _, a := range existing {
		if a.Status == domain.StatusStored {
			return domain.Agenda{}, &ValidationError{Msg: fmt.Sprintf("agenda %q is already shelved", title)}
		}
	}
	id, err := e.transition(ctx, func(s domain.Store) (string, error) {
		return s.CreateAgenda(ctx, domain.AgendaCreate{
			Title:  title,
			Status: domain.StatusStored,
		})
	}, domain.LogActivate, "")
	if err != nil {
		return domain.Agenda{}, err
	}
	return e.getAgenda(ctx, id)
}

// Slots returns the ongoing agendas in slot order: ascending terminate
// time, ties broken by initiate time then id. Recomputed on every call.
func (e Engine) Slots(ctx context.Context) ([]domain.Agenda, error) {
	status := domain.StatusOngoing
	items, err := e.Store.GetAgendasByStatus(ctx, &status)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].TerminateAt != items[j].TerminateAt {
			return items[i].TerminateAt < items[j].TerminateAt
		}
		if items[i].InitiateAt != items[j].InitiateAt {
			return items[i].InitiateAt < items[j].InitiateAt
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (e Engine) resolveSlot(ctx context.Context, slot int) (domain.Agenda, error) {
	if slot < 1 {
		return domain.Agenda{}, &ValidationError{Msg: fmt.Sprintf("slot must be positive, got %d", slot)}
	}
	slots, err := e.Slots(ctx)
	if err != nil {
		return domain.Agenda{}, err
	}
	if slot > len(slots) {
		return domain.Agenda{}, &NotFoundError{Slot: slot}
	}
	return slots[slot-1], nil
}

// PutOffOptions controls PutOff. When TerminateAt is empty the agenda's
// deadline is pushed back by Extension, or by the configured default
// extension when that is zero.
type PutOffOptions struct {
	Slot        int
	TerminateAt string
	Extension   time.Duration
	Content     string
}

// PutOff postpones the agenda in the given slot and writes its put_off log.
func (e Engine) PutOff(ctx context.Context, opts PutOffOptions) (domain.Agenda, error) {
	a, err := e.resolveSlot(ctx, opts.Slot)
	if err != nil {
		return domain.Agenda{}, err
	}
	var deadline int64
	if opts.TerminateAt != "" {
		deadline, err = e.ParseDeadline(opts.TerminateAt)
		if err != nil {
			return domain.Agenda{}, err
		}
	} else {
		ext := opts.Extension
		if ext == 0 && e.Config != nil {
			ext = e.Config.PutOffExtension()
		}
		if ext == 0 {
			ext = 24 * time.Hour
		}
		deadline = a.TerminateAt + ext.Milliseconds()
	}
	if _, err := e.transition(ctx, func(s domain.Store) (string, error) {
		return a.ID, s.UpdateAgenda(ctx, a.ID, domain.AgendaUpdate{TerminateAt: &deadline})
	}, domain.LogPutOff, opts.Content); err != nil {
		return domain.Agenda{}, err
	}
	return e.getAgenda(ctx, a.ID)
}

// Terminate closes the agenda in the given slot and writes its terminate
// log.
func (e Engine) Terminate(ctx context.Context, slot int, content string) (domain.Agenda, error) {
	a, err := e.resolveSlot(ctx, slot)
	if err != nil {
		return domain.Agenda{}, err
	}
	return e.terminateAgenda(ctx, a, content)
}

// TerminateByID closes an agenda addressed directly by id.
func (e Engine) TerminateByID(ctx context.Context, id, content string) (domain.Agenda, error) {
	a, err := e.getAgenda(ctx, id)
	if err != nil {
		return domain.Agenda{}, err
	}
	return e.terminateAgenda(ctx, a, content)
}

func (e Engine) terminateAgenda(ctx context.Context, a domain.Agenda, content string) (domain.Agenda, error) {
	if a.Status != domain.StatusOngoing {
		// Terminated is a terminal state; re-terminating is a bug signal,
		// not a no-op. Stored agendas never terminate directly either.
		return domain.Agenda{}, &InvalidTransitionError{AgendaID: a.ID, From: a.Status, To: domain.StatusTerminated}
	}
	status := domain.StatusTerminated
	if _, err := e.transition(ctx, func(s domain.Store) (string, error) {
		return a.ID, s.UpdateAgenda(ctx, a.ID, domain.AgendaUpdate{Status: &status})
	}, domain.LogTerminate, content); err != nil {
		return domain.Agenda{}, err
	}
	return e.getAgenda(ctx, a.ID)
}

// AppendNote writes a free-standing common_log note against the agenda in
// the given slot. No transition occurs.
func (e Engine) AppendNote(ctx context.Context, slot int, content string) (domain.Log, error) {
	a, err := e.resolveSlot(ctx, slot)
	if err != nil {
		return domain.Log{}, err
	}
	return e.appendNote(ctx, a.ID, content)
}

// AppendNoteByID writes a note against an agenda addressed by id.
func (e Engine) AppendNoteByID(ctx context.Context, id, content string) (domain.Log, error) {
	a, err := e.getAgenda(ctx, id)
	if err != nil {
		return domain.Log{}, err
	}
	return e.appendNote(ctx, a.ID, content)
}

func (e Engine) appendNote(ctx context.Context, agendaID, content string) (domain.Log, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Log{}, &ValidationError{Msg: "log content is required"}
	}
	logID, err := e.Store.CreateLog(ctx, domain.LogCreate{
		AgendaID: agendaID,
		Content:  content,
		Type:     domain.LogCommon,
	})
	if err != nil {
		return domain.Log{}, err
	}
	logs, err := e.Store.GetLogsByAgendaID(ctx, agendaID)
	if err != nil {
		return domain.Log{}, err
	}
	for _, l := range logs {
		if l.ID == logID {
			return l, nil
		}
	}
	return domain.Log{}, &domain.StoreError{Op: "read back note", Err: fmt.Errorf("log %s missing after write", logID)}
}

// StatusEntry is one row of the status display.
type StatusEntry struct {
	Slot     int           `json:"slot"`
	Agenda   domain.Agenda `json:"agenda"`
	LogCount int           `json:"log_count"`
	LastLog  *domain.Log   `json:"last_log,omitempty"`
}

// Status returns the first amount (clamped to 1..5) ongoing agendas in
// slot order with their log counts and most recent log. Read-only.
func (e Engine) Status(ctx context.Context, amount int) ([]StatusEntry, error) {
	if amount < 1 {
		amount = 1
	}
	if amount > MaxStatusAmount {
		amount = MaxStatusAmount
	}
	slots, err := e.Slots(ctx)
	if err != nil {
		return nil, err
	}
	if amount > len(slots) {
		amount = len(slots)
	}
	entries := make([]StatusEntry, 0, amount)
	for i := 0; i < amount; i++ {
		logs, err := e.Store.GetLogsByAgendaID(ctx, slots[i].ID)
		if err != nil {
			return nil, err
		}
		entry := StatusEntry{Slot: i + 1, Agenda: slots[i], LogCount: len(logs)}
		if len(logs) > 0 {
			last := logs[len(logs)-1]
			entry.LastLog = &last
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// HistoryEntry is one agenda with its full log trail.
type HistoryEntry struct {
	Agenda domain.Agenda `json:"agenda"`
	Logs   []domain.Log  `json:"logs"`
}

// History returns ongoing and terminated agendas, newest first, each with
// its logs in create order. Stored agendas have not started yet and are
// excluded.
func (e Engine) History(ctx context.Context) ([]HistoryEntry, error) {
	all, err := e.Store.GetAgendasByStatus(ctx, nil)
	if err != nil {
		return nil, err
	}
	var agendas []domain.Agenda
	for _, a := range all {
		if a.Status == domain.StatusStored {
			continue
		}
		agendas = append(agendas, a)
	}
	sort.Slice(agendas, func(i, j int) bool {
		if agendas[i].InitiateAt != agendas[j].InitiateAt {
			return agendas[i].InitiateAt > agendas[j].InitiateAt
		}
		return agendas[i].ID > agendas[j].ID
	})
	entries := make([]HistoryEntry, 0, len(agendas))
	for _, a := range agendas {
		logs, err := e.Store.GetLogsByAgendaID(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, HistoryEntry{Agenda: a, Logs: logs})
	}
	return entries, nil
}
