package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"finiate/internal/domain"
)

const agendaColumns = `id,title,agenda_status,initiate_at,terminate_at`

func scanAgenda(scan func(dest ...any) error) (domain.Agenda, error) {
	var a domain.Agenda
	var status string
	var terminateAt sql.NullInt64
	if err := scan(&a.ID, &a.Title, &status, &a.InitiateAt, &terminateAt); err != nil {
		return a, err
	}
	parsed, err := domain.ParseStatus(status)
	if err != nil {
		return a, err
	}
	a.Status = parsed
	if terminateAt.Valid {
		a.TerminateAt = terminateAt.Int64
	}
	return a, nil
}

func (s *Store) queryAgendas(ctx context.Context, op, query string, args ...any) ([]domain.Agenda, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()
	var res []domain.Agenda
	for rows.Next() {
		a, err := scanAgenda(rows.Scan)
		if err != nil {
			if _, corrupt := err.(*domain.DataCorruptionError); corrupt {
				return nil, err
			}
			return nil, storeErr(op, err)
		}
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return res, nil
}

// CreateAgenda assigns a time-ordered id and initiate_at = now. Duplicate
// titles are allowed; title uniqueness is not a storage invariant.
func (s *Store) CreateAgenda(ctx context.Context, agenda domain.AgendaCreate) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", storeErr("create agenda", err)
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO agenda(id,title,agenda_status,initiate_at,terminate_at) VALUES (?,?,?,?,?)`,
		id.String(), agenda.Title, string(agenda.Status), s.nowMillis(), nullableMillis(agenda.TerminateAt))
	if err != nil {
		return "", storeErr("create agenda", err)
	}
	return id.String(), nil
}

// DeleteAgendaByID is idempotent: deleting an absent id succeeds silently.
func (s *Store) DeleteAgendaByID(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM agenda WHERE id=?`, id)
	return storeErr("delete agenda", err)
}

// UpdateAgenda applies only the set fields. No fields, or an absent id, is
// a successful no-op.
func (s *Store) UpdateAgenda(ctx context.Context, id string, update domain.AgendaUpdate) error {
	var (
		fields []string
		args   []any
	)
	if update.Title != nil {
		fields = append(fields, "title=?")
		args = append(args, *update.Title)
	}
	if update.Status != nil {
		fields = append(fields, "agenda_status=?")
		args = append(args, string(*update.Status))
	}
	if update.TerminateAt != nil {
		fields = append(fields, "terminate_at=?")
		args = append(args, nullableMillis(*update.TerminateAt))
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := s.q.ExecContext(ctx, fmt.Sprintf(`UPDATE agenda SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	return storeErr("update agenda", err)
}

// GetAgendaByID returns nil when the agenda does not exist.
func (s *Store) GetAgendaByID(ctx context.Context, id string) (*domain.Agenda, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+agendaColumns+` FROM agenda WHERE id=?`, id)
	a, err := scanAgenda(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		if _, corrupt := err.(*domain.DataCorruptionError); corrupt {
			return nil, err
		}
		return nil, storeErr("get agenda", err)
	}
	return &a, nil
}

func (s *Store) GetAgendasByTitle(ctx context.Context, title string) ([]domain.Agenda, error) {
	return s.queryAgendas(ctx, "agendas by title",
		`SELECT `+agendaColumns+` FROM agenda WHERE title=?`, title)
}

func (s *Store) GetAgendasByStatus(ctx context.Context, status *domain.Status) ([]domain.Agenda, error) {
	if status == nil {
		return s.queryAgendas(ctx, "agendas by status",
			`SELECT `+agendaColumns+` FROM agenda`)
	}
	return s.queryAgendas(ctx, "agendas by status",
		`SELECT `+agendaColumns+` FROM agenda WHERE agenda_status=?`, string(*status))
}

func (s *Store) CountAgendasByStatus(ctx context.Context, status *domain.Status) (int64, error) {
	var (
		row *sql.Row
	)
	if status == nil {
		row = s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM agenda`)
	} else {
		row = s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM agenda WHERE agenda_status=?`, string(*status))
	}
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, storeErr("count agendas", err)
	}
	return count, nil
}

// GetAgendasByTerminateTimeRange is inclusive on both bounds.
func (s *Store) GetAgendasByTerminateTimeRange(ctx context.Context, start, end int64) ([]domain.Agenda, error) {
	return s.queryAgendas(ctx, "agendas by terminate range",
		`SELECT `+agendaColumns+` FROM agenda WHERE terminate_at >= ? AND terminate_at <= ?`, start, end)
}
