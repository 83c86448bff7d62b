package repo

import (
	"context"

	"github.com/google/uuid"

	"finiate/internal/domain"
)

const logColumns = `id,agenda_id,content,log_type,create_at`

func (s *Store) queryLogs(ctx context.Context, op, query string, args ...any) ([]domain.Log, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()
	var res []domain.Log
	for rows.Next() {
		var l domain.Log
		var logType string
		if err := rows.Scan(&l.ID, &l.AgendaID, &l.Content, &logType, &l.CreateAt); err != nil {
			return nil, storeErr(op, err)
		}
		parsed, err := domain.ParseLogType(logType)
		if err != nil {
			return nil, err
		}
		l.Type = parsed
		res = append(res, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return res, nil
}

// CreateLog assigns a time-ordered id and create_at = now. A foreign key
// violation (agenda absent) surfaces as a store error, never silently.
func (s *Store) CreateLog(ctx context.Context, log domain.LogCreate) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", storeErr("create log", err)
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO log(id,agenda_id,content,log_type,create_at) VALUES (?,?,?,?,?)`,
		id.String(), log.AgendaID, log.Content, string(log.Type), s.nowMillis())
	if err != nil {
		return "", storeErr("create log", err)
	}
	return id.String(), nil
}

// DeleteLog is an administrative operation; deleting an absent id succeeds.
func (s *Store) DeleteLog(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM log WHERE id=?`, id)
	return storeErr("delete log", err)
}

func (s *Store) GetLogsByAgendaID(ctx context.Context, agendaID string) ([]domain.Log, error) {
	return s.queryLogs(ctx, "logs by agenda",
		`SELECT `+logColumns+` FROM log WHERE agenda_id=? ORDER BY create_at ASC, id ASC`, agendaID)
}

// GetLogsByTimeRange is inclusive on both bounds.
func (s *Store) GetLogsByTimeRange(ctx context.Context, start, end int64) ([]domain.Log, error) {
	return s.queryLogs(ctx, "logs by time range",
		`SELECT `+logColumns+` FROM log WHERE create_at >= ? AND create_at <= ? ORDER BY create_at ASC, id ASC`, start, end)
}
