package server

import (
	"finiate/internal/domain"
	"finiate/internal/engine"
)

// Request payloads

type AppendNoteRequest struct {
	Content string `json:"content"`
}

// Response payloads

type AgendaResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Status      string `json:"status" enum:"stored,ongoing,terminated"`
	InitiateAt  int64  `json:"initiate_at"`
	TerminateAt int64  `json:"terminate_at,omitempty"`
}

type LogResponse struct {
	ID       string `json:"id"`
	AgendaID string `json:"agenda_id"`
	Content  string `json:"content"`
	Type     string `json:"type" enum:"activate,put_off,terminate,common_log"`
	CreateAt int64  `json:"create_at"`
}

type StatusEntryResponse struct {
	Slot     int            `json:"slot"`
	Agenda   AgendaResponse `json:"agenda"`
	LogCount int            `json:"log_count"`
	LastLog  *LogResponse   `json:"last_log,omitempty"`
}

func agendaResponse(a domain.Agenda) AgendaResponse {
	return AgendaResponse{
		ID:          a.ID,
		Title:       a.Title,
		Status:      string(a.Status),
		InitiateAt:  a.InitiateAt,
		TerminateAt: a.TerminateAt,
	}
}

func mapAgendas(items []domain.Agenda) []AgendaResponse {
	out := make([]AgendaResponse, 0, len(items))
	for _, a := range items {
		out = append(out, agendaResponse(a))
	}
	return out
}

func logResponse(l domain.Log) LogResponse {
	return LogResponse{
		ID:       l.ID,
		AgendaID: l.AgendaID,
		Content:  l.Content,
		Type:     string(l.Type),
		CreateAt: l.CreateAt,
	}
}

func mapLogs(items []domain.Log) []LogResponse {
	out := make([]LogResponse, 0, len(items))
	for _, l := range items {
		out = append(out, logResponse(l))
	}
	return out
}

func statusEntryResponse(e engine.StatusEntry) StatusEntryResponse {
	entry := StatusEntryResponse{
		Slot:     e.Slot,
		Agenda:   agendaResponse(e.Agenda),
		LogCount: e.LogCount,
	}
	if e.LastLog != nil {
		lr := logResponse(*e.LastLog)
		entry.LastLog = &lr
	}
	return entry
}

func mapStatusEntries(items []engine.StatusEntry) []StatusEntryResponse {
	out := make([]StatusEntryResponse, 0, len(items))
	for _, e := range items {
		out = append(out, statusEntryResponse(e))
	}
	return out
}
