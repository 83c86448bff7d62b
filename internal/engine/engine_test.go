package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"finiate/internal/config"
	"finiate/internal/db"
	"finiate/internal/domain"
	"finiate/internal/engine"
	"finiate/internal/migrate"
	"finiate/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Store  *repo.Store
	Ctx    context.Context
}

// newTestEnv wires an engine against a fresh workspace with a clock that
// advances one second per call, so write timestamps are strictly ordered.
func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	st := repo.New(conn)
	st.Now = clock
	eng := engine.New(st, config.Default())
	eng.Now = clock
	return testEnv{Engine: eng, Store: st, Ctx: context.Background()}
}

func mustAdd(t *testing.T, env testEnv, title, deadline string) domain.Agenda {
	t.Helper()
	a, err := env.Engine.Add(env.Ctx, title, deadline)
	if err != nil {
		t.Fatalf("add %s: %v", title, err)
	}
	return a
}

func agendaLogs(t *testing.T, env testEnv, id string) []domain.Log {
	t.Helper()
	logs, err := env.Store.GetLogsByAgendaID(env.Ctx, id)
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	return logs
}

func TestAddWritesActivateLog(t *testing.T) {
	env := newTestEnv(t)
	a := mustAdd(t, env, "Write report", "48h")
	if a.Status != domain.StatusOngoing {
		t.Fatalf("expected ongoing, got %s", a.Status)
	}
	if !a.HasDeadline() {
		t.Fatal("expected a deadline")
	}
	logs := agendaLogs(t, env, a.ID)
	if len(logs) != 1 || logs[0].Type != domain.LogActivate {
		t.Fatalf("expected one activate log, got %+v", logs)
	}
}

func TestAddRejectsEmptyTitleAndBadDeadline(t *testing.T) {
	env := newTestEnv(t)
	var ve *engine.ValidationError
	if _, err := env.Engine.Add(env.Ctx, "  ", "24h"); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for empty title, got %v", err)
	}
	if _, err := env.Engine.Add(env.Ctx, "ok", "not-a-time"); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for bad deadline, got %v", err)
	}
}

func TestShelveRejectsDuplicateStoredTitle(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.Engine.Shelve(env.Ctx, "Learn sailing")
	if err != nil {
		t.Fatalf("shelve: %v", err)
	}
	if a.Status != domain.StatusStored || a.HasDeadline() {
		t.Fatalf("unexpected shelved agenda %+v", a)
	}
	var ve *engine.ValidationError
	if _, err := env.Engine.Shelve(env.Ctx, "Learn sailing"); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for duplicate shelf, got %v", err)
	}
	// A terminated agenda with the same title does not block shelving.
	b := mustAdd(t, env, "Old habit", "1h")
	if _, err := env.Engine.TerminateByID(env.Ctx, b.ID, "done"); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if _, err := env.Engine.Shelve(env.Ctx, "Old habit"); err != nil {
		t.Fatalf("shelve after terminate: %v", err)
	}
}

func TestSlotOrdering(t *testing.T) {
	env := newTestEnv(t)
	late := mustAdd(t, env, "late", "72h")
	early := mustAdd(t, env, "early", "24h")
	mid := mustAdd(t, env, "mid", "48h")

	slots, err := env.Engine.Slots(env.Ctx)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	want := []string{early.ID, mid.ID, late.ID}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	for i, id := range want {
		if slots[i].ID != id {
			t.Fatalf("slot %d: expected %s, got %s", i+1, id, slots[i].ID)
		}
	}

	// Putting off slot 1 past everything reorders the list.
	if _, err := env.Engine.PutOff(env.Ctx, engine.PutOffOptions{Slot: 1, TerminateAt: "96h"}); err != nil {
		t.Fatalf("put off: %v", err)
	}
	slots, err = env.Engine.Slots(env.Ctx)
	if err != nil {
		t.Fatalf("slots after put off: %v", err)
	}
	want = []string{mid.ID, late.ID, early.ID}
	for i, id := range want {
		if slots[i].ID != id {
			t.Fatalf("slot %d after put off: expected %s, got %s", i+1, id, slots[i].ID)
		}
	}
}

func TestResolveSlotErrors(t *testing.T) {
	env := newTestEnv(t)
	mustAdd(t, env, "only one", "24h")

	var ve *engine.ValidationError
	if _, err := env.Engine.Terminate(env.Ctx, 0, ""); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for slot 0, got %v", err)
	}
	var nfe *engine.NotFoundError
	if _, err := env.Engine.Terminate(env.Ctx, 2, ""); !errors.As(err, &nfe) {
		t.Fatalf("expected NotFoundError for slot 2, got %v", err)
	}
	if nfe.Slot != 2 {
		t.Fatalf("expected slot 2 in error, got %d", nfe.Slot)
	}
}

func TestPutOffDefaultExtension(t *testing.T) {
	env := newTestEnv(t)
	a := mustAdd(t, env, "stretch", "24h")

	updated, err := env.Engine.PutOff(env.Ctx, engine.PutOffOptions{Slot: 1, Content: "need more time"})
	if err != nil {
		t.Fatalf("put off: %v", err)
	}
	wantDelta := env.Engine.Config.PutOffExtension().Milliseconds()
	if got := updated.TerminateAt - a.TerminateAt; got != wantDelta {
		t.Fatalf("expected deadline pushed by %dms, got %dms", wantDelta, got)
	}
	logs := agendaLogs(t, env, a.ID)
	if len(logs) != 2 || logs[1].Type != domain.LogPutOff || logs[1].Content != "need more time" {
		t.Fatalf("expected put_off log with content, got %+v", logs)
	}
}

func TestShipReleaseLifecycle(t *testing.T) {
	env := newTestEnv(t)
	a := mustAdd(t, env, "Ship release", "48h")

	if _, err := env.Engine.PutOff(env.Ctx, engine.PutOffOptions{Slot: 1, TerminateAt: "72h", Content: "slipped a day"}); err != nil {
		t.Fatalf("put off: %v", err)
	}
	if logs := agendaLogs(t, env, a.ID); len(logs) != 2 {
		t.Fatalf("expected 2 logs after put off, got %d", len(logs))
	}

	done, err := env.Engine.Terminate(env.Ctx, 1, "shipped")
	if err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if done.Status != domain.StatusTerminated {
		t.Fatalf("expected terminated, got %s", done.Status)
	}
	logs := agendaLogs(t, env, a.ID)
	if len(logs) != 3 {
		t.Fatalf("expected 3 logs after terminate, got %d", len(logs))
	}
	types := []domain.LogType{domain.LogActivate, domain.LogPutOff, domain.LogTerminate}
	for i, want := range types {
		if logs[i].Type != want {
			t.Fatalf("log %d: expected %s, got %s", i, want, logs[i].Type)
		}
	}

	// Terminating again is rejected and leaves the log trail untouched.
	var ite *engine.InvalidTransitionError
	if _, err := env.Engine.TerminateByID(env.Ctx, a.ID, "again"); !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if ite.From != domain.StatusTerminated || ite.To != domain.StatusTerminated {
		t.Fatalf("unexpected transition error %+v", ite)
	}
	if logs := agendaLogs(t, env, a.ID); len(logs) != 3 {
		t.Fatalf("expected still 3 logs, got %d", len(logs))
	}
}

func TestAppendNoteBySlot(t *testing.T) {
	env := newTestEnv(t)
	a := mustAdd(t, env, "journal", "24h")

	l, err := env.Engine.AppendNote(env.Ctx, 1, "first entry")
	if err != nil {
		t.Fatalf("append note: %v", err)
	}
	if l.Type != domain.LogCommon || l.AgendaID != a.ID || l.CreateAt == 0 {
		t.Fatalf("unexpected note %+v", l)
	}

	var ve *engine.ValidationError
	if _, err := env.Engine.AppendNote(env.Ctx, 1, "   "); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for empty note, got %v", err)
	}
}

func TestStatusEntries(t *testing.T) {
	env := newTestEnv(t)
	first := mustAdd(t, env, "first", "24h")
	mustAdd(t, env, "second", "48h")
	if _, err := env.Engine.AppendNote(env.Ctx, 1, "progress"); err != nil {
		t.Fatalf("append note: %v", err)
	}

	entries, err := env.Engine.Status(env.Ctx, 99)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	// Amount clamps to 5 and then to the list length.
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Slot != 1 || entries[0].Agenda.ID != first.ID {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[0].LogCount != 2 {
		t.Fatalf("expected 2 logs counted, got %d", entries[0].LogCount)
	}
	if entries[0].LastLog == nil || entries[0].LastLog.Content != "progress" {
		t.Fatalf("expected note as last log, got %+v", entries[0].LastLog)
	}
}

func TestHistoryExcludesStored(t *testing.T) {
	env := newTestEnv(t)
	older := mustAdd(t, env, "older", "24h")
	newer := mustAdd(t, env, "newer", "48h")
	if _, err := env.Engine.Shelve(env.Ctx, "parked"); err != nil {
		t.Fatalf("shelve: %v", err)
	}
	if _, err := env.Engine.TerminateByID(env.Ctx, older.ID, "done"); err != nil {
		t.Fatalf("terminate: %v", err)
	}

	entries, err := env.Engine.History(env.Ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Agenda.ID != newer.ID || entries[1].Agenda.ID != older.ID {
		t.Fatalf("expected newest first, got %+v", entries)
	}
	if len(entries[1].Logs) != 2 {
		t.Fatalf("expected activate+terminate logs, got %+v", entries[1].Logs)
	}
}

func TestParseDeadlineForms(t *testing.T) {
	env := newTestEnv(t)
	cases := []string{"24h", "+30m", "2026-03-05", "2026-03-05 09:30", "2026-03-05T09:30:00Z"}
	for _, in := range cases {
		if _, err := env.Engine.ParseDeadline(in); err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
	}
	// Past times are accepted: overdue is a valid state.
	if _, err := env.Engine.ParseDeadline("2001-01-01"); err != nil {
		t.Fatalf("parse past time: %v", err)
	}
	var ve *engine.ValidationError
	if _, err := env.Engine.ParseDeadline(""); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for empty, got %v", err)
	}
}
