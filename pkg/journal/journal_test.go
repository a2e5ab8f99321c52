package journal

import (
	"context"
	"database/sql"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jllopis/dci/pkg/errors"
	"github.com/jllopis/dci/pkg/resilience"
)

func sampleEntries() []Entry {
	now := time.Now().UTC().Truncate(time.Second)
	return []Entry{
		{
			ID:             "e-1",
			InteractionID:  "ix-1",
			UseCase:        "transfer",
			Method:         "TransferFunds",
			Initiator:      "*bank.Account",
			ParticipantIDs: []string{"a", "b"},
			Status:         StatusOK,
			StartedAt:      now,
			FinishedAt:     now.Add(time.Millisecond),
		},
		{
			ID:             "e-2",
			InteractionID:  "ix-2",
			UseCase:        "transfer",
			Method:         "TransferFunds",
			Initiator:      "*bank.Account",
			ParticipantIDs: []string{"a", "b"},
			Status:         StatusFailed,
			ErrorCode:      "DOMAIN:Insufficient Funds",
			ErrorCategory:  "domain",
			Error:          "Insufficient Funds: Tried to withdraw 1000, 500 available.",
			StartedAt:      now.Add(time.Second),
			FinishedAt:     now.Add(time.Second),
		},
		{
			ID:            "e-3",
			InteractionID: "ix-3",
			UseCase:       "audit",
			Method:        "Audit",
			Status:        StatusFailed,
			ErrorCode:     "INVALID_INPUT",
			ErrorCategory: "usage",
			StartedAt:     now.Add(2 * time.Second),
		},
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	for _, e := range sampleEntries() {
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("record %s: %v", e.ID, err)
		}
	}

	all, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].ID != "e-1" || all[2].ID != "e-3" {
		t.Fatalf("entries must keep recording order: %s %s", all[0].ID, all[2].ID)
	}
	if len(all[0].ParticipantIDs) != 2 || all[0].ParticipantIDs[1] != "b" {
		t.Fatalf("unexpected participants: %v", all[0].ParticipantIDs)
	}
	if all[2].ParticipantIDs != nil {
		t.Fatalf("expected no participants, got %v", all[2].ParticipantIDs)
	}

	failed, err := store.List(ctx, Filter{UseCase: "transfer", Status: StatusFailed})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ErrorCategory != "domain" {
		t.Fatalf("unexpected failed entries: %+v", failed)
	}

	limited, err := store.List(ctx, Filter{Limit: 2})
	if err != nil {
		t.Fatalf("list limit: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(limited))
	}

	byID, err := store.List(ctx, Filter{InteractionID: "ix-3"})
	if err != nil {
		t.Fatalf("list by interaction: %v", err)
	}
	if len(byID) != 1 || byID[0].Method != "Audit" {
		t.Fatalf("unexpected entries: %+v", byID)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	db, err := sql.Open("sqlite", "file:interaction_journal_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	exerciseStore(t, store)

	entries, err := store.List(context.Background(), Filter{InteractionID: "ix-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if entries[0].StartedAt.IsZero() || entries[0].FinishedAt.Before(entries[0].StartedAt) {
		t.Fatalf("unexpected timestamps: %v %v", entries[0].StartedAt, entries[0].FinishedAt)
	}
}

func TestOpenSQLiteMemory(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if err := store.Record(context.Background(), Entry{ID: "x", InteractionID: "ix", UseCase: "u", Method: "M", Status: StatusOK}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Record(context.Background(), Entry{ID: "x", InteractionID: "ix", UseCase: "u", Method: "M", Status: StatusOK}); err == nil {
		t.Fatalf("expected duplicate id to be rejected")
	}
}

func TestNewSQLiteStoreNilDB(t *testing.T) {
	if _, err := NewSQLiteStore(nil); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

type flakyRecorder struct {
	failures int
	calls    int
	entries  []Entry
}

func (f *flakyRecorder) Record(_ context.Context, entry Entry) error {
	f.calls++
	if f.calls <= f.failures {
		return stderrors.New("database is locked")
	}
	f.entries = append(f.entries, entry)
	return nil
}

func TestResilientRecorderRetries(t *testing.T) {
	next := &flakyRecorder{failures: 2}
	rec := NewResilientRecorder(next, 3, 5)

	if err := rec.Record(context.Background(), Entry{ID: "e"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if next.calls != 3 || len(next.entries) != 1 {
		t.Fatalf("expected 3 writes and 1 entry, got %d/%d", next.calls, len(next.entries))
	}
}

func TestResilientRecorderOpensCircuit(t *testing.T) {
	next := &flakyRecorder{failures: 1000}
	rec := NewResilientRecorder(next, 1, 2)

	for i := 0; i < 2; i++ {
		if err := rec.Record(context.Background(), Entry{ID: "e"}); err == nil {
			t.Fatalf("write %d should fail", i)
		}
	}
	if rec.State() != resilience.StateOpen {
		t.Fatalf("expected open circuit, got %s", rec.State())
	}

	err := rec.Record(context.Background(), Entry{ID: "e"})
	if !errors.Is(err, errors.CodeInternal) || next.calls != 2 {
		t.Fatalf("open circuit must skip the write, got %v after %d calls", err, next.calls)
	}
}
