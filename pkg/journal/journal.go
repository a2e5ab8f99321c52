// Package journal records one entry per executed interaction.
//
// Entries carry interaction metadata only (use case, initiating method,
// participant identities, outcome). Data object state is never stored.
package journal

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Status values of an entry.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry describes one finished interaction.
type Entry struct {
	ID             string    `json:"id" yaml:"id"`
	InteractionID  string    `json:"interaction_id" yaml:"interaction_id"`
	UseCase        string    `json:"usecase" yaml:"usecase"`
	Method         string    `json:"method" yaml:"method"`
	Initiator      string    `json:"initiator,omitempty" yaml:"initiator,omitempty"`
	ParticipantIDs []string  `json:"participant_ids,omitempty" yaml:"participant_ids,omitempty"`
	Status         string    `json:"status" yaml:"status"`
	ErrorCode      string    `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	ErrorCategory  string    `json:"error_category,omitempty" yaml:"error_category,omitempty"`
	Error          string    `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt      time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time `json:"finished_at" yaml:"finished_at"`
}

// Recorder accepts finished interaction entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Store persists entries and lists them back.
type Store interface {
	Recorder
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// Filter limits entry queries.
type Filter struct {
	UseCase       string
	InteractionID string
	Status        string
	Limit         int
}

func (f Filter) match(e Entry) bool {
	if f.UseCase != "" && e.UseCase != f.UseCase {
		return false
	}
	if f.InteractionID != "" && e.InteractionID != f.InteractionID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return true
}

// MemoryStore keeps entries in memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryStore returns an in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends an entry.
func (s *MemoryStore) Record(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ParticipantIDs = append([]string(nil), entry.ParticipantIDs...)
	s.entries = append(s.entries, entry)
	return nil
}

// List returns filtered entries in recording order.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !filter.match(e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// encodeParticipants marshals participant ids into JSON.
func encodeParticipants(ids []string) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// decodeParticipants parses a JSON id list.
func decodeParticipants(raw string) ([]string, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

// normalizeTime ensures timestamps are in UTC.
func normalizeTime(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return value.UTC()
}
