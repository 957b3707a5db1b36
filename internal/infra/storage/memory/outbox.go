package memory

import (
	"context"
	"time"

	appoutbox "peerrent/internal/app/outbox"
	infraoutbox "peerrent/internal/infra/outbox"
)

type outboxEntry struct {
	doc infraoutbox.EventDocument
}

func newOutboxEntry(rec appoutbox.EventRecord) *outboxEntry {
	return &outboxEntry{doc: infraoutbox.EventDocument{
		ID:          rec.ID,
		Name:        rec.Name,
		Payload:     rec.Payload,
		OccurredAt:  rec.OccurredAt,
		Aggregate:   rec.Aggregate,
		Headers:     rec.Headers,
		State:       infraoutbox.StateNew,
		NextAttempt: time.Now().UTC(),
	}}
}

// Add stages the record in the unit carried by ctx; it becomes visible on commit. Without a unit
// the record is committed immediately.
func (s *Store) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if u, ok := unitFrom(ctx); ok {
		if err := u.writable(); err != nil {
			return err
		}
		u.records = append(u.records, record)
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, newOutboxEntry(record))
	return nil
}

func (s *Store) Flush(context.Context) error {
	return nil
}

// Records lists committed outbox records in insertion order.
func (s *Store) Records() []appoutbox.EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]appoutbox.EventRecord, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, appoutbox.EventRecord{
			ID:         e.doc.ID,
			Name:       e.doc.Name,
			Payload:    e.doc.Payload,
			OccurredAt: e.doc.OccurredAt,
			Aggregate:  e.doc.Aggregate,
			Headers:    e.doc.Headers,
		})
	}
	return out
}

func (s *Store) Claim(ctx context.Context, workerID string) (*infraoutbox.EventDocument, error) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.outbox {
		due := e.doc.State == infraoutbox.StateNew || e.doc.State == infraoutbox.StateFailed
		if !due || e.doc.NextAttempt.After(now) {
			continue
		}
		e.doc.State = infraoutbox.StateClaimed
		e.doc.ClaimedBy = workerID
		e.doc.ClaimedAt = now
		doc := e.doc
		return &doc, nil
	}
	return nil, nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	return s.settle(id, func(doc *infraoutbox.EventDocument) {
		doc.State = infraoutbox.StateSent
		doc.SentAt = time.Now().UTC()
	})
}

func (s *Store) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return s.settle(id, func(doc *infraoutbox.EventDocument) {
		doc.State = infraoutbox.StateFailed
		doc.NextAttempt = next
		doc.LastError = errMsg
		doc.Attempts++
	})
}

func (s *Store) settle(id string, apply func(doc *infraoutbox.EventDocument)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.outbox {
		if e.doc.ID == id {
			apply(&e.doc)
			return nil
		}
	}
	return nil
}

var _ infraoutbox.Relay = (*Store)(nil)
