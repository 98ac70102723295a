package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/alumni-portal/internal/domain"
)

// Source is the server side a Syncer polls.
type Source interface {
	Inbox(ctx context.Context) ([]domain.Message, error)
	Sent(ctx context.Context) ([]domain.Message, error)
	MarkRead(ctx context.Context, id string) error
	Send(ctx context.Context, receiverID, subject, content string) (*domain.Message, error)
	Delete(ctx context.Context, id string) error
}

// Syncer keeps a Book in step with a Source: it polls inbox and sent
// concurrently at a fixed interval and persists local reads in the
// background. Reads that fail to persist stay pending and are retried on the
// next refresh; re-marking a read message is a no-op server-side.
type Syncer struct {
	Book     *Book
	Source   Source
	Interval time.Duration
	Log      zerolog.Logger

	// OnChange, when set, receives a fresh snapshot after every refresh.
	OnChange func([]Conversation)

	wg sync.WaitGroup
}

// Run refreshes immediately and then every Interval until ctx ends.
// Refresh errors are logged and do not stop the loop.
func (s *Syncer) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
		s.Log.Warn().Err(err).Msg("conversation: refresh failed")
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Wait()
			return nil
		case <-t.C:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.Log.Warn().Err(err).Msg("conversation: refresh failed")
			}
		}
	}
}

// Refresh fetches inbox and sent in parallel and merges them into the book.
// Unconfirmed local reads are re-sent afterwards.
func (s *Syncer) Refresh(ctx context.Context) error {
	started := time.Now().UTC()

	var received, sent []domain.Message
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		received, err = s.Source.Inbox(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sent, err = s.Source.Sent(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.Book.Merge(received, sent, started)
	s.changed()

	if pending := s.Book.PendingReads(); len(pending) > 0 {
		s.persist(ctx, pending)
	}
	return nil
}

// Open marks the conversation with counterparty read locally and persists
// the transitions asynchronously. It returns the ids that were marked.
func (s *Syncer) Open(ctx context.Context, counterparty string) []string {
	ids := s.Book.Open(counterparty)
	if len(ids) == 0 {
		return ids
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.persist(context.WithoutCancel(ctx), ids)
	}()
	return ids
}

// Send posts a message and applies it to the book, which moves its
// conversation to the front without waiting for the next poll.
func (s *Syncer) Send(ctx context.Context, receiverID, subject, content string) (*domain.Message, error) {
	m, err := s.Source.Send(ctx, receiverID, subject, content)
	if err != nil {
		return nil, err
	}
	s.Book.ApplySend(*m)
	s.changed()
	return m, nil
}

// Delete removes a sent message on the server and then from the book.
func (s *Syncer) Delete(ctx context.Context, id string) error {
	if err := s.Source.Delete(ctx, id); err != nil {
		return err
	}
	s.Book.Remove(id)
	s.changed()
	return nil
}

func (s *Syncer) changed() {
	if s.OnChange != nil {
		s.OnChange(s.Book.Snapshot())
	}
}

// Wait blocks until background persistence started by Open has finished.
func (s *Syncer) Wait() { s.wg.Wait() }

func (s *Syncer) persist(ctx context.Context, ids []string) {
	for _, id := range ids {
		if err := s.Source.MarkRead(ctx, id); err != nil {
			s.Log.Warn().Err(err).Str("message_id", id).Msg("conversation: mark read failed, will retry")
			continue
		}
		s.Book.ConfirmRead(id)
	}
}
