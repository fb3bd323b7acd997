// Package contactsync mirrors people into the provider's contact list.
//
// The mirror is best effort. Enqueue never blocks and a failed call never
// rolls back the change that triggered it; failures are logged and
// published on Errors.
package contactsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rijksuitgaven/mailengine/internal/domain"
	"github.com/rijksuitgaven/mailengine/internal/metrics"
	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
	"github.com/rijksuitgaven/mailengine/internal/provider/resend"
)

// Sentinel errors for on-demand syncs.
var (
	ErrPersonNotFound = errors.New("person not found")
	ErrNoEmail        = errors.New("person has no email")
	ErrQueueFull      = errors.New("contact sync queue full")
)

// OpKind is the contact change to mirror.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpRemove OpKind = "remove"
)

// Op is one queued mirror change.
type Op struct {
	Kind   OpKind
	Person domain.Person
}

// Client is the provider contacts API.
type Client interface {
	CreateContact(ctx context.Context, c resend.Contact) (string, error)
	UpdateContact(ctx context.Context, id string, c resend.Contact) error
	DeleteContact(ctx context.Context, id string) error
}

// Store loads people and persists the provider contact id on them.
type Store interface {
	// GetPerson returns ErrPersonNotFound when no person has id.
	GetPerson(ctx context.Context, id string) (*domain.Person, error)
	SetContactID(ctx context.Context, personID, contactID string) error
	ClearContactID(ctx context.Context, personID string) error
}

// Config tunes the queue.
type Config struct {
	QueueSize   int
	CallTimeout time.Duration
}

// Syncer drains queued ops on a single goroutine.
type Syncer struct {
	client  Client
	store   Store
	metrics *metrics.Metrics
	timeout time.Duration

	queue chan Op
	errs  chan error

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// NewSyncer creates a syncer. Call Start before enqueueing.
func NewSyncer(client Client, store Store, m *metrics.Metrics, cfg Config) *Syncer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	return &Syncer{
		client:  client,
		store:   store,
		metrics: m,
		timeout: cfg.CallTimeout,
		queue:   make(chan Op, cfg.QueueSize),
		errs:    make(chan error, cfg.QueueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Errors publishes every failed mirror call. Errors are dropped when nobody
// reads and the buffer is full.
func (s *Syncer) Errors() <-chan error {
	return s.errs
}

// Enqueue queues op without blocking. It reports false when the op was
// dropped because the queue is full or the syncer is stopped.
func (s *Syncer) Enqueue(op Op) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	select {
	case s.queue <- op:
		return true
	default:
		logger.Warn("contactsync: queue full, dropping op", "op", string(op.Kind), "person_id", op.Person.ID)
		s.metrics.RecordContactSync("dropped", false)
		return false
	}
}

// Sync queues a create for people without a contact id and an update for
// the rest.
func (s *Syncer) Sync(p domain.Person) bool {
	if p.ResendContactID == "" {
		return s.Enqueue(Op{Kind: OpCreate, Person: p})
	}
	return s.Enqueue(Op{Kind: OpUpdate, Person: p})
}

// SyncPerson loads a person and queues the op that brings the mirror in
// line: removal for archived or bounced people, otherwise create or update.
func (s *Syncer) SyncPerson(ctx context.Context, personID string) (OpKind, error) {
	p, err := s.store.GetPerson(ctx, personID)
	if err != nil {
		return "", err
	}
	op := Op{Kind: OpUpdate, Person: *p}
	switch {
	case p.ArchivedAt != nil || p.BouncedAt != nil:
		if p.ResendContactID == "" {
			return "", nil
		}
		op.Kind = OpRemove
	case p.Email == "":
		return "", ErrNoEmail
	case p.ResendContactID == "":
		op.Kind = OpCreate
	}
	if !s.Enqueue(op) {
		return "", ErrQueueFull
	}
	return op.Kind, nil
}

// Remove queues deletion of the person's contact. It satisfies the
// suppression service's mirror interface.
func (s *Syncer) Remove(p domain.Person) {
	if p.ResendContactID == "" {
		return
	}
	s.Enqueue(Op{Kind: OpRemove, Person: p})
}

// Start launches the drain goroutine.
func (s *Syncer) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	go s.run(ctx)
	logger.Info("contactsync: started", "queue_size", cap(s.queue))
}

// Stop stops accepting ops, drains what is queued and waits for the
// goroutine to exit.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	close(s.stop)
	s.mu.Unlock()

	if started {
		<-s.done
	}
	logger.Info("contactsync: stopped")
}

func (s *Syncer) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case op := <-s.queue:
			s.process(ctx, op)
		case <-s.stop:
			for {
				select {
				case op := <-s.queue:
					s.process(ctx, op)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Syncer) process(parent context.Context, op Op) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.timeout)
	defer cancel()

	err := s.apply(ctx, op)
	s.metrics.RecordContactSync(string(op.Kind), err == nil)
	if err == nil {
		return
	}

	err = fmt.Errorf("contactsync %s %s: %w", op.Kind, op.Person.ID, err)
	logger.Error("contactsync: mirror call failed", "op", string(op.Kind), "person_id", op.Person.ID, "error", err)
	select {
	case s.errs <- err:
	default:
	}
}

func (s *Syncer) apply(ctx context.Context, op Op) error {
	p := op.Person
	switch op.Kind {
	case OpCreate:
		if p.Email == "" {
			return ErrNoEmail
		}
		id, err := s.client.CreateContact(ctx, resend.Contact{
			Email:     p.Email,
			FirstName: p.FirstName,
			LastName:  p.LastName,
		})
		if err != nil {
			return err
		}
		if id == "" {
			return nil
		}
		return s.store.SetContactID(ctx, p.ID, id)

	case OpUpdate:
		if p.ResendContactID == "" {
			return nil
		}
		return s.client.UpdateContact(ctx, p.ResendContactID, resend.Contact{
			FirstName:    p.FirstName,
			LastName:     p.LastName,
			Unsubscribed: p.UnsubscribedAt != nil,
		})

	case OpRemove:
		if p.ResendContactID == "" {
			return nil
		}
		if err := s.client.DeleteContact(ctx, p.ResendContactID); err != nil {
			return err
		}
		return s.store.ClearContactID(ctx, p.ID)
	}
	return fmt.Errorf("unknown op %q", op.Kind)
}
