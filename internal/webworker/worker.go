// Package webworker runs isolated workers that talk to their owner only
// through serialized messages.
package webworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fruitsalade/webclient/internal/logging"
	"github.com/fruitsalade/webclient/internal/metrics"
)

// TopicTokenUpdate carries a new access token to a running worker.
const TopicTokenUpdate = "tokenUpdate"

const queueSize = 16

// ErrTerminated is returned when posting to a terminated worker.
var ErrTerminated = errors.New("webworker: worker terminated")

// Message is the envelope of every message crossing the worker boundary.
type Message struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TokenUpdate is the data of a TopicTokenUpdate message.
type TokenUpdate struct {
	AccessToken string `json:"accessToken"`
}

// Encode serializes a message with topic and data.
func Encode(topic string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", topic, err)
	}
	return json.Marshal(Message{Topic: topic, Data: raw})
}

// Decode parses a message envelope.
func Decode(b []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(b, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

// Port is the worker side of the message channels.
type Port struct {
	ctx    context.Context
	inbox  <-chan []byte
	outbox chan<- []byte
}

// Messages returns the messages posted to the worker.
func (p *Port) Messages() <-chan []byte {
	return p.inbox
}

// Post sends msg to the owner. It gives up once the worker is terminated.
func (p *Port) Post(msg []byte) error {
	select {
	case p.outbox <- msg:
		return nil
	case <-p.ctx.Done():
		return ErrTerminated
	}
}

// Handler is the body of a worker. It returns when its work is done or ctx
// is cancelled.
type Handler func(ctx context.Context, port *Port)

// Worker is the owner side of a running handler.
type Worker struct {
	ID                string
	NeedsTokenRenewal bool

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan []byte
	outbox chan []byte
	done   chan struct{}

	mu        sync.Mutex
	onMessage func([]byte)
	ready     chan struct{}
	readyOnce sync.Once
}

func startWorker(parent context.Context, h Handler, opts Options) *Worker {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	w := &Worker{
		ID:                uuid.NewString(),
		NeedsTokenRenewal: opts.NeedsTokenRenewal,
		cancel:            cancel,
		inbox:             make(chan []byte, queueSize),
		outbox:            make(chan []byte, queueSize),
		done:              make(chan struct{}),
		ready:             make(chan struct{}),
	}
	w.ctx = logging.WithWorker(ctx, w.ID)

	port := &Port{ctx: w.ctx, inbox: w.inbox, outbox: w.outbox}
	metrics.WorkerStarted()
	go func() {
		defer close(w.done)
		defer metrics.WorkerStopped()
		h(w.ctx, port)
	}()
	go w.dispatch()

	logging.WithContext(w.ctx).Debug("worker started")
	return w
}

// dispatch delivers outgoing messages once a listener is set. Messages
// still queued at termination are dropped.
func (w *Worker) dispatch() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case msg := <-w.outbox:
			select {
			case <-w.ready:
			case <-w.ctx.Done():
				return
			}
			w.mu.Lock()
			fn := w.onMessage
			w.mu.Unlock()
			fn(msg)
		}
	}
}

// OnMessage sets the listener for messages posted by the handler. Messages
// posted before a listener is set are buffered.
func (w *Worker) OnMessage(fn func(msg []byte)) {
	w.mu.Lock()
	w.onMessage = fn
	w.mu.Unlock()
	w.readyOnce.Do(func() { close(w.ready) })
}

// Post sends msg to the handler.
func (w *Worker) Post(msg []byte) error {
	select {
	case <-w.ctx.Done():
		return ErrTerminated
	default:
	}
	select {
	case w.inbox <- msg:
		return nil
	case <-w.ctx.Done():
		return ErrTerminated
	case <-w.done:
		return ErrTerminated
	}
}

// Terminate cancels the handler. It does not wait for it to return.
func (w *Worker) Terminate() {
	w.cancel()
}

// Done is closed when the handler has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Options configures a new worker.
type Options struct {
	// NeedsTokenRenewal subscribes the worker to access token updates.
	NeedsTokenRenewal bool
}

// Store keeps track of the live workers.
type Store struct {
	mu      sync.RWMutex
	workers map[string]*Worker
}

// NewStore creates an empty worker store.
func NewStore() *Store {
	return &Store{workers: make(map[string]*Worker)}
}

// CreateWorker starts h in a new worker. ctx only supplies values such as
// the logger; the worker runs until it is terminated through the store.
func (s *Store) CreateWorker(ctx context.Context, h Handler, opts Options) *Worker {
	w := startWorker(ctx, h, opts)
	s.mu.Lock()
	s.workers[w.ID] = w
	s.mu.Unlock()
	return w
}

// Get returns the live worker with id.
func (s *Store) Get(id string) (*Worker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workers[id]
	return w, ok
}

// Len returns the number of live workers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workers)
}

// TerminateWorker terminates the worker with id and forgets it. Unknown ids
// are ignored.
func (s *Store) TerminateWorker(id string) {
	s.mu.Lock()
	w, ok := s.workers[id]
	delete(s.workers, id)
	s.mu.Unlock()
	if ok {
		w.Terminate()
		logging.Debug("worker terminated", zap.String("worker_id", id))
	}
}

// TerminateAll terminates every live worker.
func (s *Store) TerminateAll() {
	s.mu.Lock()
	workers := s.workers
	s.workers = make(map[string]*Worker)
	s.mu.Unlock()
	for _, w := range workers {
		w.Terminate()
	}
}

// UpdateAccessToken posts token to every live worker that needs token
// renewal.
func (s *Store) UpdateAccessToken(token string) {
	msg, err := Encode(TopicTokenUpdate, TokenUpdate{AccessToken: token})
	if err != nil {
		logging.Error("encode token update", zap.Error(err))
		return
	}

	s.mu.RLock()
	var targets []*Worker
	for _, w := range s.workers {
		if w.NeedsTokenRenewal {
			targets = append(targets, w)
		}
	}
	s.mu.RUnlock()

	for _, w := range targets {
		if err := w.Post(msg); err != nil {
			logging.Debug("token update not delivered",
				zap.String("worker_id", w.ID), zap.Error(err))
		}
	}
}
