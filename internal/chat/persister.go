package chat

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// PersisterConfig holds persistence worker configuration
type PersisterConfig struct {
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration
}

// DefaultPersisterConfig returns the default persister configuration
func DefaultPersisterConfig() PersisterConfig {
	return PersisterConfig{
		Workers:      4,
		QueueSize:    256,
		WriteTimeout: 5 * time.Second,
	}
}

type jobKind int

const (
	jobAppend jobKind = iota
	jobForget
)

type job struct {
	kind   jobKind
	roomID string
	msg    Message
}

// PersisterStats is a point-in-time view of the bridge counters
type PersisterStats struct {
	Persisted int64 `json:"persisted"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

// Persister writes chat messages to the Store in the background.
// Jobs are sharded by room so one room's messages are written in send order.
type Persister struct {
	store  Store
	config PersisterConfig
	log    *slog.Logger

	queues []chan job
	wg     sync.WaitGroup

	mu      sync.RWMutex
	running bool
	stopped bool

	persisted atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func NewPersister(store Store, cfg PersisterConfig, log *slog.Logger) *Persister {
	def := DefaultPersisterConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	queues := make([]chan job, cfg.Workers)
	for i := range queues {
		queues[i] = make(chan job, cfg.QueueSize)
	}

	return &Persister{
		store:  store,
		config: cfg,
		log:    log,
		queues: queues,
	}
}

// Start launches the workers
func (p *Persister) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("persister is already running")
	}
	if p.stopped {
		return fmt.Errorf("persister was stopped")
	}
	p.running = true

	for i, q := range p.queues {
		p.wg.Add(1)
		go func(id int, q <-chan job) {
			defer p.wg.Done()
			p.work(id, q)
		}(i, q)
	}

	p.log.Info("chat persister started", "workers", len(p.queues), "queue_size", p.config.QueueSize)
	return nil
}

// Enqueue schedules a message for persistence without blocking.
// It reports false when the message was dropped.
func (p *Persister) Enqueue(roomID string, msg Message) bool {
	return p.submit(job{kind: jobAppend, roomID: roomID, msg: msg})
}

// Forget drops the cached session id of a room that was destroyed
func (p *Persister) Forget(roomID string) {
	p.submit(job{kind: jobForget, roomID: roomID})
}

func (p *Persister) submit(j job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		if j.kind == jobAppend {
			p.dropped.Add(1)
			p.log.Warn("chat persister stopped, message dropped", "room_id", j.roomID, "message_id", j.msg.ID)
		}
		return false
	}

	select {
	case p.queues[p.shard(j.roomID)] <- j:
		return true
	default:
		if j.kind == jobAppend {
			p.dropped.Add(1)
			p.log.Error("chat persistence queue full, message dropped",
				"room_id", j.roomID,
				"message_id", j.msg.ID,
			)
		}
		return false
	}
}

// Stop closes the queues and waits for the workers to drain them
func (p *Persister) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("chat persister drained", "persisted", p.persisted.Load(), "failed", p.failed.Load())
		return nil
	case <-ctx.Done():
		return fmt.Errorf("persister drain interrupted: %w", ctx.Err())
	}
}

func (p *Persister) Stats() PersisterStats {
	return PersisterStats{
		Persisted: p.persisted.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}

func (p *Persister) shard(roomID string) int {
	h := fnv.New32a()
	h.Write([]byte(roomID))
	return int(h.Sum32() % uint32(len(p.queues)))
}

func (p *Persister) work(id int, q <-chan job) {
	// Rooms are pinned to one worker, so the cache needs no lock
	sessions := make(map[string]uuid.UUID)

	for j := range q {
		switch j.kind {
		case jobForget:
			delete(sessions, j.roomID)
		case jobAppend:
			if err := p.persist(sessions, j); err != nil {
				p.failed.Add(1)
				level := slog.LevelError
				if errors.Is(err, ErrSessionNotFound) {
					level = slog.LevelWarn
				}
				p.log.Log(context.Background(), level, "failed to persist chat message",
					"worker", id,
					"room_id", j.roomID,
					"message_id", j.msg.ID,
					"error", err,
				)
				continue
			}
			p.persisted.Add(1)
		}
	}
}

func (p *Persister) persist(sessions map[string]uuid.UUID, j job) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.WriteTimeout)
	defer cancel()

	sessionID, ok := sessions[j.roomID]
	if !ok {
		id, err := p.store.ResolveSessionID(ctx, j.roomID)
		if err != nil {
			return err
		}
		sessionID = id
		sessions[j.roomID] = id
	}

	msg := j.msg
	return p.store.AppendChatMessage(ctx, sessionID, &msg)
}
