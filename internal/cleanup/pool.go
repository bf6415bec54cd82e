// Package cleanup removes blobs whose file rows are gone. Deletions are
// best-effort: they run in the background, are retried with exponential
// backoff and a permanent failure is only logged.
package cleanup

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"file-sharing-service/pkg/logger"

	"go.uber.org/zap"
)

type Deleter interface {
	Delete(ctx context.Context, key string) error
}

type Config struct {
	Workers     int           `env:"CLEANUP_WORKERS" env-default:"4"`
	QueueSize   int           `env:"CLEANUP_QUEUE_SIZE" env-default:"1024"`
	MaxAttempts int           `env:"CLEANUP_MAX_ATTEMPTS" env-default:"5"`
	BaseDelay   time.Duration `env:"CLEANUP_BASE_DELAY" env-default:"500ms"`
	MaxDelay    time.Duration `env:"CLEANUP_MAX_DELAY" env-default:"30s"`
	TaskTimeout time.Duration `env:"CLEANUP_TASK_TIMEOUT" env-default:"30s"`
}

func DefaultConfig() Config {
	return Config{
		Workers:     4,
		QueueSize:   1024,
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		TaskTimeout: 30 * time.Second,
	}
}

// Pool runs blob deletions on a fixed set of workers.
type Pool struct {
	cfg   Config
	store Deleter
	log   *logger.Logger

	tasks    chan string
	workers  sync.WaitGroup
	overflow sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
}

func NewPool(cfg Config, store Deleter, log *logger.Logger) *Pool {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = def.TaskTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Pool{
		cfg:   cfg,
		store: store,
		log:   log.With(zap.String("component", "cleanup")),
		tasks: make(chan string, cfg.QueueSize),
	}
}

// Start launches the workers. Keys enqueued before Start wait in the queue.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.startLocked()
}

func (p *Pool) startLocked() {
	p.started = true
	for i := 0; i < p.cfg.Workers; i++ {
		p.workers.Add(1)
		go func() {
			defer p.workers.Done()
			for key := range p.tasks {
				p.run(key)
			}
		}()
	}
	p.log.Info("cleanup pool started", zap.Int("workers", p.cfg.Workers))
}

// Enqueue schedules deletion of key and returns immediately. When the queue
// is full the deletion runs on its own goroutine, which Stop waits for. Keys
// arriving after Stop are still deleted, but nothing waits for them.
func (p *Pool) Enqueue(key string) {
	if key == "" {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.log.Warn("cleanup pool stopped, deleting untracked", zap.String("storage_key", key))
		go p.run(key)
		return
	}
	select {
	case p.tasks <- key:
		return
	default:
	}
	// stopped is only set under the write lock, so every Add here happens
	// before Stop starts waiting.
	p.overflow.Add(1)
	go func() {
		defer p.overflow.Done()
		p.run(key)
	}()
}

// Stop closes the queue and waits until every accepted deletion has finished
// or ctx is done.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		if !p.started {
			p.startLocked()
		}
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.workers.Wait()
		p.overflow.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("cleanup pool drained")
		return nil
	case <-ctx.Done():
		p.log.Warn("cleanup pool stop timed out", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

func (p *Pool) run(key string) {
	log := p.log.With(zap.String("storage_key", key))
	var err error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if err = p.deleteOnce(key); err == nil {
			log.Debug("blob deleted", zap.Int("attempt", attempt))
			return
		}
		if attempt == p.cfg.MaxAttempts {
			break
		}
		delay := p.retryDelay(attempt)
		log.Warn("blob delete failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		time.Sleep(delay)
	}
	log.Error("blob delete failed permanently", zap.Int("attempts", p.cfg.MaxAttempts), zap.Error(err))
}

func (p *Pool) deleteOnce(key string) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.TaskTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("blob delete panicked")
		}
	}()
	return p.store.Delete(ctx, key)
}

// retryDelay is BaseDelay * 2^(attempt-1), capped at MaxDelay.
func (p *Pool) retryDelay(attempt int) time.Duration {
	delay := time.Duration(float64(p.cfg.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if p.cfg.MaxDelay > 0 && delay > p.cfg.MaxDelay {
		return p.cfg.MaxDelay
	}
	return delay
}
