package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/log"
)

// Consumer delivers events until ctx is done. *amqp.Client implements it.
type Consumer interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

// ProcessorConfig holds configuration for the event processor
type ProcessorConfig struct {
	// HandleTimeout bounds a single event write (default: 30s)
	HandleTimeout time.Duration
	// Observe, when set, is called after every handled event.
	Observe func(eventType string, err error)
}

// DefaultProcessorConfig returns sensible defaults
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{HandleTimeout: 30 * time.Second}
}

// Processor runs the activity worker against a consumer in the background.
type Processor struct {
	consumer Consumer
	worker   *ActivityWorker
	config   ProcessorConfig
	logger   *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	err     error
}

func NewProcessor(consumer Consumer, worker *ActivityWorker, config ProcessorConfig, logger *log.Logger) *Processor {
	if config.HandleTimeout <= 0 {
		config.HandleTimeout = DefaultProcessorConfig().HandleTimeout
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Processor{
		consumer: consumer,
		worker:   worker,
		config:   config,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins consuming. Returns an error if already running.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("processor is already running")
	}
	if p.consumer == nil || p.worker == nil {
		return errors.New("processor needs a consumer and a worker")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.doneCh = make(chan struct{})
	p.err = nil

	go p.run(runCtx, p.doneCh)

	p.logger.InfoContext(ctx, "Processor started", "handle_timeout", p.config.HandleTimeout)
	return nil
}

func (p *Processor) run(ctx context.Context, done chan struct{}) {
	err := p.consumer.Consume(ctx, p.handle)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	p.mu.Lock()
	p.running = false
	p.err = err
	p.mu.Unlock()
	close(done)
}

func (p *Processor) handle(ctx context.Context, ev *amqp.Event) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.HandleTimeout)
	defer cancel()
	err := p.worker.HandleEvent(ctx, ev)
	if p.config.Observe != nil {
		p.config.Observe(string(ev.Type), err)
	}
	return err
}

// Stop cancels consumption and waits for the loop to exit.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel, done := p.cancel, p.doneCh
	p.mu.Unlock()

	cancel()

	select {
	case <-done:
		p.logger.InfoContext(ctx, "Processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Processor stop timed out")
		return ctx.Err()
	}
}

// Done is closed when the current run ends. Nil before the first Start.
func (p *Processor) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doneCh
}

// Err reports why the last run ended. Nil for a clean stop.
func (p *Processor) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return fmt.Errorf("consume: %w", p.err)
	}
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
