package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Processor consumes queued generation runs. Each task is one
// independently scheduled generation; the worker pool gives concurrency
// across generations while each generation's stages stay sequential.
type Processor struct {
	srv    *asynq.Server
	orch   *Orchestrator
	logger *zap.Logger
}

func NewProcessor(redisOpt asynq.RedisClientOpt, concurrency int, orch *Orchestrator, logger *zap.Logger) *Processor {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"default": 1,
		},
	})
	return &Processor{srv: srv, orch: orch, logger: logger}
}

// Start runs the consumer in the background.
func (p *Processor) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeGenerationRun, p.handleRun)

	go func() {
		if err := p.srv.Run(mux); err != nil {
			p.logger.Fatal("task processor stopped", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown drains in-flight tasks.
func (p *Processor) Shutdown() {
	p.srv.Shutdown()
}

func (p *Processor) handleRun(ctx context.Context, t *asynq.Task) error {
	var payload RunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	err := p.orch.Run(ctx, payload.GenerationID)
	if err != nil {
		if errors.Is(err, ErrNotQueued) {
			// Stale delivery; the record already moved on.
			p.logger.Warn("skipping stale run task",
				zap.String("generation_id", payload.GenerationID),
				zap.Error(err))
			return nil
		}
		p.logger.Error("generation run failed",
			zap.String("generation_id", payload.GenerationID),
			zap.Error(err))
		return fmt.Errorf("run %s: %v: %w", payload.GenerationID, err, asynq.SkipRetry)
	}
	return nil
}
