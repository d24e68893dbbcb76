package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TypeGenerationRun is the task type for one generation pipeline run.
const TypeGenerationRun = "generation:run"

// RunPayload identifies the generation a queued task should run.
type RunPayload struct {
	GenerationID string `json:"generation_id"`
}

// Enqueuer submits generation runs to the background worker pool.
type Enqueuer struct {
	client *asynq.Client
	logger *zap.Logger
}

func NewEnqueuer(redisOpt asynq.RedisClientOpt, logger *zap.Logger) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(redisOpt), logger: logger}
}

// EnqueueRun schedules one pipeline run. Queue-level retry is disabled:
// a re-delivered task would fail the queued-state precondition, and the
// orchestrator owns all retry policy.
func (e *Enqueuer) EnqueueRun(generationID string) error {
	payload, err := json.Marshal(RunPayload{GenerationID: generationID})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	task := asynq.NewTask(TypeGenerationRun, payload,
		asynq.MaxRetry(0),
		asynq.Timeout(45*time.Minute),
		asynq.Retention(24*time.Hour),
	)
	info, err := e.client.Enqueue(task)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	e.logger.Info("generation enqueued",
		zap.String("generation_id", generationID),
		zap.String("task_id", info.ID))
	return nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}
