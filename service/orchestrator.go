package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"script-to-video-server/adapters"
	"script-to-video-server/config"
	"script-to-video-server/models"
)

// RecordStore is the slice of the record store the orchestrator reads
// from. All writes go through the Publisher so durability and
// notification stay paired.
type RecordStore interface {
	Get(ctx context.Context, id string) (*models.Generation, error)
}

// Publisher persists a record mutation and fans it out to live
// subscribers.
type Publisher interface {
	Publish(ctx context.Context, g *models.Generation) error
}

// ArtifactUploader pushes the final artifact to the object store.
type ArtifactUploader interface {
	UploadWithRetry(ctx context.Context, localPath, key string) (string, error)
}

// ErrNotQueued is returned by Run when the record is not in the queued
// state; no stages are attempted.
var ErrNotQueued = fmt.Errorf("generation is not queued")

// runHandle tracks one in-flight generation. Both flags are checked at
// every stage boundary: cancelled is the local cooperative-cancel
// request, superseded means the stored row went terminal outside this
// run (a cancel served by another instance) and all further writes for
// it are rejected by the store.
type runHandle struct {
	cancelled  atomic.Bool
	superseded atomic.Bool
}

// Orchestrator advances a generation through the ordered stage pipeline,
// persisting and publishing progress after every mutation. One Run call
// owns all mutations for its record; concurrency exists only across
// generations.
type Orchestrator struct {
	store    RecordStore
	registry *adapters.Registry
	uploader ArtifactUploader
	pub      Publisher
	policy   config.Pipeline
	logger   *zap.Logger

	mu      sync.Mutex
	running map[string]*runHandle
}

func NewOrchestrator(store RecordStore, registry *adapters.Registry, uploader ArtifactUploader, pub Publisher, policy config.Pipeline, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		registry: registry,
		uploader: uploader,
		pub:      pub,
		policy:   policy,
		logger:   logger,
		running:  make(map[string]*runHandle),
	}
}

// stage is one pipeline step: a stage function plus the progress
// checkpoint reached when it succeeds. attempts overrides the policy
// attempt ceiling when non-zero, for stages that manage retry
// themselves.
type stage struct {
	name     string
	target   int
	message  string
	attempts int
	fn       func(ctx context.Context, st *pipelineState) (*models.Artifact, error)
}

func (o *Orchestrator) stages() []stage {
	cp := o.policy.Checkpoints
	return []stage{
		{name: models.StageAnalyze, target: cp.Analyze, message: "Analyzing script and detecting characters", fn: o.stageAnalyze},
		{name: models.StageAssignVoices, target: cp.AssignVoices, message: "Assigning voices to characters", fn: o.stageAssignVoices},
		{name: models.StageSynthesizeClips, target: cp.SynthesizeClips, message: "Generating video clips", fn: o.stageSynthesizeClips},
		{name: models.StageSynthesizeAudio, target: cp.SynthesizeAudio, message: "Generating narration audio", fn: o.stageSynthesizeAudio},
		{name: models.StageCombine, target: cp.Combine, message: "Combining video and audio", fn: o.stageCombine},
		{name: models.StageEnhance, target: cp.Enhance, message: "Applying post-production enhancement", fn: o.stageEnhance},
		{name: models.StageFinalReview, target: cp.FinalReview, message: "Final quality review", fn: o.stageFinalReview},
		// The upload retry manager owns its own attempt policy.
		{name: models.StageUpload, target: cp.Upload, message: "Uploading final video", attempts: 1, fn: o.stageUpload},
		{name: models.StageFinalize, target: cp.Finalize, message: "Finalizing", fn: o.stageFinalize},
	}
}

// Run executes the full pipeline for a queued generation. Stage
// failures finish the record as failed and return nil; only
// infrastructure problems (record missing, wrong state) surface as
// errors.
func (o *Orchestrator) Run(ctx context.Context, id string) error {
	gen, err := o.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load generation %s: %w", id, err)
	}
	if gen.Status != models.StatusQueued {
		return fmt.Errorf("%w: generation %s is %s", ErrNotQueued, id, gen.Status)
	}

	handle := &runHandle{}
	o.mu.Lock()
	o.running[id] = handle
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.running, id)
		o.mu.Unlock()
	}()

	workDir := filepath.Join(o.policy.WorkDir, "generations", id)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		gen.SetFailed(models.ErrKindInternal, "create work directory: "+err.Error())
		o.publish(ctx, gen, handle)
		return nil
	}

	st := &pipelineState{
		gen:     gen,
		workDir: workDir,
	}
	st.progress = func(percent int, message string) {
		gen.SetProgress(percent, message)
		o.publish(ctx, gen, handle)
	}

	gen.SetProgress(0, "Starting video generation pipeline")
	o.publish(ctx, gen, handle)
	o.logger.Info("generation started",
		zap.String("generation_id", id),
		zap.String("project_ref", gen.ProjectID))

	prevTarget := 0
	for _, s := range o.stages() {
		if handle.superseded.Load() {
			o.logger.Info("record finalized externally, stopping run",
				zap.String("generation_id", id))
			return nil
		}
		if handle.cancelled.Load() {
			gen.SetFailed(models.ErrKindCancelled, "generation cancelled")
			o.publish(ctx, gen, handle)
			o.logger.Info("generation cancelled", zap.String("generation_id", id))
			return nil
		}

		st.stageFloor = prevTarget
		st.stageTarget = s.target
		artifact, err := o.runStage(ctx, s, st)
		if err != nil {
			kind, msg := classifyFailure(s.name, err)
			gen.SetFailed(kind, msg)
			o.publish(ctx, gen, handle)
			o.logger.Warn("generation failed",
				zap.String("generation_id", id),
				zap.String("stage", s.name),
				zap.String("kind", kind),
				zap.Error(err))
			return nil
		}

		artifact.Stage = s.name
		gen.AppendArtifact(*artifact)
		gen.SetProgress(s.target, s.message)
		o.publish(ctx, gen, handle)
		prevTarget = s.target
	}

	if handle.superseded.Load() {
		o.logger.Info("record finalized externally, stopping run",
			zap.String("generation_id", id))
		return nil
	}
	gen.SetCompleted(st.resultURI, "Video generation completed")
	o.publish(ctx, gen, handle)
	o.logger.Info("generation completed",
		zap.String("generation_id", id),
		zap.String("result_uri", st.resultURI))
	return nil
}

// runStage invokes the stage function, retrying transient failures with
// doubling backoff up to the configured attempt ceiling. Stage
// functions are written to resume: completed sub-steps are skipped on
// retry.
func (o *Orchestrator) runStage(ctx context.Context, s stage, st *pipelineState) (*models.Artifact, error) {
	delay := o.policy.BackoffBase()
	attempts := o.policy.StageAttempts
	if s.attempts > 0 {
		attempts = s.attempts
	}
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		artifact, err := s.fn(ctx, st)
		if err == nil {
			return artifact, nil
		}
		lastErr = err
		if !adapters.IsRetryable(err) {
			return nil, err
		}
		if attempt == attempts {
			break
		}
		o.logger.Warn("stage failed, retrying",
			zap.String("generation_id", st.gen.ID),
			zap.String("stage", s.name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > o.policy.BackoffMax() {
			delay = o.policy.BackoffMax()
		}
	}
	return nil, fmt.Errorf("exhausted %d attempts: %w", attempts, lastErr)
}

// Cancel stops a generation. A queued record is failed immediately; a
// running one is flagged and stops at the next stage boundary without
// discarding persisted artifacts.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	o.mu.Lock()
	handle, active := o.running[id]
	o.mu.Unlock()
	if active {
		handle.cancelled.Store(true)
		return nil
	}

	gen, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if gen.IsTerminal() {
		return fmt.Errorf("generation %s already %s", id, gen.Status)
	}
	gen.SetFailed(models.ErrKindCancelled, "generation cancelled")
	return o.pub.Publish(ctx, gen)
}

// publish persists and fans out. A rejected write against a terminal
// row means another instance finalized the record; the handle is
// flagged so the run stands down at the next stage boundary. Any other
// persist failure is logged but does not stop the pipeline, since the
// in-memory record stays authoritative for this run and the next
// mutation retries the write.
func (o *Orchestrator) publish(ctx context.Context, gen *models.Generation, handle *runHandle) {
	err := o.pub.Publish(ctx, gen)
	if err == nil {
		return
	}
	if errors.Is(err, models.ErrTerminalRecord) {
		handle.superseded.Store(true)
		return
	}
	o.logger.Error("persist progress failed",
		zap.String("generation_id", gen.ID),
		zap.Error(err))
}

func classifyFailure(stageName string, err error) (kind, msg string) {
	msg = fmt.Sprintf("%s: %v", stageName, err)
	switch adapters.KindOf(err) {
	case adapters.KindInvalidInput:
		return models.ErrKindInvalidInput, msg
	case adapters.KindRejected:
		return models.ErrKindRejected, msg
	case adapters.KindUnavailable:
		return models.ErrKindUnavailable, msg
	default:
		return models.ErrKindTransient, msg
	}
}
