package api

import (
	"context"

	"go.uber.org/zap"

	"script-to-video-server/adapters"
	"script-to-video-server/models"
	"script-to-video-server/notify"
	"script-to-video-server/storage"
)

// RecordStore is the record store surface the API consumes.
type RecordStore interface {
	CreateQueued(ctx context.Context, g *models.Generation) error
	Get(ctx context.Context, id string) (*models.Generation, error)
	Save(ctx context.Context, g *models.Generation) error
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// RunEnqueuer schedules a background pipeline run.
type RunEnqueuer interface {
	EnqueueRun(generationID string) error
}

// Canceller requests a cooperative stop of a generation.
type Canceller interface {
	Cancel(ctx context.Context, id string) error
}

// Handler bundles the API's collaborators. Everything is injected at
// startup; handlers hold no package-level state.
type Handler struct {
	Store    RecordStore
	Enqueuer RunEnqueuer
	Orch     Canceller
	Notifier *notify.Notifier
	Objects  storage.ObjectStore
	Voices   *adapters.VoiceAdapter
	Logger   *zap.Logger
}

func NewHandler(store RecordStore, enq RunEnqueuer, orch Canceller, notifier *notify.Notifier, objects storage.ObjectStore, voices *adapters.VoiceAdapter, logger *zap.Logger) *Handler {
	return &Handler{
		Store:    store,
		Enqueuer: enq,
		Orch:     orch,
		Notifier: notifier,
		Objects:  objects,
		Voices:   voices,
		Logger:   logger,
	}
}
