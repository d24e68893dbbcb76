package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrActiveGeneration is returned by CreateQueued when the project
// already has a queued or processing generation.
var ErrActiveGeneration = errors.New("an active generation already exists for this project")

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrTerminalRecord is returned by Save when the stored row has already
// reached a terminal status. Completed and failed rows are immutable; a
// writer racing a cancel from another instance loses here instead of
// overwriting the terminal state.
var ErrTerminalRecord = errors.New("record is already terminal")

// Store is the durable generation record store backed by gorm.
type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// CreateQueued inserts a new queued generation, enforcing at most one
// active generation per project. The check and the insert run in one
// transaction with the project's active rows locked, so a concurrent
// duplicate request loses the race and is rejected rather than queued.
func (s *Store) CreateQueued(ctx context.Context, g *Generation) error {
	now := time.Now()
	g.Status = StatusQueued
	g.Progress = 0
	g.CreatedAt = now
	g.UpdatedAt = now
	if g.Artifacts == nil {
		g.Artifacts = ArtifactList{}
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		err := tx.Model(&Generation{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("project_id = ? AND status IN ?", g.ProjectID, []string{StatusQueued, StatusProcessing}).
			Count(&active).Error
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrActiveGeneration
		}
		return tx.Create(g).Error
	})
}

// Get loads a generation by id.
func (s *Store) Get(ctx context.Context, id string) (*Generation, error) {
	var g Generation
	if err := s.DB.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// Save persists the record's current state and bumps updated_at. The
// write is conditional on the stored row still being active: a terminal
// row cannot be overwritten, so a cancel served by another instance
// sticks even while the owning orchestrator keeps publishing from its
// in-memory copy.
func (s *Store) Save(ctx context.Context, g *Generation) error {
	g.UpdatedAt = time.Now()
	res := s.DB.WithContext(ctx).
		Model(&Generation{}).
		Where("id = ? AND status IN ?", g.ID, []string{StatusQueued, StatusProcessing}).
		Select("*").
		Updates(g)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTerminalRecord
	}
	return nil
}

// CreateProject inserts a project bundle.
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	return s.DB.WithContext(ctx).Create(p).Error
}

// GetProject loads a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	if err := s.DB.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// DeleteProject removes a project bundle. Generation records are kept;
// retention of finished generations is an external concern.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Delete(&Project{}, "id = ?", id).Error
}
