package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Generation lifecycle. Status never regresses from a terminal state.
const (
	// queued: record accepted, waiting for a worker to pick it up
	StatusQueued = "queued"
	// processing: the orchestrator is advancing the stage cursor
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Error kinds recorded on a failed generation. Transient and Unavailable
// never reach the record: transient errors are retried inside the stage
// and unavailable services are absorbed by synthetic fallbacks.
const (
	ErrKindRejected     = "rejected"
	ErrKindInvalidInput = "invalid_input"
	ErrKindTransient    = "transient"
	ErrKindUnavailable  = "unavailable"
	ErrKindCancelled    = "cancelled"
	ErrKindConflict     = "conflict"
	ErrKindInternal     = "internal"
)

// Stage names, in pipeline order.
const (
	StageAnalyze         = "analyze"
	StageAssignVoices    = "assign_voices"
	StageSynthesizeClips = "synthesize_clips"
	StageSynthesizeAudio = "synthesize_audio"
	StageCombine         = "combine"
	StageEnhance         = "enhance"
	StageFinalReview     = "final_review"
	StageUpload          = "upload"
	StageFinalize        = "finalize"
)

// Artifact is one durable stage output. Entries are append-only once a
// stage succeeds and are never deleted, including on failure.
type Artifact struct {
	Stage     string            `json:"stage"`
	Kind      string            `json:"kind"` // e.g. "scenes", "voice_map", "clip", "audio", "video"
	Path      string            `json:"path,omitempty"`
	Synthetic bool              `json:"synthetic,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// ArtifactList is stored as a JSON column, ordered by stage completion.
type ArtifactList []Artifact

func (a ArtifactList) Value() (driver.Value, error) {
	if a == nil {
		a = ArtifactList{}
	}
	return json.Marshal(a)
}

func (a *ArtifactList) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("failed to unmarshal JSON value:", value))
	}
	return json.Unmarshal(bytes, a)
}

// Generation is one end-to-end script-to-video production job.
type Generation struct {
	ID           string       `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID    string       `gorm:"type:varchar(64);index" json:"projectId"`
	Script       string       `gorm:"type:text" json:"script"`
	AspectRatio  string       `json:"aspectRatio"`
	Status       string       `json:"status"`
	Progress     int          `json:"progress"`
	StageMessage string       `json:"message"`
	Artifacts    ArtifactList `gorm:"type:json" json:"artifacts"`
	ResultURI    string       `gorm:"type:text" json:"resultUri,omitempty"`
	ErrorKind    string       `json:"errorKind,omitempty"`
	ErrorMessage string       `gorm:"type:text" json:"errorMessage,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (Generation) TableName() string {
	return "generations"
}

// IsActive reports whether the record still occupies its project's
// single active-generation slot.
func (g *Generation) IsActive() bool {
	return g.Status == StatusQueued || g.Status == StatusProcessing
}

// IsTerminal reports whether the record is immutable.
func (g *Generation) IsTerminal() bool {
	return g.Status == StatusCompleted || g.Status == StatusFailed
}

// SetProgress moves the stage cursor forward. Progress is monotonically
// non-decreasing while processing; a lower value is ignored rather than
// allowed to regress.
func (g *Generation) SetProgress(progress int, message string) {
	if progress > g.Progress {
		g.Progress = progress
	}
	g.StageMessage = message
	g.Status = StatusProcessing
}

// AppendArtifact records a completed stage's output.
func (g *Generation) AppendArtifact(a Artifact) {
	g.Artifacts = append(g.Artifacts, a)
}

// ArtifactFor returns the artifact produced by the named stage, if any.
func (g *Generation) ArtifactFor(stage string) (Artifact, bool) {
	for _, a := range g.Artifacts {
		if a.Stage == stage {
			return a, true
		}
	}
	return Artifact{}, false
}

// SetCompleted finalizes a successful run. The result URI is set exactly
// once, here.
func (g *Generation) SetCompleted(resultURI, message string) {
	g.Status = StatusCompleted
	g.Progress = 100
	g.StageMessage = message
	g.ResultURI = resultURI
}

// SetFailed marks the record terminal with the classified error.
// Progress freezes at its last value and completed artifacts stay visible
// for partial-result inspection.
func (g *Generation) SetFailed(kind, message string) {
	g.Status = StatusFailed
	g.ErrorKind = kind
	g.ErrorMessage = message
	g.StageMessage = message
}

// View is the API projection of a generation, shared by the polling
// endpoint and both live-update transports.
type View struct {
	ID           string       `json:"generation_id"`
	ProjectID    string       `json:"project_ref"`
	Status       string       `json:"status"`
	Progress     int          `json:"progress"`
	Message      string       `json:"message"`
	Artifacts    ArtifactList `json:"artifacts,omitempty"`
	ResultURI    string       `json:"result_uri,omitempty"`
	ErrorKind    string       `json:"error_kind,omitempty"`
	ErrorMessage string       `json:"error,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// AsView builds the client-facing projection.
func (g *Generation) AsView() View {
	return View{
		ID:           g.ID,
		ProjectID:    g.ProjectID,
		Status:       g.Status,
		Progress:     g.Progress,
		Message:      g.StageMessage,
		Artifacts:    g.Artifacts,
		ResultURI:    g.ResultURI,
		ErrorKind:    g.ErrorKind,
		ErrorMessage: g.ErrorMessage,
		UpdatedAt:    g.UpdatedAt,
	}
}
