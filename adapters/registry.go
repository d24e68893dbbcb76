package adapters

import (
	"time"

	"script-to-video-server/config"
)

// Registry bundles every external service adapter. It is constructed
// once at startup and handed to the orchestrator; nothing in this
// package holds package-level state.
type Registry struct {
	Analysis *AnalysisAdapter
	Voices   *VoiceAdapter
	Video    *VideoAdapter
	Audio    *AudioAdapter
	Enhance  *EnhanceAdapter
}

// NewRegistry builds adapters for the configured service endpoints.
// Unconfigured endpoints yield adapters that report unavailable, which
// the pipeline absorbs with synthetic fallbacks.
func NewRegistry(cfg *config.Config) *Registry {
	timeout := time.Duration(cfg.Services.TimeoutSeconds) * time.Second
	return &Registry{
		Analysis: NewAnalysisAdapter(cfg.Services.AnalysisAPI, timeout),
		Voices:   NewVoiceAdapter(cfg.Services.VoiceAPI, timeout),
		Video:    NewVideoAdapter(cfg.Services.VideoAPI, timeout),
		Audio:    NewAudioAdapter(cfg.Services.AudioAPI, timeout),
		Enhance:  NewEnhanceAdapter(cfg.Services.EnhanceAPI, timeout),
	}
}
