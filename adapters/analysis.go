package adapters

import (
	"context"
	"strings"
	"time"
)

// Scene is one visual beat produced by script analysis.
type Scene struct {
	Number      int    `json:"scene_number"`
	Description string `json:"description"`
	AudioText   string `json:"audio_text"`
	DurationSec int    `json:"duration"`
}

// Character is a speaking role detected in the script.
type Character struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Analysis is the scene/character breakdown of a script.
type Analysis struct {
	Scenes     []Scene     `json:"scenes"`
	Characters []Character `json:"characters"`
	Theme      string      `json:"theme,omitempty"`
}

// Review is the final quality assessment of an assembled video.
type Review struct {
	Approved bool    `json:"approved"`
	Score    float64 `json:"score"`
	Notes    string  `json:"notes,omitempty"`
}

// AnalysisAdapter wraps the script/scene analysis service.
type AnalysisAdapter struct {
	c *client
}

func NewAnalysisAdapter(base string, timeout time.Duration) *AnalysisAdapter {
	return &AnalysisAdapter{c: newClient("analysis", base, timeout)}
}

// AnalyzeScript breaks the script into scenes and characters.
func (a *AnalysisAdapter) AnalyzeScript(ctx context.Context, script string) (*Analysis, error) {
	var out Analysis
	_, err := a.c.postJSON(ctx, "/analyze", map[string]string{"script": script}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Scenes) == 0 {
		return nil, &Error{Kind: KindRejected, Service: "analysis", Msg: "response contained no scenes"}
	}
	return &out, nil
}

// ReviewVideo asks the analysis service for a final quality pass over
// the assembled video.
func (a *AnalysisAdapter) ReviewVideo(ctx context.Context, videoPath, script string) (*Review, error) {
	var out Review
	_, err := a.c.postJSON(ctx, "/review", map[string]string{
		"video_path": videoPath,
		"script":     script,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FallbackAnalysis splits the script into sentence-sized scenes with a
// single narrator, standing in when the analysis service is unavailable.
func FallbackAnalysis(script string) *Analysis {
	sentences := splitSentences(script)
	if len(sentences) == 0 {
		sentences = []string{script}
	}
	scenes := make([]Scene, 0, len(sentences))
	for i, s := range sentences {
		scenes = append(scenes, Scene{
			Number:      i + 1,
			Description: s,
			AudioText:   s,
			DurationSec: 5,
		})
	}
	return &Analysis{
		Scenes:     scenes,
		Characters: []Character{{Name: "Narrator"}},
		Theme:      "general",
	}
}

// FallbackReview auto-approves when the review service is unavailable.
func FallbackReview() *Review {
	return &Review{Approved: true, Score: 0, Notes: "review service unavailable, auto-approved"}
}

func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}
