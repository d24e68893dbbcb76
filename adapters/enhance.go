package adapters

import (
	"context"
	"encoding/base64"
	"os"
	"time"
)

// EnhanceAdapter wraps the post-production enhancement service
// (color grading, stabilization, quality passes).
type EnhanceAdapter struct {
	c *client
}

func NewEnhanceAdapter(base string, timeout time.Duration) *EnhanceAdapter {
	return &EnhanceAdapter{c: newClient("enhance", base, timeout)}
}

// Enhance runs the named post-production preset over the video and
// returns the enhanced bytes.
func (a *EnhanceAdapter) Enhance(ctx context.Context, videoPath, preset string) ([]byte, error) {
	video, err := os.ReadFile(videoPath)
	if err != nil {
		return nil, &Error{Kind: KindInvalidInput, Service: "enhance", Msg: "read video: " + err.Error()}
	}
	if preset == "" {
		preset = "cinematic"
	}

	raw, err := a.c.postJSON(ctx, "/enhance", map[string]string{
		"video":  base64.StdEncoding.EncodeToString(video),
		"preset": preset,
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, &Error{Kind: KindRejected, Service: "enhance", Msg: "empty enhanced payload"}
	}
	return raw, nil
}
