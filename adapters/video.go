package adapters

import (
	"context"
	"fmt"
	"time"
)

// promptCharLimit is the vendor-imposed cap on prompt length; longer
// prompts are truncated here rather than rejected upstream.
const promptCharLimit = 2000

// aspectRatios whitelists the renderable aspect ratios and their output
// dimensions.
var aspectRatios = map[string][2]int{
	"16:9": {1280, 720},
	"9:16": {720, 1280},
}

// SupportedAspectRatio reports whether the ratio can be rendered.
func SupportedAspectRatio(ratio string) bool {
	_, ok := aspectRatios[ratio]
	return ok
}

// Dimensions returns the output width and height for a ratio, defaulting
// to 16:9.
func Dimensions(ratio string) (int, int) {
	d, ok := aspectRatios[ratio]
	if !ok {
		d = aspectRatios["16:9"]
	}
	return d[0], d[1]
}

// VideoAdapter wraps the text-to-video synthesis service.
type VideoAdapter struct {
	c *client
}

func NewVideoAdapter(base string, timeout time.Duration) *VideoAdapter {
	return &VideoAdapter{c: newClient("video", base, timeout)}
}

// SynthesizeClip renders one scene prompt into clip bytes.
func (a *VideoAdapter) SynthesizeClip(ctx context.Context, prompt, aspectRatio string, durationSec int) ([]byte, error) {
	if !SupportedAspectRatio(aspectRatio) {
		return nil, &Error{
			Kind:    KindInvalidInput,
			Service: "video",
			Msg:     fmt.Sprintf("unsupported aspect ratio %q", aspectRatio),
		}
	}
	prompt = TruncatePrompt(prompt)
	w, h := Dimensions(aspectRatio)

	raw, err := a.c.postJSON(ctx, "/synthesize", map[string]interface{}{
		"prompt":   prompt,
		"width":    w,
		"height":   h,
		"duration": durationSec,
		"fps":      24,
		"format":   "mp4",
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, &Error{Kind: KindRejected, Service: "video", Msg: "empty clip payload"}
	}
	return raw, nil
}

// TruncatePrompt enforces the vendor prompt limit.
func TruncatePrompt(prompt string) string {
	if len(prompt) <= promptCharLimit {
		return prompt
	}
	return prompt[:promptCharLimit]
}
