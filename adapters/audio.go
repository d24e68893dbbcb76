package adapters

import (
	"context"
	"time"
)

// AudioAdapter wraps the text-to-speech synthesis service.
type AudioAdapter struct {
	c *client
}

func NewAudioAdapter(base string, timeout time.Duration) *AudioAdapter {
	return &AudioAdapter{c: newClient("audio", base, timeout)}
}

// Synthesize renders spoken audio for a line of text in the given voice.
func (a *AudioAdapter) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if text == "" {
		return nil, &Error{Kind: KindInvalidInput, Service: "audio", Msg: "empty text"}
	}
	raw, err := a.c.postJSON(ctx, "/synthesize", map[string]string{
		"text":   text,
		"voice":  voiceID,
		"format": "mp3",
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, &Error{Kind: KindRejected, Service: "audio", Msg: "empty audio payload"}
	}
	return raw, nil
}
