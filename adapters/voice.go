package adapters

import (
	"context"
	"time"
)

// Voice is one selectable narration voice.
type Voice struct {
	ID         string `json:"voice_id"`
	Name       string `json:"name"`
	PreviewURL string `json:"preview_url,omitempty"`
}

// VoiceAdapter wraps the voice catalogue and character-to-voice
// assignment service.
type VoiceAdapter struct {
	c *client
}

func NewVoiceAdapter(base string, timeout time.Duration) *VoiceAdapter {
	return &VoiceAdapter{c: newClient("voices", base, timeout)}
}

// List returns the available voices.
func (a *VoiceAdapter) List(ctx context.Context) ([]Voice, error) {
	var out struct {
		Voices []Voice `json:"voices"`
	}
	_, err := a.c.postJSON(ctx, "/voices", map[string]string{}, &out)
	if err != nil {
		return nil, err
	}
	return out.Voices, nil
}

// Assign maps each detected character to a voice id.
func (a *VoiceAdapter) Assign(ctx context.Context, characters []Character) (map[string]string, error) {
	var out struct {
		Assignments map[string]string `json:"voice_assignments"`
	}
	_, err := a.c.postJSON(ctx, "/assign", map[string]interface{}{"characters": characters}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Assignments) == 0 {
		return nil, &Error{Kind: KindRejected, Service: "voices", Msg: "response contained no assignments"}
	}
	return out.Assignments, nil
}

// fallbackVoices is the built-in catalogue used when the voice service
// is unreachable.
var fallbackVoices = []Voice{
	{ID: "offline-narrator", Name: "Narrator (offline)"},
	{ID: "offline-warm", Name: "Warm (offline)"},
	{ID: "offline-bright", Name: "Bright (offline)"},
}

// FallbackVoices returns the built-in voice catalogue.
func FallbackVoices() []Voice {
	out := make([]Voice, len(fallbackVoices))
	copy(out, fallbackVoices)
	return out
}

// FallbackAssign assigns built-in voices to characters round-robin.
func FallbackAssign(characters []Character) map[string]string {
	assignments := make(map[string]string, len(characters))
	for i, ch := range characters {
		assignments[ch.Name] = fallbackVoices[i%len(fallbackVoices)].ID
	}
	if len(assignments) == 0 {
		assignments["Narrator"] = fallbackVoices[0].ID
	}
	return assignments
}
