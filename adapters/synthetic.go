package adapters

import (
	"encoding/binary"
	"hash/fnv"
)

// Synthetic payload generators. These stand in for unavailable services
// so the pipeline completes end-to-end in degraded mode. The payloads
// are deterministic for a given input, which keeps retries and tests
// stable, and carry a short header identifying them as placeholders.

const (
	syntheticClipMagic  = "SYNCLIP1"
	syntheticAudioMagic = "SYNAUD1\x00"
)

// SyntheticClip builds placeholder clip bytes for a scene prompt.
// Size scales with duration so downstream assembly behaves plausibly.
func SyntheticClip(prompt, aspectRatio string, durationSec int) []byte {
	if durationSec <= 0 {
		durationSec = 5
	}
	w, h := Dimensions(aspectRatio)
	return syntheticPayload(syntheticClipMagic, prompt, durationSec*4096, uint32(w), uint32(h))
}

// SyntheticAudio builds placeholder audio bytes for a line of text.
func SyntheticAudio(text string) []byte {
	size := len(text) * 64
	if size < 1024 {
		size = 1024
	}
	return syntheticPayload(syntheticAudioMagic, text, size, 0, 0)
}

// IsSynthetic reports whether a payload was produced by one of the
// fallback generators.
func IsSynthetic(payload []byte) bool {
	if len(payload) < 8 {
		return false
	}
	head := string(payload[:8])
	return head == syntheticClipMagic || head == syntheticAudioMagic
}

func syntheticPayload(magic, seed string, size int, w, h uint32) []byte {
	out := make([]byte, 0, len(magic)+16+size)
	out = append(out, magic...)

	var dims [8]byte
	binary.BigEndian.PutUint32(dims[0:4], w)
	binary.BigEndian.PutUint32(dims[4:8], h)
	out = append(out, dims[:]...)

	hash := fnv.New64a()
	hash.Write([]byte(seed))
	state := hash.Sum64()
	for i := 0; i < size; i++ {
		state = state*6364136223846793005 + 1442695040888963407
		out = append(out, byte(state>>56))
	}
	return out
}
