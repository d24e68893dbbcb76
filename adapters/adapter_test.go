package adapters

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		code int
		want ErrorKind
	}{
		{http.StatusBadRequest, KindInvalidInput},
		{http.StatusUnprocessableEntity, KindInvalidInput},
		{http.StatusServiceUnavailable, KindUnavailable},
		{http.StatusBadGateway, KindUnavailable},
		{http.StatusTooManyRequests, KindTransient},
		{http.StatusInternalServerError, KindTransient},
		{http.StatusForbidden, KindRejected},
		{http.StatusNotFound, KindRejected},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.code)
		}))
		c := newClient("test", srv.URL, time.Second)
		_, err := c.postJSON(context.Background(), "/op", map[string]string{}, nil)
		srv.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", tc.code)
		}
		if got := KindOf(err); got != tc.want {
			t.Errorf("status %d classified as %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestEmptyBaseURLIsUnavailable(t *testing.T) {
	c := newClient("test", "", time.Second)
	_, err := c.postJSON(context.Background(), "/op", map[string]string{}, nil)
	if KindOf(err) != KindUnavailable {
		t.Fatalf("unconfigured endpoint: got %v", err)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != KindNone {
		t.Error("nil should classify as none")
	}
	if KindOf(errors.New("dial tcp: i/o timeout")) != KindTransient {
		t.Error("plain error should default to transient")
	}
	if KindOf(syscall.ECONNREFUSED) != KindUnavailable {
		t.Error("ECONNREFUSED should classify as unavailable")
	}
	wrapped := &Error{Kind: KindRejected, Service: "video", Msg: "nope"}
	if KindOf(wrapped) != KindRejected {
		t.Error("wrapped adapter error lost its kind")
	}
	if IsRetryable(wrapped) {
		t.Error("rejected must not be retryable")
	}
	if !IsRetryable(errors.New("timeout")) {
		t.Error("transient must be retryable")
	}
}

func TestTruncatePrompt(t *testing.T) {
	short := "a short prompt"
	if got := TruncatePrompt(short); got != short {
		t.Fatalf("short prompt altered: %q", got)
	}
	long := strings.Repeat("x", promptCharLimit+500)
	if got := TruncatePrompt(long); len(got) != promptCharLimit {
		t.Fatalf("truncated to %d, want %d", len(got), promptCharLimit)
	}
}

func TestAspectRatios(t *testing.T) {
	if !SupportedAspectRatio("16:9") || !SupportedAspectRatio("9:16") {
		t.Fatal("standard ratios should be supported")
	}
	if SupportedAspectRatio("4:3") {
		t.Fatal("4:3 should be rejected")
	}
	if w, h := Dimensions("9:16"); w != 720 || h != 1280 {
		t.Fatalf("9:16 dimensions %dx%d", w, h)
	}
	if w, h := Dimensions("bogus"); w != 1280 || h != 720 {
		t.Fatalf("unknown ratio should default to 16:9, got %dx%d", w, h)
	}
}

func TestSynthesizeClipRejectsBadRatio(t *testing.T) {
	a := NewVideoAdapter("http://unused", time.Second)
	_, err := a.SynthesizeClip(context.Background(), "prompt", "1:1", 5)
	if KindOf(err) != KindInvalidInput {
		t.Fatalf("got %v", err)
	}
}

func TestFallbackAnalysis(t *testing.T) {
	a := FallbackAnalysis("The sun rises. A bird sings! Who is there?")
	if len(a.Scenes) != 3 {
		t.Fatalf("got %d scenes, want 3", len(a.Scenes))
	}
	if a.Scenes[0].AudioText != "The sun rises." {
		t.Fatalf("first scene text %q", a.Scenes[0].AudioText)
	}
	for i, s := range a.Scenes {
		if s.Number != i+1 {
			t.Fatalf("scene %d numbered %d", i, s.Number)
		}
		if s.DurationSec <= 0 {
			t.Fatalf("scene %d has no duration", i)
		}
	}
	if len(a.Characters) != 1 || a.Characters[0].Name != "Narrator" {
		t.Fatalf("characters = %+v", a.Characters)
	}

	// No terminators at all still yields one scene.
	one := FallbackAnalysis("just a fragment with no punctuation")
	if len(one.Scenes) != 1 {
		t.Fatalf("fragment produced %d scenes", len(one.Scenes))
	}
}

func TestFallbackAssign(t *testing.T) {
	chars := []Character{{Name: "Alice"}, {Name: "Bob"}, {Name: "Carol"}, {Name: "Dave"}}
	m := FallbackAssign(chars)
	if len(m) != 4 {
		t.Fatalf("got %d assignments", len(m))
	}
	// Round-robin wraps past the catalogue size.
	if m["Alice"] != m["Dave"] {
		t.Fatalf("expected wrap-around: Alice=%s Dave=%s", m["Alice"], m["Dave"])
	}
	if m["Alice"] == m["Bob"] {
		t.Fatal("adjacent characters should get distinct voices")
	}

	empty := FallbackAssign(nil)
	if empty["Narrator"] == "" {
		t.Fatal("empty cast should still get a narrator voice")
	}
}

func TestSyntheticPayloads(t *testing.T) {
	clip := SyntheticClip("a quiet meadow", "16:9", 5)
	if !IsSynthetic(clip) {
		t.Fatal("clip not tagged synthetic")
	}
	again := SyntheticClip("a quiet meadow", "16:9", 5)
	if string(clip) != string(again) {
		t.Fatal("synthetic clip not deterministic")
	}
	other := SyntheticClip("a busy street", "16:9", 5)
	if string(clip) == string(other) {
		t.Fatal("different prompts produced identical payloads")
	}

	audio := SyntheticAudio("hello there")
	if !IsSynthetic(audio) {
		t.Fatal("audio not tagged synthetic")
	}
	if len(audio) < 1024 {
		t.Fatalf("audio payload too small: %d", len(audio))
	}

	if IsSynthetic([]byte("real mp4 data here")) {
		t.Fatal("plain bytes misidentified as synthetic")
	}
	if IsSynthetic(nil) {
		t.Fatal("nil misidentified as synthetic")
	}
}

func TestAnalyzeScriptAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"scenes":[{"scene_number":1,"description":"opening","audio_text":"hi","duration":4}],"characters":[{"name":"Narrator"}]}`))
	}))
	defer srv.Close()

	a := NewAnalysisAdapter(srv.URL, time.Second)
	out, err := a.AnalyzeScript(context.Background(), "hi")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Scenes) != 1 || out.Scenes[0].Description != "opening" {
		t.Fatalf("analysis mangled: %+v", out)
	}
}

func TestAnalyzeScriptEmptyScenesRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"scenes":[]}`))
	}))
	defer srv.Close()

	a := NewAnalysisAdapter(srv.URL, time.Second)
	_, err := a.AnalyzeScript(context.Background(), "hi")
	if KindOf(err) != KindRejected {
		t.Fatalf("empty scene list: got %v", err)
	}
}
