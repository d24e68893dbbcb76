package models

import (
	"encoding/json"
	"testing"
)

func TestSetProgressNeverRegresses(t *testing.T) {
	g := &Generation{Status: StatusQueued}

	g.SetProgress(15, "assigning voices")
	if g.Progress != 15 || g.Status != StatusProcessing {
		t.Fatalf("got progress=%d status=%s", g.Progress, g.Status)
	}

	// A lower checkpoint must not move progress backwards.
	g.SetProgress(5, "late update")
	if g.Progress != 15 {
		t.Fatalf("progress regressed to %d", g.Progress)
	}
	if g.StageMessage != "late update" {
		t.Fatalf("message not updated: %q", g.StageMessage)
	}

	g.SetProgress(60, "clips")
	if g.Progress != 60 {
		t.Fatalf("progress = %d, want 60", g.Progress)
	}
}

func TestSetCompleted(t *testing.T) {
	g := &Generation{Status: StatusProcessing, Progress: 98}
	g.SetCompleted("https://store.example/videos/final.mp4", "done")

	if g.Status != StatusCompleted {
		t.Fatalf("status = %s", g.Status)
	}
	if g.Progress != 100 {
		t.Fatalf("progress = %d, want 100", g.Progress)
	}
	if g.ResultURI == "" {
		t.Fatal("result URI not set")
	}
	if !g.IsTerminal() || g.IsActive() {
		t.Fatal("completed record should be terminal and inactive")
	}
}

func TestSetFailedFreezesProgress(t *testing.T) {
	g := &Generation{Status: StatusProcessing, Progress: 70}
	g.AppendArtifact(Artifact{Stage: StageAnalyze, Kind: "scenes"})

	g.SetFailed(ErrKindRejected, "vendor rejected the request")

	if g.Status != StatusFailed {
		t.Fatalf("status = %s", g.Status)
	}
	if g.Progress != 70 {
		t.Fatalf("progress should freeze at 70, got %d", g.Progress)
	}
	if g.ErrorKind != ErrKindRejected || g.ErrorMessage == "" {
		t.Fatalf("error not recorded: kind=%q msg=%q", g.ErrorKind, g.ErrorMessage)
	}
	// Completed artifacts stay visible for partial-result inspection.
	if len(g.Artifacts) != 1 {
		t.Fatalf("artifacts lost on failure: %d", len(g.Artifacts))
	}
	if g.ResultURI != "" {
		t.Fatal("failed record must not carry a result URI")
	}
}

func TestArtifactListRoundTrip(t *testing.T) {
	in := ArtifactList{
		{Stage: StageAnalyze, Kind: "scenes", Path: "/work/scenes.json", Meta: map[string]string{"scenes": "3"}},
		{Stage: StageSynthesizeClips, Kind: "clips", Synthetic: true},
	}

	value, err := in.Value()
	if err != nil {
		t.Fatal(err)
	}
	var out ArtifactList
	if err := out.Scan(value.([]byte)); err != nil {
		t.Fatal(err)
	}

	if len(out) != 2 {
		t.Fatalf("got %d artifacts", len(out))
	}
	if out[0].Stage != StageAnalyze || out[0].Meta["scenes"] != "3" {
		t.Fatalf("first artifact mangled: %+v", out[0])
	}
	if !out[1].Synthetic {
		t.Fatal("synthetic flag lost")
	}
}

func TestArtifactFor(t *testing.T) {
	g := &Generation{}
	g.AppendArtifact(Artifact{Stage: StageUpload, Kind: "upload", Meta: map[string]string{"key": "videos/abc.mp4"}})

	a, ok := g.ArtifactFor(StageUpload)
	if !ok || a.Meta["key"] != "videos/abc.mp4" {
		t.Fatalf("lookup failed: %+v ok=%v", a, ok)
	}
	if _, ok := g.ArtifactFor(StageEnhance); ok {
		t.Fatal("found artifact for stage that never ran")
	}
}

func TestViewJSONShape(t *testing.T) {
	g := &Generation{
		ID:           "gen-1",
		ProjectID:    "proj-1",
		Status:       StatusProcessing,
		Progress:     60,
		StageMessage: "Generating video clips",
	}

	data, err := json.Marshal(g.AsView())
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"generation_id", "project_ref", "status", "progress", "message"} {
		if _, ok := m[key]; !ok {
			t.Fatalf("projection missing %q: %s", key, data)
		}
	}
	if _, ok := m["result_uri"]; ok {
		t.Fatal("empty result_uri should be omitted")
	}
	if _, ok := m["error"]; ok {
		t.Fatal("empty error should be omitted")
	}
}
