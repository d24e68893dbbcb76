package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeStore scripts PutFile outcomes per attempt and records calls.
type fakeStore struct {
	putErrs    []error
	putCalls   int
	ensures    int
	existing   map[string]bool
	existsErr  error
	urlVisited []string
}

func (f *fakeStore) EnsureBucket(ctx context.Context) error {
	f.ensures++
	return nil
}

func (f *fakeStore) Exists(ctx context.Context, key string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[key], nil
}

func (f *fakeStore) PutFile(ctx context.Context, key, localPath string) error {
	f.putCalls++
	if f.putCalls <= len(f.putErrs) {
		return f.putErrs[f.putCalls-1]
	}
	return nil
}

func (f *fakeStore) URL(ctx context.Context, key string) (string, error) {
	f.urlVisited = append(f.urlVisited, key)
	return "https://store.test/" + key, nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, int64, string, error) {
	return nil, 0, "", errors.New("not implemented")
}

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "final.mp4")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestUploader(store ObjectStore) *Uploader {
	return NewUploader(store, 3, time.Millisecond, 4*time.Millisecond, zap.NewNop())
}

func TestUploadSucceedsAfterTransientFailures(t *testing.T) {
	store := &fakeStore{putErrs: []error{ErrTransient, ErrTransient}}
	u := newTestUploader(store)

	url, err := u.UploadWithRetry(context.Background(), writeArtifact(t, "video"), "videos/a.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://store.test/videos/a.mp4" {
		t.Fatalf("url = %q", url)
	}
	if store.putCalls != 3 {
		t.Fatalf("put called %d times, want 3", store.putCalls)
	}
}

func TestUploadExhaustsAttempts(t *testing.T) {
	store := &fakeStore{putErrs: []error{ErrTransient, ErrTransient, ErrTransient}}
	u := newTestUploader(store)

	_, err := u.UploadWithRetry(context.Background(), writeArtifact(t, "video"), "videos/a.mp4")
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("exhaustion should wrap the last error: %v", err)
	}
	if store.putCalls != 3 {
		t.Fatalf("put called %d times, want 3", store.putCalls)
	}
}

func TestUploadProvisionsBucketOnce(t *testing.T) {
	store := &fakeStore{putErrs: []error{ErrBucketMissing}}
	u := newTestUploader(store)

	url, err := u.UploadWithRetry(context.Background(), writeArtifact(t, "video"), "videos/a.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if url == "" {
		t.Fatal("no url after provisioning")
	}
	if store.ensures != 1 {
		t.Fatalf("bucket provisioned %d times, want 1", store.ensures)
	}
}

func TestUploadProvisioningFailsTerminal(t *testing.T) {
	store := &fakeStore{putErrs: []error{ErrAccessDenied, ErrAccessDenied}}
	u := newTestUploader(store)

	_, err := u.UploadWithRetry(context.Background(), writeArtifact(t, "video"), "videos/a.mp4")
	if err == nil {
		t.Fatal("second authorization failure must be terminal")
	}
	if store.ensures != 1 {
		t.Fatalf("bucket provisioned %d times, want 1", store.ensures)
	}
	if store.putCalls != 2 {
		t.Fatalf("put called %d times, want 2", store.putCalls)
	}
}

func TestUploadProvisionsOnFinalAttempt(t *testing.T) {
	// The missing-bucket error surfaces only on the last budgeted
	// attempt; the post-provision retry still happens.
	store := &fakeStore{putErrs: []error{ErrTransient, ErrTransient, ErrBucketMissing}}
	u := newTestUploader(store)

	url, err := u.UploadWithRetry(context.Background(), writeArtifact(t, "video"), "videos/a.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if url == "" {
		t.Fatal("no url after final-attempt provisioning")
	}
	if store.ensures != 1 {
		t.Fatalf("bucket provisioned %d times, want 1", store.ensures)
	}
	if store.putCalls != 4 {
		t.Fatalf("put called %d times, want 4", store.putCalls)
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(ErrTransient) {
		t.Fatal("sentinel not classified transient")
	}
	wrapped := fmt.Errorf("upload videos/a.mp4 exhausted 3 attempts: %w", ErrTransient)
	if !IsTransient(wrapped) {
		t.Fatal("exhaustion wrapping a transport error not classified transient")
	}
	if IsTransient(ErrAccessDenied) {
		t.Fatal("authorization failure misclassified as transient")
	}
	if IsTransient(errors.New("plain refusal")) {
		t.Fatal("plain error misclassified as transient")
	}
}

func TestUploadMissingArtifactIsTerminal(t *testing.T) {
	store := &fakeStore{}
	u := newTestUploader(store)

	_, err := u.UploadWithRetry(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), "videos/a.mp4")
	if !errors.Is(err, ErrArtifactMissing) {
		t.Fatalf("got %v", err)
	}
	if store.putCalls != 0 {
		t.Fatal("missing artifact must not reach the store")
	}
}

func TestUploadEmptyArtifactIsTerminal(t *testing.T) {
	store := &fakeStore{}
	u := newTestUploader(store)

	_, err := u.UploadWithRetry(context.Background(), writeArtifact(t, ""), "videos/a.mp4")
	if !errors.Is(err, ErrArtifactMissing) {
		t.Fatalf("got %v", err)
	}
}

func TestUploadReusesExistingObject(t *testing.T) {
	store := &fakeStore{existing: map[string]bool{"videos/a.mp4": true}}
	u := newTestUploader(store)

	url, err := u.UploadWithRetry(context.Background(), writeArtifact(t, "video"), "videos/a.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if url == "" {
		t.Fatal("no url for existing object")
	}
	if store.putCalls != 0 {
		t.Fatal("existing object must not be re-uploaded")
	}
}

func TestUploadRespectsCancellation(t *testing.T) {
	store := &fakeStore{putErrs: []error{ErrTransient, ErrTransient, ErrTransient}}
	u := NewUploader(store, 3, time.Minute, time.Minute, zap.NewNop())

	path := writeArtifact(t, "video")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := u.UploadWithRetry(ctx, path, "videos/a.mp4")
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("upload did not observe cancellation")
	}
}
