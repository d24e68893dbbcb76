package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// ErrArtifactMissing marks a missing or empty local artifact. It is
// terminal: there is nothing to retry.
var ErrArtifactMissing = errors.New("local artifact missing or empty")

// Sentinels recognized by the retry classifier alongside the backend's
// own error codes. Fakes in tests return these directly.
var (
	ErrBucketMissing = errors.New("bucket does not exist")
	ErrAccessDenied  = errors.New("access denied")
	ErrTransient     = errors.New("transient transport failure")
)

// Uploader wraps final artifact uploads with bounded exponential backoff
// and a pre-flight existence check.
type Uploader struct {
	Store       ObjectStore
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Logger      *zap.Logger
}

func NewUploader(store ObjectStore, maxAttempts int, baseDelay, maxDelay time.Duration, logger *zap.Logger) *Uploader {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 8 * time.Second
	}
	return &Uploader{
		Store:       store,
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		Logger:      logger,
	}
}

// UploadWithRetry uploads a local artifact to the destination key and
// returns its URL. Transport-level failures are retried with doubling
// backoff up to MaxAttempts. Missing-bucket and authorization errors are
// not retried as such; the bucket is provisioned once and the upload
// retried a single time. Exhaustion surfaces a terminal error.
func (u *Uploader) UploadWithRetry(ctx context.Context, localPath, key string) (string, error) {
	info, err := os.Stat(localPath)
	if err != nil || info.Size() == 0 {
		return "", fmt.Errorf("%w: %s", ErrArtifactMissing, localPath)
	}

	// An object left behind by an earlier attempt of this generation is
	// the same artifact; reuse it instead of re-uploading.
	if exists, err := u.Store.Exists(ctx, key); err == nil && exists {
		u.Logger.Info("object already uploaded, reusing", zap.String("key", key))
		return u.Store.URL(ctx, key)
	}

	delay := u.BaseDelay
	provisioned := false
	var lastErr error

	for attempt := 1; attempt <= u.MaxAttempts; attempt++ {
		err := u.Store.PutFile(ctx, key, localPath)
		if err == nil {
			return u.Store.URL(ctx, key)
		}
		lastErr = err

		switch {
		case needsProvisioning(err):
			if provisioned {
				return "", fmt.Errorf("upload %s after provisioning: %w", key, err)
			}
			u.Logger.Warn("provisioning bucket before retry", zap.String("key", key), zap.Error(err))
			if perr := u.Store.EnsureBucket(ctx); perr != nil {
				return "", fmt.Errorf("provision bucket: %w", perr)
			}
			provisioned = true
			// The post-provision attempt runs outside the attempt budget
			// so it still happens when provisioning surfaced on the
			// final attempt.
			switch rerr := u.Store.PutFile(ctx, key, localPath); {
			case rerr == nil:
				return u.Store.URL(ctx, key)
			case needsProvisioning(rerr):
				return "", fmt.Errorf("upload %s after provisioning: %w", key, rerr)
			default:
				lastErr = rerr
			}

		case isTransport(err):
			if attempt == u.MaxAttempts {
				break
			}
			u.Logger.Warn("upload failed, backing off",
				zap.String("key", key),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > u.MaxDelay {
				delay = u.MaxDelay
			}

		default:
			return "", fmt.Errorf("upload %s: %w", key, err)
		}
	}
	return "", fmt.Errorf("upload %s exhausted %d attempts: %w", key, u.MaxAttempts, lastErr)
}

// needsProvisioning matches missing-bucket and authorization failures,
// which trigger the provision-then-retry-once path.
func needsProvisioning(err error) bool {
	if errors.Is(err, ErrBucketMissing) || errors.Is(err, ErrAccessDenied) {
		return true
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchBucket", "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return true
	}
	return false
}

// IsTransient reports whether an upload failure (including an
// exhaustion error wrapping one) was transport-level rather than a
// refusal. Callers use it to classify the failure truthfully.
func IsTransient(err error) bool {
	return isTransport(err)
}

// isTransport matches retryable transport-level failures: connection
// errors and 5xx-class backend responses.
func isTransport(err error) bool {
	if errors.Is(err, ErrTransient) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode >= 500 || resp.Code == "SlowDown" || resp.Code == "RequestTimeout"
}
