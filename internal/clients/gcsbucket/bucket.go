package gcsbucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/utils"
)

// TranscriptStore caches large video transcripts in an object bucket so the
// speech-to-text tier runs at most once per video.
type TranscriptStore interface {
	Get(ctx context.Context, videoID string) (string, bool, error)
	Put(ctx context.Context, videoID string, transcript string) error
}

type bucketStore struct {
	client *storage.Client
	bucket string
	log    *logger.Logger
}

// NewTranscriptStore returns (nil, nil) when no bucket is configured; the
// transcript chain then simply skips the cache.
func NewTranscriptStore(log *logger.Logger) (TranscriptStore, error) {
	bucket := utils.GetEnv("TRANSCRIPT_GCS_BUCKET_NAME", "", log)
	if bucket == "" {
		log.Info("Transcript bucket not configured, transcript caching disabled")
		return nil, nil
	}
	serviceLog := log.With("service", "TranscriptStore")

	ctx := context.Background()
	var opts []option.ClientOption
	if creds := utils.GetEnv("GOOGLE_APPLICATION_CREDENTIALS", "", nil); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	serviceLog.Info("Transcript bucket initialized", "bucket", bucket)
	return &bucketStore{client: client, bucket: bucket, log: serviceLog}, nil
}

func objectKey(videoID string) string {
	return "transcripts/" + strings.TrimSpace(videoID) + ".txt"
}

func (s *bucketStore) Get(ctx context.Context, videoID string) (string, bool, error) {
	if strings.TrimSpace(videoID) == "" {
		return "", false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	r, err := s.client.Bucket(s.bucket).Object(objectKey(videoID)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", false, err
	}
	return string(raw), true, nil
}

func (s *bucketStore) Put(ctx context.Context, videoID string, transcript string) error {
	if strings.TrimSpace(videoID) == "" || transcript == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	w := s.client.Bucket(s.bucket).Object(objectKey(videoID)).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	if _, err := w.Write([]byte(transcript)); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
