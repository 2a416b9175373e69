package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pathwise/pathwise-backend/internal/logger"
)

// ProgressEvent is published on the redis channel as modules move through
// generation; the platform's SSE gateway forwards them to clients.
type ProgressEvent struct {
	Event        string `json:"event"` // module.progress|module.completed|module.failed
	ModuleID     string `json:"module_id"`
	RoadmapID    string `json:"roadmap_id"`
	LessonNumber int    `json:"lesson_number,omitempty"`
	TotalLessons int    `json:"total_lessons,omitempty"`
	Error        string `json:"error,omitempty"`
	At           string `json:"at"`
}

type ProgressNotifier interface {
	Publish(ctx context.Context, event ProgressEvent)
	Close() error
}

type redisNotifier struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewProgressNotifier returns (nil, nil) when REDIS_ADDR is unset; the
// worker then runs without progress events.
func NewProgressNotifier(log *logger.Logger) (ProgressNotifier, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		log.Info("REDIS_ADDR not set, progress notifications disabled")
		return nil, nil
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "module.generation"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisNotifier{
		log:     log.With("service", "ProgressNotifier"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

// Publish is best-effort: a dropped event never fails a generation.
func (n *redisNotifier) Publish(ctx context.Context, event ProgressEvent) {
	if n == nil || n.rdb == nil {
		return
	}
	if event.At == "" {
		event.At = time.Now().UTC().Format(time.RFC3339)
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := n.rdb.Publish(ctx, n.channel, raw).Err(); err != nil {
		n.log.Warn("Failed to publish progress event", "module_id", event.ModuleID, "reason", err.Error())
	}
}

func (n *redisNotifier) Close() error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Close()
}
