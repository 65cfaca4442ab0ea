package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hyperjump/idscan/internal/models"
)

// RedisConfig holds Redis connection and key settings.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Prefix    string
	ResultTTL time.Duration
	// PollTimeout bounds each blocking pop so Next notices cancellation.
	PollTimeout time.Duration
}

// RedisBroker keeps tasks in a Redis list and run states in expiring keys,
// so API and worker processes can run on different hosts.
type RedisBroker struct {
	client *redis.Client
	cfg    RedisConfig
	clock  TimeProvider
	logger *zap.Logger
}

// NewRedisBroker connects to Redis and verifies the connection.
func NewRedisBroker(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisBroker, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "idscan:"
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultResultTTL
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisBroker{client: client, cfg: cfg, clock: realTimeProvider{}, logger: logger}, nil
}

func (b *RedisBroker) queueKey() string        { return b.cfg.Prefix + "tasks" }
func (b *RedisBroker) runKey(id string) string { return b.cfg.Prefix + "run:" + id }

// Submit records a PENDING run and pushes the task onto the queue. When the
// push fails the run record is removed again.
func (b *RedisBroker) Submit(ctx context.Context, docType string, files []models.SubmittedFile) (string, error) {
	task, run := newTask(docType, files, b.clock.Now())
	payload, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("failed to encode task: %w", err)
	}
	if err := b.putRun(ctx, run); err != nil {
		return "", err
	}
	if err := b.client.RPush(ctx, b.queueKey(), payload).Err(); err != nil {
		// The run was never queued, so its state must not be observable.
		if delErr := b.client.Del(context.WithoutCancel(ctx), b.runKey(run.ID)).Err(); delErr != nil {
			b.logger.Warn("failed to remove unqueued run", zap.String("run_id", run.ID), zap.Error(delErr))
		}
		return "", fmt.Errorf("redis rpush: %w", err)
	}
	return run.ID, nil
}

// Status reads the run state.
func (b *RedisBroker) Status(ctx context.Context, runID string) (*models.Run, error) {
	val, err := b.client.Get(ctx, b.runKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var run models.Run
	if err := json.Unmarshal(val, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return &run, nil
}

// Next pops the oldest task, polling until one arrives or ctx is done.
func (b *RedisBroker) Next(ctx context.Context) (*Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := b.client.BLPop(ctx, b.cfg.PollTimeout, b.queueKey()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, redis.ErrClosed) {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("redis blpop: %w", err)
		}
		var task Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			b.logger.Error("dropping undecodable task", zap.Error(err))
			continue
		}
		return &task, nil
	}
}

// Update stores the run state and refreshes its expiry.
func (b *RedisBroker) Update(ctx context.Context, run *models.Run) error {
	cp := *run
	cp.UpdatedAt = b.clock.Now()
	return b.putRun(ctx, &cp)
}

func (b *RedisBroker) putRun(ctx context.Context, run *models.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	if err := b.client.Set(ctx, b.runKey(run.ID), data, b.cfg.ResultTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}
