package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-freight/internal/lock"
)

// TypeSnapshot is the asynq task type that rebuilds a collection snapshot.
const TypeSnapshot = "reports:snapshot"

// QueueName is the asynq queue snapshot tasks are sent to.
const QueueName = "reports"

type snapshotPayload struct {
	Collection string `json:"collection"`
}

// NewSnapshotTask builds the task that refreshes the snapshot of collection.
func NewSnapshotTask(collection string) (*asynq.Task, error) {
	payload, err := json.Marshal(snapshotPayload{Collection: collection})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSnapshot, payload, asynq.Queue(QueueName), asynq.MaxRetry(3), asynq.Timeout(time.Minute)), nil
}

// TaskClient is the subset of *asynq.Client used to enqueue tasks.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer schedules a snapshot refresh whenever a record is written.
type Enqueuer struct {
	Client TaskClient
	// Debounce coalesces bursts of writes to one task per collection.
	Debounce time.Duration
	Log      zerolog.Logger
}

// RecordWritten enqueues a snapshot task for the written collection.
func (e Enqueuer) RecordWritten(ctx context.Context, collection, op, id string) {
	if e.Client == nil {
		return
	}
	if _, ok := DefinitionFor(collection); !ok {
		return
	}
	task, err := NewSnapshotTask(collection)
	if err != nil {
		e.Log.Error().Err(err).Str("collection", collection).Msg("build snapshot task")
		return
	}
	var opts []asynq.Option
	if e.Debounce > 0 {
		opts = append(opts, asynq.Unique(e.Debounce))
	}
	if _, err := e.Client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return
		}
		e.Log.Error().Err(err).Str("collection", collection).Str("op", op).Str("id", id).Msg("enqueue snapshot task")
	}
}

// SnapshotLocker serialises snapshot builds of one collection across workers.
type SnapshotLocker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Processor handles snapshot tasks in the worker.
type Processor struct {
	Service *Service
	// Lock is optional. A build already running elsewhere makes the task a no-op.
	Lock SnapshotLocker
	Log  zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (p Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload snapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode snapshot payload: %v: %w", err, asynq.SkipRetry)
	}
	if _, ok := DefinitionFor(payload.Collection); !ok {
		return fmt.Errorf("unknown collection %q: %w", payload.Collection, asynq.SkipRetry)
	}
	if p.Lock == nil {
		return p.build(ctx, payload.Collection)
	}
	err := p.Lock.TryWithLock(ctx, "snapshot:"+payload.Collection, time.Minute, func(ctx context.Context) error {
		return p.build(ctx, payload.Collection)
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		p.Log.Debug().Str("collection", payload.Collection).Msg("snapshot build already running")
		return nil
	}
	return err
}

func (p Processor) build(ctx context.Context, collection string) error {
	snap, err := p.Service.BuildSnapshot(ctx, collection)
	if err != nil {
		return err
	}
	p.Log.Info().
		Str("collection", snap.Collection).
		Int("count", snap.Summary.Count).
		Msg("report snapshot built")
	return nil
}

// InlineRefresher rebuilds snapshots in-process. It serves deployments where
// records live in process memory and no worker can read them.
type InlineRefresher struct {
	Service *Service
	Log     zerolog.Logger
}

// RecordWritten rebuilds the snapshot of the written collection.
func (r InlineRefresher) RecordWritten(ctx context.Context, collection, op, id string) {
	if r.Service == nil {
		return
	}
	if _, ok := DefinitionFor(collection); !ok {
		return
	}
	if _, err := r.Service.BuildSnapshot(ctx, collection); err != nil {
		r.Log.Error().Err(err).Str("collection", collection).Str("op", op).Str("id", id).Msg("refresh snapshot")
	}
}

// Registrar is the subset of *asynq.Scheduler used for periodic tasks.
type Registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// ScheduleSnapshots registers a periodic refresh of every summarised collection.
func ScheduleSnapshots(s Registrar, cronspec string) error {
	for _, collection := range Collections() {
		task, err := NewSnapshotTask(collection)
		if err != nil {
			return err
		}
		if _, err := s.Register(cronspec, task); err != nil {
			return fmt.Errorf("schedule %s snapshot: %w", collection, err)
		}
	}
	return nil
}
