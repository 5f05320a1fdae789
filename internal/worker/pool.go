package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"boxtrack/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	QueueRemoteWrites = "jobs:remote-writes"

	jobTypeRemoteWrite = "remote_write"
	popTimeout         = 5 * time.Second
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// WriteOp names the remote mutation a RemoteWriteJob performs.
type WriteOp string

const (
	OpUpsert       WriteOp = "upsert"
	OpUpdateFields WriteOp = "update_fields"
	OpDelete       WriteOp = "delete"
)

// RemoteWriteJob is one outbox entry: a cache mutation that still has to
// reach the remote store. Product always carries the full record as cached
// at Version so the job can fall back to an upsert.
type RemoteWriteJob struct {
	ID         string              `json:"id"`
	Op         WriteOp             `json:"op"`
	Key        model.ProductKey    `json:"key"`
	Version    int64               `json:"version"`
	Product    *model.Product      `json:"product,omitempty"`
	Patch      *model.ProductPatch `json:"patch,omitempty"`
	At         time.Time           `json:"at"`
	EnqueuedAt time.Time           `json:"enqueuedAt"`
}

// Dispatcher enqueues async jobs. The worker pool dequeues them with a
// blocking pop.
type Dispatcher struct {
	lists ListStore
}

func NewDispatcher(lists ListStore) *Dispatcher {
	return &Dispatcher{lists: lists}
}

// EnqueueWrite pushes a remote write onto the outbox queue.
func (d *Dispatcher) EnqueueWrite(ctx context.Context, job RemoteWriteJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.EnqueuedAt = time.Now().UTC()
	return d.enqueue(ctx, QueueRemoteWrites, jobTypeRemoteWrite, job)
}

// Pending returns the number of queued remote writes.
func (d *Dispatcher) Pending(ctx context.Context) (int64, error) {
	return d.lists.Len(ctx, QueueRemoteWrites)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.lists.Push(ctx, queue, encoded)
}

// WorkerHandlers binds job types to their processors.
type WorkerHandlers struct {
	RemoteWrite *RemoteWriteWorker
}

// StartWorkerPool launches numWorkers goroutines consuming the queues.
// Each goroutine blocks on the list pop, so idle workers cost nothing.
func StartWorkerPool(ctx context.Context, lists ListStore, handlers *WorkerHandlers, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, lists, handlers, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, lists ListStore, handlers *WorkerHandlers, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
		}
		queue, raw, err := lists.Pop(ctx, popTimeout, QueueRemoteWrites)
		if err != nil {
			if !errors.Is(err, ErrEmpty) && ctx.Err() == nil {
				log.Warn().Err(err).Int("worker", id).Msg("queue pop failed")
				time.Sleep(time.Second)
			}
			continue
		}
		processJob(ctx, handlers, queue, raw)
	}
}

func processJob(ctx context.Context, handlers *WorkerHandlers, queue string, raw []byte) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}
	switch job.Type {
	case jobTypeRemoteWrite:
		if handlers != nil && handlers.RemoteWrite != nil {
			handlers.RemoteWrite.Process(ctx, job.Payload)
			return
		}
	}
	log.Warn().Str("type", job.Type).Str("queue", queue).Msg("no handler for job type")
}
