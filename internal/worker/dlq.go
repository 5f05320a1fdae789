package worker

// Dead letter queue. Remote writes that exhaust their attempts land in
// dlq:{original_queue} until an operator redrives them.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// DLQEntry wraps a failed job with metadata for debugging.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	StoreID       string          `json:"store_id"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // ISO 8601
	Attempts      int             `json:"attempts"`
}

// SendToDLQ pushes a failed job to the dead letter queue.
func SendToDLQ(ctx context.Context, lists ListStore, queue, jobType, storeID string, payload json.RawMessage, reason string, attempts int) {
	entry := DLQEntry{
		OriginalQueue: queue,
		JobType:       jobType,
		StoreID:       storeID,
		Payload:       payload,
		Reason:        reason,
		FailedAt:      time.Now().UTC().Format(time.RFC3339),
		Attempts:      attempts,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to marshal entry")
		return
	}

	dlqKey := DLQPrefix + queue
	if err := lists.Push(ctx, dlqKey, data); err != nil {
		log.Error().Err(err).Str("dlq_key", dlqKey).Msg("dlq: failed to push to DLQ")
		return
	}

	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Str("store", storeID).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("dlq: job moved to dead letter queue")
}

// DLQLength returns the number of entries in a DLQ for monitoring.
func DLQLength(ctx context.Context, lists ListStore, queue string) (int64, error) {
	return lists.Len(ctx, DLQPrefix+queue)
}

// RedriveWrites moves the dead-lettered remote writes of storeID back onto
// the outbox queue and returns them. Entries of other stores stay put.
//
// Each entry is removed on its own before it is re-enqueued, so a failure
// part way loses nothing and concurrent redrives never take each other's
// entries. An entry that cannot be re-enqueued goes back to the DLQ.
func (d *Dispatcher) RedriveWrites(ctx context.Context, storeID string) ([]RemoteWriteJob, error) {
	dlqKey := DLQPrefix + QueueRemoteWrites
	items, err := d.lists.Range(ctx, dlqKey)
	if err != nil {
		return nil, err
	}

	var redriven []RemoteWriteJob
	for _, raw := range items {
		var entry DLQEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			log.Error().Err(err).Msg("dlq: dropping malformed entry")
			if _, err := d.lists.Remove(ctx, dlqKey, raw); err != nil {
				return redriven, err
			}
			continue
		}
		var job RemoteWriteJob
		if entry.StoreID != storeID || json.Unmarshal(entry.Payload, &job) != nil {
			continue
		}
		removed, err := d.lists.Remove(ctx, dlqKey, raw)
		if err != nil {
			return redriven, err
		}
		if !removed {
			// Taken by a concurrent redrive.
			continue
		}
		job.ID = ""
		if err := d.EnqueueWrite(ctx, job); err != nil {
			if perr := d.lists.Push(ctx, dlqKey, raw); perr != nil {
				log.Error().Err(perr).Str("store", storeID).Str("key", job.Key.String()).
					Msg("dlq: could not restore entry after failed redrive")
			}
			return redriven, err
		}
		redriven = append(redriven, job)
	}
	return redriven, nil
}

// DeadLetters returns the number of dead-lettered remote writes.
func (d *Dispatcher) DeadLetters(ctx context.Context) (int64, error) {
	return DLQLength(ctx, d.lists, QueueRemoteWrites)
}
