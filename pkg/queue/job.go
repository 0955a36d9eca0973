package queue

import "context"

// Job defines a queue job handler.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type routed to this job.
	Type() string

	// Handle processes one message. The payload is the JSON the producer
	// enqueued; decode it with ParsePayload. Return an error wrapping
	// ErrDiscard to drop the message without retries.
	Handle(ctx context.Context, payload interface{}) error
}
