package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the stream key used when none is configured.
const DefaultStream = "notify:codes"

// StreamNotifier enqueues delivery requests on a Redis stream. A mail worker
// consumes the stream and sends the actual message; entries carry the
// plaintext code, so the stream is capped and must live on a private Redis.
type StreamNotifier struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

// NewStream returns a notifier writing to stream, trimmed approximately to
// maxLen entries (10000 when <= 0).
func NewStream(client redis.UniversalClient, stream string, maxLen int64) (*StreamNotifier, error) {
	if client == nil {
		return nil, errors.New("stream notifier requires redis client")
	}
	if stream == "" {
		stream = DefaultStream
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &StreamNotifier{client: client, stream: stream, maxLen: maxLen}, nil
}

// DeliverCode appends one entry and returns once Redis acknowledged it.
func (n *StreamNotifier) DeliverCode(ctx context.Context, address, code string, purpose Purpose) error {
	args := &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: n.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"address":    address,
			"purpose":    string(purpose),
			"subject":    subject(purpose),
			"code":       code,
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
	if err := n.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("enqueue code delivery: %w", err)
	}
	return nil
}
