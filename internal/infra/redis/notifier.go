package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/reconforge/api/pkg/domain/scanjob"
	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/logger"
)

const (
	// statusChannel carries job lifecycle events for push consumers.
	statusChannel = "reconforge:jobs:status"

	// cancelChannel carries stop requests to worker processes.
	cancelChannel = "reconforge:jobs:cancel"
)

// StatusEvent is one job lifecycle event on the status channel.
type StatusEvent struct {
	JobID     string `json:"job_id"`
	TargetID  int    `json:"target_id"`
	JobType   string `json:"job_type"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Timestamp int64  `json:"timestamp"`
}

// JobCanceler receives relayed stop requests. Implemented by the
// runner's cancel registry.
type JobCanceler interface {
	Cancel(id shared.ID) bool
}

// Notifier publishes job lifecycle events and relays cancellation
// between the API process and the worker processes.
type Notifier struct {
	client *Client
	logger *logger.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(client *Client, log *logger.Logger) *Notifier {
	return &Notifier{
		client: client,
		logger: log.With("component", "job_notifier"),
	}
}

// PublishJobStatus publishes a lifecycle event. Failures are logged
// and swallowed; push delivery is best effort and never affects the
// job itself.
func (n *Notifier) PublishJobStatus(ctx context.Context, job *scanjob.ScanJob) {
	event := StatusEvent{
		JobID:     job.ID.String(),
		TargetID:  job.TargetID,
		JobType:   string(job.JobType),
		Status:    string(job.Status),
		Progress:  job.ProgressPercentage,
		Timestamp: time.Now().Unix(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := n.client.Client().Publish(ctx, statusChannel, data).Err(); err != nil {
		n.logger.Warn("failed to publish job status", "job_id", event.JobID, "error", err)
	}
}

// BroadcastCancel publishes a stop request for a running job.
func (n *Notifier) BroadcastCancel(ctx context.Context, id shared.ID) error {
	if err := n.client.Client().Publish(ctx, cancelChannel, id.String()).Err(); err != nil {
		return fmt.Errorf("failed to publish cancel: %w", err)
	}
	n.logger.Info("cancel broadcast", "job_id", id.String())
	return nil
}

// RelayCancels subscribes to the cancel channel and forwards stop
// requests to the local canceler until ctx is done. Run in its own
// goroutine by each worker process.
func (n *Notifier) RelayCancels(ctx context.Context, canceler JobCanceler) {
	sub := n.client.Client().Subscribe(ctx, cancelChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			id, err := shared.IDFromString(msg.Payload)
			if err != nil {
				n.logger.Warn("ignoring malformed cancel message", "payload", msg.Payload)
				continue
			}
			if canceler.Cancel(id) {
				n.logger.Info("job cancelled via broadcast", "job_id", id.String())
			}
		}
	}
}

// SubscribeStatus returns a channel of lifecycle events until ctx is
// done. Used by the websocket hub.
func (n *Notifier) SubscribeStatus(ctx context.Context) <-chan StatusEvent {
	out := make(chan StatusEvent, 16)
	sub := n.client.Client().Subscribe(ctx, statusChannel)

	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event StatusEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case out <- event:
				default:
					// Slow consumer, drop the event.
				}
			}
		}
	}()
	return out
}
