package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/service"
)

// PollWorker runs the status poller on the scheduled audio:poll task
type PollWorker struct {
	poller *service.PollService
}

// NewPollWorker creates a new poll worker
func NewPollWorker(poller *service.PollService) *PollWorker {
	return &PollWorker{poller: poller}
}

// ProcessTask handles audio:poll tasks. The cycle's own per-record error
// isolation means a failed cycle is only reported when the scan itself
// could not run.
func (w *PollWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.AudioPollPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal poll payload: %w", err)
		}
	}

	summary, err := w.poller.Run(ctx, service.PollOptions{Force: payload.Force})
	if err != nil {
		return fmt.Errorf("poll cycle failed: %w", err)
	}
	for _, msg := range summary.Errors {
		log.Printf("Poll: %s", msg)
	}
	return nil
}
