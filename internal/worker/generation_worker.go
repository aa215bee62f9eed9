package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/service"
)

// GenerationWorker processes band and song generation tasks
type GenerationWorker struct {
	bands *service.BandService
}

// NewGenerationWorker creates a new generation worker
func NewGenerationWorker(bands *service.BandService) *GenerationWorker {
	return &GenerationWorker{bands: bands}
}

// ProcessBandTask handles band:generate tasks
func (w *GenerationWorker) ProcessBandTask(ctx context.Context, t *asynq.Task) error {
	var payload service.BandGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal band payload: %w", err)
	}

	log.Printf("Starting band generation: %s", payload.BandID)
	if err := w.bands.GenerateBand(ctx, payload.BandID); err != nil {
		return fmt.Errorf("band %s: %w", payload.BandID, err)
	}
	log.Printf("Band generation finished: %s", payload.BandID)
	return nil
}

// ProcessSongTask handles song:process tasks
func (w *GenerationWorker) ProcessSongTask(ctx context.Context, t *asynq.Task) error {
	var payload service.SongProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal song payload: %w", err)
	}

	log.Printf("Processing song: %s", payload.SongID)
	if err := w.bands.ProcessSong(ctx, payload.SongID); err != nil {
		return fmt.Errorf("song %s: %w", payload.SongID, err)
	}
	return nil
}
