package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/client"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/config"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/model"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/store"
)

// PollService reconciles in-flight songs against the external audio
// provider. It owns every transition out of audio_processing.
type PollService struct {
	store   store.Store
	music   client.MusicTaskClient
	storage client.StorageClient
	cfg     config.PipelineConfig
	events  EventBroadcaster
}

// PollOptions tunes one poll cycle. SongID restricts the cycle to a single
// record; Force bypasses the grace period and cooldown window.
type PollOptions struct {
	Force  bool
	SongID string
}

type pollOutcome int

const (
	outcomeSkipped pollOutcome = iota
	outcomeStillProcessing
	outcomeCompleted
	outcomeFailed
)

func NewPollService(st store.Store, music client.MusicTaskClient, storage client.StorageClient, cfg config.PipelineConfig, events EventBroadcaster) *PollService {
	return &PollService{
		store:   st,
		music:   music,
		storage: storage,
		cfg:     cfg,
		events:  events,
	}
}

// Run executes one poll cycle: scan in-flight songs, apply skip and timeout
// policy per record, query the provider for the rest, and transition each
// record. Individual failures never abort the cycle; they land in the
// summary's error list.
func (s *PollService) Run(ctx context.Context, opts PollOptions) (*model.PollSummary, error) {
	summary := &model.PollSummary{}

	var songs []*model.Song
	if opts.SongID != "" {
		song, err := s.store.GetSong(ctx, opts.SongID)
		if err != nil {
			return nil, err
		}
		if !song.InFlight() {
			return nil, fmt.Errorf("%w: song %s is not awaiting an audio task", ErrValidation, opts.SongID)
		}
		songs = []*model.Song{song}
	} else {
		var err error
		songs, err = s.store.ListSongs(ctx, store.SongFilter{
			Status: model.SongStatusAudioProcessing,
			Limit:  s.cfg.ListLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list in-flight songs: %w", err)
		}
	}

	if len(songs) == 0 {
		return summary, nil
	}

	batchSize := s.cfg.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	var mu sync.Mutex
	for start := 0; start < len(songs); start += batchSize {
		end := start + batchSize
		if end > len(songs) {
			end = len(songs)
		}

		var wg sync.WaitGroup
		for _, song := range songs[start:end] {
			wg.Add(1)
			go func(song *model.Song) {
				defer wg.Done()
				outcome, errMsg := s.checkSong(ctx, song, opts.Force)
				mu.Lock()
				defer mu.Unlock()
				switch outcome {
				case outcomeSkipped:
					summary.Skipped++
				case outcomeStillProcessing:
					summary.Checked++
					summary.StillProcessing++
				case outcomeCompleted:
					summary.Checked++
					summary.Completed++
				case outcomeFailed:
					summary.Checked++
					summary.Failed++
				}
				if errMsg != "" {
					summary.Errors = append(summary.Errors, fmt.Sprintf("song %s: %s", song.ID, errMsg))
				}
			}(song)
		}
		wg.Wait()

		// Inter-batch delay bounds the request rate against the provider
		if end < len(songs) && s.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(s.cfg.BatchDelay):
			}
		}
	}

	log.Printf("Poll cycle: checked=%d completed=%d failed=%d stillProcessing=%d skipped=%d",
		summary.Checked, summary.Completed, summary.Failed, summary.StillProcessing, summary.Skipped)
	s.notifySummary(summary)
	return summary, nil
}

// checkSong reconciles one in-flight song. The returned error message is
// informational; the record itself already carries any terminal state.
func (s *PollService) checkSong(ctx context.Context, song *model.Song, force bool) (pollOutcome, string) {
	now := time.Now()

	if song.TaskID == "" {
		// In-flight without a task handle should be impossible; repair by
		// failing the record rather than polling forever.
		s.failSong(ctx, song, "record was in-flight without a task id")
		return outcomeFailed, "missing task id"
	}

	// Absolute lifetime ceiling, enforced before any provider call
	if song.AudioStarted != nil && now.Sub(*song.AudioStarted) > s.cfg.AudioTimeout {
		s.failSong(ctx, song, fmt.Sprintf("audio generation timed out after %s", s.cfg.AudioTimeout))
		return outcomeFailed, ""
	}

	if !force {
		// Initial grace period: the provider never finishes this fast
		if song.AudioStarted != nil && now.Sub(*song.AudioStarted) < s.cfg.PollGrace {
			return outcomeSkipped, ""
		}
		// Cooldown window bounds per-record request rate
		if song.LastCheckedAt != nil && now.Sub(*song.LastCheckedAt) < s.cfg.PollCooldown {
			return outcomeSkipped, ""
		}
	}

	if s.music == nil || !s.music.IsConfigured() {
		// An in-flight record can outlive a config change that removed the
		// provider; park it for a later cycle.
		song.LastCheckedAt = &now
		song.CheckAttempts++
		if uerr := s.store.UpdateSong(ctx, song); uerr != nil {
			log.Printf("Song %s: failed to record poll attempt: %v", song.ID, uerr)
		}
		return outcomeStillProcessing, "audio provider not configured"
	}

	result, err := s.music.GetAudioTask(ctx, song.TaskID)
	if err != nil {
		// Transient query failure: leave the record in-flight for the next
		// cycle, but record the attempt.
		song.LastCheckedAt = &now
		song.CheckAttempts++
		if uerr := s.store.UpdateSong(ctx, song); uerr != nil {
			log.Printf("Song %s: failed to record poll attempt: %v", song.ID, uerr)
		}
		return outcomeStillProcessing, fmt.Sprintf("status query failed: %v", err)
	}

	switch result.State() {
	case client.TaskStateSucceeded:
		if result.AudioURL == "" {
			// A success signal without a result is a failure, not a retry
			s.failSong(ctx, song, "task completed without an audio URL")
			return outcomeFailed, ""
		}
		song.AudioURL = result.AudioURL
		song.Duration = result.Duration
		if s.storage != nil {
			key := fmt.Sprintf("audio/%s/%s.mp3", song.BandID, song.ID)
			url, err := s.storage.MirrorFromURL(ctx, key, result.AudioURL, "audio/mpeg")
			if err != nil {
				log.Printf("Song %s: audio mirror failed, keeping provider URL: %v", song.ID, err)
			} else {
				song.StorageURL = url
			}
		}
		song.TaskID = ""
		song.LastCheckedAt = &now
		song.Status = model.SongStatusAudioComplete
		if err := s.store.UpdateSong(ctx, song); err != nil {
			return outcomeStillProcessing, fmt.Sprintf("failed to save completion: %v", err)
		}
		s.notifyStatus(song)
		return outcomeCompleted, ""

	case client.TaskStateFailed:
		msg := result.ErrorMessage
		if msg == "" {
			msg = "audio generation failed"
		}
		s.failSong(ctx, song, msg)
		return outcomeFailed, ""

	default: // still processing
		song.LastCheckedAt = &now
		song.CheckAttempts++
		if err := s.store.UpdateSong(ctx, song); err != nil {
			return outcomeStillProcessing, fmt.Sprintf("failed to record poll attempt: %v", err)
		}
		return outcomeStillProcessing, ""
	}
}

// WaitForAudio polls a single song synchronously until it reaches a
// terminal state or maxWait elapses. On the deadline it degrades to
// returning the still-in-flight record rather than blocking further.
func (s *PollService) WaitForAudio(ctx context.Context, songID string, maxWait time.Duration) (*model.Song, error) {
	if maxWait <= 0 {
		maxWait = s.cfg.WaitCeiling
	}
	deadline := time.Now().Add(maxWait)

	for {
		song, err := s.store.GetSong(ctx, songID)
		if err != nil {
			return nil, err
		}
		if model.IsTerminal(model.RecordTypeSong, song.Status) {
			return song, nil
		}
		if !song.InFlight() {
			return nil, fmt.Errorf("%w: song %s is not awaiting an audio task", ErrValidation, songID)
		}
		if time.Now().After(deadline) {
			return song, nil
		}

		s.checkSong(ctx, song, true)

		select {
		case <-ctx.Done():
			return song, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *PollService) failSong(ctx context.Context, song *model.Song, msg string) {
	msg = TruncateError(msg, maxErrorLen)
	now := time.Now()
	song.Status = model.StatusFailed
	song.Error = &msg
	song.TaskID = ""
	song.LastCheckedAt = &now
	if err := s.store.UpdateSong(ctx, song); err != nil {
		log.Printf("Song %s: failed to record failure: %v", song.ID, err)
		return
	}
	log.Printf("Song %s failed: %s", song.ID, msg)
	s.notifyStatus(song)
}

func (s *PollService) notifyStatus(song *model.Song) {
	if s.events == nil {
		return
	}
	s.events.BroadcastEvent(&model.PipelineEvent{
		Type:       model.EventStatusChanged,
		BandID:     song.BandID,
		RecordType: model.RecordTypeSong,
		RecordID:   song.ID,
		Status:     song.Status,
		Stage:      model.StageAudio,
		Timestamp:  time.Now(),
	})
}

func (s *PollService) notifySummary(summary *model.PollSummary) {
	if s.events == nil {
		return
	}
	s.events.BroadcastEvent(&model.PipelineEvent{
		Type:      model.EventPollSummary,
		Detail:    fmt.Sprintf("completed=%d failed=%d stillProcessing=%d skipped=%d", summary.Completed, summary.Failed, summary.StillProcessing, summary.Skipped),
		Timestamp: time.Now(),
	})
}
