package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/model"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/store"
)

// BandService is the pipeline orchestrator: it sequences stage executor
// invocations for a band's full lifecycle and fans out to child records.
type BandService struct {
	store  store.Store
	stages *StageService
	queue  TaskEnqueuer
}

func NewBandService(st store.Store, stages *StageService, queue TaskEnqueuer) *BandService {
	return &BandService{
		store:  st,
		stages: stages,
		queue:  queue,
	}
}

// CreateBand registers a new draft band and queues its generation.
func (s *BandService) CreateBand(ctx context.Context, prompt string) (*model.Band, error) {
	now := time.Now()
	band := &model.Band{
		ID:        uuid.New().String(),
		Status:    model.BandStatusDraft,
		Prompt:    prompt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateBand(ctx, band); err != nil {
		return nil, fmt.Errorf("failed to create band: %w", err)
	}

	task, err := NewBandGenerateTask(band.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	_, err = s.queue.Enqueue(task,
		asynq.Queue(QueueGeneration),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue generation: %w", err)
	}

	return band, nil
}

// GenerateBand drives a band through profile generation, child fan-out and
// the optional artwork branches. It is idempotent: a re-invocation resumes
// from whatever the band's current status and payload indicate.
func (s *BandService) GenerateBand(ctx context.Context, bandID string) error {
	band, err := s.store.GetBand(ctx, bandID)
	if err != nil {
		return err
	}
	if model.IsTerminal(model.RecordTypeBand, band.Status) {
		return nil
	}

	// Required branch: the profile. A failure here is terminal for the
	// band and no children are created.
	if !band.HasProfile() {
		if err := s.advanceBand(ctx, band, model.BandStatusGeneratingProfile); err != nil {
			return err
		}
		result, err := s.stages.RunStage(ctx, model.RecordTypeBand, bandID)
		if err != nil {
			return err
		}
		if result.Outcome == model.StageOutcomeFailed {
			// Failure is persisted on the record; do not signal the queue
			// to retry a terminally failed band.
			return nil
		}
		band, err = s.store.GetBand(ctx, bandID)
		if err != nil {
			return err
		}
	}

	album, songs, err := s.fanOut(ctx, band)
	if err != nil {
		return err
	}

	// Optional branches run concurrently; the band waits for all of them
	// but completes regardless of their outcome.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := s.stages.GenerateBandArtwork(ctx, bandID); err != nil {
			log.Printf("Band %s: artwork branch error: %v", bandID, err)
		}
	}()
	go func() {
		defer wg.Done()
		if album == nil {
			return
		}
		if _, err := s.stages.GenerateAlbumCover(ctx, album.ID); err != nil {
			log.Printf("Band %s: cover branch error: %v", bandID, err)
		}
	}()
	wg.Wait()

	// Hand each child to the song pipeline; one bad enqueue must not block
	// its siblings.
	for _, song := range songs {
		task, err := NewSongProcessTask(song.ID)
		if err != nil {
			log.Printf("Song %s: failed to create task: %v", song.ID, err)
			continue
		}
		if _, err := s.queue.Enqueue(task,
			asynq.Queue(QueueGeneration),
			asynq.MaxRetry(3),
			asynq.Retention(24*time.Hour),
		); err != nil {
			log.Printf("Song %s: failed to enqueue: %v", song.ID, err)
		}
	}

	band, err = s.store.GetBand(ctx, bandID)
	if err != nil {
		return err
	}
	if err := s.advanceBand(ctx, band, model.BandStatusCompleted); err != nil {
		return err
	}
	return nil
}

// fanOut creates the album and one pending song per planned track. Creation
// is idempotent and per-child isolated: existing children are kept, and a
// failed creation is logged without rolling back its siblings.
func (s *BandService) fanOut(ctx context.Context, band *model.Band) (*model.Album, []*model.Song, error) {
	if !band.HasProfile() {
		return nil, nil, fmt.Errorf("%w: band has no profile to fan out from", ErrValidation)
	}
	profile := band.Profile

	albums, err := s.store.ListAlbumsByBand(ctx, band.ID)
	if err != nil {
		return nil, nil, err
	}
	var album *model.Album
	if len(albums) > 0 {
		album = albums[0]
	} else {
		now := time.Now()
		album = &model.Album{
			ID:         uuid.New().String(),
			BandID:     band.ID,
			Status:     model.AlbumStatusPending,
			Title:      profile.AlbumTitle,
			Concept:    profile.AlbumConcept,
			TrackCount: len(profile.Tracks),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.CreateAlbum(ctx, album); err != nil {
			log.Printf("Band %s: failed to create album: %v", band.ID, err)
			album = nil
		}
	}

	existing, err := s.store.ListSongsByBand(ctx, band.ID)
	if err != nil {
		return album, nil, err
	}
	haveTrack := make(map[int]bool, len(existing))
	for _, song := range existing {
		haveTrack[song.TrackNumber] = true
	}

	songs := append([]*model.Song(nil), existing...)
	for i, track := range profile.Tracks {
		trackNumber := i + 1
		if haveTrack[trackNumber] {
			continue
		}
		now := time.Now()
		song := &model.Song{
			ID:          uuid.New().String(),
			BandID:      band.ID,
			Status:      model.SongStatusPending,
			TrackNumber: trackNumber,
			Title:       track.Title,
			Theme:       track.Theme,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if album != nil {
			song.AlbumID = album.ID
		}
		if err := s.store.CreateSong(ctx, song); err != nil {
			log.Printf("Band %s: failed to create song %d (%s): %v", band.ID, trackNumber, track.Title, err)
			continue
		}
		songs = append(songs, song)
	}

	return album, songs, nil
}

// ProcessSong drives one song from its current status through lyrics and
// audio submission, letting the stage dispatch resolve which stage applies.
// Audio completion belongs to the poller.
func (s *BandService) ProcessSong(ctx context.Context, songID string) error {
	song, err := s.store.GetSong(ctx, songID)
	if err != nil {
		return err
	}
	if model.IsTerminal(model.RecordTypeSong, song.Status) || song.InFlight() {
		return nil
	}

	if !song.HasLyrics() {
		if err := s.advanceSong(ctx, song, model.SongStatusGeneratingLyric); err != nil {
			return err
		}
		result, err := s.stages.RunStage(ctx, model.RecordTypeSong, songID)
		if err != nil {
			return err
		}
		if result.Outcome == model.StageOutcomeFailed {
			return nil
		}
		song, err = s.store.GetSong(ctx, songID)
		if err != nil {
			return err
		}
	}

	if song.Status == model.SongStatusLyricsComplete {
		if err := s.advanceSong(ctx, song, model.SongStatusGeneratingAudio); err != nil {
			return err
		}
		if _, err := s.stages.RunStage(ctx, model.RecordTypeSong, songID); err != nil {
			return err
		}
	}

	return nil
}

// ResumeBand re-enters the pipeline for a non-terminal band by queueing its
// generation again; the state machine resumes from the current status.
func (s *BandService) ResumeBand(ctx context.Context, bandID string) error {
	band, err := s.store.GetBand(ctx, bandID)
	if err != nil {
		return err
	}
	if model.IsTerminal(model.RecordTypeBand, band.Status) {
		return fmt.Errorf("%w: band %s is %s and cannot be resumed", ErrValidation, bandID, band.Status)
	}

	task, err := NewBandGenerateTask(bandID)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	if _, err := s.queue.Enqueue(task, asynq.Queue(QueueGeneration), asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("failed to enqueue generation: %w", err)
	}
	return nil
}

// RetrySong is the explicit operator path out of the absorbing failed
// state: the song is reset to its eligible stage and re-queued. Failed
// records are never retried automatically.
func (s *BandService) RetrySong(ctx context.Context, songID string) (*model.Song, error) {
	song, err := s.store.GetSong(ctx, songID)
	if err != nil {
		return nil, err
	}
	if song.Status != model.StatusFailed {
		return nil, fmt.Errorf("%w: song %s is %s, only failed songs can be retried", ErrValidation, songID, song.Status)
	}

	song.Error = nil
	song.TaskID = ""
	song.AudioStarted = nil
	song.LastCheckedAt = nil
	song.CheckAttempts = 0
	if song.HasLyrics() {
		song.Status = model.SongStatusLyricsComplete
	} else {
		song.Status = model.SongStatusPending
	}
	if err := s.store.UpdateSong(ctx, song); err != nil {
		return nil, fmt.Errorf("failed to reset song: %w", err)
	}

	task, err := NewSongProcessTask(songID)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	if _, err := s.queue.Enqueue(task, asynq.Queue(QueueGeneration), asynq.MaxRetry(3)); err != nil {
		return nil, fmt.Errorf("failed to enqueue song: %w", err)
	}

	return song, nil
}

// GetSong loads one song.
func (s *BandService) GetSong(ctx context.Context, songID string) (*model.Song, error) {
	return s.store.GetSong(ctx, songID)
}

// ListBandSongs lists a band's songs in track order.
func (s *BandService) ListBandSongs(ctx context.Context, bandID string) ([]*model.Song, error) {
	if _, err := s.store.GetBand(ctx, bandID); err != nil {
		return nil, err
	}
	return s.store.ListSongsByBand(ctx, bandID)
}

// QueueSong re-queues processing for a non-terminal, non-in-flight song.
func (s *BandService) QueueSong(ctx context.Context, songID string) (*model.Song, error) {
	song, err := s.store.GetSong(ctx, songID)
	if err != nil {
		return nil, err
	}
	if model.IsTerminal(model.RecordTypeSong, song.Status) {
		return nil, fmt.Errorf("%w: song %s is %s and cannot be processed", ErrValidation, songID, song.Status)
	}
	if song.InFlight() {
		return nil, fmt.Errorf("%w: song %s is awaiting an audio task", ErrValidation, songID)
	}

	task, err := NewSongProcessTask(songID)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	if _, err := s.queue.Enqueue(task, asynq.Queue(QueueGeneration), asynq.MaxRetry(3)); err != nil {
		return nil, fmt.Errorf("failed to enqueue song: %w", err)
	}
	return song, nil
}

// GetBandDetail loads a band with its albums and songs.
func (s *BandService) GetBandDetail(ctx context.Context, bandID string) (*model.BandDetailResponse, error) {
	band, err := s.store.GetBand(ctx, bandID)
	if err != nil {
		return nil, err
	}
	albums, err := s.store.ListAlbumsByBand(ctx, bandID)
	if err != nil {
		return nil, err
	}
	songs, err := s.store.ListSongsByBand(ctx, bandID)
	if err != nil {
		return nil, err
	}
	return &model.BandDetailResponse{Band: band, Albums: albums, Songs: songs}, nil
}

// advanceBand moves a band forward along its stage order; out-of-order
// writes are ignored so queue retries cannot regress a record.
func (s *BandService) advanceBand(ctx context.Context, band *model.Band, to model.Status) error {
	if band.Status == to || !model.CanTransition(model.RecordTypeBand, band.Status, to) {
		return nil
	}
	band.Status = to
	return s.store.UpdateBand(ctx, band)
}

func (s *BandService) advanceSong(ctx context.Context, song *model.Song, to model.Status) error {
	if song.Status == to || !model.CanTransition(model.RecordTypeSong, song.Status, to) {
		return nil
	}
	song.Status = to
	return s.store.UpdateSong(ctx, song)
}
