package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/client"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/config"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/model"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/store"
)

// ErrValidation marks a request rejected before any external call; the
// record is never mutated on this path.
var ErrValidation = errors.New("validation failed")

const maxErrorLen = 500

// EventBroadcaster pushes pipeline events to connected clients. A nil
// broadcaster is valid; events are then dropped.
type EventBroadcaster interface {
	BroadcastEvent(event *model.PipelineEvent)
}

// StageService is the stage executor: it performs exactly one generation
// stage for one record and persists the result with a single store write.
// External failures are recorded on the record, never propagated.
type StageService struct {
	store  store.Store
	llm    client.LanguageModel
	images client.ImageGenerator
	music  client.MusicTaskClient
	cfg    config.PipelineConfig
	events EventBroadcaster
}

func NewStageService(st store.Store, llm client.LanguageModel, images client.ImageGenerator, music client.MusicTaskClient, cfg config.PipelineConfig, events EventBroadcaster) *StageService {
	return &StageService{
		store:  st,
		llm:    llm,
		images: images,
		music:  music,
		cfg:    cfg,
		events: events,
	}
}

// RunStage resolves the stage that applies to the record's current status
// and executes it. Terminal records are skipped, never re-processed.
func (s *StageService) RunStage(ctx context.Context, rt model.RecordType, id string) (*model.StageResult, error) {
	switch rt {
	case model.RecordTypeBand:
		band, err := s.store.GetBand(ctx, id)
		if err != nil {
			return nil, err
		}
		switch band.Status {
		case model.BandStatusDraft, model.BandStatusGeneratingProfile:
			return s.GenerateBandProfile(ctx, id)
		case model.BandStatusProfileComplete:
			return s.GenerateBandArtwork(ctx, id)
		default:
			return skipResult(rt, id, "", band.Status, "no stage applies"), nil
		}
	case model.RecordTypeAlbum:
		album, err := s.store.GetAlbum(ctx, id)
		if err != nil {
			return nil, err
		}
		switch album.Status {
		case model.AlbumStatusPending, model.AlbumStatusGeneratingArt:
			return s.GenerateAlbumCover(ctx, id)
		default:
			return skipResult(rt, id, "", album.Status, "no stage applies"), nil
		}
	case model.RecordTypeSong:
		song, err := s.store.GetSong(ctx, id)
		if err != nil {
			return nil, err
		}
		switch song.Status {
		case model.SongStatusPending, model.SongStatusGeneratingLyric:
			return s.GenerateSongLyrics(ctx, id)
		case model.SongStatusLyricsComplete, model.SongStatusGeneratingAudio:
			return s.SubmitSongAudio(ctx, id)
		case model.SongStatusAudioProcessing:
			return skipResult(rt, id, model.StageAudio, song.Status, "waiting on audio task"), nil
		default:
			return skipResult(rt, id, "", song.Status, "no stage applies"), nil
		}
	}
	return nil, fmt.Errorf("%w: unknown record type %q", ErrValidation, rt)
}

// GenerateBandProfile runs the profile stage: one LLM call producing the
// band's structured profile.
func (s *StageService) GenerateBandProfile(ctx context.Context, bandID string) (*model.StageResult, error) {
	band, err := s.store.GetBand(ctx, bandID)
	if err != nil {
		return nil, err
	}
	if model.IsTerminal(model.RecordTypeBand, band.Status) {
		return skipResult(model.RecordTypeBand, bandID, model.StageProfile, band.Status, "record is terminal"), nil
	}
	if band.HasProfile() {
		return skipResult(model.RecordTypeBand, bandID, model.StageProfile, band.Status, "profile already generated"), nil
	}
	if band.Prompt == "" {
		return nil, fmt.Errorf("%w: band has no prompt", ErrValidation)
	}

	var profile *model.BandProfile
	if s.llm == nil || !s.llm.IsConfigured() {
		profile = mockProfile(band.Prompt)
	} else {
		raw, err := s.llm.ChatCompletion(ctx, profileSystemPrompt, buildProfilePrompt(band.Prompt))
		if err != nil {
			return s.failBand(ctx, band, model.StageProfile, fmt.Sprintf("profile generation failed: %v", err))
		}
		profile, err = parseProfile(raw)
		if err != nil {
			return s.failBand(ctx, band, model.StageProfile, fmt.Sprintf("profile response unparsable: %v", err))
		}
	}

	band.Profile = profile
	band.Status = model.BandStatusProfileComplete
	if err := s.store.UpdateBand(ctx, band); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	s.notifyStatus(band.ID, model.RecordTypeBand, band.ID, band.Status, model.StageProfile)
	return &model.StageResult{
		RecordType: model.RecordTypeBand,
		RecordID:   bandID,
		Stage:      model.StageProfile,
		Outcome:    model.StageOutcomeCompleted,
		Status:     band.Status,
	}, nil
}

// GenerateBandArtwork runs the optional artwork stage: logo and promo photo
// generated concurrently. Image failures degrade to empty URLs; this stage
// can never fail the band.
func (s *StageService) GenerateBandArtwork(ctx context.Context, bandID string) (*model.StageResult, error) {
	band, err := s.store.GetBand(ctx, bandID)
	if err != nil {
		return nil, err
	}
	if model.IsTerminal(model.RecordTypeBand, band.Status) {
		return skipResult(model.RecordTypeBand, bandID, model.StageArtwork, band.Status, "record is terminal"), nil
	}
	if band.LogoURL != "" && band.PhotoURL != "" {
		return skipResult(model.RecordTypeBand, bandID, model.StageArtwork, band.Status, "artwork already generated"), nil
	}
	if !band.HasProfile() {
		return nil, fmt.Errorf("%w: band profile is required before artwork", ErrValidation)
	}
	if s.images == nil || !s.images.IsConfigured() {
		return skipResult(model.RecordTypeBand, bandID, model.StageArtwork, band.Status, "image provider not configured"), nil
	}

	prompts := map[string]string{
		"logo":  buildLogoPrompt(band.Profile),
		"photo": buildPhotoPrompt(band.Profile),
	}
	urls := make(map[string]string, len(prompts))

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, prompt := range prompts {
		wg.Add(1)
		go func(name, prompt string) {
			defer wg.Done()
			url, err := s.images.GenerateImage(ctx, prompt, "square")
			if err != nil {
				log.Printf("Band %s: %s generation failed, continuing without: %v", bandID, name, err)
				return
			}
			mu.Lock()
			urls[name] = url
			mu.Unlock()
		}(name, prompt)
	}
	wg.Wait()

	if band.LogoURL == "" {
		band.LogoURL = urls["logo"]
	}
	if band.PhotoURL == "" {
		band.PhotoURL = urls["photo"]
	}
	if err := s.store.UpdateBand(ctx, band); err != nil {
		return nil, fmt.Errorf("failed to save artwork: %w", err)
	}

	return &model.StageResult{
		RecordType: model.RecordTypeBand,
		RecordID:   bandID,
		Stage:      model.StageArtwork,
		Outcome:    model.StageOutcomeCompleted,
		Status:     band.Status,
	}, nil
}

// GenerateAlbumCover runs the album cover stage. The cover is an optional
// branch: provider absence or failure completes the album with an empty
// cover URL instead of failing it.
func (s *StageService) GenerateAlbumCover(ctx context.Context, albumID string) (*model.StageResult, error) {
	album, err := s.store.GetAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if model.IsTerminal(model.RecordTypeAlbum, album.Status) {
		return skipResult(model.RecordTypeAlbum, albumID, model.StageCover, album.Status, "record is terminal"), nil
	}
	if album.CoverURL != "" {
		return skipResult(model.RecordTypeAlbum, albumID, model.StageCover, album.Status, "cover already generated"), nil
	}

	band, err := s.store.GetBand(ctx, album.BandID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve parent band: %w", err)
	}

	if s.images != nil && s.images.IsConfigured() && band.HasProfile() {
		url, err := s.images.GenerateImage(ctx, buildCoverPrompt(band.Profile, album), "square")
		if err != nil {
			log.Printf("Album %s: cover generation failed, continuing without: %v", albumID, err)
		} else {
			album.CoverURL = url
		}
	}

	album.Status = model.AlbumStatusCompleted
	if err := s.store.UpdateAlbum(ctx, album); err != nil {
		return nil, fmt.Errorf("failed to save cover: %w", err)
	}

	s.notifyStatus(album.BandID, model.RecordTypeAlbum, album.ID, album.Status, model.StageCover)
	return &model.StageResult{
		RecordType: model.RecordTypeAlbum,
		RecordID:   albumID,
		Stage:      model.StageCover,
		Outcome:    model.StageOutcomeCompleted,
		Status:     album.Status,
	}, nil
}

// GenerateSongLyrics runs the lyrics stage: one LLM call parameterized by
// the song and its parent band profile.
func (s *StageService) GenerateSongLyrics(ctx context.Context, songID string) (*model.StageResult, error) {
	song, err := s.store.GetSong(ctx, songID)
	if err != nil {
		return nil, err
	}
	if model.IsTerminal(model.RecordTypeSong, song.Status) {
		return skipResult(model.RecordTypeSong, songID, model.StageLyrics, song.Status, "record is terminal"), nil
	}
	if song.HasLyrics() {
		return skipResult(model.RecordTypeSong, songID, model.StageLyrics, song.Status, "lyrics already generated"), nil
	}

	band, err := s.store.GetBand(ctx, song.BandID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve parent band: %w", err)
	}
	if !band.HasProfile() {
		return nil, fmt.Errorf("%w: band profile is required before lyrics", ErrValidation)
	}

	var lyrics string
	if s.llm == nil || !s.llm.IsConfigured() {
		lyrics = mockLyrics(song.Title)
	} else {
		raw, err := s.llm.ChatCompletion(ctx, lyricsSystemPrompt, buildLyricsPrompt(song, band.Profile))
		if err != nil {
			return s.failSong(ctx, song, model.StageLyrics, fmt.Sprintf("lyrics generation failed: %v", err))
		}
		lyrics, err = parseLyrics(raw)
		if err != nil {
			return s.failSong(ctx, song, model.StageLyrics, fmt.Sprintf("lyrics response unparsable: %v", err))
		}
	}

	song.Lyrics = lyrics
	song.Status = model.SongStatusLyricsComplete
	if err := s.store.UpdateSong(ctx, song); err != nil {
		return nil, fmt.Errorf("failed to save lyrics: %w", err)
	}

	s.notifyStatus(song.BandID, model.RecordTypeSong, song.ID, song.Status, model.StageLyrics)
	return &model.StageResult{
		RecordType: model.RecordTypeSong,
		RecordID:   songID,
		Stage:      model.StageLyrics,
		Outcome:    model.StageOutcomeCompleted,
		Status:     song.Status,
	}, nil
}

// SubmitSongAudio runs the audio submission stage: hand the lyrics to the
// external task provider and record the returned task id. The record then
// belongs to the poller until the task resolves.
func (s *StageService) SubmitSongAudio(ctx context.Context, songID string) (*model.StageResult, error) {
	song, err := s.store.GetSong(ctx, songID)
	if err != nil {
		return nil, err
	}
	if model.IsTerminal(model.RecordTypeSong, song.Status) {
		return skipResult(model.RecordTypeSong, songID, model.StageAudio, song.Status, "record is terminal"), nil
	}
	if song.Status == model.SongStatusAudioProcessing {
		return skipResult(model.RecordTypeSong, songID, model.StageAudio, song.Status, "audio task already submitted"), nil
	}
	if song.AudioURL != "" {
		return skipResult(model.RecordTypeSong, songID, model.StageAudio, song.Status, "audio already generated"), nil
	}
	if !song.HasLyrics() {
		return nil, fmt.Errorf("%w: lyrics are required before audio submission", ErrValidation)
	}

	band, err := s.store.GetBand(ctx, song.BandID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve parent band: %w", err)
	}

	style := TruncateStyle(buildStylePrompt(band.Profile), s.cfg.StylePromptMax)

	if s.music == nil || !s.music.IsConfigured() {
		// No audio provider: complete the record with a mock asset so
		// development flows end to end.
		song.AudioURL = fmt.Sprintf("https://cdn.mitchly.app/mock/%s.mp3", song.ID)
		song.Duration = 187
		song.StylePrompt = style
		song.Status = model.SongStatusAudioComplete
		if err := s.store.UpdateSong(ctx, song); err != nil {
			return nil, fmt.Errorf("failed to save mock audio: %w", err)
		}
		s.notifyStatus(song.BandID, model.RecordTypeSong, song.ID, song.Status, model.StageAudio)
		return &model.StageResult{
			RecordType: model.RecordTypeSong,
			RecordID:   songID,
			Stage:      model.StageAudio,
			Outcome:    model.StageOutcomeCompleted,
			Status:     song.Status,
			Detail:     "audio provider not configured, mock asset used",
		}, nil
	}

	resp, err := s.music.SubmitAudio(ctx, &client.SubmitAudioRequest{
		Lyrics: song.Lyrics,
		Style:  style,
		Title:  song.Title,
	})
	if err != nil {
		return s.failSong(ctx, song, model.StageAudio, fmt.Sprintf("audio submission failed: %v", err))
	}

	now := time.Now()
	song.TaskID = resp.TaskID
	song.StylePrompt = style
	song.AudioStarted = &now
	song.LastCheckedAt = nil
	song.CheckAttempts = 0
	song.Status = model.SongStatusAudioProcessing
	if err := s.store.UpdateSong(ctx, song); err != nil {
		return nil, fmt.Errorf("failed to save audio task: %w", err)
	}

	s.notifyStatus(song.BandID, model.RecordTypeSong, song.ID, song.Status, model.StageAudio)
	return &model.StageResult{
		RecordType: model.RecordTypeSong,
		RecordID:   songID,
		Stage:      model.StageAudio,
		Outcome:    model.StageOutcomeSubmitted,
		Status:     song.Status,
		Detail:     "task " + resp.TaskID,
	}, nil
}

// failBand records a stage failure on the band. The single store write is
// the failure transition itself.
func (s *StageService) failBand(ctx context.Context, band *model.Band, stage, msg string) (*model.StageResult, error) {
	msg = TruncateError(msg, maxErrorLen)
	band.Status = model.StatusFailed
	band.Error = &msg
	if err := s.store.UpdateBand(ctx, band); err != nil {
		return nil, fmt.Errorf("failed to record failure: %w", err)
	}
	log.Printf("Band %s failed at %s stage: %s", band.ID, stage, msg)
	s.notifyStatus(band.ID, model.RecordTypeBand, band.ID, band.Status, stage)
	return &model.StageResult{
		RecordType: model.RecordTypeBand,
		RecordID:   band.ID,
		Stage:      stage,
		Outcome:    model.StageOutcomeFailed,
		Status:     band.Status,
		Detail:     msg,
	}, nil
}

func (s *StageService) failSong(ctx context.Context, song *model.Song, stage, msg string) (*model.StageResult, error) {
	msg = TruncateError(msg, maxErrorLen)
	song.Status = model.StatusFailed
	song.Error = &msg
	song.TaskID = ""
	if err := s.store.UpdateSong(ctx, song); err != nil {
		return nil, fmt.Errorf("failed to record failure: %w", err)
	}
	log.Printf("Song %s failed at %s stage: %s", song.ID, stage, msg)
	s.notifyStatus(song.BandID, model.RecordTypeSong, song.ID, song.Status, stage)
	return &model.StageResult{
		RecordType: model.RecordTypeSong,
		RecordID:   song.ID,
		Stage:      stage,
		Outcome:    model.StageOutcomeFailed,
		Status:     song.Status,
		Detail:     msg,
	}, nil
}

func (s *StageService) notifyStatus(bandID string, rt model.RecordType, recordID string, status model.Status, stage string) {
	if s.events == nil {
		return
	}
	s.events.BroadcastEvent(&model.PipelineEvent{
		Type:       model.EventStatusChanged,
		BandID:     bandID,
		RecordType: rt,
		RecordID:   recordID,
		Status:     status,
		Stage:      stage,
		Timestamp:  time.Now(),
	})
}

func skipResult(rt model.RecordType, id, stage string, status model.Status, detail string) *model.StageResult {
	return &model.StageResult{
		RecordType: rt,
		RecordID:   id,
		Stage:      stage,
		Outcome:    model.StageOutcomeSkipped,
		Status:     status,
		Detail:     detail,
	}
}

// TruncateError bounds a failure message before it is persisted
func TruncateError(msg string, max int) string {
	if len(msg) <= max {
		return msg
	}
	return msg[:max-3] + "..."
}

// TruncateStyle caps the style prompt at the provider's character budget.
// Over-budget prompts are truncated with an ellipsis marker, never rejected.
func TruncateStyle(style string, max int) string {
	if max <= 0 || len(style) <= max {
		return style
	}
	if max <= 3 {
		return style[:max]
	}
	return style[:max-3] + "..."
}

func parseProfile(raw string) (*model.BandProfile, error) {
	var profile model.BandProfile
	if err := json.Unmarshal([]byte(client.ExtractJSON(raw)), &profile); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	if profile.BandName == "" || profile.Genre == "" {
		return nil, fmt.Errorf("profile is missing required fields")
	}
	if len(profile.Tracks) == 0 {
		return nil, fmt.Errorf("profile has no planned tracks")
	}
	return &profile, nil
}

func parseLyrics(raw string) (string, error) {
	var result struct {
		Lyrics string `json:"lyrics"`
	}
	if err := json.Unmarshal([]byte(client.ExtractJSON(raw)), &result); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	if strings.TrimSpace(result.Lyrics) == "" {
		return "", fmt.Errorf("no lyrics in response")
	}
	return result.Lyrics, nil
}
