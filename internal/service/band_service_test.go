package service

import (
	"context"
	"errors"
	"testing"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/model"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/store"
)

func newTestBandService(t *testing.T, llm *fakeLLM, images *fakeImages, music *fakeMusic) (*BandService, *store.MemoryStore, *fakeQueue) {
	t.Helper()
	st := store.NewMemoryStore()
	stages := NewStageService(st, nilIfLLM(llm), nilIfImages(images), nilIfMusic(music), testPipelineConfig(), nil)
	queue := &fakeQueue{}
	return NewBandService(st, stages, queue), st, queue
}

func TestCreateBandEnqueuesGeneration(t *testing.T) {
	svc, st, queue := newTestBandService(t, nil, nil, nil)

	band, err := svc.CreateBand(context.Background(), "a lo-fi trio from Osaka")
	if err != nil {
		t.Fatal(err)
	}
	if band.Status != model.BandStatusDraft {
		t.Errorf("new band should be draft, got %s", band.Status)
	}

	stored, err := st.GetBand(context.Background(), band.ID)
	if err != nil {
		t.Fatalf("band not persisted: %v", err)
	}
	if stored.Prompt != "a lo-fi trio from Osaka" {
		t.Errorf("prompt not persisted: %q", stored.Prompt)
	}
	if queue.typeCount(TaskTypeBandGenerate) != 1 {
		t.Error("expected one band:generate task")
	}
}

func TestGenerateBandFansOutToSongs(t *testing.T) {
	svc, st, queue := newTestBandService(t, nil, nil, nil)

	band, err := svc.CreateBand(context.Background(), "a synthwave duo")
	if err != nil {
		t.Fatal(err)
	}

	// No LLM configured: the mock profile drives the fan-out
	if err := svc.GenerateBand(context.Background(), band.ID); err != nil {
		t.Fatal(err)
	}

	got, _ := st.GetBand(context.Background(), band.ID)
	if got.Status != model.BandStatusCompleted {
		t.Fatalf("expected completed band, got %s", got.Status)
	}
	if !got.HasProfile() {
		t.Fatal("profile missing after generation")
	}

	albums, _ := st.ListAlbumsByBand(context.Background(), band.ID)
	if len(albums) != 1 {
		t.Fatalf("expected 1 album, got %d", len(albums))
	}
	if albums[0].Status != model.AlbumStatusCompleted {
		t.Errorf("album should be completed (no image provider), got %s", albums[0].Status)
	}

	songs, _ := st.ListSongsByBand(context.Background(), band.ID)
	if len(songs) != len(got.Profile.Tracks) {
		t.Fatalf("expected %d songs, got %d", len(got.Profile.Tracks), len(songs))
	}
	for _, song := range songs {
		if song.Status != model.SongStatusPending {
			t.Errorf("song %s should start pending, got %s", song.ID, song.Status)
		}
	}
	if queue.typeCount(TaskTypeSongProcess) != len(songs) {
		t.Errorf("expected %d song:process tasks, got %d", len(songs), queue.typeCount(TaskTypeSongProcess))
	}
}

func TestGenerateBandIsIdempotent(t *testing.T) {
	svc, st, _ := newTestBandService(t, nil, nil, nil)

	band, _ := svc.CreateBand(context.Background(), "a synthwave duo")
	if err := svc.GenerateBand(context.Background(), band.ID); err != nil {
		t.Fatal(err)
	}
	songsBefore, _ := st.ListSongsByBand(context.Background(), band.ID)

	// A queue redelivery must not duplicate children
	if err := svc.GenerateBand(context.Background(), band.ID); err != nil {
		t.Fatal(err)
	}
	songsAfter, _ := st.ListSongsByBand(context.Background(), band.ID)
	if len(songsAfter) != len(songsBefore) {
		t.Errorf("fan-out duplicated songs: %d -> %d", len(songsBefore), len(songsAfter))
	}
	albums, _ := st.ListAlbumsByBand(context.Background(), band.ID)
	if len(albums) != 1 {
		t.Errorf("fan-out duplicated albums: %d", len(albums))
	}
}

func TestGenerateBandProfileFailureCreatesNoChildren(t *testing.T) {
	llm := &fakeLLM{response: "not json at all"}
	svc, st, queue := newTestBandService(t, llm, nil, nil)

	band, _ := svc.CreateBand(context.Background(), "a doomed band")
	if err := svc.GenerateBand(context.Background(), band.ID); err != nil {
		t.Fatalf("profile failure must not surface as a worker error: %v", err)
	}

	got, _ := st.GetBand(context.Background(), band.ID)
	if got.Status != model.StatusFailed {
		t.Fatalf("expected failed band, got %s", got.Status)
	}

	songs, _ := st.ListSongsByBand(context.Background(), band.ID)
	if len(songs) != 0 {
		t.Errorf("failed profile must not fan out, got %d songs", len(songs))
	}
	albums, _ := st.ListAlbumsByBand(context.Background(), band.ID)
	if len(albums) != 0 {
		t.Errorf("failed profile must not create an album, got %d", len(albums))
	}
	if queue.typeCount(TaskTypeSongProcess) != 0 {
		t.Error("no song tasks should be enqueued after a profile failure")
	}
}

func TestGenerateBandSkipsTerminalRecords(t *testing.T) {
	svc, st, _ := newTestBandService(t, nil, nil, nil)

	errMsg := "already failed"
	seedBand(t, st, &model.Band{ID: "band-1", Status: model.StatusFailed, Prompt: "p", Error: &errMsg})

	if err := svc.GenerateBand(context.Background(), "band-1"); err != nil {
		t.Fatal(err)
	}
	band, _ := st.GetBand(context.Background(), "band-1")
	if band.Status != model.StatusFailed {
		t.Errorf("terminal band must stay failed, got %s", band.Status)
	}
}

func TestProcessSongRunsLyricsAndAudio(t *testing.T) {
	music := &fakeMusic{}
	svc, st, _ := newTestBandService(t, nil, nil, music)

	seedBand(t, st, &model.Band{ID: "band-1", Status: model.BandStatusProfileComplete, Prompt: "p", Profile: testProfile()})
	seedSong(t, st, &model.Song{Status: model.SongStatusPending, Title: "Undertow"})

	if err := svc.ProcessSong(context.Background(), "song-1"); err != nil {
		t.Fatal(err)
	}

	song, _ := st.GetSong(context.Background(), "song-1")
	if song.Status != model.SongStatusAudioProcessing {
		t.Fatalf("expected audio_processing, got %s", song.Status)
	}
	if !song.HasLyrics() {
		t.Error("lyrics should be generated before audio submission")
	}
	if song.TaskID == "" {
		t.Error("audio task id should be recorded")
	}
	if music.submitCalls != 1 {
		t.Errorf("expected 1 submission, got %d", music.submitCalls)
	}
}

func TestProcessSongIgnoresInFlightSongs(t *testing.T) {
	music := &fakeMusic{}
	svc, st, _ := newTestBandService(t, nil, nil, music)

	seedBand(t, st, &model.Band{ID: "band-1", Status: model.BandStatusProfileComplete, Prompt: "p", Profile: testProfile()})
	seedSong(t, st, &model.Song{Status: model.SongStatusAudioProcessing, Title: "Undertow", Lyrics: "la", TaskID: "task-1"})

	if err := svc.ProcessSong(context.Background(), "song-1"); err != nil {
		t.Fatal(err)
	}
	if music.submitCalls != 0 {
		t.Error("in-flight song must not be reprocessed")
	}
}

func TestResumeBandRejectsTerminal(t *testing.T) {
	svc, st, _ := newTestBandService(t, nil, nil, nil)

	seedBand(t, st, &model.Band{ID: "band-1", Status: model.BandStatusCompleted, Prompt: "p"})

	err := svc.ResumeBand(context.Background(), "band-1")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRetrySongResetsFailedRecord(t *testing.T) {
	svc, st, queue := newTestBandService(t, nil, nil, nil)

	errMsg := "audio generation timed out"
	seedSong(t, st, &model.Song{
		Status:        model.StatusFailed,
		Title:         "Undertow",
		Lyrics:        "la la",
		Error:         &errMsg,
		CheckAttempts: 7,
	})

	song, err := svc.RetrySong(context.Background(), "song-1")
	if err != nil {
		t.Fatal(err)
	}
	if song.Status != model.SongStatusLyricsComplete {
		t.Errorf("song with lyrics should reset to lyrics_complete, got %s", song.Status)
	}
	if song.Error != nil || song.TaskID != "" || song.CheckAttempts != 0 {
		t.Errorf("retry should clear failure state: %+v", song)
	}
	if queue.typeCount(TaskTypeSongProcess) != 1 {
		t.Error("retry should re-enqueue the song")
	}
}

func TestRetrySongRejectsNonFailed(t *testing.T) {
	svc, st, _ := newTestBandService(t, nil, nil, nil)

	seedSong(t, st, &model.Song{Status: model.SongStatusPending, Title: "Undertow"})

	_, err := svc.RetrySong(context.Background(), "song-1")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("only failed songs are retryable, got %v", err)
	}
}

func TestRetrySongWithoutLyricsResetsToPending(t *testing.T) {
	svc, st, _ := newTestBandService(t, nil, nil, nil)

	errMsg := "lyrics generation failed"
	seedSong(t, st, &model.Song{Status: model.StatusFailed, Title: "Undertow", Error: &errMsg})

	song, err := svc.RetrySong(context.Background(), "song-1")
	if err != nil {
		t.Fatal(err)
	}
	if song.Status != model.SongStatusPending {
		t.Errorf("song without lyrics should reset to pending, got %s", song.Status)
	}
}

func TestQueueSongRejectsTerminalAndInFlight(t *testing.T) {
	svc, st, _ := newTestBandService(t, nil, nil, nil)

	seedSong(t, st, &model.Song{ID: "done", Status: model.SongStatusAudioComplete, Title: "A"})
	seedSong(t, st, &model.Song{ID: "flying", Status: model.SongStatusAudioProcessing, Title: "B", TaskID: "task-1"})

	if _, err := svc.QueueSong(context.Background(), "done"); !errors.Is(err, ErrValidation) {
		t.Errorf("terminal song should be rejected, got %v", err)
	}
	if _, err := svc.QueueSong(context.Background(), "flying"); !errors.Is(err, ErrValidation) {
		t.Errorf("in-flight song should be rejected, got %v", err)
	}
}
