package e2e

import (
	"context"
	"net/http"
	"testing"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/model"
)

func firstSong(t *testing.T, ta *testApp, bandID string) *model.Song {
	t.Helper()
	songs, err := ta.store.ListSongsByBand(context.Background(), bandID)
	if err != nil || len(songs) == 0 {
		t.Fatalf("no songs for band %s: %v", bandID, err)
	}
	return songs[0]
}

func TestGetSong(t *testing.T) {
	ta := setupApp(t)

	bandID := createBand(t, ta, "a krautrock revival act")
	runPipeline(t, ta, bandID)
	song := firstSong(t, ta, bandID)

	resp, err := doAuthRequest(t, ta.app, "GET", "/api/songs/"+song.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["id"] != song.ID {
		t.Errorf("wrong song returned: %v", result["id"])
	}
	if result["lyrics"] == nil || result["lyrics"] == "" {
		t.Error("expected generated lyrics")
	}
}

func TestGetSongNotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, "GET", "/api/songs/nonexistent", "")
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestProcessSongRejectsTerminal(t *testing.T) {
	ta := setupApp(t)

	bandID := createBand(t, ta, "a finished band")
	runPipeline(t, ta, bandID)
	song := firstSong(t, ta, bandID)

	// Mock audio completes songs immediately, so process must refuse
	resp, err := doAuthRequest(t, ta.app, "POST", "/api/songs/"+song.ID+"/process", "")
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestRetrySongRejectsNonFailed(t *testing.T) {
	ta := setupApp(t)

	bandID := createBand(t, ta, "a healthy band")
	runPipeline(t, ta, bandID)
	song := firstSong(t, ta, bandID)

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/songs/"+song.ID+"/retry", "")
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestRetryFailedSong(t *testing.T) {
	ta := setupApp(t)

	bandID := createBand(t, ta, "a band with a broken track")
	runPipeline(t, ta, bandID)
	song := firstSong(t, ta, bandID)

	// Force the record into the absorbing failed state
	errMsg := "audio generation failed"
	song.Status = model.StatusFailed
	song.Error = &errMsg
	song.AudioURL = ""
	song.StorageURL = ""
	if err := ta.store.UpdateSong(context.Background(), song); err != nil {
		t.Fatal(err)
	}

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/songs/"+song.ID+"/retry", "")
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["status"] != "lyrics_complete" {
		t.Errorf("song with lyrics should reset to lyrics_complete, got %v", result["status"])
	}
	if result["error"] != nil {
		t.Error("retry should clear the error")
	}
}

func TestWaitAudioOnIdleSongRejected(t *testing.T) {
	ta := setupApp(t)

	bandID := createBand(t, ta, "a band that finished already")
	runPipeline(t, ta, bandID)
	song := firstSong(t, ta, bandID)

	// Terminal song: wait returns the record as-is
	resp, err := doAuthRequest(t, ta.app, "POST", "/api/songs/"+song.ID+"/audio/wait", `{"maxWaitSeconds":1}`)
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	if result["status"] != "audio_complete" {
		t.Errorf("expected audio_complete, got %v", result["status"])
	}
}
