package e2e

import (
	"net/http"
	"testing"
)

func TestPollRequiresAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "POST", "/api/poll", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestPollEmptyCycle(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/poll", "")
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["checked"] != float64(0) {
		t.Errorf("expected empty cycle, got %v", result)
	}
}

func TestPollSingleSongRejectsIdleRecord(t *testing.T) {
	ta := setupApp(t)

	bandID := createBand(t, ta, "a fully processed band")
	runPipeline(t, ta, bandID)
	song := firstSong(t, ta, bandID)

	// Mock audio path means the song is terminal, not in-flight
	resp, err := doAuthRequest(t, ta.app, "POST", "/api/poll", `{"songId":"`+song.ID+`"}`)
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}
