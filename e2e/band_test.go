package e2e

import (
	"net/http"
	"testing"
)

func TestGenerateBandRequiresAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "POST", "/api/bands/generate", `{"prompt":"a synthwave duo"}`, nil)
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestGenerateBandValidation(t *testing.T) {
	ta := setupApp(t)

	cases := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"prompt too short", `{"prompt":"ab"}`},
		{"not json", `prompt=hello`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := doAuthRequest(t, ta.app, "POST", "/api/bands/generate", tc.body)
			if err != nil {
				t.Fatal(err)
			}
			assertStatus(t, resp, http.StatusBadRequest)
		})
	}
}

func TestGenerateBandAccepted(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/bands/generate", `{"prompt":"a melancholic shoegaze band from the coast"}`)
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["bandId"] == "" || result["bandId"] == nil {
		t.Error("expected a bandId")
	}
	if result["status"] != "draft" {
		t.Errorf("new band should be draft, got %v", result["status"])
	}
	if len(ta.queue.tasks) != 1 {
		t.Errorf("expected one queued generation task, got %d", len(ta.queue.tasks))
	}
}

func TestGetBandNotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, "GET", "/api/bands/nonexistent", "")
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestGetBandDetailAfterPipeline(t *testing.T) {
	ta := setupApp(t)

	bandID := createBand(t, ta, "a desert blues trio")
	runPipeline(t, ta, bandID)

	resp, err := doAuthRequest(t, ta.app, "GET", "/api/bands/"+bandID, "")
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	band, ok := result["band"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected band object, got %v", result)
	}
	if band["status"] != "completed" {
		t.Errorf("expected completed band, got %v", band["status"])
	}
	if band["profile"] == nil {
		t.Error("expected a generated profile")
	}
	albums, _ := result["albums"].([]interface{})
	if len(albums) != 1 {
		t.Errorf("expected 1 album, got %d", len(albums))
	}
	songs, _ := result["songs"].([]interface{})
	if len(songs) == 0 {
		t.Error("expected fan-out songs")
	}
}

func TestListBandSongs(t *testing.T) {
	ta := setupApp(t)

	bandID := createBand(t, ta, "a post-rock quartet")
	runPipeline(t, ta, bandID)

	resp, err := doAuthRequest(t, ta.app, "GET", "/api/bands/"+bandID+"/songs", "")
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	songs, _ := result["songs"].([]interface{})
	if len(songs) == 0 {
		t.Fatal("expected songs in response")
	}
	first, _ := songs[0].(map[string]interface{})
	// Without an audio provider the mock path completes songs immediately
	if first["status"] != "audio_complete" {
		t.Errorf("expected audio_complete songs, got %v", first["status"])
	}
}

func TestResumeBandRejectsCompleted(t *testing.T) {
	ta := setupApp(t)

	bandID := createBand(t, ta, "an ambient soloist")
	runPipeline(t, ta, bandID)

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/bands/"+bandID+"/resume", "")
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestResumeBandAcceptsDraft(t *testing.T) {
	ta := setupApp(t)

	bandID := createBand(t, ta, "a stalled project")

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/bands/"+bandID+"/resume", "")
	if err != nil {
		t.Fatal(err)
	}
	assertStatus(t, resp, http.StatusAccepted)
}
