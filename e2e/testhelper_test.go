package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hibiken/asynq"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/auth"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/config"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/handler"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/middleware"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/model"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/service"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/store"
)

const testJWTSecret = "test-secret-for-e2e"

// recordingQueue satisfies service.TaskEnqueuer without Redis. Tests that
// need pipeline progress invoke the services directly instead of waiting
// for a worker.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (q *recordingQueue) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "queued", Type: task.Type()}, nil
}

// testApp holds all components needed for testing
type testApp struct {
	app    *fiber.App
	store  *store.MemoryStore
	bands  *service.BandService
	poller *service.PollService
	queue  *recordingQueue
}

// setupApp creates a Fiber app wired like main.go but on the in-memory
// store with no external providers configured, so every stage takes its
// mock fallback path.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	recordStore := store.NewMemoryStore()
	queue := &recordingQueue{}
	validate := validator.New()

	cfg := testPipelineConfig()

	// nil clients → mock fallbacks everywhere
	stageService := service.NewStageService(recordStore, nil, nil, nil, cfg, nil)
	pollService := service.NewPollService(recordStore, nil, nil, cfg, nil)
	bandService := service.NewBandService(recordStore, stageService, queue)

	bandHandler := handler.NewBandHandler(bandService, validate)
	songHandler := handler.NewSongHandler(bandService, pollService)
	pollHandler := handler.NewPollHandler(pollService, validate)
	authHandler := handler.NewAuthHandler(nil, testJWTSecret)

	authMiddleware := middleware.NewLegacyAuthMiddleware(testJWTSecret)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"groq": false,
				"fal":  false,
				"suno": false,
				"r2":   false,
				"auth": true,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", authMiddleware.Authenticate())

	bands := api.Group("/bands")
	bands.Post("/generate", bandHandler.Generate)
	bands.Get("/:bandId", bandHandler.Get)
	bands.Get("/:bandId/songs", bandHandler.Songs)
	bands.Post("/:bandId/resume", bandHandler.Resume)

	songs := api.Group("/songs")
	songs.Get("/:songId", songHandler.Get)
	songs.Post("/:songId/process", songHandler.Process)
	songs.Post("/:songId/retry", songHandler.Retry)
	songs.Post("/:songId/audio/wait", songHandler.WaitAudio)

	api.Post("/poll", pollHandler.Run)

	return &testApp{
		app:    app,
		store:  recordStore,
		bands:  bandService,
		poller: pollService,
		queue:  queue,
	}
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		PollInterval:   30 * time.Second,
		PollCooldown:   20 * time.Second,
		PollGrace:      30 * time.Second,
		AudioTimeout:   30 * time.Minute,
		BatchSize:      5,
		StylePromptMax: 1000,
		WaitCeiling:    5 * time.Second,
		ListLimit:      200,
	}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	claims := auth.LegacyClaims{
		UserID: "test-user-123",
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "mitchly-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// createBand drives the generate endpoint and returns the new band id.
func createBand(t *testing.T, ta *testApp, prompt string) string {
	t.Helper()
	resp, err := doAuthRequest(t, ta.app, "POST", "/api/bands/generate", `{"prompt":"`+prompt+`"}`)
	if err != nil {
		t.Fatalf("generate request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	result := parseJSON(t, resp)
	bandID, _ := result["bandId"].(string)
	if bandID == "" {
		t.Fatalf("no bandId in response: %v", result)
	}
	return bandID
}

// runPipeline emulates the worker: it executes the queued band generation
// synchronously so handler tests can observe the resulting records.
func runPipeline(t *testing.T, ta *testApp, bandID string) {
	t.Helper()
	ctx := context.Background()
	if err := ta.bands.GenerateBand(ctx, bandID); err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}
	songs, err := ta.store.ListSongsByBand(ctx, bandID)
	if err != nil {
		t.Fatalf("listing songs failed: %v", err)
	}
	for _, song := range songs {
		if song.Status == model.SongStatusPending {
			if err := ta.bands.ProcessSong(ctx, song.ID); err != nil {
				t.Fatalf("song processing failed: %v", err)
			}
		}
	}
}
