package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/client"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/config"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/model"
	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/store"
)

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		PollInterval:   30 * time.Second,
		PollCooldown:   20 * time.Second,
		PollGrace:      30 * time.Second,
		AudioTimeout:   30 * time.Minute,
		BatchSize:      5,
		BatchDelay:     0,
		StylePromptMax: 1000,
		WaitCeiling:    30 * time.Second,
		ListLimit:      200,
	}
}

// fakeLLM scripts the language model used by profile and lyrics stages
type fakeLLM struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (f *fakeLLM) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeLLM) IsConfigured() bool { return true }

// fakeImages scripts the image provider for artwork stages
type fakeImages struct {
	mu    sync.Mutex
	url   string
	err   error
	calls int
}

func (f *fakeImages) GenerateImage(ctx context.Context, prompt, aspect string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func (f *fakeImages) IsConfigured() bool { return true }

// fakeMusic scripts the async audio provider. Task results are keyed by
// task id so batch tests can mix outcomes.
type fakeMusic struct {
	mu          sync.Mutex
	submitResp  *client.SubmitAudioResponse
	submitErr   error
	results     map[string]*client.AudioTaskResult
	resultErrs  map[string]error
	submitCalls int
	getCalls    int
}

func (f *fakeMusic) SubmitAudio(ctx context.Context, req *client.SubmitAudioRequest) (*client.SubmitAudioResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.submitResp != nil {
		return f.submitResp, nil
	}
	return &client.SubmitAudioResponse{TaskID: "task-1", Status: "pending"}, nil
}

func (f *fakeMusic) GetAudioTask(ctx context.Context, taskID string) (*client.AudioTaskResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if err, ok := f.resultErrs[taskID]; ok {
		return nil, err
	}
	if res, ok := f.results[taskID]; ok {
		return res, nil
	}
	return &client.AudioTaskResult{TaskID: taskID, Status: "processing"}, nil
}

func (f *fakeMusic) IsConfigured() bool { return true }

// fakeStorage records mirror requests and returns deterministic URLs
type fakeStorage struct {
	mu       sync.Mutex
	err      error
	mirrored []string
}

func (f *fakeStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	return "https://storage.test/" + key, nil
}

func (f *fakeStorage) MirrorFromURL(ctx context.Context, key, sourceURL, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.mirrored = append(f.mirrored, key)
	return "https://storage.test/" + key, nil
}

func (f *fakeStorage) GetPublicURL(key string) string { return "https://storage.test/" + key }

// fakeQueue records enqueued tasks instead of talking to Redis
type fakeQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (f *fakeQueue) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "fake", Type: task.Type()}, nil
}

func (f *fakeQueue) typeCount(taskType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, task := range f.tasks {
		if task.Type() == taskType {
			n++
		}
	}
	return n
}

// fakeEvents records broadcast pipeline events
type fakeEvents struct {
	mu     sync.Mutex
	events []*model.PipelineEvent
}

func (f *fakeEvents) BroadcastEvent(event *model.PipelineEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

// nilIf* convert a nil fake pointer into a nil interface so the "provider
// not configured" paths in the services actually trigger.
func nilIfLLM(f *fakeLLM) client.LanguageModel {
	if f == nil {
		return nil
	}
	return f
}

func nilIfImages(f *fakeImages) client.ImageGenerator {
	if f == nil {
		return nil
	}
	return f
}

func nilIfMusic(f *fakeMusic) client.MusicTaskClient {
	if f == nil {
		return nil
	}
	return f
}

func seedBand(t *testing.T, st store.Store, band *model.Band) *model.Band {
	t.Helper()
	if band.ID == "" {
		band.ID = "band-1"
	}
	if band.CreatedAt.IsZero() {
		band.CreatedAt = time.Now()
	}
	if err := st.CreateBand(context.Background(), band); err != nil {
		t.Fatalf("failed to seed band: %v", err)
	}
	return band
}

func seedSong(t *testing.T, st store.Store, song *model.Song) *model.Song {
	t.Helper()
	if song.ID == "" {
		song.ID = "song-1"
	}
	if song.BandID == "" {
		song.BandID = "band-1"
	}
	if song.CreatedAt.IsZero() {
		song.CreatedAt = time.Now()
	}
	if err := st.CreateSong(context.Background(), song); err != nil {
		t.Fatalf("failed to seed song: %v", err)
	}
	return song
}

func testProfile() *model.BandProfile {
	return &model.BandProfile{
		BandName:     "Neon Harbor",
		Genre:        "synthwave",
		Backstory:    "Two producers from a port town.",
		VisualStyle:  "neon chrome",
		AlbumTitle:   "Tidelines",
		AlbumConcept: "night drives along the waterfront",
		Tracks: []model.TrackPlan{
			{Title: "Undertow", Theme: "pull of the past"},
			{Title: "Harbor Lights", Theme: "arrival"},
		},
	}
}
