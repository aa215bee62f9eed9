package service

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task types routed through the generation queue
const (
	TaskTypeBandGenerate = "band:generate"
	TaskTypeSongProcess  = "song:process"
	TaskTypeAudioPoll    = "audio:poll"

	QueueGeneration = "generation"
)

// TaskEnqueuer is the slice of asynq.Client the orchestrator needs; tests
// substitute a fake that records enqueued tasks.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// BandGeneratePayload drives the band:generate task
type BandGeneratePayload struct {
	BandID string `json:"bandId"`
}

// SongProcessPayload drives the song:process task
type SongProcessPayload struct {
	SongID string `json:"songId"`
}

// AudioPollPayload drives the audio:poll task
type AudioPollPayload struct {
	Force bool `json:"force,omitempty"`
}

func NewBandGenerateTask(bandID string) (*asynq.Task, error) {
	data, err := json.Marshal(BandGeneratePayload{BandID: bandID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBandGenerate, data), nil
}

func NewSongProcessTask(songID string) (*asynq.Task, error) {
	data, err := json.Marshal(SongProcessPayload{SongID: songID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSongProcess, data), nil
}

func NewAudioPollTask(force bool) (*asynq.Task, error) {
	data, err := json.Marshal(AudioPollPayload{Force: force})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAudioPoll, data), nil
}
