package model

import "time"

// Stage names reported in StageResult and failure messages
const (
	StageProfile = "profile"
	StageArtwork = "artwork"
	StageCover   = "cover"
	StageLyrics  = "lyrics"
	StageAudio   = "audio"
)

// Stage outcomes
const (
	StageOutcomeCompleted = "completed"
	StageOutcomeSkipped   = "skipped"
	StageOutcomeFailed    = "failed"
	StageOutcomeSubmitted = "submitted"
)

// StageResult reports what a single stage invocation did to a record
type StageResult struct {
	RecordType RecordType `json:"recordType"`
	RecordID   string     `json:"recordId"`
	Stage      string     `json:"stage"`
	Outcome    string     `json:"outcome"`
	Status     Status     `json:"status"`
	Detail     string     `json:"detail,omitempty"`
}

// PollSummary tallies one poll cycle across all in-flight songs. It is
// observability output only; control flow never depends on it.
type PollSummary struct {
	Checked         int      `json:"checked"`
	Completed       int      `json:"completed"`
	Failed          int      `json:"failed"`
	StillProcessing int      `json:"stillProcessing"`
	Skipped         int      `json:"skipped"`
	Errors          []string `json:"errors,omitempty"`
}

// GenerateBandRequest starts a new band pipeline from a text prompt
type GenerateBandRequest struct {
	Prompt string `json:"prompt" validate:"required,min=3,max=2000"`
}

// GenerateBandResponse acknowledges an accepted generation request
type GenerateBandResponse struct {
	BandID    string    `json:"bandId"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// PollRequest triggers a poll cycle, optionally forced or for one song
type PollRequest struct {
	Force  bool   `json:"force,omitempty"`
	SongID string `json:"songId,omitempty" validate:"omitempty,uuid4"`
}

// BandDetailResponse bundles a band with its albums and songs
type BandDetailResponse struct {
	Band   *Band    `json:"band"`
	Albums []*Album `json:"albums"`
	Songs  []*Song  `json:"songs"`
}

// Pipeline event types broadcast over the websocket hub
const (
	EventStatusChanged = "status_changed"
	EventStageResult   = "stage_result"
	EventPollSummary   = "poll_summary"
)

// PipelineEvent is the wire format for hub broadcasts
type PipelineEvent struct {
	Type       string     `json:"type"`
	BandID     string     `json:"bandId"`
	RecordType RecordType `json:"recordType,omitempty"`
	RecordID   string     `json:"recordId,omitempty"`
	Status     Status     `json:"status,omitempty"`
	Stage      string     `json:"stage,omitempty"`
	Detail     string     `json:"detail,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}
