package model

import "time"

// TrackPlan is one planned track from a generated band profile
type TrackPlan struct {
	Title string `json:"title"`
	Theme string `json:"theme,omitempty"`
}

// BandProfile is the structured output of the profile generation stage
type BandProfile struct {
	BandName     string      `json:"bandName"`
	Genre        string      `json:"genre"`
	Backstory    string      `json:"backstory"`
	VisualStyle  string      `json:"visualStyle,omitempty"`
	AlbumTitle   string      `json:"albumTitle"`
	AlbumConcept string      `json:"albumConcept,omitempty"`
	Tracks       []TrackPlan `json:"tracks"`
}

// Band is the parent record of the generation pipeline
type Band struct {
	ID        string       `json:"id"`
	Status    Status       `json:"status"`
	Prompt    string       `json:"prompt"`
	Profile   *BandProfile `json:"profile,omitempty"`
	LogoURL   string       `json:"logoUrl,omitempty"`
	PhotoURL  string       `json:"photoUrl,omitempty"`
	Error     *string      `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Album groups a band's songs under one concept
type Album struct {
	ID         string    `json:"id"`
	BandID     string    `json:"bandId"`
	Status     Status    `json:"status"`
	Title      string    `json:"title"`
	Concept    string    `json:"concept,omitempty"`
	CoverURL   string    `json:"coverUrl,omitempty"`
	TrackCount int       `json:"trackCount"`
	Error      *string   `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Song is one track moving through lyrics and audio generation.
// TaskID is non-empty exactly while Status is audio_processing; the poller
// clears it on every terminal transition.
type Song struct {
	ID          string  `json:"id"`
	BandID      string  `json:"bandId"`
	AlbumID     string  `json:"albumId,omitempty"`
	Status      Status  `json:"status"`
	TrackNumber int     `json:"trackNumber"`
	Title       string  `json:"title"`
	Theme       string  `json:"theme,omitempty"`
	Lyrics      string  `json:"lyrics,omitempty"`
	StylePrompt string  `json:"stylePrompt,omitempty"`
	AudioURL    string  `json:"audioUrl,omitempty"`
	StorageURL  string  `json:"storageUrl,omitempty"`
	Duration    float64 `json:"duration,omitempty"`

	TaskID        string     `json:"taskId,omitempty"`
	AudioStarted  *time.Time `json:"audioStartedAt,omitempty"`
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`
	CheckAttempts int        `json:"checkAttempts"`

	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasProfile reports whether the profile stage already produced output
func (b *Band) HasProfile() bool {
	return b.Profile != nil && b.Profile.BandName != ""
}

// HasLyrics reports whether the lyrics stage already produced output
func (s *Song) HasLyrics() bool {
	return s.Lyrics != ""
}

// InFlight reports whether the song is waiting on an external audio task
func (s *Song) InFlight() bool {
	return s.Status == SongStatusAudioProcessing
}
