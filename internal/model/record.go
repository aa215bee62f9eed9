package model

// RecordType identifies the collection a record belongs to
type RecordType string

const (
	RecordTypeBand  RecordType = "band"
	RecordTypeAlbum RecordType = "album"
	RecordTypeSong  RecordType = "song"
)

// Status represents a record's position in its generation pipeline
type Status string

// StatusFailed is the absorbing failure status shared by all record types.
const StatusFailed Status = "failed"

// Band statuses
const (
	BandStatusDraft             Status = "draft"
	BandStatusGeneratingProfile Status = "generating_profile"
	BandStatusProfileComplete   Status = "profile_complete"
	BandStatusCompleted         Status = "completed"
)

// Album statuses
const (
	AlbumStatusPending       Status = "pending"
	AlbumStatusGeneratingArt Status = "generating_art"
	AlbumStatusCompleted     Status = "completed"
)

// Song statuses
const (
	SongStatusPending         Status = "pending"
	SongStatusGeneratingLyric Status = "generating_lyrics"
	SongStatusLyricsComplete  Status = "lyrics_complete"
	SongStatusGeneratingAudio Status = "generating_audio"
	SongStatusAudioProcessing Status = "audio_processing"
	SongStatusAudioComplete   Status = "audio_complete"
)

// stageOrder defines the forward progression for each record type.
// "failed" is absorbing and deliberately absent: it is reachable from any
// non-terminal status and allows no further transitions.
var stageOrder = map[RecordType][]Status{
	RecordTypeBand: {
		BandStatusDraft,
		BandStatusGeneratingProfile,
		BandStatusProfileComplete,
		BandStatusCompleted,
	},
	RecordTypeAlbum: {
		AlbumStatusPending,
		AlbumStatusGeneratingArt,
		AlbumStatusCompleted,
	},
	RecordTypeSong: {
		SongStatusPending,
		SongStatusGeneratingLyric,
		SongStatusLyricsComplete,
		SongStatusGeneratingAudio,
		SongStatusAudioProcessing,
		SongStatusAudioComplete,
	},
}

// StageIndex returns the position of a status in the record type's forward
// progression, or -1 for "failed" and unknown statuses.
func StageIndex(rt RecordType, s Status) int {
	for i, st := range stageOrder[rt] {
		if st == s {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether a status allows no further transitions.
func IsTerminal(rt RecordType, s Status) bool {
	if s == StatusFailed {
		return true
	}
	order := stageOrder[rt]
	return len(order) > 0 && s == order[len(order)-1]
}

// CanTransition reports whether moving from one status to another respects
// the monotonic stage order. Any non-terminal status may jump to "failed".
func CanTransition(rt RecordType, from, to Status) bool {
	if IsTerminal(rt, from) {
		return false
	}
	if to == StatusFailed {
		return true
	}
	fi, ti := StageIndex(rt, from), StageIndex(rt, to)
	return fi >= 0 && ti > fi
}
