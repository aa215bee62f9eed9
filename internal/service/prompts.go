package service

import (
	"fmt"
	"strings"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/model"
)

const profileSystemPrompt = `You are a creative director for a virtual music platform.
You invent fictional bands: their name, genre, backstory, visual identity and a debut album concept.
Always output your response as valid JSON in the exact format requested.
Do not include any text outside the JSON structure.`

const lyricsSystemPrompt = `You are a professional songwriter with expertise in various music genres.
You write complete song lyrics that match the band's identity and the track's theme.
Always output your response as valid JSON in the exact format requested.
Do not include any text outside the JSON structure.`

// Prompt building keeps inputs bounded: free-text fields are clipped before
// concatenation so a long backstory cannot blow the request size.
const promptFieldMax = 600

func clipField(s string) string {
	if len(s) <= promptFieldMax {
		return s
	}
	return s[:promptFieldMax-3] + "..."
}

func buildProfilePrompt(userPrompt string) string {
	return fmt.Sprintf(`Create a fictional band based on this concept:
%s

Output as JSON:
{
  "bandName": "...",
  "genre": "...",
  "backstory": "2-3 paragraph origin story",
  "visualStyle": "one paragraph describing the band's visual identity",
  "albumTitle": "...",
  "albumConcept": "one paragraph",
  "tracks": [{"title": "...", "theme": "one sentence"}]
}

Include 6 to 10 tracks.`, clipField(userPrompt))
}

func buildLyricsPrompt(song *model.Song, profile *model.BandProfile) string {
	return fmt.Sprintf(`Write complete lyrics for track %d of the album "%s" by %s (%s).

Track title: %s
Track theme: %s
Band backstory: %s
Album concept: %s

Structure the lyrics with [Verse], [Chorus] and [Bridge] section markers.

Output as JSON: {"lyrics": "..."}`,
		song.TrackNumber,
		profile.AlbumTitle,
		profile.BandName,
		profile.Genre,
		song.Title,
		clipField(song.Theme),
		clipField(profile.Backstory),
		clipField(profile.AlbumConcept),
	)
}

func buildLogoPrompt(profile *model.BandProfile) string {
	return fmt.Sprintf("Band logo for %s, a %s band. %s. Clean emblem on a plain background, no text artifacts.",
		profile.BandName, profile.Genre, clipField(profile.VisualStyle))
}

func buildPhotoPrompt(profile *model.BandProfile) string {
	return fmt.Sprintf("Promotional photo of the band %s (%s). %s. Moody studio lighting, editorial style.",
		profile.BandName, profile.Genre, clipField(profile.VisualStyle))
}

func buildCoverPrompt(profile *model.BandProfile, album *model.Album) string {
	return fmt.Sprintf("Album cover for \"%s\" by %s (%s). Concept: %s. No readable text.",
		album.Title, profile.BandName, profile.Genre, clipField(album.Concept))
}

func buildStylePrompt(profile *model.BandProfile) string {
	parts := []string{profile.Genre}
	if profile.VisualStyle != "" {
		parts = append(parts, profile.VisualStyle)
	}
	if profile.AlbumConcept != "" {
		parts = append(parts, profile.AlbumConcept)
	}
	return strings.Join(parts, ", ")
}

// Mock fallbacks for development when the LLM is not configured

func mockProfile(prompt string) *model.BandProfile {
	return &model.BandProfile{
		BandName:     "The Static Parade",
		Genre:        "indie rock",
		Backstory:    fmt.Sprintf("Formed around the idea: %s. Four strangers met at a shuttered radio station and never left.", clipField(prompt)),
		VisualStyle:  "Grainy film photography, muted neon, late-night city streets.",
		AlbumTitle:   "Transmission Lost",
		AlbumConcept: "An album about signals that never reach their destination.",
		Tracks: []model.TrackPlan{
			{Title: "Dead Air", Theme: "The silence after a broadcast ends"},
			{Title: "Frequency Ghost", Theme: "A voice heard once and never again"},
			{Title: "Carrier Wave", Theme: "Holding on to something that carries you"},
			{Title: "Sign-Off", Theme: "Saying goodbye on your own terms"},
		},
	}
}

func mockLyrics(title string) string {
	return fmt.Sprintf(`[Verse]
Under the wires we wait for a sound
Counting the echoes the night handed down

[Chorus]
%s, sing it back to me
Every lost signal finds the sea

[Bridge]
Static swallows what we meant to say
But the melody survives anyway`, title)
}
