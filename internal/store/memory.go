package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/model"
)

// MemoryStore is an in-process Store used by tests and by local development
// when Redis is unavailable. Records are deep-copied on the way in and out
// so callers never share mutable state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	bands  map[string]*model.Band
	albums map[string]*model.Album
	songs  map[string]*model.Song
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bands:  make(map[string]*model.Band),
		albums: make(map[string]*model.Album),
		songs:  make(map[string]*model.Song),
	}
}

func (s *MemoryStore) CreateBand(ctx context.Context, band *model.Band) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bands[band.ID] = copyBand(band)
	return nil
}

func (s *MemoryStore) GetBand(ctx context.Context, id string) (*model.Band, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	band, ok := s.bands[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBand(band), nil
}

func (s *MemoryStore) UpdateBand(ctx context.Context, band *model.Band) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bands[band.ID]; !ok {
		return ErrNotFound
	}
	band.UpdatedAt = time.Now()
	s.bands[band.ID] = copyBand(band)
	return nil
}

func (s *MemoryStore) CreateAlbum(ctx context.Context, album *model.Album) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.albums[album.ID] = copyAlbum(album)
	return nil
}

func (s *MemoryStore) GetAlbum(ctx context.Context, id string) (*model.Album, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	album, ok := s.albums[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAlbum(album), nil
}

func (s *MemoryStore) UpdateAlbum(ctx context.Context, album *model.Album) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.albums[album.ID]; !ok {
		return ErrNotFound
	}
	album.UpdatedAt = time.Now()
	s.albums[album.ID] = copyAlbum(album)
	return nil
}

func (s *MemoryStore) ListAlbumsByBand(ctx context.Context, bandID string) ([]*model.Album, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var albums []*model.Album
	for _, album := range s.albums {
		if album.BandID == bandID {
			albums = append(albums, copyAlbum(album))
		}
	}
	sort.Slice(albums, func(i, j int) bool { return albums[i].CreatedAt.Before(albums[j].CreatedAt) })
	return albums, nil
}

func (s *MemoryStore) CreateSong(ctx context.Context, song *model.Song) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.songs[song.ID] = copySong(song)
	return nil
}

func (s *MemoryStore) GetSong(ctx context.Context, id string) (*model.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	song, ok := s.songs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySong(song), nil
}

func (s *MemoryStore) UpdateSong(ctx context.Context, song *model.Song) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.songs[song.ID]; !ok {
		return ErrNotFound
	}
	song.UpdatedAt = time.Now()
	s.songs[song.ID] = copySong(song)
	return nil
}

func (s *MemoryStore) ListSongs(ctx context.Context, filter SongFilter) ([]*model.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var songs []*model.Song
	for _, song := range s.songs {
		if filter.Status != "" && song.Status != filter.Status {
			continue
		}
		if filter.BandID != "" && song.BandID != filter.BandID {
			continue
		}
		if !filter.CheckedBefore.IsZero() && song.LastCheckedAt != nil &&
			!song.LastCheckedAt.Before(filter.CheckedBefore) {
			continue
		}
		songs = append(songs, copySong(song))
	}
	sort.Slice(songs, func(i, j int) bool { return songs[i].CreatedAt.Before(songs[j].CreatedAt) })
	if filter.Limit > 0 && len(songs) > filter.Limit {
		songs = songs[:filter.Limit]
	}
	return songs, nil
}

func (s *MemoryStore) ListSongsByBand(ctx context.Context, bandID string) ([]*model.Song, error) {
	return s.ListSongs(ctx, SongFilter{BandID: bandID})
}

func copyBand(b *model.Band) *model.Band {
	out := *b
	if b.Profile != nil {
		profile := *b.Profile
		profile.Tracks = append([]model.TrackPlan(nil), b.Profile.Tracks...)
		out.Profile = &profile
	}
	if b.Error != nil {
		msg := *b.Error
		out.Error = &msg
	}
	return &out
}

func copyAlbum(a *model.Album) *model.Album {
	out := *a
	if a.Error != nil {
		msg := *a.Error
		out.Error = &msg
	}
	return &out
}

func copySong(s *model.Song) *model.Song {
	out := *s
	if s.Error != nil {
		msg := *s.Error
		out.Error = &msg
	}
	if s.AudioStarted != nil {
		t := *s.AudioStarted
		out.AudioStarted = &t
	}
	if s.LastCheckedAt != nil {
		t := *s.LastCheckedAt
		out.LastCheckedAt = &t
	}
	return &out
}
