package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/model"
)

// RedisStore persists records as JSON documents keyed by id, with secondary
// index sets per status and per parent band. Index membership is maintained
// on every write by diffing against the stored copy.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func bandKey(id string) string { return "band:" + id }
func albumKey(id string) string { return "album:" + id }
func songKey(id string) string { return "song:" + id }

func bandStatusKey(s model.Status) string { return "bands:status:" + string(s) }
func songStatusKey(s model.Status) string { return "songs:status:" + string(s) }
func bandAlbumsKey(bandID string) string  { return "band:" + bandID + ":albums" }
func bandSongsKey(bandID string) string   { return "band:" + bandID + ":songs" }

// Bands

func (s *RedisStore) CreateBand(ctx context.Context, band *model.Band) error {
	if err := s.setJSON(ctx, bandKey(band.ID), band); err != nil {
		return err
	}
	return s.client.SAdd(ctx, bandStatusKey(band.Status), band.ID).Err()
}

func (s *RedisStore) GetBand(ctx context.Context, id string) (*model.Band, error) {
	var band model.Band
	if err := s.getJSON(ctx, bandKey(id), &band); err != nil {
		return nil, err
	}
	return &band, nil
}

func (s *RedisStore) UpdateBand(ctx context.Context, band *model.Band) error {
	prev, err := s.GetBand(ctx, band.ID)
	if err != nil {
		return err
	}
	band.UpdatedAt = time.Now()
	if err := s.setJSON(ctx, bandKey(band.ID), band); err != nil {
		return err
	}
	if prev.Status != band.Status {
		pipe := s.client.TxPipeline()
		pipe.SRem(ctx, bandStatusKey(prev.Status), band.ID)
		pipe.SAdd(ctx, bandStatusKey(band.Status), band.ID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to move status index: %w", err)
		}
	}
	return nil
}

// Albums

func (s *RedisStore) CreateAlbum(ctx context.Context, album *model.Album) error {
	if err := s.setJSON(ctx, albumKey(album.ID), album); err != nil {
		return err
	}
	return s.client.SAdd(ctx, bandAlbumsKey(album.BandID), album.ID).Err()
}

func (s *RedisStore) GetAlbum(ctx context.Context, id string) (*model.Album, error) {
	var album model.Album
	if err := s.getJSON(ctx, albumKey(id), &album); err != nil {
		return nil, err
	}
	return &album, nil
}

func (s *RedisStore) UpdateAlbum(ctx context.Context, album *model.Album) error {
	if _, err := s.GetAlbum(ctx, album.ID); err != nil {
		return err
	}
	album.UpdatedAt = time.Now()
	return s.setJSON(ctx, albumKey(album.ID), album)
}

func (s *RedisStore) ListAlbumsByBand(ctx context.Context, bandID string) ([]*model.Album, error) {
	ids, err := s.client.SMembers(ctx, bandAlbumsKey(bandID)).Result()
	if err != nil {
		return nil, err
	}
	albums := make([]*model.Album, 0, len(ids))
	for _, id := range ids {
		album, err := s.GetAlbum(ctx, id)
		if err != nil {
			if err == ErrNotFound {
				continue // index can lag an expired document
			}
			return nil, err
		}
		albums = append(albums, album)
	}
	sort.Slice(albums, func(i, j int) bool { return albums[i].CreatedAt.Before(albums[j].CreatedAt) })
	return albums, nil
}

// Songs

func (s *RedisStore) CreateSong(ctx context.Context, song *model.Song) error {
	if err := s.setJSON(ctx, songKey(song.ID), song); err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, songStatusKey(song.Status), song.ID)
	pipe.SAdd(ctx, bandSongsKey(song.BandID), song.ID)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) GetSong(ctx context.Context, id string) (*model.Song, error) {
	var song model.Song
	if err := s.getJSON(ctx, songKey(id), &song); err != nil {
		return nil, err
	}
	return &song, nil
}

func (s *RedisStore) UpdateSong(ctx context.Context, song *model.Song) error {
	prev, err := s.GetSong(ctx, song.ID)
	if err != nil {
		return err
	}
	song.UpdatedAt = time.Now()
	if err := s.setJSON(ctx, songKey(song.ID), song); err != nil {
		return err
	}
	if prev.Status != song.Status {
		pipe := s.client.TxPipeline()
		pipe.SRem(ctx, songStatusKey(prev.Status), song.ID)
		pipe.SAdd(ctx, songStatusKey(song.Status), song.ID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to move status index: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) ListSongs(ctx context.Context, filter SongFilter) ([]*model.Song, error) {
	var ids []string
	var err error
	switch {
	case filter.Status != "":
		ids, err = s.client.SMembers(ctx, songStatusKey(filter.Status)).Result()
	case filter.BandID != "":
		ids, err = s.client.SMembers(ctx, bandSongsKey(filter.BandID)).Result()
	default:
		return nil, fmt.Errorf("song filter requires a status or band constraint")
	}
	if err != nil {
		return nil, err
	}

	songs := make([]*model.Song, 0, len(ids))
	for _, id := range ids {
		song, err := s.GetSong(ctx, id)
		if err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
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
		songs = append(songs, song)
	}
	sort.Slice(songs, func(i, j int) bool { return songs[i].CreatedAt.Before(songs[j].CreatedAt) })
	if filter.Limit > 0 && len(songs) > filter.Limit {
		songs = songs[:filter.Limit]
	}
	return songs, nil
}

func (s *RedisStore) ListSongsByBand(ctx context.Context, bandID string) ([]*model.Song, error) {
	return s.ListSongs(ctx, SongFilter{BandID: bandID})
}

// Helpers

func (s *RedisStore) setJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return s.client.Set(ctx, key, data, 0).Err()
}

func (s *RedisStore) getJSON(ctx context.Context, key string, v interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}
