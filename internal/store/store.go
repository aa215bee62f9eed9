package store

import (
	"context"
	"errors"
	"time"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/model"
)

// ErrNotFound is returned when a record does not exist in its collection
var ErrNotFound = errors.New("record not found")

// SongFilter narrows ListSongs queries. Zero values mean "no constraint".
// CheckedBefore matches songs whose lastCheckedAt is unset or older than the
// given time.
type SongFilter struct {
	Status        model.Status
	BandID        string
	CheckedBefore time.Time
	Limit         int
}

// Store is the document store for pipeline records. Every write targets one
// record by id; there are no multi-record transactions and last-write-wins
// is the accepted semantics for racing writers.
type Store interface {
	CreateBand(ctx context.Context, band *model.Band) error
	GetBand(ctx context.Context, id string) (*model.Band, error)
	UpdateBand(ctx context.Context, band *model.Band) error

	CreateAlbum(ctx context.Context, album *model.Album) error
	GetAlbum(ctx context.Context, id string) (*model.Album, error)
	UpdateAlbum(ctx context.Context, album *model.Album) error
	ListAlbumsByBand(ctx context.Context, bandID string) ([]*model.Album, error)

	CreateSong(ctx context.Context, song *model.Song) error
	GetSong(ctx context.Context, id string) (*model.Song, error)
	UpdateSong(ctx context.Context, song *model.Song) error
	ListSongs(ctx context.Context, filter SongFilter) ([]*model.Song, error)
	ListSongsByBand(ctx context.Context, bandID string) ([]*model.Song, error)
}
