package app

import (
	"database/sql"

	"github.com/tubefeed/tubefeed/lib"
	"github.com/tubefeed/tubefeed/lib/models"
)

type VideoView struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	PublishedAt  *int64 `json:"published_at"`
	ChannelID    string `json:"channel_id,omitempty"`
	ChannelTitle string `json:"channel_title,omitempty"`
}

func (view VideoView) From(row lib.VideoRow) VideoView {
	return VideoView{
		VideoID:      row.VideoID,
		Title:        row.Title,
		PublishedAt:  optionalInt64(row.PublishedAt),
		ChannelID:    row.ChannelID,
		ChannelTitle: row.ChannelTitle,
	}
}

type ChannelView struct {
	ChannelID    string `json:"channel_id"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

func (view ChannelView) From(entity models.Channel) ChannelView {
	return ChannelView{
		ChannelID:    entity.ChannelID,
		Title:        entity.Title,
		ThumbnailURL: entity.ThumbnailURL,
	}
}

type PlaylistView struct {
	PlaylistID          string `json:"playlist_id"`
	Title               string `json:"title"`
	PublishedAt         *int64 `json:"published_at"`
	ItemCount           int    `json:"item_count"`
	ThumbVideoID        string `json:"thumb_video_id,omitempty"`
	ChannelID           string `json:"channel_id,omitempty"`
	ChannelTitle        string `json:"channel_title,omitempty"`
	ChannelThumbnailURL string `json:"channel_thumbnail_url,omitempty"`
}

func (view PlaylistView) From(row lib.PlaylistRow) PlaylistView {
	return PlaylistView{
		PlaylistID:          row.PlaylistID,
		Title:               row.Title,
		PublishedAt:         optionalInt64(row.PublishedAt),
		ItemCount:           row.ItemCount,
		ThumbVideoID:        row.ThumbVideoID,
		ChannelID:           row.ChannelID,
		ChannelTitle:        row.ChannelTitle,
		ChannelThumbnailURL: row.ChannelThumbnailURL,
	}
}

// ChannelPlaylistView omits the channel fields that the surrounding channel
// page already carries.
type ChannelPlaylistView struct {
	PlaylistID   string `json:"playlist_id"`
	Title        string `json:"title"`
	PublishedAt  *int64 `json:"published_at"`
	ItemCount    int    `json:"item_count"`
	ThumbVideoID string `json:"thumb_video_id,omitempty"`
}

func (view ChannelPlaylistView) From(entity models.Playlist) ChannelPlaylistView {
	return ChannelPlaylistView{
		PlaylistID:   entity.PlaylistID,
		Title:        entity.Title,
		PublishedAt:  optionalInt64(entity.PublishedAt),
		ItemCount:    entity.ItemCount,
		ThumbVideoID: entity.ThumbVideoID,
	}
}

type SubscriptionView struct {
	Topic           string  `json:"topic"`
	Status          string  `json:"status"`
	ChannelID       *string `json:"channel_id"`
	LeaseExpiresAt  *int64  `json:"lease_expires_at"`
	LastRequestedAt *int64  `json:"last_requested_at"`
	LastVerifiedAt  *int64  `json:"last_verified_at"`
	LastError       *string `json:"last_error"`
}

func (view SubscriptionView) From(row lib.SubscriptionRow) SubscriptionView {
	return SubscriptionView{
		Topic:           row.Topic,
		Status:          row.Status,
		ChannelID:       optionalString(row.ChannelID),
		LeaseExpiresAt:  optionalInt64(row.LeaseExpiresAt),
		LastRequestedAt: optionalInt64(row.LastRequestedAt),
		LastVerifiedAt:  optionalInt64(row.LastVerifiedAt),
		LastError:       optionalString(row.LastError),
	}
}

type VideoPageView struct {
	Videos     []VideoView `json:"videos"`
	NextCursor *string     `json:"next_cursor"`
}

type PlaylistPageView struct {
	Playlists  []PlaylistView `json:"playlists"`
	NextCursor *string        `json:"next_cursor"`
}

type SearchPageView struct {
	Query      string      `json:"q"`
	Results    []VideoView `json:"results"`
	NextCursor *string     `json:"next_cursor"`
}

type Fromable[Entity any, Repr any] interface {
	From(Entity) Repr
}

func FromMany[T any, U Fromable[T, U]](elems []T) []U {
	out := make([]U, len(elems))
	for i, t := range elems {
		var u U
		out[i] = u.From(t)
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func optionalString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
