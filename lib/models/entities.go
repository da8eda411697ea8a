package models

import (
	"crypto/sha1"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Channel is a publisher. Rows are created on the first observed push from a
// publisher and updated only by administrative import, never by ingestion.
type Channel struct {
	gorm.Model
	ChannelID    string `gorm:"uniqueIndex"` // external publisher id, stable
	Title        string
	ThumbnailURL string
}

type Video struct {
	gorm.Model
	VideoID      string        `gorm:"uniqueIndex"`
	ChannelID    uint          `gorm:"index:idx_channel_published"` // internal Channel id
	Title        string
	Description  string
	ThumbVideoID string
	PublishedAt  sql.NullInt64 `gorm:"index:idx_published;index:idx_channel_published"` // epoch seconds, unknown until the feed reports it
}

type Playlist struct {
	gorm.Model
	PlaylistID   string `gorm:"uniqueIndex"`
	ChannelID    uint   `gorm:"index"`
	Title        string
	ThumbVideoID string
	PublishedAt  sql.NullInt64
	ItemCount    int
}

type PlaylistVideo struct {
	gorm.Model
	PlaylistID string `gorm:"index:idx_playlist_video,unique"`
	VideoID    string `gorm:"index:idx_playlist_video,unique"`
	Position   int
}

const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusExpired  = "expired"
	StatusRejected = "rejected"
)

// Subscription tracks verification and lease state for one topic URL.
type Subscription struct {
	gorm.Model
	Topic           string        `gorm:"uniqueIndex"`
	ChannelID       sql.NullInt64 // internal Channel id, null until resolved
	Status          string
	LeaseExpiresAt  sql.NullInt64
	LastRequestedAt sql.NullInt64 // when a subscribe was last requested; arms the replay window
	LastVerifiedAt  sql.NullInt64
	LastError       sql.NullString
}

type Subscriptions []Subscription

// EffectiveStatus derives the externally visible status at the given time.
// Leases are never auto-renewed; an active subscription whose lease has passed
// reads as expired but still accepts notifications until removed, since hubs
// may deliver slightly past expiry.
func (s *Subscription) EffectiveStatus(now int64) string {
	if s.Status == StatusActive && s.LeaseExpiresAt.Valid && s.LeaseExpiresAt.Int64 < now {
		return StatusExpired
	}
	return s.Status
}

// IngestionLog is an append-only record of one received push. Never updated.
type IngestionLog struct {
	ID            uint `gorm:"primarykey"`
	CreatedAt     time.Time
	Topic         string
	Bytes         int
	ContentDigest string
	EntryCount    int
	RowsChanged   int
}

func DigestContent(content []byte) string {
	return fmt.Sprintf("%x", sha1.Sum(content))
}
