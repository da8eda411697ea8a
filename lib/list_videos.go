package lib

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tubefeed/tubefeed/lib/cursor"
	"github.com/tubefeed/tubefeed/lib/models"
	"gorm.io/gorm"
)

type VideoRow struct {
	ID           uint
	VideoID      string
	Title        string
	PublishedAt  sql.NullInt64
	ChannelID    string // external publisher id, only populated by joined queries
	ChannelTitle string
}

func (r VideoRow) pageKey() (int64, uint) {
	return r.PublishedAt.Int64, r.ID
}

// ListLatestVideos serves the global newest-first page across all channels.
func (svc *listQueries) ListLatestVideos(ctx context.Context, cur cursor.Cursor, hasCursor bool, limit int) ([]VideoRow, string, error) {
	limit = clampLimit(limit, defaultPageSize, maxPageSize)

	q := svc.db.WithContext(ctx).
		Table("videos").
		Select("videos.id, videos.video_id, videos.title, videos.published_at," +
			" channels.channel_id AS channel_id, channels.title AS channel_title").
		Joins("JOIN channels ON channels.id = videos.channel_id").
		Order("COALESCE(videos.published_at, 0) DESC, videos.id DESC").
		Limit(limit)
	if hasCursor {
		q = keysetWhere(q, "videos", cur)
	}

	var rows []VideoRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, "", err
	}
	return rows, nextPageCursor(rows, limit), nil
}

type ChannelPageRequest struct {
	ChannelID        string
	IncludeChannel   bool
	IncludePlaylists bool
	IncludeVideos    bool
	Cursor           cursor.Cursor
	HasCursor        bool
	Limit            int
	PlaylistsLimit   int
}

type ChannelPage struct {
	Channel          *models.Channel
	Playlists        []models.Playlist
	Videos           []VideoRow
	VideosNextCursor string
}

// GetChannelPage answers the per-channel read: channel info, recent
// playlists and the channel's videos under the shared pagination contract.
func (svc *listQueries) GetChannelPage(ctx context.Context, req ChannelPageRequest) (*ChannelPage, error) {
	var channel models.Channel
	tx := svc.db.WithContext(ctx).Where("channel_id = ?", req.ChannelID).First(&channel)
	if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: unknown channel", ErrNotFound)
	} else if tx.Error != nil {
		return nil, tx.Error
	}

	page := &ChannelPage{}
	if req.IncludeChannel {
		page.Channel = &channel
	}

	if req.IncludePlaylists {
		limit := clampLimit(req.PlaylistsLimit, defaultPlaylists, maxPlaylists)
		page.Playlists = []models.Playlist{}
		err := svc.db.WithContext(ctx).
			Where("channel_id = ?", channel.ID).
			Order("id DESC").
			Limit(limit).
			Find(&page.Playlists).Error
		if err != nil {
			return nil, err
		}
	}

	if req.IncludeVideos {
		limit := clampLimit(req.Limit, defaultPageSize, maxPageSize)
		q := svc.db.WithContext(ctx).
			Table("videos").
			Select("videos.id, videos.video_id, videos.title, videos.published_at").
			Where("videos.channel_id = ?", channel.ID).
			Order("COALESCE(videos.published_at, 0) DESC, videos.id DESC").
			Limit(limit)
		if req.HasCursor {
			q = keysetWhere(q, "videos", req.Cursor)
		}
		page.Videos = []VideoRow{}
		if err := q.Scan(&page.Videos).Error; err != nil {
			return nil, err
		}
		page.VideosNextCursor = nextPageCursor(page.Videos, limit)
	}

	return page, nil
}
