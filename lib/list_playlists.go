package lib

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tubefeed/tubefeed/lib/cursor"
	"gorm.io/gorm"
)

type PlaylistRow struct {
	ID                  uint
	PlaylistID          string
	Title               string
	PublishedAt         sql.NullInt64
	ItemCount           int
	ThumbVideoID        string
	ChannelID           string
	ChannelTitle        string
	ChannelThumbnailURL string
}

func (r PlaylistRow) pageKey() (int64, uint) {
	return r.PublishedAt.Int64, r.ID
}

// thumbExpr picks the playlist thumbnail source: the dedicated column when
// the schema has one, otherwise the first member video.
func (svc *listQueries) thumbExpr() string {
	if svc.caps.PlaylistThumbColumn {
		return "playlists.thumb_video_id"
	}
	return "(SELECT pv.video_id FROM playlist_videos pv" +
		" WHERE pv.playlist_id = playlists.playlist_id" +
		" ORDER BY pv.position LIMIT 1)"
}

func (svc *listQueries) playlistSelect() *gorm.DB {
	return svc.db.
		Table("playlists").
		Select("playlists.id, playlists.playlist_id, playlists.title, playlists.published_at," +
			" playlists.item_count, " + svc.thumbExpr() + " AS thumb_video_id," +
			" channels.channel_id AS channel_id, channels.title AS channel_title," +
			" channels.thumbnail_url AS channel_thumbnail_url").
		Joins("JOIN channels ON channels.id = playlists.channel_id")
}

func (svc *listQueries) ListPlaylists(ctx context.Context, cur cursor.Cursor, hasCursor bool, limit int) ([]PlaylistRow, string, error) {
	limit = clampLimit(limit, defaultPageSize, maxPageSize)

	q := svc.playlistSelect().WithContext(ctx).
		Order("COALESCE(playlists.published_at, 0) DESC, playlists.id DESC").
		Limit(limit)
	if hasCursor {
		q = keysetWhere(q, "playlists", cur)
	}

	var rows []PlaylistRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, "", err
	}
	return rows, nextPageCursor(rows, limit), nil
}

func (svc *listQueries) GetPlaylist(ctx context.Context, playlistID string) (*PlaylistRow, error) {
	var row PlaylistRow
	tx := svc.playlistSelect().WithContext(ctx).
		Where("playlists.playlist_id = ?", playlistID).
		Scan(&row)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 || row.ID == 0 {
		return nil, fmt.Errorf("%w: unknown playlist", ErrNotFound)
	}
	return &row, nil
}
