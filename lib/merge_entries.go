package lib

import (
	"context"
	"database/sql"

	"github.com/tubefeed/tubefeed/lib/feed"
	"github.com/tubefeed/tubefeed/lib/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type mergeEntries struct {
	log *zap.Logger
	db  *gorm.DB
}

// MergeEntries applies a batch of extracted entries to the store for one
// channel, keyed by external video id. The whole batch runs in a single
// transaction. Each entry is a conditional single-statement upsert: stored
// fields are only touched when the owning channel, title or publication
// timestamp actually differ, and an absent incoming value never overwrites a
// known one. Delivering the same batch twice therefore changes zero rows.
func (svc *mergeEntries) MergeEntries(ctx context.Context, channelID uint, entries []feed.Entry) (int64, error) {
	var changed int64

	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range entries {
			if entry.VideoID == "" {
				continue
			}

			row := models.Video{
				VideoID:      entry.VideoID,
				ChannelID:    channelID,
				Title:        entry.Title,
				Description:  entry.Description,
				ThumbVideoID: feed.ThumbVideoID(entry.ThumbURL),
				PublishedAt:  nullEpoch(entry.PublishedAt),
			}

			res := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "video_id"}},
				DoUpdates: clause.Set{
					{Column: clause.Column{Name: "channel_id"}, Value: gorm.Expr("excluded.channel_id")},
					{Column: clause.Column{Name: "title"}, Value: gorm.Expr("COALESCE(NULLIF(excluded.title, ''), videos.title)")},
					{Column: clause.Column{Name: "description"}, Value: gorm.Expr("COALESCE(NULLIF(excluded.description, ''), videos.description)")},
					{Column: clause.Column{Name: "thumb_video_id"}, Value: gorm.Expr("COALESCE(NULLIF(excluded.thumb_video_id, ''), videos.thumb_video_id)")},
					{Column: clause.Column{Name: "published_at"}, Value: gorm.Expr("COALESCE(excluded.published_at, videos.published_at)")},
					{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
				},
				Where: clause.Where{Exprs: []clause.Expression{gorm.Expr(
					"videos.channel_id <> excluded.channel_id" +
						" OR COALESCE(NULLIF(excluded.title, ''), videos.title) IS NOT videos.title" +
						" OR COALESCE(excluded.published_at, videos.published_at) IS NOT videos.published_at",
				)}},
			}).Create(&row)
			if res.Error != nil {
				return res.Error
			}
			changed += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return changed, nil
}

func nullEpoch(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
