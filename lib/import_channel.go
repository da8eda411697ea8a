package lib

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/tubefeed/tubefeed/config"
	"github.com/tubefeed/tubefeed/lib/feed"
	"github.com/tubefeed/tubefeed/lib/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type importChannel struct {
	cfg       *config.Config
	log       *zap.Logger
	db        *gorm.DB
	transport http.RoundTripper
	merge     *mergeEntries
}

// ImportChannel fetches a publisher's feed and upserts the channel's display
// metadata. This is the administrative path and the only one allowed to
// update existing Channel rows; the feed's current entries are merged as a
// bootstrap so a freshly imported channel is not empty until the first push.
func (svc *importChannel) ImportChannel(ctx context.Context, feedURL string) (*models.Channel, int64, error) {
	if strings.TrimSpace(feedURL) == "" {
		return nil, 0, fmt.Errorf("%w: missing feed url", ErrInvalidRequest)
	}

	var raw string
	err := requests.URL(feedURL).
		Transport(svc.transport).
		ToString(&raw).
		Fetch(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching %s: %w", feedURL, err)
	}

	parsed, err := feed.Extract([]byte(raw))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: unparseable feed", ErrInvalidRequest)
	}
	if parsed.ChannelID == "" {
		return nil, 0, fmt.Errorf("%w: feed has no channel id", ErrInvalidRequest)
	}

	thumbnail := parsed.ImageURL
	if thumbnail == "" && len(parsed.Entries) > 0 {
		thumbnail = parsed.Entries[0].ThumbURL
	}

	channel := models.Channel{
		ChannelID:    parsed.ChannelID,
		Title:        parsed.Title,
		ThumbnailURL: thumbnail,
	}
	tx := svc.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "thumbnail_url", "updated_at"}),
	}).Create(&channel)
	if tx.Error != nil {
		return nil, 0, tx.Error
	}
	if channel.ID == 0 {
		tx = svc.db.WithContext(ctx).Where("channel_id = ?", parsed.ChannelID).First(&channel)
		if tx.Error != nil {
			return nil, 0, tx.Error
		}
	}

	changed, err := svc.merge.MergeEntries(ctx, channel.ID, parsed.Entries)
	if err != nil {
		return nil, 0, err
	}

	svc.log.Sugar().Infow("Imported channel", "channel_id", parsed.ChannelID, "entries", len(parsed.Entries), "rows_changed", changed)
	return &channel, changed, nil
}
