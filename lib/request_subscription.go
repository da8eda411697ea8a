package lib

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tubefeed/tubefeed/config"
	"github.com/tubefeed/tubefeed/lib/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type requestSubscription struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

// RequestSubscription records that a subscribe was just requested for a
// topic, arming the verification window the GET handshake checks against.
// The outbound subscribe call to the hub happens elsewhere; without this
// record the hub's verification attempt is rejected as forged. Re-recording
// intent also resets a rejected subscription back to pending.
func (svc *requestSubscription) RequestSubscription(ctx context.Context, topic, channelExternalID string) (*models.Subscription, error) {
	topic = CanonicalTopic(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: missing topic", ErrInvalidRequest)
	}

	now := nowSec()
	sub := models.Subscription{
		Topic:           topic,
		Status:          models.StatusPending,
		LastRequestedAt: sql.NullInt64{Int64: now, Valid: true},
	}

	assignments := map[string]any{
		"status":            models.StatusPending,
		"last_requested_at": now,
		"last_error":        nil,
	}

	if channelExternalID != "" {
		var channel models.Channel
		tx := svc.db.WithContext(ctx).Where("channel_id = ?", channelExternalID).First(&channel)
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown channel", ErrNotFound)
		} else if tx.Error != nil {
			return nil, tx.Error
		}
		sub.ChannelID = sql.NullInt64{Int64: int64(channel.ID), Valid: true}
		assignments["channel_id"] = channel.ID
	}

	tx := svc.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "topic"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&sub)
	if tx.Error != nil {
		return nil, tx.Error
	}

	svc.log.Sugar().Infow("Recorded subscribe intent", "topic", topic, "channel_id", channelExternalID)
	return &sub, nil
}
