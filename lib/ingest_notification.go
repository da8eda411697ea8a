package lib

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tubefeed/tubefeed/config"
	"github.com/tubefeed/tubefeed/lib/feed"
	"github.com/tubefeed/tubefeed/lib/models"
	"github.com/tubefeed/tubefeed/lib/websub"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ingestNotification struct {
	cfg   *config.Config
	log   *zap.Logger
	db    *gorm.DB
	merge *mergeEntries
}

// Receipt describes what happened to one accepted notification. Dropped
// receipts carry a reason and a reference id that is also logged, so a
// silently accepted-and-dropped push can still be chased down.
type Receipt struct {
	Topic       string
	EntryCount  int
	RowsChanged int64
	Dropped     bool
	DropReason  string
	DropRef     string
}

// IngestNotification handles an inbound content push. The signature is
// checked against the raw body before anything else; a mismatch causes zero
// side effects. Notifications whose topic cannot be mapped to a publisher
// are accepted at the transport level but produce no store mutation, so the
// hub does not retry them indefinitely.
func (svc *ingestNotification) IngestNotification(ctx context.Context, body []byte, sigHeader, topicHeader string) (*Receipt, error) {
	if !websub.Verify(svc.cfg.WebsubSecret, body, sigHeader) {
		svc.log.Sugar().Infow("Notification signature mismatch", "bytes", len(body), "has_signature", sigHeader != "")
		return nil, fmt.Errorf("%w: signature mismatch", ErrForbidden)
	}

	parsed, parseErr := feed.Extract(body)

	topic := CanonicalTopic(topicHeader)
	if topic == "" && parseErr == nil {
		topic = CanonicalTopic(parsed.Topic)
	}
	if topic == "" {
		return nil, fmt.Errorf("%w: missing topic", ErrInvalidRequest)
	}

	rcpt := &Receipt{Topic: topic}
	if parseErr != nil {
		return svc.drop(rcpt, "unparseable payload"), nil
	}

	channelID, reason, err := svc.resolveChannel(ctx, topic, parsed)
	if err != nil {
		return nil, err
	}
	if channelID == 0 {
		return svc.drop(rcpt, reason), nil
	}

	changed, err := svc.merge.MergeEntries(ctx, channelID, parsed.Entries)
	if err != nil {
		return nil, err
	}
	rcpt.EntryCount = len(parsed.Entries)
	rcpt.RowsChanged = changed

	logEntry := models.IngestionLog{
		Topic:         topic,
		Bytes:         len(body),
		ContentDigest: models.DigestContent(body),
		EntryCount:    len(parsed.Entries),
		RowsChanged:   int(changed),
	}
	if err := svc.db.WithContext(ctx).Create(&logEntry).Error; err != nil {
		// the ingestion itself succeeded; losing the log row is not fatal
		svc.log.Sugar().Errorw("Failed to append ingestion log", "err", err)
	}

	svc.log.Sugar().Infow("Notification ingested",
		"topic", topic, "bytes", len(body), "entries", len(parsed.Entries), "rows_changed", changed)
	return rcpt, nil
}

// resolveChannel maps a topic onto an internal channel id. Resolution order:
// the subscription's stored mapping, then the publisher id from the payload
// or the topic URL. A publisher seen for the first time gets a Channel row;
// ingestion never updates existing Channel rows.
func (svc *ingestNotification) resolveChannel(ctx context.Context, topic string, parsed *feed.Feed) (uint, string, error) {
	var sub models.Subscription
	tx := svc.db.WithContext(ctx).Where("topic = ?", topic).First(&sub)
	switch {
	case errors.Is(tx.Error, gorm.ErrRecordNotFound):
		// no subscription row; fall through to publisher-id resolution
	case tx.Error != nil:
		return 0, "", tx.Error
	default:
		if sub.Status == models.StatusRejected {
			return 0, "subscription rejected", nil
		}
		if sub.ChannelID.Valid {
			return uint(sub.ChannelID.Int64), "", nil
		}
	}

	externalID := parsed.ChannelID
	if externalID == "" {
		externalID = TopicChannelID(topic)
	}
	if externalID == "" {
		return 0, "no publisher id in topic or payload", nil
	}

	channel := models.Channel{ChannelID: externalID, Title: parsed.Title}
	tx = svc.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "channel_id"}}, DoNothing: true}).
		Create(&channel)
	if tx.Error != nil {
		return 0, "", tx.Error
	}
	if channel.ID == 0 {
		// conflict path: the publisher already exists
		tx = svc.db.WithContext(ctx).Where("channel_id = ?", externalID).First(&channel)
		if tx.Error != nil {
			return 0, "", tx.Error
		}
	}

	if sub.ID != 0 && !sub.ChannelID.Valid {
		if err := svc.db.WithContext(ctx).Model(&sub).Update("channel_id", channel.ID).Error; err != nil {
			return 0, "", err
		}
	}

	return channel.ID, "", nil
}

func (svc *ingestNotification) drop(rcpt *Receipt, reason string) *Receipt {
	rcpt.Dropped = true
	rcpt.DropReason = reason
	rcpt.DropRef = uuid.NewString()
	svc.log.Sugar().Infow("Notification dropped", "topic", rcpt.Topic, "reason", reason, "drop_ref", rcpt.DropRef)
	return rcpt
}
