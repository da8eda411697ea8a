package lib

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tubefeed/tubefeed/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
)

// Capabilities describes optional store schema features, resolved once at
// startup and injected. Pure input: recomputing it at any time is safe.
type Capabilities struct {
	PlaylistThumbColumn bool
}

type Service struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB

	*verifySubscription
	*ingestNotification
	*requestSubscription
	*importChannel
	*listQueries
	*mergeEntries
}

func NewService(cfg *config.Config, log *zap.Logger, db *gorm.DB, caps Capabilities, transport http.RoundTripper) *Service {
	merge := &mergeEntries{log, db}
	return &Service{
		cfg, log, db,
		&verifySubscription{cfg, log, db},
		&ingestNotification{cfg, log, db, merge},
		&requestSubscription{cfg, log, db},
		&importChannel{cfg, log, db, transport, merge},
		&listQueries{cfg, log, db, caps},
		merge,
	}
}

func (svc *Service) Health(ctx context.Context) error {
	sqlDB, err := svc.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CanonicalTopic normalizes a topic URL onto the canonical /xml/feeds form
// that appears in the payload's rel=self link, so store lookups match
// exactly regardless of which variant the hub sends.
func CanonicalTopic(topic string) string {
	t := strings.TrimSpace(topic)
	if t == "" {
		return ""
	}
	t = strings.Replace(t, "https://youtube.com/feeds/videos.xml", "https://www.youtube.com/feeds/videos.xml", 1)
	return strings.Replace(t, "https://www.youtube.com/feeds/videos.xml", "https://www.youtube.com/xml/feeds/videos.xml", 1)
}

// TopicChannelID extracts the publisher id carried in a topic URL.
func TopicChannelID(topic string) string {
	u, err := url.Parse(topic)
	if err != nil {
		return ""
	}
	return u.Query().Get("channel_id")
}

func nowSec() int64 {
	return time.Now().UTC().Unix()
}
