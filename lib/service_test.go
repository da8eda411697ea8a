package lib

import (
	"crypto/hmac"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tubefeed/tubefeed/config"
	"github.com/tubefeed/tubefeed/lib/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testSecret = "test-secret"
	testToken  = "test-token"
	testTopic  = "https://www.youtube.com/xml/feeds/videos.xml?channel_id=UCxyz"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Channel{},
		&models.Video{},
		&models.Playlist{},
		&models.PlaylistVideo{},
		&models.Subscription{},
		&models.IngestionLog{},
	))

	cfg := &config.Config{
		WebsubSecret:      testSecret,
		WebsubVerifyToken: testToken,
		Debug:             true,
	}
	return NewService(cfg, zap.NewNop(), db, Capabilities{PlaylistThumbColumn: true}, nil)
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

func notificationXML(channelID, channelTitle string, entries ...string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
  <link rel="self" href="https://www.youtube.com/xml/feeds/videos.xml?channel_id=%s"/>
  <yt:channelId>%s</yt:channelId>
  <title>%s</title>
%s
</feed>`, channelID, channelID, channelTitle, strings.Join(entries, "\n")))
}

func entryXML(videoID, title, published string) string {
	publishedTag := ""
	if published != "" {
		publishedTag = "<published>" + published + "</published>"
	}
	return fmt.Sprintf(`  <entry>
    <id>yt:video:%[1]s</id>
    <yt:videoId>%[1]s</yt:videoId>
    <title>%[2]s</title>
    %[3]s
    <media:group>
      <media:description>description of %[1]s</media:description>
      <media:thumbnail url="https://i.ytimg.com/vi/%[1]s/hqdefault.jpg"/>
    </media:group>
  </entry>`, videoID, title, publishedTag)
}

func seedChannel(t *testing.T, svc *Service, externalID, title string) models.Channel {
	t.Helper()
	channel := models.Channel{ChannelID: externalID, Title: title}
	require.NoError(t, svc.db.Create(&channel).Error)
	return channel
}

func seedSubscription(t *testing.T, svc *Service, topic string, channelID uint, status string, requestedAt int64) models.Subscription {
	t.Helper()
	sub := models.Subscription{Topic: topic, Status: status}
	if channelID != 0 {
		sub.ChannelID = sql.NullInt64{Int64: int64(channelID), Valid: true}
	}
	if requestedAt != 0 {
		sub.LastRequestedAt = sql.NullInt64{Int64: requestedAt, Valid: true}
	}
	require.NoError(t, svc.db.Create(&sub).Error)
	return sub
}

func videoCount(t *testing.T, svc *Service) int64 {
	t.Helper()
	var n int64
	require.NoError(t, svc.db.Model(&models.Video{}).Count(&n).Error)
	return n
}
