package lib

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tubefeed/tubefeed/lib/models"
)

func TestIngestRejectsBadSignature(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	body := notificationXML("UCxyz", "Example", entryXML("abc123def45", "T1", "2023-01-02T03:04:05+00:00"))

	_, err := svc.IngestNotification(ctx, body, signBody("wrong-secret", body), testTopic)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.EqualValues(t, 0, videoCount(t, svc), "a rejected signature must cause zero store mutations")

	tampered := append([]byte(nil), body...)
	tampered[10] ^= 0x01
	_, err = svc.IngestNotification(ctx, tampered, signBody(testSecret, body), testTopic)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.EqualValues(t, 0, videoCount(t, svc))
}

func TestIngestFailsClosedWithoutSecret(t *testing.T) {
	svc := newTestService(t)
	svc.cfg.WebsubSecret = ""
	body := notificationXML("UCxyz", "Example", entryXML("abc123def45", "T1", "2023-01-02T03:04:05+00:00"))

	_, err := svc.IngestNotification(context.Background(), body, signBody("", body), testTopic)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestIngestViaSubscriptionMapping(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ch := seedChannel(t, svc, "UCxyz", "Example")
	seedSubscription(t, svc, testTopic, ch.ID, models.StatusActive, nowSec())

	body := notificationXML("UCxyz", "Example",
		entryXML("abc123def45", "T1", "2023-01-02T03:04:05+00:00"),
		entryXML("def456ghi78", "T2", "2023-01-03T03:04:05+00:00"),
	)

	rcpt, err := svc.IngestNotification(ctx, body, signBody(testSecret, body), testTopic)
	require.NoError(t, err)
	assert.False(t, rcpt.Dropped)
	assert.Equal(t, 2, rcpt.EntryCount)
	assert.EqualValues(t, 2, rcpt.RowsChanged)
	assert.EqualValues(t, 2, videoCount(t, svc))

	var logEntry models.IngestionLog
	require.NoError(t, svc.db.First(&logEntry).Error)
	assert.Equal(t, testTopic, logEntry.Topic)
	assert.Equal(t, len(body), logEntry.Bytes)
	assert.Equal(t, models.DigestContent(body), logEntry.ContentDigest)
	assert.Equal(t, 2, logEntry.EntryCount)
	assert.Equal(t, 2, logEntry.RowsChanged)
}

func TestIngestIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ch := seedChannel(t, svc, "UCxyz", "Example")
	seedSubscription(t, svc, testTopic, ch.ID, models.StatusActive, nowSec())

	body := notificationXML("UCxyz", "Example", entryXML("abc123def45", "T1", "2023-01-02T03:04:05+00:00"))
	sig := signBody(testSecret, body)

	first, err := svc.IngestNotification(ctx, body, sig, testTopic)
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.RowsChanged)

	second, err := svc.IngestNotification(ctx, body, sig, testTopic)
	require.NoError(t, err)
	assert.EqualValues(t, 0, second.RowsChanged)
	assert.EqualValues(t, 1, videoCount(t, svc))
}

func TestIngestTopicFromPayloadSelfLink(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ch := seedChannel(t, svc, "UCxyz", "Example")
	seedSubscription(t, svc, testTopic, ch.ID, models.StatusActive, nowSec())

	body := notificationXML("UCxyz", "Example", entryXML("abc123def45", "T1", "2023-01-02T03:04:05+00:00"))

	// no topic header: identification falls back to the payload's rel=self link
	rcpt, err := svc.IngestNotification(ctx, body, signBody(testSecret, body), "")
	require.NoError(t, err)
	assert.Equal(t, testTopic, rcpt.Topic)
	assert.EqualValues(t, 1, videoCount(t, svc))
}

func TestIngestCreatesChannelOnFirstObservation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedSubscription(t, svc, testTopic, 0, models.StatusActive, nowSec())

	body := notificationXML("UCxyz", "Example", entryXML("abc123def45", "T1", "2023-01-02T03:04:05+00:00"))
	_, err := svc.IngestNotification(ctx, body, signBody(testSecret, body), testTopic)
	require.NoError(t, err)

	var ch models.Channel
	require.NoError(t, svc.db.Where("channel_id = ?", "UCxyz").First(&ch).Error)
	assert.Equal(t, "Example", ch.Title)

	// the subscription mapping is backfilled
	var sub models.Subscription
	require.NoError(t, svc.db.Where("topic = ?", testTopic).First(&sub).Error)
	require.True(t, sub.ChannelID.Valid)
	assert.EqualValues(t, ch.ID, sub.ChannelID.Int64)
}

func TestIngestUnmappableIsAcceptedAndDropped(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	body := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>No channel id anywhere</title>
  <entry><id>yt:video:abc123def45</id><title>T1</title></entry>
</feed>`)

	rcpt, err := svc.IngestNotification(ctx, body, signBody(testSecret, body), "https://example.com/feeds/unknown")
	require.NoError(t, err, "unmappable notifications are accepted so the hub does not retry")
	assert.True(t, rcpt.Dropped)
	assert.NotEmpty(t, rcpt.DropReason)
	assert.NotEmpty(t, rcpt.DropRef)
	assert.EqualValues(t, 0, videoCount(t, svc))
}

func TestIngestRejectedSubscriptionDrops(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ch := seedChannel(t, svc, "UCxyz", "Example")
	seedSubscription(t, svc, testTopic, ch.ID, models.StatusRejected, 0)

	body := notificationXML("UCxyz", "Example", entryXML("abc123def45", "T1", "2023-01-02T03:04:05+00:00"))
	rcpt, err := svc.IngestNotification(ctx, body, signBody(testSecret, body), testTopic)
	require.NoError(t, err)
	assert.True(t, rcpt.Dropped)
	assert.EqualValues(t, 0, videoCount(t, svc))
}

func TestIngestMissingTopic(t *testing.T) {
	svc := newTestService(t)
	body := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>No self link</title></feed>`)

	_, err := svc.IngestNotification(context.Background(), body, signBody(testSecret, body), "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestIngestUnparseablePayloadDrops(t *testing.T) {
	svc := newTestService(t)
	body := []byte("definitely not xml")

	rcpt, err := svc.IngestNotification(context.Background(), body, signBody(testSecret, body), testTopic)
	require.NoError(t, err)
	assert.True(t, rcpt.Dropped)
	assert.EqualValues(t, 0, videoCount(t, svc))
}

func TestIngestExpiredLeaseStillAccepts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ch := seedChannel(t, svc, "UCxyz", "Example")
	sub := seedSubscription(t, svc, testTopic, ch.ID, models.StatusActive, nowSec())
	require.NoError(t, svc.db.Model(&sub).Update("lease_expires_at", nowSec()-60).Error)

	body := notificationXML("UCxyz", "Example", entryXML("abc123def45", "T1", "2023-01-02T03:04:05+00:00"))
	rcpt, err := svc.IngestNotification(ctx, body, signBody(testSecret, body), testTopic)
	require.NoError(t, err)
	assert.False(t, rcpt.Dropped, "hubs may deliver slightly past lease expiry")
	assert.EqualValues(t, 1, videoCount(t, svc))
}
