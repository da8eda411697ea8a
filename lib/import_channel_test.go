package lib

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tubefeed/tubefeed/lib/models"
)

// roundTripFunc serves canned feed documents without a network.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func feedResponder(t *testing.T, body []byte) http.RoundTripper {
	t.Helper()
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/atom+xml"}},
			Body:       io.NopCloser(strings.NewReader(string(body))),
			Request:    r,
		}, nil
	})
}

func TestImportChannelBootstraps(t *testing.T) {
	svc := newTestService(t)
	body := notificationXML("UCxyz", "Example",
		entryXML("abc123def45", "T1", "2023-01-02T03:04:05+00:00"),
		entryXML("def456ghi78", "T2", "2023-01-03T03:04:05+00:00"),
	)
	svc.importChannel.transport = feedResponder(t, body)

	channel, changed, err := svc.ImportChannel(context.Background(), "https://www.youtube.com/feeds/videos.xml?channel_id=UCxyz")
	require.NoError(t, err)
	assert.Equal(t, "UCxyz", channel.ChannelID)
	assert.Equal(t, "Example", channel.Title)
	assert.Equal(t, "https://i.ytimg.com/vi/abc123def45/hqdefault.jpg", channel.ThumbnailURL,
		"thumbnail falls back to the first entry when the feed has no image")
	assert.EqualValues(t, 2, changed)
	assert.EqualValues(t, 2, videoCount(t, svc))
}

func TestImportChannelRefreshesMetadata(t *testing.T) {
	svc := newTestService(t)
	seedChannel(t, svc, "UCxyz", "Old Title")

	body := notificationXML("UCxyz", "New Title", entryXML("abc123def45", "T1", "2023-01-02T03:04:05+00:00"))
	svc.importChannel.transport = feedResponder(t, body)

	channel, _, err := svc.ImportChannel(context.Background(), "https://www.youtube.com/feeds/videos.xml?channel_id=UCxyz")
	require.NoError(t, err)
	assert.Equal(t, "New Title", channel.Title)

	var count int64
	require.NoError(t, svc.db.Model(&models.Channel{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "import must not duplicate an existing channel")
}

func TestImportChannelRejectsBadInput(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.ImportChannel(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	svc.importChannel.transport = feedResponder(t, []byte("not a feed"))
	_, _, err = svc.ImportChannel(context.Background(), "https://www.youtube.com/feeds/videos.xml?channel_id=UCxyz")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
