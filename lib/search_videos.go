package lib

import (
	"context"
	"strings"
	"unicode"

	"github.com/tubefeed/tubefeed/lib/cursor"
)

// SearchVideos filters by title terms under the shared pagination contract.
// Every term must appear in the title; there is no relevance ranking. An
// empty or cleaned-away query is a structured empty result, not an error.
func (svc *listQueries) SearchVideos(ctx context.Context, query string, cur cursor.Cursor, hasCursor bool, limit int) ([]VideoRow, string, error) {
	terms := cleanQuery(query)
	if len(terms) == 0 {
		return []VideoRow{}, "", nil
	}
	limit = clampLimit(limit, defaultPageSize, maxPageSize)

	q := svc.db.WithContext(ctx).
		Table("videos").
		Select("videos.id, videos.video_id, videos.title, videos.published_at," +
			" channels.channel_id AS channel_id, channels.title AS channel_title").
		Joins("JOIN channels ON channels.id = videos.channel_id").
		Order("COALESCE(videos.published_at, 0) DESC, videos.id DESC").
		Limit(limit)
	for _, term := range terms {
		// terms are stripped of punctuation, so no LIKE metacharacters survive
		q = q.Where("videos.title LIKE ?", "%"+term+"%")
	}
	if hasCursor {
		q = keysetWhere(q, "videos", cur)
	}

	var rows []VideoRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, "", err
	}
	return rows, nextPageCursor(rows, limit), nil
}

// cleanQuery splits a raw query into terms, discarding anything that is not
// a letter or a number.
func cleanQuery(query string) []string {
	return strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
