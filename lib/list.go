package lib

import (
	"context"
	"database/sql"

	"github.com/tubefeed/tubefeed/config"
	"github.com/tubefeed/tubefeed/lib/cursor"
	"github.com/tubefeed/tubefeed/lib/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// listQueries answers every list-style read with the same keyset-pagination
// contract: rows ordered (COALESCE(published_at,0) DESC, id DESC), a cursor
// expressing a composite lower bound, and a next_cursor derived from the
// last row. The ordering is backed by the composite indexes declared on the
// models; offset pagination is deliberately not offered.
type listQueries struct {
	cfg  *config.Config
	log  *zap.Logger
	db   *gorm.DB
	caps Capabilities
}

const (
	defaultPageSize  = 24
	maxPageSize      = 60
	defaultPlaylists = 50
	maxPlaylists     = 200
)

func clampLimit(limit, fallback, max int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}

// keysetWhere appends the composite page-boundary condition for a cursor.
func keysetWhere(q *gorm.DB, table string, cur cursor.Cursor) *gorm.DB {
	col := "COALESCE(" + table + ".published_at, 0)"
	return q.Where(
		col+" < ? OR ("+col+" = ? AND "+table+".id < ?)",
		cur.SortKey, cur.SortKey, cur.Tiebreak,
	)
}

type pageKeyed interface {
	pageKey() (sortKey int64, tiebreak uint)
}

// nextPageCursor encodes the token for the page after rows, or "" when the
// page came up short of the limit and there is nothing further to fetch.
func nextPageCursor[T pageKeyed](rows []T, limit int) string {
	if len(rows) < limit {
		return ""
	}
	sortKey, tiebreak := rows[len(rows)-1].pageKey()
	return cursor.Encode(sortKey, tiebreak)
}

type SubscriptionRow struct {
	ID              uint
	Topic           string
	Status          string
	ChannelID       sql.NullString // external publisher id, null while unresolved
	LeaseExpiresAt  sql.NullInt64
	LastRequestedAt sql.NullInt64
	LastVerifiedAt  sql.NullInt64
	LastError       sql.NullString
}

func (svc *listQueries) ListSubscriptions(ctx context.Context) ([]SubscriptionRow, error) {
	var rows []SubscriptionRow
	err := svc.db.WithContext(ctx).
		Table("subscriptions").
		Select("subscriptions.id, subscriptions.topic, subscriptions.status," +
			" subscriptions.lease_expires_at, subscriptions.last_requested_at," +
			" subscriptions.last_verified_at, subscriptions.last_error," +
			" channels.channel_id AS channel_id").
		Joins("LEFT JOIN channels ON channels.id = subscriptions.channel_id").
		Where("subscriptions.deleted_at IS NULL").
		Order("subscriptions.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	now := nowSec()
	for i := range rows {
		derived := models.Subscription{Status: rows[i].Status, LeaseExpiresAt: rows[i].LeaseExpiresAt}
		rows[i].Status = derived.EffectiveStatus(now)
	}
	return rows, nil
}
