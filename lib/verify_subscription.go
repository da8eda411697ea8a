package lib

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tubefeed/tubefeed/config"
	"github.com/tubefeed/tubefeed/lib/models"
	"github.com/tubefeed/tubefeed/lib/websub"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// A verification handshake is only honored inside this window after a
// subscribe was requested; anything later is treated as forged or replayed.
const verifyWindow = 15 * time.Minute

type verifySubscription struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

type VerificationRequest struct {
	Mode         string
	Topic        string
	Challenge    string
	VerifyToken  string
	LeaseSeconds int64
}

// VerifySubscription arbitrates the hub's GET handshake. On success the
// subscription becomes active, its lease is recorded, and the challenge is
// returned for the caller to echo verbatim.
func (svc *verifySubscription) VerifySubscription(ctx context.Context, req VerificationRequest) (string, error) {
	if req.Challenge == "" {
		return "", fmt.Errorf("%w: missing hub.challenge", ErrInvalidRequest)
	}
	topic := CanonicalTopic(req.Topic)
	if topic == "" {
		return "", fmt.Errorf("%w: missing hub.topic", ErrInvalidRequest)
	}
	if !websub.TokenMatch(svc.cfg.WebsubVerifyToken, req.VerifyToken) {
		svc.log.Sugar().Infow("Verification with bad token", "topic", topic, "mode", req.Mode)
		return "", fmt.Errorf("%w: bad verify token", ErrForbidden)
	}

	var sub models.Subscription
	tx := svc.db.WithContext(ctx).Where("topic = ?", topic).First(&sub)
	if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: unknown topic", ErrNotFound)
	} else if tx.Error != nil {
		return "", tx.Error
	}

	now := nowSec()
	if !sub.LastRequestedAt.Valid || sub.LastRequestedAt.Int64 < now-int64(verifyWindow/time.Second) {
		svc.db.WithContext(ctx).Model(&sub).Updates(map[string]any{
			"status":     models.StatusRejected,
			"last_error": "stale verification",
		})
		svc.log.Sugar().Infow("Stale verification", "topic", topic)
		return "", fmt.Errorf("%w: stale verification", ErrForbidden)
	}

	updates := map[string]any{
		"status":           models.StatusActive,
		"last_verified_at": now,
		"last_error":       nil,
	}
	if req.LeaseSeconds > 0 {
		updates["lease_expires_at"] = now + req.LeaseSeconds
	}
	if err := svc.db.WithContext(ctx).Model(&sub).Updates(updates).Error; err != nil {
		return "", err
	}

	svc.log.Sugar().Infow("Subscription verified", "topic", topic, "mode", req.Mode, "lease_seconds", req.LeaseSeconds)
	return req.Challenge, nil
}
