package app

import (
	"github.com/tubefeed/tubefeed/config"
	"github.com/tubefeed/tubefeed/lib"
	"github.com/tubefeed/tubefeed/lib/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func NewDatabase(cfg *config.Config, log *zap.Logger) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		log.Sugar().Panicw("failed to connect database", "err", err)
	}
	log.Info("Database started")

	log.Info("Starting migrations")
	err = db.AutoMigrate(
		&models.Channel{},
		&models.Video{},
		&models.Playlist{},
		&models.PlaylistVideo{},
		&models.Subscription{},
		&models.IngestionLog{},
	)
	if err != nil {
		log.Sugar().Panicw("failed to migrate database", "err", err)
	}
	return db
}

// NewCapabilities introspects the schema once at startup. Deployments that
// predate the playlist thumb column fall back to deriving thumbnails from
// playlist membership.
func NewCapabilities(db *gorm.DB, log *zap.Logger) lib.Capabilities {
	caps := lib.Capabilities{
		PlaylistThumbColumn: db.Migrator().HasColumn(&models.Playlist{}, "thumb_video_id"),
	}
	log.Sugar().Infow("Resolved store capabilities", "playlist_thumb_column", caps.PlaylistThumbColumn)
	return caps
}
