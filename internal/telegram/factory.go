package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/blockedby/tg-export/internal/config"
	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenSessionDB opens the database that stores the telegram session:
// postgres when DATABASE_URL is set, a local sqlite file otherwise.
func OpenSessionDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if cfg.DatabaseURL != "" {
		dialector = postgres.Open(cfg.DatabaseURL)
	} else {
		dialector = sqlite.Open(cfg.TGSessionFile)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	return db, nil
}

// CloseSessionDB releases the connection pool behind an OpenSessionDB handle.
func CloseSessionDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("session db handle: %w", err)
	}
	return sqlDB.Close()
}

// NewPersistentClient creates an authenticated gotgproto client.
// A configured session string wins; otherwise the session stored in db is used
// and refreshed auth keys are written back to it.
func NewPersistentClient(_ context.Context, cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error) {
	opts := &gotgproto.ClientOpts{
		DisableCopyright: true,
	}

	switch {
	case cfg.TGSessionStr != "":
		opts.Session = sessionMaker.StringSession(cfg.TGSessionStr)
		opts.InMemory = true
	case db != nil:
		opts.Session = sessionMaker.SqlSession(db.Dialector)
	default:
		return nil, errors.New("no session string and no session database")
	}

	client, err := gotgproto.NewClient(
		cfg.TGApiID,
		cfg.TGApiHash,
		gotgproto.ClientTypePhone(""), // empty = use session
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}

	return client, nil
}
