// Package history persists validated reactions in SQLite so the creature
// remembers across restarts. Recency queries feed both the presentation API
// and the memory recall fusion.
package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hackerthon-gemini-agc/boni/internal/memory"
	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

// Store wraps the GORM connection to the reactions database.
type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// Config holds database configuration.
type Config struct {
	Path     string          // path to the SQLite database file
	MaxConns int             // maximum open connections (default: 4)
	LogLevel logger.LogLevel // logger.Silent for production
}

// NewStore opens the database, runs migrations, and enables WAL mode for
// concurrent reads.
func NewStore(cfg Config) (*Store, error) {
	dsn := cfg.Path + "?_foreign_keys=ON"

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger:      logger.Default.LogMode(cfg.LogLevel),
		PrepareStmt: true,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// WAL and synchronous mode go through raw SQL after migrations to avoid
	// GORM transaction wrapping.
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("set synchronous mode: %w", err)
	}

	return &Store{db: db, sqlDB: sqlDB}, nil
}

func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_reactions",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&ReactionRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("reactions")
			},
		},
	})
	return m.Migrate()
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Append stores one validated reaction.
func (s *Store) Append(ctx context.Context, row *ReactionRow) error {
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("append reaction: %w", err)
	}
	return nil
}

// Recent returns the n most recent reactions, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]ReactionRow, error) {
	var rows []ReactionRow
	err := s.db.WithContext(ctx).
		Order("created_at_epoch DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("recent reactions: %w", err)
	}
	return rows, nil
}

// RecentSnippets adapts recent rows into recall snippets, newest first.
// Implements the recall fusion's local source.
func (s *Store) RecentSnippets(ctx context.Context, n int) ([]memory.Snippet, error) {
	rows, err := s.Recent(ctx, n)
	if err != nil {
		return nil, err
	}
	snippets := make([]memory.Snippet, 0, len(rows))
	for _, r := range rows {
		snippets = append(snippets, memory.Snippet{
			Timestamp: r.CreatedAt,
			Mood:      r.Mood,
			Message:   r.Message,
		})
	}
	return snippets, nil
}

// CountByMood returns how many stored reactions carry each mood.
func (s *Store) CountByMood(ctx context.Context) (map[models.Mood]int64, error) {
	type bucket struct {
		Mood  string
		Count int64
	}
	var buckets []bucket
	err := s.db.WithContext(ctx).
		Model(&ReactionRow{}).
		Select("mood, COUNT(*) as count").
		Group("mood").
		Scan(&buckets).Error
	if err != nil {
		return nil, fmt.Errorf("count by mood: %w", err)
	}
	out := make(map[models.Mood]int64, len(buckets))
	for _, b := range buckets {
		out[models.Mood(b.Mood)] = b.Count
	}
	return out, nil
}

// Prune deletes rows older than the given epoch milliseconds and returns the
// number removed.
func (s *Store) Prune(ctx context.Context, beforeEpochMs int64) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at_epoch < ?", beforeEpochMs).
		Delete(&ReactionRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune reactions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
