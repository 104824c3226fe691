package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm/logger"

	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

type StoreSuite struct {
	suite.Suite

	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	path := filepath.Join(s.T().TempDir(), "history.db")
	store, err := NewStore(Config{Path: path, LogLevel: logger.Silent})
	s.Require().NoError(err)
	s.store = store
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func (s *StoreSuite) row(epochMs int64, mood, message string) *ReactionRow {
	return &ReactionRow{
		CreatedAt:      time.UnixMilli(epochMs).UTC().Format(time.RFC3339),
		CreatedAtEpoch: epochMs,
		Reason:         string(models.ReasonDwellTimeout),
		AppName:        "Terminal",
		Mood:           mood,
		Expression:     string(models.ExpressionGrumpy),
		Placement:      string(models.PlacementRightOfWindow),
		Message:        message,
		CPUPercent:     40,
		RAMPercent:     60,
	}
}

func (s *StoreSuite) TestAppendAndRecent() {
	ctx := context.Background()

	s.Require().NoError(s.store.Append(ctx, s.row(1000, "chill", "first")))
	s.Require().NoError(s.store.Append(ctx, s.row(2000, "judgy", "second")))
	s.Require().NoError(s.store.Append(ctx, s.row(3000, "chill", "third")))

	rows, err := s.store.Recent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("third", rows[0].Message)
	s.Equal("second", rows[1].Message)
}

func (s *StoreSuite) TestRecentEmptyStore() {
	rows, err := s.store.Recent(context.Background(), 5)
	s.Require().NoError(err)
	s.Empty(rows)
}

func (s *StoreSuite) TestBeforeCreateFillsTimestamps() {
	ctx := context.Background()
	row := &ReactionRow{
		Reason:     string(models.ReasonIdleThreshold),
		Mood:       "chill",
		Expression: string(models.ExpressionNeutral),
		Placement:  string(models.PlacementNearMenuBar),
		Message:    "zzz",
	}
	s.Require().NoError(s.store.Append(ctx, row))

	rows, err := s.store.Recent(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.NotZero(rows[0].CreatedAtEpoch)
	s.NotEmpty(rows[0].CreatedAt)
}

func (s *StoreSuite) TestRecentSnippets() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, s.row(1000, "chill", "old news")))
	s.Require().NoError(s.store.Append(ctx, s.row(2000, "pleased", "fresh")))

	snippets, err := s.store.RecentSnippets(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(snippets, 2)
	s.Equal("fresh", snippets[0].Message)
	s.Equal("pleased", snippets[0].Mood)
	s.NotEmpty(snippets[0].Timestamp)
}

func (s *StoreSuite) TestCountByMood() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, s.row(1000, "chill", "a")))
	s.Require().NoError(s.store.Append(ctx, s.row(2000, "chill", "b")))
	s.Require().NoError(s.store.Append(ctx, s.row(3000, "dying", "c")))

	counts, err := s.store.CountByMood(ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), counts[models.MoodChill])
	s.Equal(int64(1), counts[models.MoodDying])
}

func (s *StoreSuite) TestPrune() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, s.row(1000, "chill", "ancient")))
	s.Require().NoError(s.store.Append(ctx, s.row(9000, "chill", "recent")))

	removed, err := s.store.Prune(ctx, 5000)
	s.Require().NoError(err)
	s.Equal(int64(1), removed)

	rows, err := s.store.Recent(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("recent", rows[0].Message)
}

func (s *StoreSuite) TestNullableBattery() {
	ctx := context.Background()
	row := s.row(1000, "chill", "desktop")
	row.BatteryPercent = sql.NullInt64{} // machine without a battery
	s.Require().NoError(s.store.Append(ctx, row))

	withBattery := s.row(2000, "chill", "laptop")
	withBattery.BatteryPercent = sql.NullInt64{Int64: 37, Valid: true}
	s.Require().NoError(s.store.Append(ctx, withBattery))

	rows, err := s.store.Recent(ctx, 2)
	s.Require().NoError(err)
	require.Len(s.T(), rows, 2)
	s.True(rows[0].BatteryPercent.Valid)
	s.Equal(int64(37), rows[0].BatteryPercent.Int64)
	s.False(rows[1].BatteryPercent.Valid)
}

func TestNewStoreEnablesWAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.db")
	store, err := NewStore(Config{Path: path, LogLevel: logger.Silent})
	require.NoError(t, err)
	defer store.Close()

	var journalMode string
	require.NoError(t, store.db.Raw("PRAGMA journal_mode").Scan(&journalMode).Error)
	require.Equal(t, "wal", journalMode)
}
