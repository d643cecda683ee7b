// Package session persists playback progress so a video can be
// resumed where it was left off.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
	"gorm.io/gorm"

	"github.com/justchokingaround/vidbridge/internal/database"
)

// SortOrder defines the sorting order for session listings
type SortOrder string

const (
	SortRecentFirst   SortOrder = "recent_first"
	SortOldestFirst   SortOrder = "oldest_first"
	SortTitleAsc      SortOrder = "title_asc"
	SortFractionDesc  SortOrder = "fraction_desc"
	SortWatchCountTop SortOrder = "watch_count"
)

// FilterOptions defines filtering options for session queries
type FilterOptions struct {
	SearchQuery string // fuzzy match on title
	Finished    *bool
	Limit       int // 0 means no limit
	Offset      int
	SortBy      SortOrder
}

// Progress is one progress report for a source
type Progress struct {
	SourceURI string
	Title     string
	Position  float64 // seconds
	Duration  float64 // seconds
	Volume    float64
}

// Stats represents aggregate session statistics
type Stats struct {
	TotalSessions  int64
	FinishedCount  int64
	TotalWatchTime time.Duration
}

// Service provides session persistence
type Service struct {
	db *gorm.DB

	// Sessions covering less than minFraction of the video are not
	// worth keeping; at or above doneFraction they count as finished.
	minFraction  float64
	doneFraction float64
}

// NewService creates a session service. minFraction and doneFraction
// come from the sessions config section.
func NewService(db *gorm.DB, minFraction, doneFraction float64) *Service {
	return &Service{
		db:           db,
		minFraction:  minFraction,
		doneFraction: doneFraction,
	}
}

// SaveProgress records the current position for a source, creating the
// session row on first report and updating it afterwards. Reports
// below the minimum fraction are dropped unless a session already
// exists.
func (s *Service) SaveProgress(p Progress) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if p.SourceURI == "" {
		return fmt.Errorf("source URI is empty")
	}

	fraction := 0.0
	if p.Duration > 0 {
		fraction = p.Position / p.Duration
		if fraction > 1 {
			fraction = 1
		}
	}
	finished := fraction >= s.doneFraction

	var existing database.Session
	err := s.db.Where("source_uri = ?", p.SourceURI).First(&existing).Error
	if err == nil {
		existing.Title = p.Title
		existing.PositionSeconds = p.Position
		existing.DurationSeconds = p.Duration
		existing.Fraction = fraction
		existing.Volume = p.Volume
		existing.LastPlayedAt = time.Now()
		if finished {
			existing.Finished = true
		}
		return s.db.Save(&existing).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up session: %w", err)
	}

	if fraction < s.minFraction && !finished {
		return nil
	}

	now := time.Now()
	return s.db.Create(&database.Session{
		ID:              uuid.NewString(),
		SourceURI:       p.SourceURI,
		Title:           p.Title,
		PositionSeconds: p.Position,
		DurationSeconds: p.Duration,
		Fraction:        fraction,
		Volume:          p.Volume,
		WatchCount:      1,
		Finished:        finished,
		FirstPlayedAt:   now,
		LastPlayedAt:    now,
	}).Error
}

// Resume returns the saved session for a source, or nil when there is
// none worth resuming. A finished session resumes from the start.
func (s *Service) Resume(sourceURI string) (*database.Session, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var session database.Session
	err := s.db.Where("source_uri = ?", sourceURI).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	if session.Finished {
		session.PositionSeconds = 0
	}
	return &session, nil
}

// MarkReplayed bumps the watch count for a source. Called when a
// session's video is loaded again.
func (s *Service) MarkReplayed(sourceURI string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Model(&database.Session{}).
		Where("source_uri = ?", sourceURI).
		Update("watch_count", gorm.Expr("watch_count + 1")).Error
}

// List retrieves sessions with filtering and sorting. A search query
// fuzzy-matches against titles.
func (s *Service) List(filter FilterOptions) ([]database.Session, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query := s.db.Model(&database.Session{})

	if filter.Finished != nil {
		query = query.Where("finished = ?", *filter.Finished)
	}

	switch filter.SortBy {
	case SortOldestFirst:
		query = query.Order("last_played_at ASC")
	case SortTitleAsc:
		query = query.Order("title ASC")
	case SortFractionDesc:
		query = query.Order("fraction DESC")
	case SortWatchCountTop:
		query = query.Order("watch_count DESC")
	default: // SortRecentFirst
		query = query.Order("last_played_at DESC")
	}

	var sessions []database.Session
	if err := query.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch sessions: %w", err)
	}

	if filter.SearchQuery != "" {
		titles := make([]string, len(sessions))
		for i, sess := range sessions {
			titles[i] = sess.Title
		}
		matches := fuzzy.Find(filter.SearchQuery, titles)

		filtered := make([]database.Session, len(matches))
		for i, match := range matches {
			filtered[i] = sessions[match.Index]
		}
		sessions = filtered
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(sessions) {
			return nil, nil
		}
		sessions = sessions[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(sessions) {
		sessions = sessions[:filter.Limit]
	}

	return sessions, nil
}

// GetStats retrieves aggregate session statistics
func (s *Service) GetStats() (*Stats, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var stats Stats

	if err := s.db.Model(&database.Session{}).Count(&stats.TotalSessions).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&database.Session{}).Where("finished = ?", true).Count(&stats.FinishedCount).Error; err != nil {
		return nil, err
	}

	var totalSeconds float64
	if err := s.db.Model(&database.Session{}).
		Select("COALESCE(SUM(position_seconds), 0)").
		Scan(&totalSeconds).Error; err != nil {
		return nil, err
	}
	stats.TotalWatchTime = time.Duration(totalSeconds) * time.Second

	return &stats, nil
}

// DeleteBySource removes the session for a source
func (s *Service) DeleteBySource(sourceURI string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Where("source_uri = ?", sourceURI).Delete(&database.Session{}).Error
}

// Clear removes all sessions
func (s *Service) Clear() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Where("1 = 1").Delete(&database.Session{}).Error
}

// Cleanup prunes sessions whose last playback is older than the
// retention window. A retention of 0 keeps everything.
func (s *Service) Cleanup(retentionDays int) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("last_played_at < ?", cutoff).Delete(&database.Session{})
	return result.RowsAffected, result.Error
}
