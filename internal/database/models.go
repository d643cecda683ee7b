package database

import (
	"time"
)

// Session represents one tracked playback of a video source. A source
// has at most one session row; replays update it in place.
type Session struct {
	ID              string    `gorm:"primaryKey"` // uuid
	SourceURI       string    `gorm:"not null;uniqueIndex"`
	Title           string    `gorm:"not null"`
	PositionSeconds float64   `gorm:"not null;default:0"`
	DurationSeconds float64   `gorm:"not null;default:0"`
	Fraction        float64   `gorm:"not null;default:0"`
	Volume          float64   `gorm:"not null;default:1"`
	WatchCount      int       `gorm:"not null;default:1"`
	Finished        bool      `gorm:"default:false;index"`
	FirstPlayedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	LastPlayedAt    time.Time `gorm:"index;default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Session) TableName() string {
	return "sessions"
}

// Setting represents a key-value store for application settings
type Setting struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Setting) TableName() string {
	return "settings"
}
