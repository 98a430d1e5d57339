package model

import "time"

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryPublish  = "publish"
	EventCategoryTaxonomy = "taxonomy"
	EventCategoryMedia    = "media"
	EventCategoryQueue    = "queue"
	EventCategoryConfig   = "config"
	EventCategorySystem   = "system"
)

// Event represents an operator-visible event log entry. Partial resolution
// degradations and permanent delivery failures land here.
type Event struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	DraftID   int64 // 0 when not draft-related
	Metadata  string
	CreatedAt time.Time
}
