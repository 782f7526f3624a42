package models

import (
	"math"
	"time"
)

// Regulatory item statuses as shown on the regulatory horizon.
const (
	StatusNew              = "New"
	StatusAnalysisProgress = "Analysis in Progress"
	StatusGapsIdentified   = "Gaps Identified"
	StatusCompleted        = "Completed"
)

// Priorities, ordered from most to least pressing.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// DateLayout is the calendar-date format used for publication, closing and due dates.
const DateLayout = "2006-01-02"

var regulatoryStatusMap = map[string]bool{
	StatusNew:              true,
	StatusAnalysisProgress: true,
	StatusGapsIdentified:   true,
	StatusCompleted:        true,
}

var priorityMap = map[string]bool{
	PriorityUrgent: true,
	PriorityHigh:   true,
	PriorityMedium: true,
	PriorityLow:    true,
}

// RegulatoryItem is a regulatory document tracked on the dashboard.
type RegulatoryItem struct {
	// ID is a stable identifier such as "reg-1".
	ID              string    `gorm:"primaryKey" json:"id" yaml:"id"`
	Title           string    `gorm:"not null" json:"title" yaml:"title"`
	PublicationDate string    `json:"publicationDate" yaml:"publicationDate"`
	ClosingDate     string    `json:"closingDate" yaml:"closingDate"`
	Status          string    `json:"status" yaml:"status"`
	Priority        string    `json:"priority" yaml:"priority"`
	GapsFound       int       `json:"gapsFound" yaml:"gapsFound"`
	Type            string    `json:"type" yaml:"type"`
	Content         string    `json:"content,omitempty" yaml:"content"`
	CreatedAt       time.Time `json:"createdAt" yaml:"-"`
}

// IsValidRegulatoryStatus reports whether status is one of the four dashboard statuses.
func IsValidRegulatoryStatus(status string) bool {
	return regulatoryStatusMap[status]
}

// IsValidPriority reports whether priority is urgent, high, medium or low.
func IsValidPriority(priority string) bool {
	return priorityMap[priority]
}

// DaysUntil returns the whole days from now until the given calendar date,
// rounded up. Past dates yield zero or negative values.
func DaysUntil(date string, now time.Time) (int, error) {
	target, err := time.ParseInLocation(DateLayout, date, now.Location())
	if err != nil {
		return 0, err
	}
	diff := target.Sub(now)
	return int(math.Ceil(diff.Hours() / 24)), nil
}

// CompletionRate returns completed/total as a rounded percentage.
func CompletionRate(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
