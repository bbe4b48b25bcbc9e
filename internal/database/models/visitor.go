package models

import (
	"time"
)

// UniqueVisitor records every identity ever seen by a tenant.
type UniqueVisitor struct {
	IPHash   string    `gorm:"primaryKey;column:ip_hash"`
	LastSeen time.Time `gorm:"not null"`
}

func (UniqueVisitor) TableName() string {
	return "unique_visitors"
}

// VisitorActivity is the rolling per-identity record the bot scorer reads.
// AutomationScore holds the score of the most recent request only.
type VisitorActivity struct {
	IPHash          string    `gorm:"primaryKey;column:ip_hash"`
	FirstSeen       time.Time `gorm:"not null"`
	LastSeen        time.Time `gorm:"not null"`
	RequestCount    int64     `gorm:"not null;default:0"`
	AutomationScore float64   `gorm:"not null;default:0"`
}

func (VisitorActivity) TableName() string {
	return "visitor_activity"
}

// BotLog is an append-only record of a request scored as automated.
type BotLog struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	IPHash     string    `gorm:"column:ip_hash;not null" json:"ip_hash"`
	DetectedAt time.Time `gorm:"not null" json:"detected_at"`
	Reason     string    `gorm:"not null" json:"reason"`
	Confidence float64   `gorm:"not null" json:"confidence"`
}

func (BotLog) TableName() string {
	return "bot_logs"
}
