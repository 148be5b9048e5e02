package models

import (
	"time"
)

// Update is an audit-trail entry written once per status-changing operation.
// Rows are never modified or deleted except by cascade from their issue.
type Update struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	IssueID   uint        `json:"issueId" gorm:"not null;index"`
	Status    IssueStatus `json:"status" gorm:"not null"`
	Note      string      `json:"note" gorm:"type:text;not null"`
	CreatedAt time.Time   `json:"createdAt"`
}

func (Update) TableName() string {
	return "updates"
}
