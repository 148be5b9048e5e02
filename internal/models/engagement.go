package models

import (
	"time"
)

// Upvote is keyed by (issue, user); the composite primary key is what keeps
// one endorsement per user per issue.
type Upvote struct {
	IssueID   uint      `json:"issueId" gorm:"primaryKey;autoIncrement:false"`
	UserID    uint      `json:"userId" gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Upvote) TableName() string {
	return "upvotes"
}

type Comment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	IssueID   uint      `json:"issueId" gorm:"not null;index"`
	UserID    uint      `json:"userId" gorm:"not null;index"`
	User      *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Comment) TableName() string {
	return "comments"
}
