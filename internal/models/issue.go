package models

import (
	"strings"
	"time"
)

type IssueStatus string
type IssuePriority string

const (
	StatusPending    IssueStatus = "PENDING"
	StatusApproved   IssueStatus = "APPROVED"
	StatusInProgress IssueStatus = "IN_PROGRESS"
	StatusResolved   IssueStatus = "RESOLVED"
	StatusRejected   IssueStatus = "REJECTED"
)

const (
	PriorityLow    IssuePriority = "LOW"
	PriorityMedium IssuePriority = "MEDIUM"
	PriorityHigh   IssuePriority = "HIGH"
	PriorityUrgent IssuePriority = "URGENT"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []IssueStatus{StatusPending, StatusApproved, StatusInProgress, StatusResolved, StatusRejected}

// AllPriorities lists every priority from least to most urgent.
var AllPriorities = []IssuePriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// PublicStatuses are the statuses visible to non-admin readers.
var PublicStatuses = []IssueStatus{StatusApproved, StatusInProgress, StatusResolved}

// ParseStatus normalizes s (case-insensitive, surrounding space ignored) to
// a known status.
func ParseStatus(s string) (IssueStatus, bool) {
	v := IssueStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range AllStatuses {
		if st == v {
			return v, true
		}
	}
	return "", false
}

// ParsePriority normalizes s to a known priority.
func ParsePriority(s string) (IssuePriority, bool) {
	v := IssuePriority(strings.ToUpper(strings.TrimSpace(s)))
	for _, p := range AllPriorities {
		if p == v {
			return v, true
		}
	}
	return "", false
}

// Label renders the status for human-readable notes, e.g. "in progress".
func (s IssueStatus) Label() string {
	return strings.ReplaceAll(strings.ToLower(string(s)), "_", " ")
}

func (p IssuePriority) Label() string {
	return strings.ToLower(string(p))
}

type Issue struct {
	ID          uint          `json:"id" gorm:"primaryKey"`
	Title       string        `json:"title" gorm:"not null"`
	Description string        `json:"description" gorm:"type:text;not null"`
	Location    string        `json:"location" gorm:"not null"`
	City        string        `json:"city" gorm:"not null"`
	State       string        `json:"state" gorm:"not null"`
	Zip         string        `json:"zip" gorm:"not null"`
	Category    string        `json:"category" gorm:"not null;index"`
	Priority    IssuePriority `json:"priority" gorm:"not null;default:'MEDIUM'"`
	Status      IssueStatus   `json:"status" gorm:"not null;default:'PENDING';index"`
	UserID      uint          `json:"userId" gorm:"not null;index"`
	User        *User         `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Images      []Image       `json:"images,omitempty" gorm:"foreignKey:IssueID;constraint:OnDelete:CASCADE"`
	Comments    []Comment     `json:"comments,omitempty" gorm:"foreignKey:IssueID;constraint:OnDelete:CASCADE"`
	Updates     []Update      `json:"updates,omitempty" gorm:"foreignKey:IssueID;constraint:OnDelete:CASCADE"`
	Upvotes     []Upvote      `json:"-" gorm:"foreignKey:IssueID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func (Issue) TableName() string {
	return "issues"
}

// Image is a stored picture attached to an issue at creation time.
type Image struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	URL       string    `json:"url" gorm:"not null"`
	IssueID   uint      `json:"issueId" gorm:"not null;index"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Image) TableName() string {
	return "images"
}
