package services

import (
	"context"
	"errors"
	"testing"

	"github.com/civicwatch/backend/internal/auth"
	"github.com/civicwatch/backend/internal/models"
	"gorm.io/gorm"
)

func sessionFor(user models.User) *auth.Session {
	return &auth.Session{UserID: user.ID, Role: user.Role}
}

func validIssueInput(title string) CreateIssueInput {
	return CreateIssueInput{
		Title:       title,
		Description: "Large pothole in the right lane",
		Location:    "123 Main St",
		City:        "Springfield",
		State:       "IL",
		Zip:         "62701",
		Category:    "Roads",
	}
}

func mustCreateIssue(t *testing.T, svc *IssueService, session *auth.Session, input CreateIssueInput) *models.Issue {
	t.Helper()
	issue, err := svc.Create(context.Background(), session, input)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return issue
}

// setStatus bypasses the lifecycle so tests can arrange any state.
func setStatus(t *testing.T, conn *gorm.DB, issueID uint, status models.IssueStatus) {
	t.Helper()
	if err := conn.Model(&models.Issue{}).Where("id = ?", issueID).Update("status", status).Error; err != nil {
		t.Fatalf("failed to set status: %v", err)
	}
}

func countUpdates(t *testing.T, conn *gorm.DB, issueID uint) int64 {
	t.Helper()
	var n int64
	if err := conn.Model(&models.Update{}).Where("issue_id = ?", issueID).Count(&n).Error; err != nil {
		t.Fatalf("failed to count updates: %v", err)
	}
	return n
}

func expectKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("Expected %v, got %v", kind, err)
	}
}
