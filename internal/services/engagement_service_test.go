package services

import (
	"context"
	"strings"
	"testing"

	"github.com/civicwatch/backend/internal/auth"
	"github.com/civicwatch/backend/internal/db/dbtest"
	"github.com/civicwatch/backend/internal/models"
)

func TestUpvoteTwiceConflicts(t *testing.T) {
	conn := dbtest.New(t)
	issues := NewIssueService(conn)
	svc := NewEngagementService(conn)
	user := sessionFor(dbtest.CreateUser(t, conn, "user@example.com", models.RoleUser))
	issue := mustCreateIssue(t, issues, user, validIssueInput("Pothole"))

	status, err := svc.Upvote(context.Background(), user, issue.ID)
	if err != nil {
		t.Fatalf("Upvote returned error: %v", err)
	}
	if status.Count != 1 || !status.HasUpvoted {
		t.Errorf("Expected count 1 and upvoted, got %+v", status)
	}

	_, err = svc.Upvote(context.Background(), user, issue.ID)
	expectKind(t, err, ErrConflict)

	current, err := svc.Status(context.Background(), user, issue.ID)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if current.Count != 1 {
		t.Errorf("Expected count to remain 1, got %d", current.Count)
	}
}

func TestUpvoteCountsDistinctUsers(t *testing.T) {
	conn := dbtest.New(t)
	issues := NewIssueService(conn)
	svc := NewEngagementService(conn)
	owner := sessionFor(dbtest.CreateUser(t, conn, "owner@example.com", models.RoleUser))
	issue := mustCreateIssue(t, issues, owner, validIssueInput("Pothole"))
	setStatus(t, conn, issue.ID, models.StatusApproved)

	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		voter := sessionFor(dbtest.CreateUser(t, conn, email, models.RoleUser))
		status, err := svc.Upvote(context.Background(), voter, issue.ID)
		if err != nil {
			t.Fatalf("Upvote returned error: %v", err)
		}
		if status.Count != int64(i+1) {
			t.Errorf("Expected count %d, got %d", i+1, status.Count)
		}
	}

	anonymous, err := svc.Status(context.Background(), nil, issue.ID)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if anonymous.Count != 3 || anonymous.HasUpvoted {
		t.Errorf("Unexpected anonymous status %+v", anonymous)
	}

	mine, _ := svc.Status(context.Background(), owner, issue.ID)
	if mine.HasUpvoted {
		t.Error("Expected owner not to have upvoted")
	}
}

func TestRemoveUpvote(t *testing.T) {
	conn := dbtest.New(t)
	issues := NewIssueService(conn)
	svc := NewEngagementService(conn)
	user := sessionFor(dbtest.CreateUser(t, conn, "user@example.com", models.RoleUser))
	other := sessionFor(dbtest.CreateUser(t, conn, "other@example.com", models.RoleUser))
	issue := mustCreateIssue(t, issues, user, validIssueInput("Pothole"))
	setStatus(t, conn, issue.ID, models.StatusApproved)

	_, err := svc.RemoveUpvote(context.Background(), user, issue.ID)
	expectKind(t, err, ErrNotFound)

	svc.Upvote(context.Background(), user, issue.ID)
	svc.Upvote(context.Background(), other, issue.ID)

	status, err := svc.RemoveUpvote(context.Background(), user, issue.ID)
	if err != nil {
		t.Fatalf("RemoveUpvote returned error: %v", err)
	}
	if status.Count != 1 || status.HasUpvoted {
		t.Errorf("Expected count 1 and not upvoted, got %+v", status)
	}

	_, err = svc.RemoveUpvote(context.Background(), user, issue.ID)
	expectKind(t, err, ErrNotFound)
}

func TestUpvoteErrors(t *testing.T) {
	conn := dbtest.New(t)
	svc := NewEngagementService(conn)
	user := sessionFor(dbtest.CreateUser(t, conn, "user@example.com", models.RoleUser))

	_, err := svc.Upvote(context.Background(), nil, 1)
	expectKind(t, err, ErrUnauthorized)

	_, err = svc.Upvote(context.Background(), user, 9999)
	expectKind(t, err, ErrNotFound)

	_, err = svc.RemoveUpvote(context.Background(), nil, 1)
	expectKind(t, err, ErrUnauthorized)
}

func TestAddComment(t *testing.T) {
	conn := dbtest.New(t)
	issues := NewIssueService(conn)
	svc := NewEngagementService(conn)
	user := sessionFor(dbtest.CreateUser(t, conn, "user@example.com", models.RoleUser))
	issue := mustCreateIssue(t, issues, user, validIssueInput("Pothole"))

	comment, err := svc.AddComment(context.Background(), user, issue.ID, "  Still there today  ")
	if err != nil {
		t.Fatalf("AddComment returned error: %v", err)
	}
	if comment.Content != "Still there today" {
		t.Errorf("Expected trimmed content, got %q", comment.Content)
	}
	if comment.User == nil || comment.User.Name != "user@example.com" {
		t.Errorf("Expected author to be loaded, got %+v", comment.User)
	}

	tests := []struct {
		name    string
		issueID uint
		content string
		kind    error
	}{
		{"blank", issue.ID, "   ", ErrInvalidInput},
		{"empty", issue.ID, "", ErrInvalidInput},
		{"too long", issue.ID, strings.Repeat("a", MaxCommentLength+1), ErrInvalidInput},
		{"missing issue", 9999, "hello", ErrNotFound},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := svc.AddComment(context.Background(), user, test.issueID, test.content)
			expectKind(t, err, test.kind)
		})
	}

	_, err = svc.AddComment(context.Background(), nil, issue.ID, "hello")
	expectKind(t, err, ErrUnauthorized)
}

func TestCommentsNewestFirst(t *testing.T) {
	conn := dbtest.New(t)
	issues := NewIssueService(conn)
	svc := NewEngagementService(conn)
	user := sessionFor(dbtest.CreateUser(t, conn, "user@example.com", models.RoleUser))
	issue := mustCreateIssue(t, issues, user, validIssueInput("Pothole"))

	for _, content := range []string{"one", "two", "three"} {
		if _, err := svc.AddComment(context.Background(), user, issue.ID, content); err != nil {
			t.Fatalf("AddComment returned error: %v", err)
		}
	}

	comments, err := svc.Comments(context.Background(), user, issue.ID)
	if err != nil {
		t.Fatalf("Comments returned error: %v", err)
	}
	if len(comments) != 3 {
		t.Fatalf("Expected 3 comments, got %d", len(comments))
	}
	for i, expected := range []string{"three", "two", "one"} {
		if comments[i].Content != expected {
			t.Errorf("Position %d: expected %q, got %q", i, expected, comments[i].Content)
		}
	}

	_, err = svc.Comments(context.Background(), nil, 9999)
	expectKind(t, err, ErrNotFound)
}

func TestEngagementHidesUnpublishedIssues(t *testing.T) {
	conn := dbtest.New(t)
	issues := NewIssueService(conn)
	svc := NewEngagementService(conn)
	owner := sessionFor(dbtest.CreateUser(t, conn, "owner@example.com", models.RoleUser))
	stranger := sessionFor(dbtest.CreateUser(t, conn, "stranger@example.com", models.RoleUser))
	admin := sessionFor(dbtest.CreateUser(t, conn, "admin@example.com", models.RoleAdmin))

	pending := mustCreateIssue(t, issues, owner, validIssueInput("Pending pothole"))
	rejected := mustCreateIssue(t, issues, owner, validIssueInput("Rejected pothole"))
	setStatus(t, conn, rejected.ID, models.StatusRejected)

	tests := []struct {
		name    string
		session *auth.Session
		issueID uint
		visible bool
	}{
		{"anonymous on pending", nil, pending.ID, false},
		{"stranger on pending", stranger, pending.ID, false},
		{"stranger on rejected", stranger, rejected.ID, false},
		{"owner on pending", owner, pending.ID, true},
		{"owner on rejected", owner, rejected.ID, true},
		{"admin on pending", admin, pending.ID, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := context.Background()
			check := func(op string, err error) {
				t.Helper()
				if test.visible {
					if err != nil {
						t.Errorf("%s: expected success, got %v", op, err)
					}
					return
				}
				expectKind(t, err, ErrNotFound)
			}

			_, err := svc.Comments(ctx, test.session, test.issueID)
			check("Comments", err)
			_, err = svc.Status(ctx, test.session, test.issueID)
			check("Status", err)

			if test.session == nil {
				return
			}
			_, err = svc.AddComment(ctx, test.session, test.issueID, "Any update?")
			check("AddComment", err)
			_, err = svc.Upvote(ctx, test.session, test.issueID)
			check("Upvote", err)
		})
	}

	var comments, upvotes int64
	conn.Model(&models.Comment{}).Where("user_id = ?", stranger.UserID).Count(&comments)
	conn.Model(&models.Upvote{}).Where("user_id = ?", stranger.UserID).Count(&upvotes)
	if comments != 0 || upvotes != 0 {
		t.Errorf("Expected no stranger engagement on hidden issues, got %d comments and %d upvotes", comments, upvotes)
	}
}
