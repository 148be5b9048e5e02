package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/civicwatch/backend/internal/auth"
	"github.com/civicwatch/backend/internal/logger"
	"github.com/civicwatch/backend/internal/models"
	"gorm.io/gorm"
)

// MaxCommentLength bounds comment content in characters.
const MaxCommentLength = 2000

// EngagementService handles upvotes and comments.
type EngagementService struct {
	db *gorm.DB
}

func NewEngagementService(db *gorm.DB) *EngagementService {
	return &EngagementService{
		db: db,
	}
}

type UpvoteStatus struct {
	Count      int64 `json:"count"`
	HasUpvoted bool  `json:"hasUpvoted"`
}

// Upvote records the caller's endorsement of an issue and returns the new
// total. A second upvote by the same user is a Conflict.
func (s *EngagementService) Upvote(ctx context.Context, session *auth.Session, issueID uint) (*UpvoteStatus, error) {
	if err := guardError(auth.RequireSession(session), ""); err != nil {
		return nil, err
	}
	if err := s.requireIssue(ctx, session, issueID); err != nil {
		return nil, err
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Upvote{}).
		Where("issue_id = ? AND user_id = ?", issueID, session.UserID).
		Count(&existing).Error; err != nil {
		logger.WithError(err, "engagement_service").Error("Failed to check existing upvote")
		return nil, fmt.Errorf("failed to check existing upvote: %w", err)
	}
	if existing > 0 {
		return nil, newError(ErrConflict, "You have already upvoted this issue")
	}

	upvote := models.Upvote{IssueID: issueID, UserID: session.UserID}
	if err := s.db.WithContext(ctx).Create(&upvote).Error; err != nil {
		// A concurrent request for the same pair can still win the insert.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, newError(ErrConflict, "You have already upvoted this issue")
		}
		logger.WithError(err, "engagement_service").Error("Failed to create upvote")
		return nil, fmt.Errorf("failed to create upvote: %w", err)
	}

	count, err := s.countUpvotes(ctx, issueID)
	if err != nil {
		return nil, err
	}

	logger.WithIssue(issueID, "engagement_service").WithField("user_id", session.UserID).Debug("Issue upvoted")
	return &UpvoteStatus{Count: count, HasUpvoted: true}, nil
}

// RemoveUpvote withdraws the caller's upvote and returns the new total.
func (s *EngagementService) RemoveUpvote(ctx context.Context, session *auth.Session, issueID uint) (*UpvoteStatus, error) {
	if err := guardError(auth.RequireSession(session), ""); err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).
		Where("issue_id = ? AND user_id = ?", issueID, session.UserID).
		Delete(&models.Upvote{})
	if res.Error != nil {
		logger.WithError(res.Error, "engagement_service").Error("Failed to remove upvote")
		return nil, fmt.Errorf("failed to remove upvote: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, newError(ErrNotFound, "Upvote not found")
	}

	count, err := s.countUpvotes(ctx, issueID)
	if err != nil {
		return nil, err
	}
	return &UpvoteStatus{Count: count, HasUpvoted: false}, nil
}

// Status reports the upvote total and whether the caller, if any, has
// upvoted.
func (s *EngagementService) Status(ctx context.Context, session *auth.Session, issueID uint) (*UpvoteStatus, error) {
	if err := s.requireIssue(ctx, session, issueID); err != nil {
		return nil, err
	}

	count, err := s.countUpvotes(ctx, issueID)
	if err != nil {
		return nil, err
	}

	status := &UpvoteStatus{Count: count}
	if session != nil {
		var mine int64
		if err := s.db.WithContext(ctx).Model(&models.Upvote{}).
			Where("issue_id = ? AND user_id = ?", issueID, session.UserID).
			Count(&mine).Error; err != nil {
			return nil, fmt.Errorf("failed to check upvote: %w", err)
		}
		status.HasUpvoted = mine > 0
	}
	return status, nil
}

// AddComment appends a comment from the caller to an issue.
func (s *EngagementService) AddComment(ctx context.Context, session *auth.Session, issueID uint, content string) (*models.Comment, error) {
	if err := guardError(auth.RequireSession(session), ""); err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, newError(ErrInvalidInput, "Comment content is required")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return nil, newError(ErrInvalidInput, fmt.Sprintf("Comment must be at most %d characters", MaxCommentLength))
	}

	if err := s.requireIssue(ctx, session, issueID); err != nil {
		return nil, err
	}

	comment := models.Comment{Content: content, IssueID: issueID, UserID: session.UserID}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		logger.WithError(err, "engagement_service").Error("Failed to create comment")
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	if err := s.db.WithContext(ctx).Preload("User", selectPublicUser).First(&comment, comment.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload comment: %w", err)
	}

	logger.WithIssue(issueID, "engagement_service").WithFields(map[string]interface{}{
		"comment_id": comment.ID,
		"user_id":    session.UserID,
	}).Info("Comment added")

	return &comment, nil
}

// Comments lists an issue's comments newest first.
func (s *EngagementService) Comments(ctx context.Context, session *auth.Session, issueID uint) ([]models.Comment, error) {
	if err := s.requireIssue(ctx, session, issueID); err != nil {
		return nil, err
	}

	comments := []models.Comment{}
	err := s.db.WithContext(ctx).
		Where("issue_id = ?", issueID).
		Preload("User", selectPublicUser).
		Order("created_at DESC").
		Order("id DESC").
		Find(&comments).Error
	if err != nil {
		logger.WithError(err, "engagement_service").Error("Failed to get comments")
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}
	return comments, nil
}

// requireIssue fails with NotFound unless the issue exists and is visible to
// the caller. Unpublished issues are visible only to their reporter and admins.
func (s *EngagementService) requireIssue(ctx context.Context, session *auth.Session, issueID uint) error {
	var issue models.Issue
	err := s.db.WithContext(ctx).Select("id", "status", "user_id").First(&issue, issueID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newError(ErrNotFound, "Issue not found")
	}
	if err != nil {
		return fmt.Errorf("failed to look up issue: %w", err)
	}
	if !isPublic(issue.Status) && auth.RequireOwnerOrAdmin(session, issue.UserID) != nil {
		return newError(ErrNotFound, "Issue not found")
	}
	return nil
}

func (s *EngagementService) countUpvotes(ctx context.Context, issueID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Upvote{}).Where("issue_id = ?", issueID).Count(&count).Error; err != nil {
		logger.WithError(err, "engagement_service").Error("Failed to count upvotes")
		return 0, fmt.Errorf("failed to count upvotes: %w", err)
	}
	return count, nil
}
