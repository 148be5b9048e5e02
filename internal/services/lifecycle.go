package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/civicwatch/backend/internal/auth"
	"github.com/civicwatch/backend/internal/logger"
	"github.com/civicwatch/backend/internal/models"
	"gorm.io/gorm"
)

// SubmittedNote is the note of the Update written when an issue is created.
const SubmittedNote = "Issue submitted and pending admin approval"

// transitions lists the legal moves out of each status. Staying in the same
// status is always allowed so admins can re-prioritise or annotate.
var transitions = map[models.IssueStatus][]models.IssueStatus{
	models.StatusPending:    {models.StatusApproved, models.StatusRejected},
	models.StatusApproved:   {models.StatusInProgress, models.StatusRejected},
	models.StatusInProgress: {models.StatusResolved},
	models.StatusRejected:   {models.StatusApproved},
	models.StatusResolved:   {},
}

// CanTransition reports whether an issue in status from may move to to.
func CanTransition(from, to models.IssueStatus) bool {
	if _, known := transitions[to]; !known {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from from, excluding itself.
func NextStatuses(from models.IssueStatus) []models.IssueStatus {
	return append([]models.IssueStatus(nil), transitions[from]...)
}

// TransitionNote builds the default audit note for a transition.
func TransitionNote(status models.IssueStatus, priority *models.IssuePriority) string {
	if priority != nil {
		return fmt.Sprintf("Issue %s with %s priority", status.Label(), priority.Label())
	}
	return fmt.Sprintf("Issue %s", status.Label())
}

// TransitionInput is the raw admin request; values are normalized by
// Transition.
type TransitionInput struct {
	Status   string  `json:"status"`
	Priority *string `json:"priority"`
	Note     *string `json:"note"`
}

// Transition moves an issue to a new status (and optionally priority) and
// appends exactly one Update, all in one transaction.
func (s *IssueService) Transition(ctx context.Context, session *auth.Session, issueID uint, input TransitionInput) (*models.Issue, error) {
	if err := guardError(auth.RequireRole(session, models.RoleAdmin), "Only admins can update issue status"); err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.Status) == "" {
		return nil, newError(ErrInvalidInput, "Status is required")
	}
	status, ok := models.ParseStatus(input.Status)
	if !ok {
		return nil, newError(ErrInvalidInput, fmt.Sprintf("Invalid status: %s", input.Status))
	}

	var priority *models.IssuePriority
	if input.Priority != nil && strings.TrimSpace(*input.Priority) != "" {
		p, ok := models.ParsePriority(*input.Priority)
		if !ok {
			return nil, newError(ErrInvalidInput, fmt.Sprintf("Invalid priority: %s", *input.Priority))
		}
		priority = &p
	}

	note := TransitionNote(status, priority)
	if input.Note != nil && strings.TrimSpace(*input.Note) != "" {
		note = strings.TrimSpace(*input.Note)
	}

	var issue models.Issue
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&issue, issueID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newError(ErrNotFound, "Issue not found")
			}
			return fmt.Errorf("failed to load issue: %w", err)
		}

		if !CanTransition(issue.Status, status) {
			return newError(ErrInvalidTransition,
				fmt.Sprintf("Cannot move issue from %s to %s", issue.Status, status))
		}

		changes := map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}
		if priority != nil {
			changes["priority"] = *priority
		}

		// Guard on the status we validated against so a concurrent transition
		// cannot be overwritten with a move that was only legal from the old state.
		res := tx.Model(&models.Issue{}).
			Where("id = ? AND status = ?", issue.ID, issue.Status).
			Updates(changes)
		if res.Error != nil {
			return fmt.Errorf("failed to update issue: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return newError(ErrConflict, "Issue was modified concurrently, please retry")
		}

		update := models.Update{IssueID: issue.ID, Status: status, Note: note}
		if err := tx.Create(&update).Error; err != nil {
			return fmt.Errorf("failed to record status update: %w", err)
		}

		return tx.First(&issue, issue.ID).Error
	})
	if err != nil {
		var se *Error
		if !errors.As(err, &se) {
			logger.WithError(err, "issue_service").Error("Issue transition failed")
		}
		return nil, err
	}

	logger.WithIssue(issue.ID, "issue_service").WithFields(map[string]interface{}{
		"status":   issue.Status,
		"priority": issue.Priority,
		"admin_id": session.UserID,
	}).Info("Issue transitioned")

	return &issue, nil
}
