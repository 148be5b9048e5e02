package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/civicwatch/backend/internal/auth"
	"github.com/civicwatch/backend/internal/logger"
	"github.com/civicwatch/backend/internal/models"
	"gorm.io/gorm"
)

const (
	// PageSize is the number of issues returned per listing page.
	PageSize = 10
	// FeaturedLimit caps the featured issues list.
	FeaturedLimit = 6
)

// priorityRank orders URGENT first. Priorities are stored as text, so a plain
// ORDER BY priority would sort alphabetically.
const priorityRank = "CASE priority WHEN 'URGENT' THEN 4 WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 ELSE 1 END DESC"

type IssueService struct {
	db *gorm.DB
}

func NewIssueService(db *gorm.DB) *IssueService {
	return &IssueService{
		db: db,
	}
}

type CreateIssueInput struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"required"`
	Location    string   `json:"location" validate:"required"`
	City        string   `json:"city" validate:"required"`
	State       string   `json:"state" validate:"required"`
	Zip         string   `json:"zip" validate:"required,max=20"`
	Category    string   `json:"category" validate:"required,max=100"`
	Priority    string   `json:"priority"`
	ImageURLs   []string `json:"imageUrls" validate:"max=10,dive,required,max=2048"`
}

func (in *CreateIssueInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	in.Zip = strings.TrimSpace(in.Zip)
	in.Category = strings.TrimSpace(in.Category)
	for i := range in.ImageURLs {
		in.ImageURLs[i] = strings.TrimSpace(in.ImageURLs[i])
	}
}

// IssueSummary is an issue as shown in listings.
type IssueSummary struct {
	models.Issue
	UpvoteCount  int64 `json:"upvoteCount"`
	CommentCount int64 `json:"commentCount"`
}

// IssueDetail is a single issue with its comments and audit trail.
type IssueDetail struct {
	models.Issue
	UpvoteCount int64 `json:"upvoteCount"`
}

type IssueFilter struct {
	Status   string
	Category string
	Priority string
	Search   string
	Sort     string
	Page     int
}

type IssuePage struct {
	Issues   []IssueSummary `json:"issues"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Total    int64          `json:"total"`
}

// Create stores a new PENDING issue for the caller together with its images
// and the initial audit entry.
func (s *IssueService) Create(ctx context.Context, session *auth.Session, input CreateIssueInput) (*models.Issue, error) {
	if err := guardError(auth.RequireSession(session), ""); err != nil {
		return nil, err
	}

	input.normalize()
	if err := validateInput(input); err != nil {
		return nil, err
	}

	priority := models.PriorityMedium
	if strings.TrimSpace(input.Priority) != "" {
		p, ok := models.ParsePriority(input.Priority)
		if !ok {
			return nil, newError(ErrInvalidInput, fmt.Sprintf("Invalid priority: %s", input.Priority))
		}
		priority = p
	}

	issue := models.Issue{
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		City:        input.City,
		State:       input.State,
		Zip:         input.Zip,
		Category:    input.Category,
		Priority:    priority,
		Status:      models.StatusPending,
		UserID:      session.UserID,
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := tx.Create(&issue).Error; err != nil {
		tx.Rollback()
		logger.WithError(err, "issue_service").Error("Failed to create issue")
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}

	if len(input.ImageURLs) > 0 {
		images := make([]models.Image, 0, len(input.ImageURLs))
		for _, url := range input.ImageURLs {
			images = append(images, models.Image{URL: url, IssueID: issue.ID})
		}
		if err := tx.Create(&images).Error; err != nil {
			tx.Rollback()
			logger.WithError(err, "issue_service").Error("Failed to attach issue images")
			return nil, fmt.Errorf("failed to attach issue images: %w", err)
		}
		issue.Images = images
	}

	update := models.Update{IssueID: issue.ID, Status: models.StatusPending, Note: SubmittedNote}
	if err := tx.Create(&update).Error; err != nil {
		tx.Rollback()
		logger.WithError(err, "issue_service").Error("Failed to record initial update")
		return nil, fmt.Errorf("failed to record initial update: %w", err)
	}
	issue.Updates = []models.Update{update}

	if err := tx.Commit().Error; err != nil {
		logger.WithError(err, "issue_service").Error("Failed to commit issue creation")
		return nil, fmt.Errorf("failed to commit issue creation: %w", err)
	}

	logger.WithUser(session.UserID, "issue_service").WithFields(map[string]interface{}{
		"issue_id": issue.ID,
		"category": issue.Category,
		"images":   len(issue.Images),
	}).Info("Issue created")

	return &issue, nil
}

// Get returns an issue with images, comments and updates, newest first.
// Issues that have not been made public are only visible to their reporter
// and to admins.
func (s *IssueService) Get(ctx context.Context, session *auth.Session, issueID uint) (*IssueDetail, error) {
	var issue models.Issue
	err := s.db.WithContext(ctx).
		Preload("User", selectPublicUser).
		Preload("Images").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC").Order("id DESC")
		}).
		Preload("Comments.User", selectPublicUser).
		Preload("Updates", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC").Order("id DESC")
		}).
		First(&issue, issueID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrNotFound, "Issue not found")
		}
		logger.WithError(err, "issue_service").Error("Failed to get issue")
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}

	if !isPublic(issue.Status) && auth.RequireOwnerOrAdmin(session, issue.UserID) != nil {
		return nil, newError(ErrNotFound, "Issue not found")
	}

	var upvotes int64
	if err := s.db.WithContext(ctx).Model(&models.Upvote{}).Where("issue_id = ?", issue.ID).Count(&upvotes).Error; err != nil {
		return nil, fmt.Errorf("failed to count upvotes: %w", err)
	}

	return &IssueDetail{Issue: issue, UpvoteCount: upvotes}, nil
}

// List returns one page of issues. Non-admin callers only ever see public
// statuses; admins may filter by any status.
func (s *IssueService) List(ctx context.Context, session *auth.Session, filter IssueFilter) (*IssuePage, error) {
	query := s.db.WithContext(ctx).Model(&models.Issue{})

	if !session.IsAdmin() {
		query = query.Where("status IN ?", models.PublicStatuses)
	}
	if filter.Status != "" {
		status, ok := models.ParseStatus(filter.Status)
		if !ok {
			return nil, newError(ErrInvalidInput, fmt.Sprintf("Invalid status: %s", filter.Status))
		}
		query = query.Where("status = ?", status)
	}
	if filter.Priority != "" {
		priority, ok := models.ParsePriority(filter.Priority)
		if !ok {
			return nil, newError(ErrInvalidInput, fmt.Sprintf("Invalid priority: %s", filter.Priority))
		}
		query = query.Where("priority = ?", priority)
	}
	if c := strings.TrimSpace(filter.Category); c != "" {
		query = query.Where("category = ?", c)
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		like := "%" + term + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(location) LIKE ?", like, like, like)
	}

	// New session so the count and the page query each start from the filters.
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.WithError(err, "issue_service").Error("Failed to count issues")
		return nil, fmt.Errorf("failed to count issues: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}

	var issues []models.Issue
	err := applySort(query, filter.Sort).
		Preload("User", selectPublicUser).
		Preload("Images").
		Offset((page - 1) * PageSize).
		Limit(PageSize).
		Find(&issues).Error
	if err != nil {
		logger.WithError(err, "issue_service").Error("Failed to list issues")
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}

	summaries, err := summarize(s.db.WithContext(ctx), issues)
	if err != nil {
		return nil, err
	}

	return &IssuePage{Issues: summaries, Page: page, PageSize: PageSize, Total: total}, nil
}

// ListByUser returns the caller's own issues, newest first, in every status.
func (s *IssueService) ListByUser(ctx context.Context, session *auth.Session) ([]IssueSummary, error) {
	if err := guardError(auth.RequireSession(session), ""); err != nil {
		return nil, err
	}

	var issues []models.Issue
	err := s.db.WithContext(ctx).
		Where("user_id = ?", session.UserID).
		Preload("Images").
		Order("created_at DESC").
		Order("id DESC").
		Find(&issues).Error
	if err != nil {
		logger.WithError(err, "issue_service").Error("Failed to get user issues")
		return nil, fmt.Errorf("failed to get user issues: %w", err)
	}

	return summarize(s.db.WithContext(ctx), issues)
}

// Featured returns the most pressing approved or in-progress issues.
func (s *IssueService) Featured(ctx context.Context) ([]IssueSummary, error) {
	var issues []models.Issue
	err := s.db.WithContext(ctx).
		Where("status IN ?", []models.IssueStatus{models.StatusApproved, models.StatusInProgress}).
		Preload("User", selectPublicUser).
		Preload("Images").
		Order(priorityRank).
		Order("created_at DESC").
		Order("id DESC").
		Limit(FeaturedLimit).
		Find(&issues).Error
	if err != nil {
		logger.WithError(err, "issue_service").Error("Failed to get featured issues")
		return nil, fmt.Errorf("failed to get featured issues: %w", err)
	}

	return summarize(s.db.WithContext(ctx), issues)
}

// Delete removes an issue and everything attached to it. Only the reporter
// or an admin may delete.
func (s *IssueService) Delete(ctx context.Context, session *auth.Session, issueID uint) error {
	if err := guardError(auth.RequireSession(session), ""); err != nil {
		return err
	}

	var issue models.Issue
	if err := s.db.WithContext(ctx).Select("id", "user_id").First(&issue, issueID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newError(ErrNotFound, "Issue not found")
		}
		return fmt.Errorf("failed to load issue: %w", err)
	}

	if err := guardError(auth.RequireOwnerOrAdmin(session, issue.UserID), "You don't have permission to delete this issue"); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Children first so the delete works with or without FK cascades.
		for _, child := range []interface{}{&models.Upvote{}, &models.Comment{}, &models.Update{}, &models.Image{}} {
			if err := tx.Where("issue_id = ?", issue.ID).Delete(child).Error; err != nil {
				return fmt.Errorf("failed to delete %T rows: %w", child, err)
			}
		}
		res := tx.Delete(&models.Issue{}, issue.ID)
		if res.Error != nil {
			return fmt.Errorf("failed to delete issue: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return newError(ErrNotFound, "Issue not found")
		}
		return nil
	})
	if err != nil {
		var se *Error
		if !errors.As(err, &se) {
			logger.WithError(err, "issue_service").Error("Failed to delete issue")
		}
		return err
	}

	logger.WithIssue(issue.ID, "issue_service").WithField("deleted_by", session.UserID).Info("Issue deleted")
	return nil
}

// summarize attaches upvote and comment counts to issues with one grouped
// query per relation.
func summarize(db *gorm.DB, issues []models.Issue) ([]IssueSummary, error) {
	summaries := make([]IssueSummary, len(issues))
	if len(issues) == 0 {
		return summaries, nil
	}

	ids := make([]uint, len(issues))
	for i, issue := range issues {
		ids[i] = issue.ID
	}

	upvotes, err := countByIssue(db, &models.Upvote{}, ids)
	if err != nil {
		return nil, err
	}
	comments, err := countByIssue(db, &models.Comment{}, ids)
	if err != nil {
		return nil, err
	}

	for i, issue := range issues {
		summaries[i] = IssueSummary{
			Issue:        issue,
			UpvoteCount:  upvotes[issue.ID],
			CommentCount: comments[issue.ID],
		}
	}
	return summaries, nil
}

func countByIssue(db *gorm.DB, model interface{}, ids []uint) (map[uint]int64, error) {
	var rows []struct {
		IssueID uint
		Count   int64
	}
	err := db.Model(model).
		Select("issue_id, COUNT(*) AS count").
		Where("issue_id IN ?", ids).
		Group("issue_id").
		Scan(&rows).Error
	if err != nil {
		logger.WithError(err, "issue_service").Error("Failed to count issue relations")
		return nil, fmt.Errorf("failed to count %T: %w", model, err)
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.IssueID] = row.Count
	}
	return counts, nil
}

func applySort(query *gorm.DB, sort string) *gorm.DB {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "oldest":
		return query.Order("created_at ASC").Order("id ASC")
	case "priority":
		return query.Order(priorityRank).Order("created_at DESC").Order("id DESC")
	case "status":
		return query.Order("status ASC").Order("created_at DESC").Order("id DESC")
	default:
		return query.Order("created_at DESC").Order("id DESC")
	}
}

func selectPublicUser(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name")
}

func isPublic(status models.IssueStatus) bool {
	for _, s := range models.PublicStatuses {
		if s == status {
			return true
		}
	}
	return false
}
