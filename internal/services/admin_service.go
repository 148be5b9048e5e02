package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civicwatch/backend/internal/auth"
	"github.com/civicwatch/backend/internal/logger"
	"github.com/civicwatch/backend/internal/models"
	"gorm.io/gorm"
)

// PriorityColors are the chart colours used for each priority.
var PriorityColors = map[models.IssuePriority]string{
	models.PriorityUrgent: "#ef4444",
	models.PriorityHigh:   "#f97316",
	models.PriorityMedium: "#eab308",
	models.PriorityLow:    "#22c55e",
}

// TrendMonths is how many calendar months, including the current one, the
// monthly trend covers.
const TrendMonths = 12

// AdminService backs the moderation dashboard. Every method requires an
// admin session.
type AdminService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{
		db:  db,
		now: time.Now,
	}
}

type AdminIssue struct {
	IssueSummary
	ReportedBy string `json:"reportedBy"`
}

type AdminIssueDetail struct {
	IssueDetail
	CommentCount int64 `json:"commentCount"`
}

type PrioritySlice struct {
	Name  models.IssuePriority `json:"name"`
	Value int64                `json:"value"`
	Color string               `json:"color"`
}

type Overview struct {
	TotalIssues          int64           `json:"totalIssues"`
	Pending              int64           `json:"pending"`
	Approved             int64           `json:"approved"`
	InProgress           int64           `json:"inProgress"`
	Resolved             int64           `json:"resolved"`
	Rejected             int64           `json:"rejected"`
	PriorityDistribution []PrioritySlice `json:"priorityDistribution"`
}

type Stats struct {
	CategoryDistribution map[string]int64               `json:"categoryDistribution"`
	PriorityVotes        map[models.IssuePriority]int64 `json:"priorityVotes"`
	PriorityDistribution map[models.IssuePriority]int64 `json:"priorityDistribution"`
	MonthlyTrends        map[string]int64               `json:"monthlyTrends"`
}

func requireAdmin(session *auth.Session) error {
	return guardError(auth.RequireRole(session, models.RoleAdmin), "Forbidden")
}

// ListIssues returns every issue, newest first, with reporter name and
// engagement counts.
func (s *AdminService) ListIssues(ctx context.Context, session *auth.Session) ([]AdminIssue, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}

	var issues []models.Issue
	err := s.db.WithContext(ctx).
		Preload("User", selectPublicUser).
		Order("created_at DESC").
		Order("id DESC").
		Find(&issues).Error
	if err != nil {
		logger.WithError(err, "admin_service").Error("Failed to list issues")
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}

	summaries, err := summarize(s.db.WithContext(ctx), issues)
	if err != nil {
		return nil, err
	}

	result := make([]AdminIssue, len(summaries))
	for i, summary := range summaries {
		reportedBy := "Anonymous"
		if summary.User != nil && summary.User.Name != "" {
			reportedBy = summary.User.Name
		}
		result[i] = AdminIssue{IssueSummary: summary, ReportedBy: reportedBy}
	}
	return result, nil
}

// GetIssue returns one issue in any status with its images and audit trail.
func (s *AdminService) GetIssue(ctx context.Context, session *auth.Session, issueID uint) (*AdminIssueDetail, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}

	var issue models.Issue
	err := s.db.WithContext(ctx).
		Preload("User", selectPublicUser).
		Preload("Images").
		Preload("Updates", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC").Order("id DESC")
		}).
		First(&issue, issueID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrNotFound, "Issue not found")
		}
		logger.WithError(err, "admin_service").Error("Failed to get issue")
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}

	counts, err := summarize(s.db.WithContext(ctx), []models.Issue{issue})
	if err != nil {
		return nil, err
	}

	return &AdminIssueDetail{
		IssueDetail:  IssueDetail{Issue: issue, UpvoteCount: counts[0].UpvoteCount},
		CommentCount: counts[0].CommentCount,
	}, nil
}

// Overview returns issue totals per status and the priority distribution.
func (s *AdminService) Overview(ctx context.Context, session *auth.Session) (*Overview, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}

	var byStatus []struct {
		Status models.IssueStatus
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Issue{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		logger.WithError(err, "admin_service").Error("Failed to count issues by status")
		return nil, fmt.Errorf("failed to count issues by status: %w", err)
	}

	byPriority, err := s.countByPriority(ctx)
	if err != nil {
		return nil, err
	}

	overview := &Overview{PriorityDistribution: []PrioritySlice{}}
	for _, row := range byStatus {
		overview.TotalIssues += row.Count
		switch row.Status {
		case models.StatusPending:
			overview.Pending = row.Count
		case models.StatusApproved:
			overview.Approved = row.Count
		case models.StatusInProgress:
			overview.InProgress = row.Count
		case models.StatusResolved:
			overview.Resolved = row.Count
		case models.StatusRejected:
			overview.Rejected = row.Count
		}
	}

	// Most urgent first; priorities with no issues are left out of the chart.
	for i := len(models.AllPriorities) - 1; i >= 0; i-- {
		p := models.AllPriorities[i]
		if byPriority[p] == 0 {
			continue
		}
		overview.PriorityDistribution = append(overview.PriorityDistribution, PrioritySlice{
			Name:  p,
			Value: byPriority[p],
			Color: PriorityColors[p],
		})
	}

	return overview, nil
}

// Stats returns the chart data for the admin dashboard.
func (s *AdminService) Stats(ctx context.Context, session *auth.Session) (*Stats, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}

	stats := &Stats{
		CategoryDistribution: map[string]int64{},
		PriorityVotes:        map[models.IssuePriority]int64{},
		MonthlyTrends:        map[string]int64{},
	}

	var byCategory []struct {
		Category string
		Count    int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Issue{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Scan(&byCategory).Error; err != nil {
		logger.WithError(err, "admin_service").Error("Failed to count issues by category")
		return nil, fmt.Errorf("failed to count issues by category: %w", err)
	}
	for _, row := range byCategory {
		stats.CategoryDistribution[row.Category] = row.Count
	}

	var votes []struct {
		Priority models.IssuePriority
		Count    int64
	}
	if err := s.db.WithContext(ctx).Table("issues").
		Select("issues.priority AS priority, COUNT(upvotes.user_id) AS count").
		Joins("LEFT JOIN upvotes ON upvotes.issue_id = issues.id").
		Group("issues.priority").
		Scan(&votes).Error; err != nil {
		logger.WithError(err, "admin_service").Error("Failed to sum upvotes by priority")
		return nil, fmt.Errorf("failed to sum upvotes by priority: %w", err)
	}
	for _, row := range votes {
		stats.PriorityVotes[row.Priority] = row.Count
	}

	byPriority, err := s.countByPriority(ctx)
	if err != nil {
		return nil, err
	}
	stats.PriorityDistribution = byPriority

	now := s.now()
	since := time.Date(now.Year(), now.Month()-TrendMonths+1, 1, 0, 0, 0, 0, now.Location())
	var created []time.Time
	if err := s.db.WithContext(ctx).Model(&models.Issue{}).
		Where("created_at >= ?", since).
		Pluck("created_at", &created).Error; err != nil {
		logger.WithError(err, "admin_service").Error("Failed to load issue dates")
		return nil, fmt.Errorf("failed to load issue dates: %w", err)
	}
	for _, t := range created {
		stats.MonthlyTrends[t.In(now.Location()).Format("Jan")]++
	}

	return stats, nil
}

func (s *AdminService) countByPriority(ctx context.Context) (map[models.IssuePriority]int64, error) {
	var rows []struct {
		Priority models.IssuePriority
		Count    int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Issue{}).
		Select("priority, COUNT(*) AS count").
		Group("priority").
		Scan(&rows).Error; err != nil {
		logger.WithError(err, "admin_service").Error("Failed to count issues by priority")
		return nil, fmt.Errorf("failed to count issues by priority: %w", err)
	}

	counts := make(map[models.IssuePriority]int64, len(rows))
	for _, row := range rows {
		counts[row.Priority] = row.Count
	}
	return counts, nil
}
