package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/civicwatch/backend/internal/auth"
	"github.com/civicwatch/backend/internal/config"
	"github.com/civicwatch/backend/internal/db"
	"github.com/civicwatch/backend/internal/logger"
	"github.com/civicwatch/backend/internal/models"
	"github.com/civicwatch/backend/internal/services"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserData represents the structure of users in the JSON file
type UserData struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type CommentData struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// IssueData is one sample report and the state it should end up in.
type IssueData struct {
	Reporter  string        `json:"reporter"`
	Title     string        `json:"title"`
	Desc      string        `json:"description"`
	Location  string        `json:"location"`
	City      string        `json:"city"`
	State     string        `json:"state"`
	Zip       string        `json:"zip"`
	Category  string        `json:"category"`
	Priority  string        `json:"priority"`
	Status    string        `json:"status"`
	ImageURLs []string      `json:"imageUrls"`
	UpvotedBy []string      `json:"upvotedBy"`
	Comments  []CommentData `json:"comments"`
}

// JSONData represents the structure of the seed file
type JSONData struct {
	Users  []UserData  `json:"users"`
	Issues []IssueData `json:"issues"`
}

func main() {
	file := flag.String("file", "data/seed.json", "path to the seed data file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Initialize(cfg.LogLevel, cfg.LogDir)

	conn, err := db.Connect(cfg.DSN(), false)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations first
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(conn); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	data, err := loadSeedData(*file)
	if err != nil {
		log.Fatalf("Failed to load seed data: %v", err)
	}

	log.Println("Seeding database with sample data...")
	users, err := seedUsers(conn, data.Users)
	if err != nil {
		log.Fatalf("Error seeding users: %v", err)
	}
	if err := seedIssues(context.Background(), conn, users, data.Issues); err != nil {
		log.Fatalf("Error seeding issues: %v", err)
	}

	log.Println("✅ Database seeding completed successfully!")
}

func loadSeedData(path string) (*JSONData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var data JSONData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &data, nil
}

// seedUsers creates missing users and returns every seeded user by email.
func seedUsers(conn *gorm.DB, list []UserData) (map[string]models.User, error) {
	users := make(map[string]models.User, len(list))

	for _, userData := range list {
		var existing models.User
		err := conn.Where("email = ?", userData.Email).First(&existing).Error
		if err == nil {
			log.Printf("⚠️  User already exists: %s", existing.Email)
			users[userData.Email] = existing
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(userData.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password for %s: %w", userData.Email, err)
		}

		role := models.RoleUser
		if userData.Role == "admin" {
			role = models.RoleAdmin
		}

		user := models.User{
			Name:     userData.Name,
			Email:    userData.Email,
			Password: string(hashedPassword),
			Role:     role,
		}
		if err := conn.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", userData.Email, err)
		}
		log.Printf("✅ Created user: %s (%s)", user.Email, user.Role)
		users[userData.Email] = user
	}

	return users, nil
}

func seedIssues(ctx context.Context, conn *gorm.DB, users map[string]models.User, list []IssueData) error {
	issueService := services.NewIssueService(conn)
	engagementService := services.NewEngagementService(conn)

	var admin *auth.Session
	for _, user := range users {
		if user.Role == models.RoleAdmin {
			admin = &auth.Session{UserID: user.ID, Role: user.Role}
			break
		}
	}

	for _, issueData := range list {
		reporter, ok := users[issueData.Reporter]
		if !ok {
			return fmt.Errorf("issue %q: unknown reporter %s", issueData.Title, issueData.Reporter)
		}

		var count int64
		conn.Model(&models.Issue{}).Where("user_id = ? AND title = ?", reporter.ID, issueData.Title).Count(&count)
		if count > 0 {
			log.Printf("⚠️  Issue already exists: %s", issueData.Title)
			continue
		}

		issue, err := issueService.Create(ctx, sessionOf(reporter), services.CreateIssueInput{
			Title:       issueData.Title,
			Description: issueData.Desc,
			Location:    issueData.Location,
			City:        issueData.City,
			State:       issueData.State,
			Zip:         issueData.Zip,
			Category:    issueData.Category,
			Priority:    issueData.Priority,
			ImageURLs:   issueData.ImageURLs,
		})
		if err != nil {
			return fmt.Errorf("issue %q: %w", issueData.Title, err)
		}

		if issueData.Status != "" {
			if admin == nil {
				return fmt.Errorf("issue %q: an admin user is required to set status", issueData.Title)
			}
			target, ok := models.ParseStatus(issueData.Status)
			if !ok {
				return fmt.Errorf("issue %q: unknown status %s", issueData.Title, issueData.Status)
			}
			for _, step := range pathTo(issue.Status, target) {
				if _, err := issueService.Transition(ctx, admin, issue.ID, services.TransitionInput{Status: string(step)}); err != nil {
					return fmt.Errorf("issue %q: transition to %s: %w", issueData.Title, step, err)
				}
			}
		}

		for _, email := range issueData.UpvotedBy {
			voter, ok := users[email]
			if !ok {
				return fmt.Errorf("issue %q: unknown voter %s", issueData.Title, email)
			}
			if _, err := engagementService.Upvote(ctx, sessionOf(voter), issue.ID); err != nil {
				return fmt.Errorf("issue %q: upvote by %s: %w", issueData.Title, email, err)
			}
		}

		for _, comment := range issueData.Comments {
			author, ok := users[comment.Author]
			if !ok {
				return fmt.Errorf("issue %q: unknown comment author %s", issueData.Title, comment.Author)
			}
			if _, err := engagementService.AddComment(ctx, sessionOf(author), issue.ID, comment.Content); err != nil {
				return fmt.Errorf("issue %q: comment by %s: %w", issueData.Title, comment.Author, err)
			}
		}

		log.Printf("✅ Created issue: %s (%s)", issueData.Title, issueData.Status)
	}

	return nil
}

func sessionOf(user models.User) *auth.Session {
	return &auth.Session{UserID: user.ID, Role: user.Role}
}

// pathTo returns the shortest sequence of statuses leading from one status
// to another, excluding from. It is empty when no path exists.
func pathTo(from, to models.IssueStatus) []models.IssueStatus {
	prev := map[models.IssueStatus]models.IssueStatus{from: from}
	queue := []models.IssueStatus{from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == to {
			break
		}
		for _, next := range services.NextStatuses(current) {
			if _, seen := prev[next]; !seen {
				prev[next] = current
				queue = append(queue, next)
			}
		}
	}

	if _, reached := prev[to]; !reached || from == to {
		return nil
	}

	var path []models.IssueStatus
	for s := to; s != from; s = prev[s] {
		path = append([]models.IssueStatus{s}, path...)
	}
	return path
}
