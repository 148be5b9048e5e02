package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/civicwatch/backend/internal/auth"
	"github.com/civicwatch/backend/internal/logger"
	"github.com/civicwatch/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	db        *gorm.DB
	tokens    *auth.TokenManager
	adminKeys []string
}

func NewUserService(db *gorm.DB, tokens *auth.TokenManager, adminKeys []string) *UserService {
	return &UserService{
		db:        db,
		tokens:    tokens,
		adminKeys: adminKeys,
	}
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	AdminKey string `json:"adminKey,omitempty"`
}

func (in *RegisterInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// Register creates a regular USER account.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	return s.create(ctx, input, models.RoleUser)
}

// RegisterAdmin creates an ADMIN account when input carries one of the
// configured registration keys. With no keys configured admin registration
// is closed.
func (s *UserService) RegisterAdmin(ctx context.Context, input RegisterInput) (*models.User, error) {
	if strings.TrimSpace(input.AdminKey) == "" {
		return nil, newError(ErrInvalidInput, "Missing required fields: adminKey")
	}
	if !s.validAdminKey(input.AdminKey) {
		logger.Warn("Rejected admin registration with invalid key", map[string]interface{}{
			"email": strings.ToLower(strings.TrimSpace(input.Email)),
		})
		return nil, newError(ErrForbidden, "Invalid admin key")
	}
	return s.create(ctx, input, models.RoleAdmin)
}

// Login checks credentials and issues a session token.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrUnauthorized, "Invalid credentials")
		}
		logger.WithError(err, "user_service").Error("Failed to look up user")
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		return nil, newError(ErrUnauthorized, "Invalid credentials")
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		logger.WithError(err, "user_service").Error("Failed to generate token")
		return nil, err
	}

	logger.WithUser(user.ID, "user_service").Info("User logged in")
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Me returns the account behind session.
func (s *UserService) Me(ctx context.Context, session *auth.Session) (*models.User, error) {
	if err := guardError(auth.RequireSession(session), ""); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrNotFound, "User not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *UserService) create(ctx context.Context, input RegisterInput, role models.UserRole) (*models.User, error) {
	input.normalize()
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", input.Email).Count(&existing).Error; err != nil {
		logger.WithError(err, "user_service").Error("Failed to check existing user")
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing > 0 {
		return nil, newError(ErrConflict, "User with this email already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Name:     input.Name,
		Email:    input.Email,
		Password: string(hashed),
		Role:     role,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, newError(ErrConflict, "User with this email already exists")
		}
		logger.WithError(err, "user_service").Error("Failed to create user")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.WithUser(user.ID, "user_service").WithField("role", user.Role).Info("User registered")
	return &user, nil
}

func (s *UserService) validAdminKey(key string) bool {
	valid := 0
	for _, k := range s.adminKeys {
		valid |= subtle.ConstantTimeCompare([]byte(k), []byte(key))
	}
	return valid == 1
}
