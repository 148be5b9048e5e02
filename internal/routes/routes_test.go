package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/civicwatch/backend/internal/auth"
	"github.com/civicwatch/backend/internal/config"
	"github.com/civicwatch/backend/internal/db/dbtest"
	"github.com/civicwatch/backend/internal/middleware"
	"github.com/civicwatch/backend/internal/models"
	"github.com/civicwatch/backend/internal/storage"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T, limiter middleware.RateLimiter) *testServer {
	t.Helper()

	conn := dbtest.New(t)
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	cfg := &config.Config{
		AdminKeys:      []string{"letmein"},
		MaxUploadBytes: 1 << 20,
	}

	r := gin.New()
	SetupRoutes(r, Dependencies{
		Config:  cfg,
		DB:      conn,
		Tokens:  tokens,
		Store:   storage.NewLocalStore(t.TempDir(), "/uploads"),
		Limiter: limiter,
	})
	return &testServer{router: r, db: conn, tokens: tokens}
}

func (s *testServer) user(t *testing.T, email string, role models.UserRole) (models.User, string) {
	t.Helper()
	user := dbtest.CreateUser(t, s.db, email, role)
	token, _, err := s.tokens.Issue(user)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return user, token
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
}

func issueBody(title string) gin.H {
	return gin.H{
		"title":       title,
		"description": "Streetlight has been out for a week",
		"location":    "5th and Elm",
		"city":        "Springfield",
		"state":       "IL",
		"zip":         "62701",
		"category":    "Lighting",
	}
}

func (s *testServer) createIssue(t *testing.T, token, title string) uint {
	t.Helper()
	w := s.do(http.MethodPost, "/api/issues", token, issueBody(title))
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 creating issue, got %d (%s)", w.Code, w.Body.String())
	}
	var issue models.Issue
	decode(t, w, &issue)
	return issue.ID
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Pat Resident", "email": "Pat@Example.com", "password": "correct-horse",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 on register, got %d (%s)", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "correct-horse") || strings.Contains(w.Body.String(), "password") {
		t.Errorf("Register response leaked the password: %s", w.Body.String())
	}

	if w := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Pat Again", "email": "pat@example.com", "password": "correct-horse",
	}); w.Code != http.StatusConflict {
		t.Errorf("Expected 409 on duplicate email, got %d", w.Code)
	}

	if w := s.do(http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "pat@example.com", "password": "wrong-password",
	}); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 on bad password, got %d", w.Code)
	}

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "pat@example.com", "password": "correct-horse",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on login, got %d (%s)", w.Code, w.Body.String())
	}
	var login struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decode(t, w, &login)

	w = s.do(http.MethodGet, "/api/auth/me", login.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on me, got %d", w.Code)
	}
	var me models.User
	decode(t, w, &me)
	if me.Email != "pat@example.com" || me.Role != models.RoleUser {
		t.Errorf("Unexpected current user: %+v", me)
	}

	if w := s.do(http.MethodGet, "/api/auth/me", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 on anonymous me, got %d", w.Code)
	}
}

func TestRegisterAdmin(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name     string
		key      string
		expected int
	}{
		{"missing key", "", http.StatusBadRequest},
		{"wrong key", "guess", http.StatusForbidden},
		{"valid key", "letmein", http.StatusCreated},
	}

	for i, test := range tests {
		w := s.do(http.MethodPost, "/api/auth/register-admin", "", gin.H{
			"name":     "Admin",
			"email":    fmt.Sprintf("admin%d@example.com", i),
			"password": "administrator",
			"adminKey": test.key,
		})
		if w.Code != test.expected {
			t.Errorf("%s: expected %d, got %d (%s)", test.name, test.expected, w.Code, w.Body.String())
		}
	}
}

func TestIssueLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	_, userToken := s.user(t, "resident@example.com", models.RoleUser)
	_, adminToken := s.user(t, "admin@example.com", models.RoleAdmin)

	id := s.createIssue(t, userToken, "Streetlight out")
	path := fmt.Sprintf("/api/issues/%d", id)

	if w := s.do(http.MethodGet, path, "", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected pending issue hidden from public, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, path, userToken, nil); w.Code != http.StatusOK {
		t.Errorf("Expected owner to see pending issue, got %d", w.Code)
	}

	w := s.do(http.MethodPatch, path, adminToken, gin.H{"status": "APPROVED", "priority": "HIGH"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on approve, got %d (%s)", w.Code, w.Body.String())
	}
	var issue models.Issue
	decode(t, w, &issue)
	if issue.Status != models.StatusApproved || issue.Priority != models.PriorityHigh {
		t.Errorf("Unexpected issue after approval: %s/%s", issue.Status, issue.Priority)
	}

	if w := s.do(http.MethodPatch, path, adminToken, gin.H{"status": "RESOLVED"}); w.Code != http.StatusConflict {
		t.Errorf("Expected 409 skipping IN_PROGRESS, got %d", w.Code)
	}
	if w := s.do(http.MethodPatch, path, adminToken, gin.H{"status": "DONE"}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 on unknown status, got %d", w.Code)
	}

	w = s.do(http.MethodGet, path, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected approved issue to be public, got %d", w.Code)
	}
	var detail struct {
		models.Issue
		UpvoteCount int64 `json:"upvoteCount"`
	}
	decode(t, w, &detail)
	if len(detail.Updates) != 2 {
		t.Fatalf("Expected 2 updates, got %d", len(detail.Updates))
	}
	if detail.Updates[0].Note != "Issue approved with high priority" {
		t.Errorf("Unexpected latest note %q", detail.Updates[0].Note)
	}

	w = s.do(http.MethodGet, "/api/issues?status=APPROVED", "", nil)
	var page struct {
		Issues []models.Issue `json:"issues"`
		Total  int64          `json:"total"`
	}
	decode(t, w, &page)
	if page.Total != 1 || len(page.Issues) != 1 || page.Issues[0].ID != id {
		t.Errorf("Expected approved issue in listing, got %+v", page)
	}

	if w := s.do(http.MethodPatch, fmt.Sprintf("/api/admin/issues/%d", id), adminToken, gin.H{"status": "IN_PROGRESS"}); w.Code != http.StatusOK {
		t.Errorf("Expected admin PATCH route to transition, got %d", w.Code)
	}
}

func TestPatchAccess(t *testing.T) {
	s := newTestServer(t, nil)
	_, userToken := s.user(t, "resident@example.com", models.RoleUser)
	_, adminToken := s.user(t, "admin@example.com", models.RoleAdmin)

	tests := []struct {
		name     string
		token    string
		path     string
		expected int
	}{
		{"anonymous on missing issue", "", "/api/issues/999", http.StatusUnauthorized},
		{"user on missing issue", userToken, "/api/issues/999", http.StatusForbidden},
		{"admin on missing issue", adminToken, "/api/issues/999", http.StatusNotFound},
		{"admin with bad id", adminToken, "/api/issues/abc", http.StatusBadRequest},
	}

	for _, test := range tests {
		w := s.do(http.MethodPatch, test.path, test.token, gin.H{"status": "APPROVED"})
		if w.Code != test.expected {
			t.Errorf("%s: expected %d, got %d (%s)", test.name, test.expected, w.Code, w.Body.String())
		}
	}
}

func TestDeleteIssue(t *testing.T) {
	s := newTestServer(t, nil)
	_, ownerToken := s.user(t, "owner@example.com", models.RoleUser)
	_, otherToken := s.user(t, "other@example.com", models.RoleUser)

	id := s.createIssue(t, ownerToken, "Graffiti on bridge")
	path := fmt.Sprintf("/api/issues/%d", id)

	if w := s.do(http.MethodDelete, path, "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for anonymous delete, got %d", w.Code)
	}
	if w := s.do(http.MethodDelete, path, otherToken, nil); w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for non-owner delete, got %d", w.Code)
	}

	w := s.do(http.MethodDelete, path, ownerToken, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"success":true`) {
		t.Fatalf("Expected owner delete to succeed, got %d (%s)", w.Code, w.Body.String())
	}
	if w := s.do(http.MethodDelete, path, ownerToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 deleting twice, got %d", w.Code)
	}
}

func TestUpvotesAndComments(t *testing.T) {
	s := newTestServer(t, nil)
	_, userToken := s.user(t, "resident@example.com", models.RoleUser)

	_, strangerToken := s.user(t, "neighbor@example.com", models.RoleUser)

	id := s.createIssue(t, userToken, "Broken bench")
	upvotes := fmt.Sprintf("/api/issues/%d/upvotes", id)
	comments := fmt.Sprintf("/api/issues/%d/comments", id)

	for _, token := range []string{"", strangerToken} {
		if w := s.do(http.MethodGet, comments, token, nil); w.Code != http.StatusNotFound {
			t.Errorf("Expected 404 reading comments of a pending issue, got %d", w.Code)
		}
		if w := s.do(http.MethodGet, upvotes, token, nil); w.Code != http.StatusNotFound {
			t.Errorf("Expected 404 reading upvotes of a pending issue, got %d", w.Code)
		}
	}
	if w := s.do(http.MethodPost, upvotes, strangerToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 upvoting a pending issue, got %d", w.Code)
	}
	if w := s.do(http.MethodPost, comments, strangerToken, gin.H{"content": "hello"}); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 commenting on a pending issue, got %d", w.Code)
	}

	if err := s.db.Model(&models.Issue{}).Where("id = ?", id).Update("status", models.StatusApproved).Error; err != nil {
		t.Fatalf("failed to approve issue: %v", err)
	}

	if w := s.do(http.MethodPost, upvotes, userToken, nil); w.Code != http.StatusOK {
		t.Fatalf("Expected first upvote to succeed, got %d (%s)", w.Code, w.Body.String())
	}
	if w := s.do(http.MethodPost, upvotes, userToken, nil); w.Code != http.StatusConflict {
		t.Errorf("Expected 409 on second upvote, got %d", w.Code)
	}

	w := s.do(http.MethodGet, upvotes, userToken, nil)
	if !strings.Contains(w.Body.String(), `"count":1`) || !strings.Contains(w.Body.String(), `"hasUpvoted":true`) {
		t.Errorf("Unexpected upvote status %s", w.Body.String())
	}
	w = s.do(http.MethodGet, upvotes, "", nil)
	if !strings.Contains(w.Body.String(), `"hasUpvoted":false`) {
		t.Errorf("Expected anonymous hasUpvoted false, got %s", w.Body.String())
	}

	if w := s.do(http.MethodDelete, upvotes, userToken, nil); w.Code != http.StatusOK {
		t.Errorf("Expected upvote removal to succeed, got %d", w.Code)
	}
	if w := s.do(http.MethodDelete, upvotes, userToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 removing missing upvote, got %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/api/issues/999/upvotes", userToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 upvoting missing issue, got %d", w.Code)
	}

	if w := s.do(http.MethodPost, comments, userToken, gin.H{"content": "   "}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 on blank comment, got %d", w.Code)
	}
	if w := s.do(http.MethodPost, comments, "", gin.H{"content": "hello"}); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 on anonymous comment, got %d", w.Code)
	}
	if w := s.do(http.MethodPost, comments, userToken, gin.H{"content": "Still broken"}); w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 on comment, got %d (%s)", w.Code, w.Body.String())
	}

	w = s.do(http.MethodGet, comments, "", nil)
	var list []models.Comment
	decode(t, w, &list)
	if len(list) != 1 || list[0].Content != "Still broken" {
		t.Errorf("Unexpected comments %+v", list)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t, nil)
	_, userToken := s.user(t, "resident@example.com", models.RoleUser)
	_, adminToken := s.user(t, "admin@example.com", models.RoleAdmin)

	paths := []string{"/api/admin/issues", "/api/admin/overview", "/api/admin/stats"}
	for _, path := range paths {
		if w := s.do(http.MethodGet, path, "", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("%s anonymous: expected 401, got %d", path, w.Code)
		}
		if w := s.do(http.MethodGet, path, userToken, nil); w.Code != http.StatusForbidden {
			t.Errorf("%s user: expected 403, got %d", path, w.Code)
		}
		if w := s.do(http.MethodGet, path, adminToken, nil); w.Code != http.StatusOK {
			t.Errorf("%s admin: expected 200, got %d (%s)", path, w.Code, w.Body.String())
		}
	}
}

func TestUserIssues(t *testing.T) {
	s := newTestServer(t, nil)
	_, userToken := s.user(t, "resident@example.com", models.RoleUser)
	_, otherToken := s.user(t, "other@example.com", models.RoleUser)

	s.createIssue(t, userToken, "Mine")
	s.createIssue(t, otherToken, "Theirs")

	w := s.do(http.MethodGet, "/api/user/issues", userToken, nil)
	var issues []models.Issue
	decode(t, w, &issues)
	if len(issues) != 1 || issues[0].Title != "Mine" {
		t.Errorf("Expected only the caller's issue, got %+v", issues)
	}
}

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return false, time.Hour, nil
}

func TestCreateIssueRateLimited(t *testing.T) {
	s := newTestServer(t, denyLimiter{})
	_, userToken := s.user(t, "resident@example.com", models.RoleUser)

	w := s.do(http.MethodPost, "/api/issues", userToken, issueBody("Too many"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"retry_after":3600`) {
		t.Errorf("Unexpected rate limit body %s", w.Body.String())
	}

	var count int64
	s.db.Model(&models.Issue{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no issue stored, got %d", count)
	}
}

func TestUploadAndServe(t *testing.T) {
	s := newTestServer(t, nil)
	_, userToken := s.user(t, "resident@example.com", models.RoleUser)

	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("files", "pothole.png")
	part.Write(png)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+userToken)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on upload, got %d (%s)", w.Code, w.Body.String())
	}
	var result struct {
		URLs []string `json:"urls"`
	}
	decode(t, w, &result)
	if len(result.URLs) != 1 || !strings.HasPrefix(result.URLs[0], "/uploads/") || !strings.HasSuffix(result.URLs[0], ".png") {
		t.Fatalf("Unexpected urls %v", result.URLs)
	}

	if w := s.do(http.MethodGet, result.URLs[0], "", nil); w.Code != http.StatusOK {
		t.Errorf("Expected uploaded file to be served, got %d", w.Code)
	}

	if w := s.do(http.MethodPost, "/api/upload", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 on anonymous upload, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"redis":{"status":"disabled"}`) {
		t.Errorf("Expected redis reported as disabled, got %s", w.Body.String())
	}
}
