package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultURL = "http://localhost:8080/health"

type serviceStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse mirrors the body served by GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Services  struct {
		Database serviceStatus `json:"database"`
		Redis    serviceStatus `json:"redis"`
	} `json:"services"`
}

func main() {
	url := defaultURL
	if len(os.Args) > 1 {
		url = os.Args[1]
	}
	fmt.Printf("🔍 Checking %s\n", url)

	client := &http.Client{Timeout: 10 * time.Second}
	health, err := fetchHealth(client, url)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	warnings, err := evaluate(health)
	for _, w := range warnings {
		fmt.Printf("⚠️  %s\n", w)
	}
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ civicwatch %s is %s (database %s, redis %s, at %s)\n",
		health.Version, health.Status,
		health.Services.Database.Status, health.Services.Redis.Status, health.Timestamp)
}

// fetchHealth calls the endpoint and decodes the body. The server answers
// 503 with a JSON body when the database is down, so the body is decoded
// before the status code is judged.
func fetchHealth(client *http.Client, url string) (*HealthResponse, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("unexpected body (HTTP %d): %s", resp.StatusCode, body)
	}
	if resp.StatusCode != http.StatusOK && health.Status == "" {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
	return &health, nil
}

// evaluate decides whether a deployment is usable. A database failure is
// fatal; an unreachable Redis only disables rate limiting.
func evaluate(health *HealthResponse) ([]string, error) {
	db := health.Services.Database
	if db.Status != "ok" {
		if db.Error != "" {
			return nil, fmt.Errorf("database is %s: %s", db.Status, db.Error)
		}
		return nil, fmt.Errorf("database is %s", db.Status)
	}

	var warnings []string
	switch health.Services.Redis.Status {
	case "disabled":
		warnings = append(warnings, "redis is not configured, issue submissions are not rate limited")
	case "error":
		warnings = append(warnings, "redis is unreachable: "+health.Services.Redis.Error)
	}

	switch health.Status {
	case "ok", "degraded":
		return warnings, nil
	case "":
		return warnings, errors.New("response has no status")
	default:
		return warnings, fmt.Errorf("overall status is %s", health.Status)
	}
}
