package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ppp/pppctl/internal/constants"
	appErrors "github.com/ppp/pppctl/internal/errors"
	"github.com/ppp/pppctl/internal/logger"
)

// GitHubChecker verifies a GitHub token and returns the login it belongs to.
type GitHubChecker interface {
	CheckToken(ctx context.Context, token string) (string, error)
}

// GitHub checks tokens against the GitHub REST API.
type GitHub struct {
	userURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGitHub creates a GitHub token checker. An empty userURL selects the public API.
func NewGitHub(userURL string, timeout time.Duration, log *slog.Logger) *GitHub {
	if userURL == "" {
		userURL = constants.GitHubUserURL
	}
	return &GitHub{userURL: userURL, httpClient: &http.Client{Timeout: timeout}, logger: log}
}

type gitHubUser struct {
	Login string `json:"login"`
}

// CheckToken implements GitHubChecker.
func (g *GitHub) CheckToken(ctx context.Context, token string) (string, error) {
	logger.DeriveRequestLogger(ctx, g.logger).Debug("calling external service", "context", map[string]any{
		"operation": "GitHub.GetUser",
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", constants.GitHubAcceptHeader)
	req.Header.Set(constants.AuthorizationHeader, "token "+token)
	req.Header.Set(constants.CacheControlHeader, constants.NoCache)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach GitHub: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read GitHub response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", appErrors.ErrRemoteCallFailed(resp.StatusCode, "invalid GitHub token", string(body))
	}

	var user gitHubUser
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("failed to decode GitHub user: %w", err)
	}
	return user.Login, nil
}
