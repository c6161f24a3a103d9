package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/edgekit-ml/edgekit/pkg/models"
)

// DefaultEndpoint is the public Hugging Face Hub
const DefaultEndpoint = "https://huggingface.co"

// ProgressFunc receives download progress updates. total is -1 when the
// server did not send a length.
type ProgressFunc func(path string, written, total int64)

// Client talks to the Hugging Face Hub REST API
type Client struct {
	endpoint   string
	httpClient *http.Client
	progress   ProgressFunc
	maxRetry   time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithToken authenticates requests with a hub access token
func WithToken(token string) Option {
	return func(c *Client) {
		if token == "" {
			return
		}
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		c.httpClient = oauth2.NewClient(context.Background(), src)
		c.httpClient.Timeout = 10 * time.Minute
	}
}

// WithProgress installs a download progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(c *Client) { c.progress = fn }
}

// WithRetryWindow bounds the total time spent retrying one download
func WithRetryWindow(d time.Duration) Option {
	return func(c *Client) { c.maxRetry = d }
}

// NewClient creates a hub client for the given endpoint
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		maxRetry: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ModelInfo fetches repository metadata for repo ("owner/name")
func (c *Client) ModelInfo(ctx context.Context, repo string) (*models.RepoInfo, error) {
	u := fmt.Sprintf("%s/api/models/%s", c.endpoint, repoPath(repo))

	var info models.RepoInfo
	if err := c.getJSON(ctx, u, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch model info for %s: %w", repo, err)
	}
	return &info, nil
}

// Tree lists the repository's files at revision, recursively
func (c *Client) Tree(ctx context.Context, repo, revision string) ([]models.RepoFile, error) {
	if revision == "" {
		revision = "main"
	}
	u := fmt.Sprintf("%s/api/models/%s/tree/%s?recursive=true", c.endpoint, repoPath(repo), url.PathEscape(revision))

	var files []models.RepoFile
	if err := c.getJSON(ctx, u, &files); err != nil {
		return nil, fmt.Errorf("failed to list files for %s@%s: %w", repo, revision, err)
	}
	return files, nil
}

func (c *Client) getJSON(ctx context.Context, u string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("hub returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// repoPath escapes the owner and name segments separately
func repoPath(repo string) string {
	parts := strings.SplitN(repo, "/", 2)
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
