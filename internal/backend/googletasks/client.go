// Package googletasks reads Google Tasks for import into the task backend.
package googletasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"taskctl/internal/service"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 10 * time.Second

	// OAuth scope for Google Tasks
	tasksScope = "https://www.googleapis.com/auth/tasks"
)

// Credentials selects how the client authenticates. When ClientPath names an
// existing OAuth client file, TokenPath must hold a token for it. Otherwise
// Application Default Credentials are used.
type Credentials struct {
	ClientPath string
	TokenPath  string
}

// Client implements service.ImportSource using the Google Tasks API.
type Client struct {
	svc *tasks.Service
}

var _ service.ImportSource = (*Client)(nil)

// New creates a Google Tasks client.
func New(ctx context.Context, creds Credentials) (*Client, error) {
	ts, err := tokenSource(ctx, creds)
	if err != nil {
		return nil, err
	}

	// Create HTTP client with token source
	httpClient := oauth2.NewClient(ctx, ts)

	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	return &Client{svc: svc}, nil
}

func tokenSource(ctx context.Context, creds Credentials) (oauth2.TokenSource, error) {
	if creds.ClientPath == "" {
		return defaultTokenSource(ctx)
	}
	clientJSON, err := os.ReadFile(creds.ClientPath)
	if errors.Is(err, os.ErrNotExist) {
		return defaultTokenSource(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", creds.ClientPath, err)
	}

	oauthConfig, err := google.ConfigFromJSON(clientJSON, tasksScope)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", creds.ClientPath, err)
	}

	tokenData, err := os.ReadFile(creds.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", creds.TokenPath, err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", creds.TokenPath, err)
	}

	// Auto-refreshing
	return oauthConfig.TokenSource(ctx, &token), nil
}

func defaultTokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	ts, err := google.DefaultTokenSource(ctx, tasksScope)
	if err != nil {
		return nil, fmt.Errorf("no Google credentials (provide an OAuth client file or set up application default credentials): %w", err)
	}
	return ts, nil
}

// NewWithHTTPClient creates a client with a custom HTTP client and endpoint (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, endpoint string) (*Client, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{svc: svc}, nil
}

// DefaultList returns the user's default task list.
func (c *Client) DefaultList(ctx context.Context) (service.ExternalList, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	list, err := c.svc.Tasklists.Get(DefaultListID).Context(ctx).Do()
	if err != nil {
		return service.ExternalList{}, wrapError(err)
	}

	return service.ExternalList{
		ID:        DefaultListID,
		Title:     list.Title,
		IsDefault: true,
	}, nil
}

// ListLists returns all task lists in API order.
func (c *Client) ListLists(ctx context.Context) ([]service.ExternalList, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	// The default list's real ID is needed to flag it below
	defaultList, err := c.svc.Tasklists.Get(DefaultListID).Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err)
	}

	var result []service.ExternalList
	err = c.svc.Tasklists.List().MaxResults(100).Pages(ctx, func(resp *tasks.TaskLists) error {
		for _, list := range resp.Items {
			isDefault := list.Id == defaultList.Id
			id := list.Id
			if isDefault {
				id = DefaultListID
			}
			result = append(result, service.ExternalList{
				ID:        id,
				Title:     list.Title,
				IsDefault: isDefault,
			})
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return result, nil
}

// ResolveList finds a list by name (case-insensitive, trimmed).
func (c *Client) ResolveList(ctx context.Context, name string) (service.ExternalList, error) {
	name = strings.TrimSpace(name)

	lists, err := c.ListLists(ctx)
	if err != nil {
		return service.ExternalList{}, err
	}

	var matches []service.ExternalList
	for _, list := range lists {
		if strings.EqualFold(strings.TrimSpace(list.Title), name) {
			matches = append(matches, list)
		}
	}

	switch len(matches) {
	case 0:
		return service.ExternalList{}, fmt.Errorf("list not found: %s", name)
	case 1:
		return matches[0], nil
	default:
		return service.ExternalList{}, fmt.Errorf("ambiguous list name: %s", name)
	}
}

// ListOpenTasks returns open tasks for a list, PageSize per page.
func (c *Client) ListOpenTasks(ctx context.Context, listID string, page int) ([]service.ExternalTask, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	call := c.svc.Tasks.List(listID).
		MaxResults(PageSize).
		ShowCompleted(false).
		ShowDeleted(false).
		ShowHidden(false).
		Context(ctx)

	// The API pages by token; walk forward to the requested page
	var pageToken string
	for current := 1; current < page; current++ {
		resp, err := call.PageToken(pageToken).Do()
		if err != nil {
			return nil, wrapError(err)
		}
		if resp.NextPageToken == "" {
			return nil, nil
		}
		pageToken = resp.NextPageToken
	}

	resp, err := call.PageToken(pageToken).Do()
	if err != nil {
		return nil, wrapError(err)
	}

	result := make([]service.ExternalTask, 0, len(resp.Items))
	for _, task := range resp.Items {
		result = append(result, service.ExternalTask{
			ID:     task.Id,
			Title:  task.Title,
			Notes:  task.Notes,
			Due:    parseDue(task.Due),
			Status: task.Status,
		})
	}
	return result, nil
}

// CompleteTask marks a task as completed.
func (c *Client) CompleteTask(ctx context.Context, listID, taskID string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	_, err := c.svc.Tasks.Patch(listID, taskID, &tasks.Task{
		Status: "completed",
	}).Context(ctx).Do()
	return wrapError(err)
}

func parseDue(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("google tasks request timed out")
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("google credentials expired or revoked")
		case http.StatusNotFound:
			return fmt.Errorf("not found")
		}
	}
	return err
}
