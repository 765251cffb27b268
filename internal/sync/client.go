package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ash-bergs/localtask/internal/model"
)

// payloadTask is the wire shape of a task. It carries everything the
// server stores and nothing it doesn't: the client-local sync state is
// stripped by construction.
type payloadTask struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Text        string     `json:"text"`
	Completed   bool       `json:"completed"`
	CompletedBy *string    `json:"completedBy,omitempty"`
	Color       string     `json:"color"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Position    float64    `json:"position"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
}

// toPayload strips the client-local fields from a task.
func toPayload(t model.Task) payloadTask {
	return payloadTask{
		ID:          t.ID,
		UserID:      t.UserID,
		Text:        t.Text,
		Completed:   t.Completed,
		CompletedBy: t.CompletedBy,
		Color:       t.Color,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		Position:    t.Position,
		DueDate:     t.DueDate,
		Priority:    t.Priority,
	}
}

// BatchRequest is the body of a sync round-trip: every pending local
// change for one user, submitted together.
type BatchRequest struct {
	UserID       string        `json:"userId"`
	NewTasks     []payloadTask `json:"newTasks"`
	UpdatedTasks []payloadTask `json:"updatedTasks"`
	DeletedTasks []payloadTask `json:"deletedTasks"`
}

type batchResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Client is a thin HTTP client for the sync server. It handles JSON
// marshaling and per-request timeouts; a timeout is a failure like any
// other.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a sync client. baseURL is the root URL of the sync
// server; timeout bounds each request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PushBatch submits a batch to POST /api/sync. Any transport error or
// non-2xx status is returned as an error; the server's {error} body is
// included when present.
func (c *Client) PushBatch(ctx context.Context, batch BatchRequest) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshaling batch: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/api/sync", bytes.NewReader(data),
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing sync request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading sync response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var parsed batchResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
			return fmt.Errorf("sync rejected (HTTP %d): %s", resp.StatusCode, parsed.Error)
		}
		return fmt.Errorf("sync rejected (HTTP %d)", resp.StatusCode)
	}

	return nil
}
