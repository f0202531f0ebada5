package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// HTTPClient talks to the collaboration service and the notification webhook
// over JSON. Either URL may be empty when only one role is used.
type HTTPClient struct {
	baseURL    string
	webhookURL string
	client     *http.Client
}

func NewHTTPClient(baseURL, webhookURL string, client *http.Client) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{baseURL: baseURL, webhookURL: webhookURL, client: client}
}

type provisionResponse struct {
	WorkspaceRef string `json:"workspace_ref"`
}

func (c *HTTPClient) ProvisionWorkspace(ctx context.Context, projectID uuid.UUID) (string, error) {
	var resp provisionResponse
	err := c.post(ctx, c.baseURL+"/workspaces", map[string]any{"project_id": projectID}, &resp)
	if err != nil {
		return "", err
	}
	if resp.WorkspaceRef == "" {
		return "", fmt.Errorf("provision workspace: empty workspace_ref")
	}
	return resp.WorkspaceRef, nil
}

func (c *HTTPClient) GrantAccess(ctx context.Context, workspaceRef string, userID uuid.UUID, role string) error {
	return c.post(ctx, c.baseURL+"/workspaces/"+workspaceRef+"/members", map[string]any{
		"user_id": userID,
		"role":    role,
	}, nil)
}

func (c *HTTPClient) Notify(ctx context.Context, userID uuid.UUID, kind string, payload map[string]any) error {
	return c.post(ctx, c.webhookURL, map[string]any{
		"user_id": userID,
		"kind":    kind,
		"payload": payload,
	}, nil)
}

func (c *HTTPClient) post(ctx context.Context, url string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("POST %s: status %d: %s", url, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
