// Package completion adapts the external text-completion backend: a
// stateless request/response HTTP service given a bounded recent-message
// window and a role-specific system instruction.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Role labels one side of the conversation window sent to the backend.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one entry of the history window.
type Turn struct {
	Role Role
	Text string
}

// Client exposes the single completion operation against the backend
// endpoint. Failures are returned as errors for the caller to fold into its
// own fallback policy; nothing is ever thrown past the caller.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewClient constructs a client targeting the provided endpoint. An empty
// endpoint yields a client whose Available reports false; callers degrade
// to their fallback text instead of crashing.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Available reports whether the backend endpoint is configured.
func (c *Client) Available() bool {
	return c != nil && c.endpoint != ""
}

type wirePart struct {
	Text string `json:"text"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wireRequest struct {
	History           []wireContent   `json:"history"`
	SystemInstruction string          `json:"systemInstruction"`
	GenerationConfig  map[string]any  `json:"generationConfig,omitempty"`
}

type wireResponse struct {
	Candidates []struct {
		Content wireContent `json:"content"`
	} `json:"candidates"`
}

// Complete sends the history window and system instruction to the backend
// and returns the generated text from the first candidate.
func (c *Client) Complete(ctx context.Context, turns []Turn, systemInstruction string) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("completion backend not configured")
	}

	payload := wireRequest{
		History:           make([]wireContent, 0, len(turns)),
		SystemInstruction: systemInstruction,
	}
	for _, t := range turns {
		payload.History = append(payload.History, wireContent{
			Role:  string(t.Role),
			Parts: []wirePart{{Text: t.Text}},
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	url := c.endpoint
	if c.apiKey != "" {
		url = fmt.Sprintf("%s?key=%s", c.endpoint, c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("completion request failed: %s", resp.Status)
	}

	var result wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("completion response contained no candidates")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}
