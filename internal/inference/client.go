// Package inference talks to the external classification service.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(serviceURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(serviceURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type classifyRequest struct {
	Text   string   `json:"text"`
	Labels []string `json:"labels,omitempty"`
}

type Result struct {
	TopLabel  string             `json:"top_label"`
	Scores    map[string]float64 `json:"scores"`
	ModelName string             `json:"model_name"`
}

// Confidence is the score of the top label, or zero when the service did
// not report one.
func (r *Result) Confidence() float64 {
	return r.Scores[r.TopLabel]
}

func (c *Client) Classify(ctx context.Context, text string, labels []string) (*Result, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(classifyRequest{Text: text, Labels: labels}); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classify failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.TopLabel == "" {
		return nil, fmt.Errorf("classify: empty top_label")
	}
	return &result, nil
}

// Turn is one message of a voice-agent conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Text     string `json:"text"`
	History  []Turn `json:"history"`
	Language string `json:"language,omitempty"`
}

type ChatReply struct {
	Response    string `json:"response"`
	AudioBase64 string `json:"audio_base64"`
	ModelName   string `json:"model_name"`
}

// Chat asks the conversational agent for the next reply.
func (c *Client) Chat(ctx context.Context, text string, history []Turn, language string) (*ChatReply, error) {
	if history == nil {
		history = []Turn{}
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(chatRequest{Text: text, History: history, Language: language}); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("chat failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var reply ChatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if strings.TrimSpace(reply.Response) == "" {
		return nil, fmt.Errorf("chat: empty response")
	}
	return &reply, nil
}
