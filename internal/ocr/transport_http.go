package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

// HTTPTransport performs extraction with a plain HTTP client against an
// OpenAI-compatible chat-completions endpoint. Interchangeable with
// SDKTransport; useful where the SDK cannot be deployed.
type HTTPTransport struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewHTTPTransport builds the raw HTTP transport.
func NewHTTPTransport(baseURL, apiKey, model string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	Temperature    float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Extract sends the image and task instruction, returning the raw text body.
func (t *HTTPTransport) Extract(ctx context.Context, imagePath, prompt string) (string, error) {
	dataURL, err := encodeImage(imagePath)
	if err != nil {
		return "", err
	}

	payload := chatRequest{
		Model: t.model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURL, Detail: "high"}},
				},
			},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
		Temperature:    0.1,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.KindInternal, "encode extraction request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.KindInternal, "build extraction request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrOCRUnavailable.Code, appErrors.KindNetwork, "extraction request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrMalformedPayload.Code, appErrors.KindData, "decode extraction response")
	}
	if decoded.Error != nil {
		return "", appErrors.Wrap(fmt.Errorf("%s: %s", decoded.Error.Type, decoded.Error.Message), appErrors.ErrOCRUnavailable.Code, appErrors.KindNetwork, "extraction service error")
	}
	if len(decoded.Choices) == 0 {
		return "", appErrors.Clone(appErrors.ErrMalformedPayload, "extraction returned no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}
