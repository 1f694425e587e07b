package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

// SDKTransport performs extraction through the OpenAI-compatible SDK.
type SDKTransport struct {
	api   *openai.Client
	model string
}

// NewSDKTransport builds the SDK transport. baseURL may point at any
// OpenAI-compatible vision endpoint.
func NewSDKTransport(baseURL, apiKey, model string) *SDKTransport {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &SDKTransport{api: openai.NewClientWithConfig(cfg), model: model}
}

// Extract sends the image and task instruction, returning the raw text body.
func (t *SDKTransport) Extract(ctx context.Context, imagePath, prompt string) (string, error) {
	dataURL, err := encodeImage(imagePath)
	if err != nil {
		return "", err
	}

	resp, err := t.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", classifyAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", appErrors.Clone(appErrors.ErrMalformedPayload, "extraction returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyAPIError maps SDK failures onto the pipeline taxonomy: quota and
// authorization responses are terminal, everything else transient.
func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}
	return appErrors.Wrap(err, appErrors.ErrOCRUnavailable.Code, appErrors.KindNetwork, "extraction call failed")
}

func classifyStatus(status int, err error) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return appErrors.Wrap(err, appErrors.ErrUnauthorizedAPI.Code, appErrors.KindTerminal, appErrors.ErrUnauthorizedAPI.Message)
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return appErrors.Wrap(err, appErrors.ErrQuotaExceeded.Code, appErrors.KindTerminal, appErrors.ErrQuotaExceeded.Message)
	default:
		return appErrors.Wrap(err, appErrors.ErrOCRUnavailable.Code, appErrors.KindNetwork, fmt.Sprintf("extraction service error (status %d)", status))
	}
}

// encodeImage loads the file and wraps it as a base64 data URL.
func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.KindInternal, "read image for extraction")
	}
	mime := "image/jpeg"
	if strings.EqualFold(filepath.Ext(path), ".png") {
		mime = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}
