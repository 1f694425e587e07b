package storage

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

// RemoteRef identifies an uploaded image: a stable URL plus the token needed
// to delete the object later.
type RemoteRef struct {
	URL         string `json:"url"`
	DeleteToken string `json:"delete_token"`
}

// RequestSigner produces the HMAC the object-store expects on every upload.
type RequestSigner struct {
	secret []byte
}

// NewRequestSigner constructs a signer with the provided secret.
func NewRequestSigner(secret string) *RequestSigner {
	return &RequestSigner{secret: []byte(secret)}
}

// Sign returns the hex HMAC over folder, object name and timestamp.
func (s *RequestSigner) Sign(folder, name string, ts time.Time) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	payload := fmt.Sprintf("%s|%s|%d", folder, name, ts.Unix())
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks a signature produced by Sign.
func (s *RequestSigner) Verify(folder, name string, ts time.Time, signature string) bool {
	expected, err := s.Sign(folder, name, ts)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ObjectStore uploads local image files to the remote object storage service.
type ObjectStore struct {
	endpoint string
	client   *http.Client
	signer   *RequestSigner
	logger   *zap.Logger
}

// NewObjectStore builds a client for the given upload endpoint.
func NewObjectStore(endpoint string, signer *RequestSigner, timeout time.Duration, logger *zap.Logger) *ObjectStore {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObjectStore{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		signer:   signer,
		logger:   logger,
	}
}

type uploadResponse struct {
	URL         string `json:"url"`
	DeleteToken string `json:"delete_token"`
}

// Upload sends one local file into the given logical folder and returns its
// remote reference. Transport failures and 5xx responses are classified as
// retriable network errors; authorization and quota responses are terminal.
func (o *ObjectStore) Upload(ctx context.Context, localPath, folder string) (RemoteRef, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return RemoteRef{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.KindInternal, "open upload source")
	}
	defer file.Close() //nolint:errcheck

	name := filepath.Base(localPath)
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("folder", folder); err != nil {
		return RemoteRef{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.KindInternal, "build upload form")
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return RemoteRef{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.KindInternal, "build upload form")
	}
	if _, err := io.Copy(part, file); err != nil {
		return RemoteRef{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.KindInternal, "read upload source")
	}
	if err := writer.Close(); err != nil {
		return RemoteRef{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.KindInternal, "finish upload form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, &body)
	if err != nil {
		return RemoteRef{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.KindInternal, "build upload request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	now := time.Now().UTC()
	if o.signer != nil {
		signature, err := o.signer.Sign(folder, name, now)
		if err != nil {
			return RemoteRef{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.KindInternal, "sign upload request")
		}
		req.Header.Set("X-Signature", signature)
		req.Header.Set("X-Signature-Timestamp", fmt.Sprintf("%d", now.Unix()))
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return RemoteRef{}, appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.KindNetwork, "upload request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return RemoteRef{}, appErrors.Clone(appErrors.ErrUnauthorizedAPI, "object store rejected credentials")
	case resp.StatusCode == http.StatusTooManyRequests:
		return RemoteRef{}, appErrors.Clone(appErrors.ErrQuotaExceeded, "object store quota exceeded")
	default:
		return RemoteRef{}, appErrors.Wrap(fmt.Errorf("status %d", resp.StatusCode), appErrors.ErrUploadFailed.Code, appErrors.KindNetwork, "upload rejected")
	}

	var decoded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return RemoteRef{}, appErrors.Wrap(err, appErrors.ErrMalformedPayload.Code, appErrors.KindData, "decode upload response")
	}
	if decoded.URL == "" {
		return RemoteRef{}, appErrors.Clone(appErrors.ErrMalformedPayload, "upload response missing url")
	}

	o.logger.Debug("uploaded object", zap.String("name", name), zap.String("folder", folder))
	return RemoteRef{URL: decoded.URL, DeleteToken: decoded.DeleteToken}, nil
}
