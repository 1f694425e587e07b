package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sheetgrader/internal/models"
	"github.com/noah-isme/sheetgrader/internal/service"
)

type fakePinger struct{ err error }

func (f *fakePinger) PingContext(ctx context.Context) error { return f.err }

type fakeCredentials struct{ cred *models.Credential }

func (f *fakeCredentials) Load() (*models.Credential, error) { return f.cred, nil }

func newTestRouter(pinger *fakePinger, creds *fakeCredentials) (*StatusHandler, http.Handler) {
	metrics := service.NewMetricsService()
	status := NewStatusHandler(metrics, pinger, creds)
	return status, NewRouter(status, zap.NewNop(), nil)
}

func TestHealthEndpoint(t *testing.T) {
	_, router := newTestRouter(&fakePinger{}, &fakeCredentials{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyReportsDatabaseOutage(t *testing.T) {
	_, router := newTestRouter(&fakePinger{err: errors.New("connection refused")}, &fakeCredentials{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusReportsLoginAndCounters(t *testing.T) {
	creds := &fakeCredentials{cred: &models.Credential{
		AssessorID: "T-1",
		Name:       "Pak Budi",
		LoggedInAt: time.Now().UTC(),
	}}
	status, router := newTestRouter(&fakePinger{}, creds)
	status.metrics.PageScanned()
	status.metrics.PageScanned()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data statusPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Data.LoggedIn)
	assert.Equal(t, "Pak Budi", body.Data.Assessor)
	assert.Equal(t, uint64(2), body.Data.Pipeline.PagesScanned)
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	_, router := newTestRouter(&fakePinger{}, &fakeCredentials{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "scan_pages_total")
}
