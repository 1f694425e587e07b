package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

func writeTempFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("fake-jpeg-bytes"), 0o644))
	return path
}

func TestObjectStoreUploadSignsRequest(t *testing.T) {
	signer := NewRequestSigner("secret")
	var gotSignature, gotTimestamp string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Signature")
		gotTimestamp = r.Header.Get("X-Signature-Timestamp")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "answer-sheets", r.FormValue("folder"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"url":"https://cdn.example.com/a.jpg","delete_token":"tok-1"}`))
	}))
	defer server.Close()

	store := NewObjectStore(server.URL, signer, time.Second, nil)
	ref, err := store.Upload(context.Background(), writeTempFile(t, "a.jpg"), "answer-sheets")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.jpg", ref.URL)
	assert.Equal(t, "tok-1", ref.DeleteToken)

	unix, err := strconv.ParseInt(gotTimestamp, 10, 64)
	require.NoError(t, err)
	assert.True(t, signer.Verify("answer-sheets", "a.jpg", time.Unix(unix, 0), gotSignature))
}

func TestObjectStoreUploadClassifiesFailures(t *testing.T) {
	cases := []struct {
		status int
		kind   appErrors.Kind
	}{
		{http.StatusInternalServerError, appErrors.KindNetwork},
		{http.StatusUnauthorized, appErrors.KindTerminal},
		{http.StatusTooManyRequests, appErrors.KindTerminal},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		store := NewObjectStore(server.URL, NewRequestSigner("secret"), time.Second, nil)
		_, err := store.Upload(context.Background(), writeTempFile(t, "b.jpg"), "f")
		require.Error(t, err, "status %d", tc.status)
		assert.Equal(t, tc.kind, appErrors.KindOf(err), "status %d", tc.status)
		server.Close()
	}
}

func TestObjectStoreUploadRejectsEmptyURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	store := NewObjectStore(server.URL, nil, time.Second, nil)
	_, err := store.Upload(context.Background(), writeTempFile(t, "c.jpg"), "f")
	require.Error(t, err)
	assert.Equal(t, appErrors.KindData, appErrors.KindOf(err))
}
