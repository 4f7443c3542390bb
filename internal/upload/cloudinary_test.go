package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL:      srv.URL,
		CloudName:    "medstore",
		UploadPreset: "products",
	}, srv.Client())
	return client, srv
}

func TestUpload_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1_1/medstore/image/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "products", r.FormValue("upload_preset"))

		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "scanner.png", header.Filename)
		assert.Equal(t, "png-bytes", string(data))

		json.NewEncoder(w).Encode(map[string]string{"secure_url": "https://res.example.com/scanner.png"})
	})

	url, err := client.Upload(context.Background(), "scanner.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://res.example.com/scanner.png", url)
}

func TestUpload_ProviderError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Upload preset not found"}}`))
	})

	_, err := client.Upload(context.Background(), "a.png", strings.NewReader("x"))

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.Equal(t, "Upload preset not found", pe.Message)
}

func TestUpload_NotConfigured(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused"}, nil)

	_, err := client.Upload(context.Background(), "a.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestUpload_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		_, err := client.Upload(context.Background(), "a.png", strings.NewReader("x"))
		require.Error(t, err)
	}

	_, err := client.Upload(context.Background(), "a.png", strings.NewReader("x"))
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(5), hits.Load())
}

func TestUpload_ClientErrorsKeepBreakerClosed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	for i := 0; i < 10; i++ {
		_, err := client.Upload(context.Background(), "a.png", strings.NewReader("x"))
		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
	}
	assert.Equal(t, gobreaker.StateClosed, client.breaker.State())
}

func TestUploadMany_KeepsOrder(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		json.NewEncoder(w).Encode(map[string]string{"secure_url": "https://res.example.com/" + header.Filename})
	})

	files := []File{
		{Name: "1.jpg", Reader: strings.NewReader("a")},
		{Name: "2.jpg", Reader: strings.NewReader("b")},
		{Name: "3.jpg", Reader: strings.NewReader("c")},
	}
	urls, err := client.UploadMany(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://res.example.com/1.jpg",
		"https://res.example.com/2.jpg",
		"https://res.example.com/3.jpg",
	}, urls)
}

func TestUploadMany_FailsOnFirstError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, header, _ := r.FormFile("file")
		if header != nil && header.Filename == "bad.jpg" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"secure_url": "https://res.example.com/ok"})
	})

	_, err := client.UploadMany(context.Background(), []File{
		{Name: "ok.jpg", Reader: strings.NewReader("a")},
		{Name: "bad.jpg", Reader: strings.NewReader("b")},
	})
	assert.ErrorContains(t, err, "bad.jpg")
}
