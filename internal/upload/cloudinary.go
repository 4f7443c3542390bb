package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
)

var ErrNotConfigured = errors.New("image upload is not configured")

// ProviderError is a non-2xx answer from the image host.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("image upload rejected (%d): %s", e.StatusCode, e.Message)
}

type Config struct {
	BaseURL      string
	CloudName    string
	UploadPreset string
	Timeout      time.Duration
}

// Client uploads images with an unsigned upload preset and returns their
// durable HTTPS URL. It does not retry.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[string]
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "image-upload",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a rejected file says nothing about the provider's health
		IsSuccessful: func(err error) bool {
			var pe *ProviderError
			if errors.As(err, &pe) {
				return pe.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
	})

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		breaker: breaker,
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/v1_1/%s/image/upload", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.CloudName)
}

func (c *Client) Upload(ctx context.Context, filename string, file io.Reader) (string, error) {
	if c.cfg.CloudName == "" || c.cfg.UploadPreset == "" {
		return "", ErrNotConfigured
	}

	return c.breaker.Execute(func() (string, error) {
		return c.upload(ctx, filename, file)
	})
}

func (c *Client) upload(ctx context.Context, filename string, file io.Reader) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if err := form.WriteField("upload_preset", c.cfg.UploadPreset); err != nil {
		return "", fmt.Errorf("write upload preset: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded uploadResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := "failed to upload image"
		if decodeErr == nil && decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode upload response: %w", decodeErr)
	}
	if decoded.SecureURL == "" {
		return "", fmt.Errorf("upload response has no secure_url")
	}
	return decoded.SecureURL, nil
}

type File struct {
	Name   string
	Reader io.Reader
}

// UploadMany uploads all files concurrently and returns URLs in input order.
// The first failure cancels the remaining uploads.
func (c *Client) UploadMany(ctx context.Context, files []File) ([]string, error) {
	urls := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			url, err := c.Upload(gctx, f.Name, f.Reader)
			if err != nil {
				return fmt.Errorf("upload %s: %w", f.Name, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}
