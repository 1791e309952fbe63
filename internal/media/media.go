// Package media is the boundary to the external audio service. The game
// core never inspects or transforms audio; it only stores and relays the
// locator strings this client returns.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Service is what the game flows need from the audio backend.
type Service interface {
	// Upload stores an audio stream and returns its retrieval locator.
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
	// Reverse returns the time-reversed audio stream.
	Reverse(ctx context.Context, filename string, r io.Reader) (io.ReadCloser, error)
	// Process applies a voice effect and returns the transformed stream.
	Process(ctx context.Context, filename, effect string, r io.Reader) (io.ReadCloser, error)
}

// Client talks to the audio service over HTTP multipart, matching its
// /upload, /reverse and /process endpoints.
type Client struct {
	base string
	http *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		base: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	resp, err := c.post(ctx, "/upload", filename, r, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("upload response missing url")
	}
	return out.URL, nil
}

func (c *Client) Reverse(ctx context.Context, filename string, r io.Reader) (io.ReadCloser, error) {
	resp, err := c.post(ctx, "/reverse", filename, r, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) Process(ctx context.Context, filename, effect string, r io.Reader) (io.ReadCloser, error) {
	resp, err := c.post(ctx, "/process", filename, r, map[string]string{"effect": effect})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, path, filename string, r io.Reader, fields map[string]string) (*http.Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media service %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("media service %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}
