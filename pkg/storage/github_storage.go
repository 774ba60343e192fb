package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultGithubAPIURL = "https://api.github.com"

var (
	ErrNotFound = errors.New("file not found")
	// ErrConflict means the file changed since its SHA was read.
	ErrConflict = errors.New("file changed concurrently")
)

// GithubStorage keeps JSON documents as files of a GitHub repository using
// the contents API.
type GithubStorage struct {
	Token      string
	Owner      string
	Repo       string
	APIURL     string
	HTTPClient *http.Client
}

// File is a stored document plus the blob SHA needed to overwrite it.
type File struct {
	Content []byte
	SHA     string
}

func (ss GithubStorage) client() *http.Client {
	if ss.HTTPClient != nil {
		return ss.HTTPClient
	}
	return http.DefaultClient
}

func (ss GithubStorage) request(ctx context.Context, method, u string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	req.Header.Set("Authorization", "token "+ss.Token)
	for headerKey, headerValue := range headers {
		req.Header.Add(headerKey, headerValue)
	}

	resp, err := ss.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusNotFound:
			return nil, ErrNotFound
		case http.StatusConflict, http.StatusUnprocessableEntity:
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("request failed: %s", resp.Status)
	}

	return resp, nil
}

func (ss GithubStorage) requestJSON(ctx context.Context, method, u string, body io.Reader, v interface{}) error {
	resp, err := ss.request(ctx, method, u, body, map[string]string{
		"Accept": "application/vnd.github.v3+json",
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if v != nil {
		err = json.NewDecoder(resp.Body).Decode(v)
		if err != nil {
			return fmt.Errorf("could not decode response: %w", err)
		}
	}

	return nil
}

func (ss GithubStorage) url(path string) string {
	apiURL := ss.APIURL
	if apiURL == "" {
		apiURL = DefaultGithubAPIURL
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", strings.TrimSuffix(apiURL, "/"), ss.Owner, ss.Repo, path)
}

type fileContentsResponse struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Read returns the file at path, or ErrNotFound.
func (ss GithubStorage) Read(ctx context.Context, path string) (File, error) {
	var response fileContentsResponse

	err := ss.requestJSON(ctx, http.MethodGet, ss.url(path), nil, &response)
	if err != nil {
		return File{}, err
	}

	if response.Encoding != "base64" {
		return File{}, fmt.Errorf("unsupported encoding for %s: %q", path, response.Encoding)
	}

	// the API wraps base64 content at 60 columns
	content, err := base64.StdEncoding.DecodeString(response.Content)
	if err != nil {
		return File{}, fmt.Errorf("could not decode file contents: %w", err)
	}

	return File{Content: content, SHA: response.SHA}, nil
}

// Write creates or replaces the file at path. sha must be the SHA last read
// for an existing file and empty for a new one; a stale sha yields
// ErrConflict.
func (ss GithubStorage) Write(ctx context.Context, path string, b []byte, sha, message string) error {
	var request = struct {
		Message string `json:"message"`
		Content string `json:"content"`
		SHA     string `json:"sha,omitempty"`
	}{
		Message: message,
		SHA:     sha,
		Content: base64.StdEncoding.EncodeToString(b),
	}

	buf := &bytes.Buffer{}
	err := json.NewEncoder(buf).Encode(request)
	if err != nil {
		return err
	}

	return ss.requestJSON(ctx, http.MethodPut, ss.url(path), buf, nil)
}
