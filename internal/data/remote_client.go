// Package data provides HTTP and Redis adapters for the flowpulse remote
// automation service.
package data

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultMaxBodyBytes caps how much of a remote response body is read when no
// explicit limit is configured. Bodies beyond the cap are truncated.
const DefaultMaxBodyBytes = 64 * 1024

const maxBodySummaryBytes = 256

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

func resolveHTTPClient(hc *http.Client) *http.Client {
	if hc != nil {
		return hc
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func resolveTimeProvider(tp TimeProvider) TimeProvider {
	if tp != nil {
		return tp
	}
	return &RealTimeProvider{}
}

// validateBaseURL checks that raw is an absolute http(s) URL with a host and
// returns it without a trailing slash.
func validateBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid base URL scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", errors.New("invalid base URL: missing host")
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func joinBaseURL(base string, segments ...string) (string, error) {
	joined, err := url.JoinPath(base, segments...)
	if err != nil {
		return "", fmt.Errorf("join URL: %w", err)
	}
	return joined, nil
}

// bytesReader returns an io.Reader for b, or nil if b is empty.
func bytesReader(b []byte) io.Reader {
	if len(b) == 0 {
		return nil
	}
	return bytes.NewReader(b)
}

func resolveBodyLimit(limit int64) int64 {
	if limit <= 0 {
		return DefaultMaxBodyBytes
	}
	return limit
}

// readRemoteBody reads at most limit bytes from body and reports whether the
// payload was truncated. The remainder is drained so the connection can be
// reused.
func readRemoteBody(body io.Reader, limit int64) ([]byte, bool, error) {
	if body == nil {
		return nil, false, nil
	}
	limit = resolveBodyLimit(limit)
	limited := io.LimitReader(body, limit+1)
	data, readErr := io.ReadAll(limited)
	truncated := int64(len(data)) > limit
	if truncated {
		data = data[:limit]
		if _, drainErr := io.Copy(io.Discard, body); drainErr != nil && readErr == nil {
			readErr = drainErr
		}
	}
	return data, truncated, readErr
}

// collectResponseBody reads and closes resp.Body, joining read and close errors.
func collectResponseBody(resp *http.Response, limit int64) ([]byte, error) {
	body, _, readErr := readRemoteBody(resp.Body, limit)
	closeErr := resp.Body.Close()
	switch {
	case readErr != nil && closeErr != nil:
		return nil, errors.Join(
			fmt.Errorf("read response body: %w", readErr),
			fmt.Errorf("close response body: %w", closeErr),
		)
	case readErr != nil:
		return nil, fmt.Errorf("read response body: %w", readErr)
	case closeErr != nil:
		return nil, fmt.Errorf("close response body: %w", closeErr)
	}
	return body, nil
}

// summarizeBody returns a short single-line excerpt of a response body for
// error messages.
func summarizeBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > maxBodySummaryBytes {
		s = s[:maxBodySummaryBytes] + "..."
	}
	return s
}
