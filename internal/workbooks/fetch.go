package workbooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// ErrURLNotAllowed indicates a download URL outside the accepted schemes.
var ErrURLNotAllowed = errors.New("workbooks: url not allowed")

// ErrFetchTooLarge indicates a remote workbook exceeding the configured
// byte cap.
var ErrFetchTooLarge = errors.New("workbooks: remote workbook too large")

// OpenURL downloads a workbook over HTTPS, parses it in memory, and
// registers a TTL-bearing handle. Plain HTTP is accepted only for loopback
// hosts. The download is capped at the configured fetch size.
func (m *Manager) OpenURL(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrURLNotAllowed, err)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !isLoopbackHost(u.Hostname()) {
			return "", fmt.Errorf("%w: plain http is restricted to loopback", ErrURLNotAllowed)
		}
	default:
		return "", fmt.Errorf("%w: scheme %q", ErrURLNotAllowed, u.Scheme)
	}

	if err := m.acquire(ctx); err != nil {
		return "", err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	defer cancel()

	data, err := m.fetch(fetchCtx, u.String())
	if err != nil {
		m.release()
		return "", err
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		m.release()
		return "", fmt.Errorf("workbooks: parse remote workbook: %w", err)
	}

	h := m.newHandle(f, "", SourceURL)
	m.mu.Lock()
	m.handles[h.ID] = h
	m.mu.Unlock()

	log.Ctx(ctx).Debug().
		Str("workbook_id", h.ID).
		Str("host", u.Hostname()).
		Int("bytes", len(data)).
		Msg("remote workbook adopted")
	return h.ID, nil
}

func (m *Manager) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("workbooks: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("workbooks: fetch: unexpected status %d", resp.StatusCode)
	}
	if resp.ContentLength > m.maxFetchBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFetchTooLarge, resp.ContentLength, m.maxFetchBytes)
	}

	// Read one byte past the cap to distinguish at-limit from over-limit.
	data, err := io.ReadAll(io.LimitReader(resp.Body, m.maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("workbooks: fetch: %w", err)
	}
	if int64(len(data)) > m.maxFetchBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrFetchTooLarge, m.maxFetchBytes)
	}
	return data, nil
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
