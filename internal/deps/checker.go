package deps

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultHTTPTimeout = 10 * time.Second

// Checker проверяет существование локальных путей, file:// и http(s):// URI.
//
// Одновременные проверки одного URI выполняются один раз.
type Checker struct {
	client *http.Client
	group  singleflight.Group
}

// NewChecker создаёт Checker. client == nil — клиент с таймаутом 10s.
func NewChecker(client *http.Client) *Checker {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Checker{client: client}
}

// Exists сообщает, существует ли ресурс uri.
func (c *Checker) Exists(ctx context.Context, uri string) (bool, error) {
	v, err, _ := c.group.Do(uri, func() (any, error) {
		return c.exists(ctx, uri)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (c *Checker) exists(ctx context.Context, uri string) (bool, error) {
	if path, ok := LocalPath(uri); ok {
		return statExists(path)
	}

	u, err := url.Parse(uri)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCheckFailed, uri, err)
	}

	switch u.Scheme {
	case "http", "https":
		return c.headExists(ctx, uri)
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

func (c *Checker) headExists(ctx context.Context, uri string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uri, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCheckFailed, uri, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCheckFailed, uri, err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s: HTTP %d", ErrCheckFailed, uri, resp.StatusCode)
	}
}

func statExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %s: %v", ErrCheckFailed, path, err)
}

// LocalPath возвращает путь файловой системы для локального URI
// (абсолютный путь или file://).
func LocalPath(uri string) (string, bool) {
	if strings.HasPrefix(uri, "file://") {
		u, err := url.Parse(uri)
		if err != nil {
			return "", false
		}
		return u.Path, true
	}
	if strings.HasPrefix(uri, "/") {
		return uri, true
	}
	return "", false
}
