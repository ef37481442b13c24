package snapshot

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	appLog "pss/internal/log"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

// WriteFile replaces path with data atomically: the bytes go to a temp
// file in the same directory which is then renamed over path.
func WriteFile(path string, data []byte) error {
	if path == "" {
		return errors.New("file path is empty")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".pss-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmpName)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return errors.Wrapf(err, "chmod %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "rename to %s", path)
	}
	return nil
}

// Open returns the snapshot at location, which is either a local path or
// an http(s) URL. The body is read completely before Open returns.
func Open(ctx context.Context, location string) (io.Reader, error) {
	if location == "" {
		return nil, errors.New("snapshot location is empty")
	}
	if !isURL(location) {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", location)
		}
		return bytes.NewReader(data), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	appLog.Info("snapshot fetch start", "url", redactURL(location))
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", redactURL(location))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch %s: %s", redactURL(location), resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", redactURL(location))
	}
	appLog.Info("snapshot fetch success", "url", redactURL(location), "bytes", len(data))
	return bytes.NewReader(data), nil
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// redactURL keeps only scheme and host so tokens in paths or queries stay
// out of the logs.
func redactURL(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "url/...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
