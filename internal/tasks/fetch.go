package tasks

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/infracollect/archivekit/internal/hostfs"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const DefaultFetchTimeout = 5 * time.Minute

var defaultFetchHeaders = map[string]string{
	"User-Agent": "archivekit/0.1.0",
	"Accept":     "*/*",
}

type FetchConfig struct {
	Headers  map[string]string
	Timeout  time.Duration
	Insecure bool
	// TempDir receives downloads (default: the filesystem's temp dir).
	TempDir string
}

// Fetcher downloads http(s) sources to temporary files.
type Fetcher struct {
	fs         *hostfs.FS
	httpClient *http.Client
	headers    map[string]string
	tempDir    string
	logger     *zap.Logger
}

type FetchOption func(*Fetcher)

func WithHTTPClient(client *http.Client) FetchOption {
	return func(f *Fetcher) {
		f.httpClient = client
	}
}

func NewFetcher(fs *hostfs.FS, cfg FetchConfig, logger *zap.Logger, opts ...FetchOption) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fetcher{
		fs:      fs,
		headers: lo.Assign(defaultFetchHeaders, cfg.Headers),
		tempDir: cfg.TempDir,
		logger:  logger.Named("fetch"),
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultFetchTimeout
		}

		transport := cleanhttp.DefaultPooledTransport()
		if cfg.Insecure {
			if transport.TLSClientConfig == nil {
				transport.TLSClientConfig = &tls.Config{}
			}
			transport.TLSClientConfig.InsecureSkipVerify = true
		}

		f.httpClient = &http.Client{
			Transport: transport,
			Timeout:   timeout,
		}
	}

	return f
}

// IsRemote reports whether source is an http or https URL.
func IsRemote(source string) bool {
	_, ok := remoteURL(source)
	return ok
}

func remoteURL(source string) (*url.URL, bool) {
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, u.Scheme == "http" || u.Scheme == "https"
}

// Fetch downloads source and returns the local path. The file keeps the
// URL's base name as a suffix so its format can still be detected. cleanup
// removes it.
func (f *Fetcher) Fetch(ctx context.Context, source string) (local string, cleanup func(), err error) {
	cleanup = func() {}
	u, ok := remoteURL(source)
	if !ok {
		return "", cleanup, fmt.Errorf("not an http(s) URL: %s", source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", cleanup, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", cleanup, fmt.Errorf("failed to fetch %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", cleanup, fmt.Errorf("failed to fetch %s: unexpected status %s", u.Redacted(), resp.Status)
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = "download"
	}
	file, err := afero.TempFile(f.fs.Fs(), f.tempDir, "archivekit-*-"+name)
	if err != nil {
		return "", cleanup, fmt.Errorf("failed to create temporary file: %w", err)
	}
	local = file.Name()
	cleanup = func() {
		if err := f.fs.Fs().Remove(local); err != nil {
			f.logger.Warn("failed to remove download", zap.String("path", local), zap.Error(err))
		}
	}

	n, err := io.Copy(file, resp.Body)
	if err = errors.Join(err, file.Close()); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("failed to download %s: %w", u.Redacted(), err)
	}

	f.logger.Debug("downloaded source",
		zap.String("url", u.Redacted()),
		zap.String("path", local),
		zap.Int64("bytes", n),
	)
	return local, cleanup, nil
}
