package update

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"upder/internal/debug"
	appErrors "upder/internal/errors"
)

// Default fetch settings.
const (
	DefaultChunkSize      = 64 * 1024
	DefaultMaxRedirects   = 10
	DefaultConnectTimeout = 30 * time.Second
)

// ErrTooManyRedirects is returned when a download exceeds its redirect budget.
var ErrTooManyRedirects = errors.New("too many redirects")

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Download describes a completed fetch.
type Download struct {
	Path   string
	Bytes  int64
	SHA256 string
}

// Fetcher streams release assets to disk.
type Fetcher struct {
	httpClient *http.Client
	chunkSize  int
	reporter   ProgressReporter
	now        func() time.Time
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client for the fetcher.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// WithChunkSize sets the read buffer size.
func WithChunkSize(size int) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.chunkSize = size
		}
	}
}

// WithProgress sets the reporter that receives progress snapshots.
func WithProgress(r ProgressReporter) FetcherOption {
	return func(f *Fetcher) {
		if r != nil {
			f.reporter = r
		}
	}
}

// NewFetcher creates a fetcher. Without WithHTTPClient it uses NewHTTPClient
// with the default connect timeout and redirect limit.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient: NewHTTPClient(DefaultConnectTimeout, DefaultMaxRedirects),
		chunkSize:  DefaultChunkSize,
		reporter:   nopReporter{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewHTTPClient builds a client that bounds the connection phase by
// connectTimeout and follows at most maxRedirects redirects. The transfer
// itself has no deadline.
func NewHTTPClient(connectTimeout time.Duration, maxRedirects int) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	if maxRedirects < 0 {
		maxRedirects = 0
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, maxRedirects)
			}
			debug.Logf("following redirect to %s", req.URL.Redacted())
			return nil
		},
	}
}

// Fetch downloads url into dest. dest must not exist: the file is created
// exclusively and an existing file is reported as already_exists without being
// touched. A failed transfer removes the partial file and returns
// download_interrupted.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) (Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Download{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", "upder")

	start := f.now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Download{}, appErrors.New(appErrors.CodeIO, fmt.Sprintf("GET %s: %v", url, err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := StatusError{URL: url, StatusCode: resp.StatusCode}
		return Download{}, appErrors.New(appErrors.CodeHTTPStatus, statusErr.Error(), statusErr)
	}

	//nolint:gosec // G304: destination is the configured install path
	file, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Download{}, appErrors.New(appErrors.CodeAlreadyExists, fmt.Sprintf("%s already exists", dest), err)
		}
		return Download{}, appErrors.New(appErrors.CodeIO, fmt.Sprintf("create %s: %v", dest, err), err)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	debug.WithFields(logrus.Fields{"url": url, "dest": dest, "total": total}).Debug("download started")

	progress, sum, err := f.stream(resp.Body, file, total, start)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(dest)
		f.reporter.Finish(progress, err)
		return Download{}, err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(dest)
		f.reporter.Finish(progress, err)
		return Download{}, appErrors.New(appErrors.CodeIO, fmt.Sprintf("close %s: %v", dest, err), err)
	}
	f.reporter.Finish(progress, nil)

	d := Download{Path: dest, Bytes: progress.Bytes, SHA256: hex.EncodeToString(sum.Sum(nil))}
	debug.WithFields(logrus.Fields{"dest": dest, "bytes": d.Bytes, "sha256": d.SHA256, "elapsed": progress.Elapsed}).Debug("download finished")
	return d, nil
}

func (f *Fetcher) stream(body io.Reader, file io.Writer, total int64, start time.Time) (Progress, hash.Hash, error) {
	sum := sha256.New()
	buf := make([]byte, f.chunkSize)
	progress := Progress{Total: total}
	last := start

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := file.Write(buf[:n]); err != nil {
				return progress, sum, appErrors.New(appErrors.CodeIO, fmt.Sprintf("write chunk: %v", err), err)
			}
			_, _ = sum.Write(buf[:n])

			now := f.now()
			progress.Bytes += int64(n)
			progress.Elapsed = now.Sub(start)
			if dt := now.Sub(last); dt > 0 {
				progress.Throughput = float64(n) / dt.Seconds()
			}
			last = now
			if progress.Total > 0 && progress.Bytes > progress.Total {
				progress.Total = progress.Bytes
			}
			f.reporter.Report(progress)
		}
		if errors.Is(readErr, io.EOF) {
			return progress, sum, nil
		}
		if readErr != nil {
			msg := fmt.Sprintf("download interrupted after %d bytes: %v", progress.Bytes, readErr)
			return progress, sum, appErrors.New(appErrors.CodeDownloadInterrupted, msg, readErr)
		}
	}
}

// Install fetches url into dest and marks the result executable.
func (f *Fetcher) Install(ctx context.Context, url, dest string) (Download, error) {
	d, err := f.Fetch(ctx, url, dest)
	if err != nil {
		return Download{}, err
	}
	if err := MakeExecutable(dest); err != nil {
		return d, err
	}
	return d, nil
}

// MakeExecutable adds the execute bits to path, like chmod +x.
func MakeExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return appErrors.New(appErrors.CodeIO, fmt.Sprintf("stat %s: %v", path, err), err)
	}
	//nolint:gosec // G302: Binary needs to be executable
	if err := os.Chmod(path, info.Mode().Perm()|0o111); err != nil {
		return appErrors.New(appErrors.CodeIO, fmt.Sprintf("set executable permission on %s: %v", path, err), err)
	}
	return nil
}
