// Package fetch downloads release assets into the work directory and
// unpacks zip archives next to them.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/logging"
)

// ProgressHook is called during download with bytes downloaded and total bytes.
// total is -1 when the server sent no Content-Length.
type ProgressHook func(downloaded, total int64)

// Downloader fetches files over HTTP into a work directory.
type Downloader struct {
	workDir      string
	http         *resty.Client
	progressHook ProgressHook

	hc        *http.Client
	timeout   time.Duration
	userAgent string
}

// Option configures a Downloader. Options may be given in any order.
type Option func(*Downloader)

// WithHTTPClient replaces the underlying HTTP client (useful for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(d *Downloader) {
		d.hc = hc
	}
}

// WithTimeout bounds each request. Zero keeps the HTTP client's own
// timeout, which is none by default.
func WithTimeout(t time.Duration) Option {
	return func(d *Downloader) {
		d.timeout = t
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(d *Downloader) {
		d.userAgent = ua
	}
}

// NewDownloader creates a Downloader writing into workDir.
func NewDownloader(workDir string, opts ...Option) *Downloader {
	d := &Downloader{workDir: workDir}
	for _, opt := range opts {
		opt(d)
	}
	d.http = resty.New()
	if d.hc != nil {
		d.http = resty.NewWithClient(d.hc)
	}
	if d.timeout > 0 {
		d.http.SetTimeout(d.timeout)
	}
	if d.userAgent != "" {
		d.http.SetHeader("User-Agent", d.userAgent)
	}
	return d
}

// WorkDir returns the directory downloads are written to.
func (d *Downloader) WorkDir() string { return d.workDir }

// SetProgressHook sets the progress callback.
func (d *Downloader) SetProgressHook(hook ProgressHook) {
	d.progressHook = hook
}

// ReleaseAssetURL builds {repo}/releases/download/{version}/{filename}.
func ReleaseAssetURL(repo, version, filename string) string {
	return fmt.Sprintf("%s/releases/download/%s/%s", strings.TrimRight(repo, "/"), version, filename)
}

// Download fetches a release asset of repo at version and stores it as
// {workdir}/{filename}, returning that path.
func (d *Downloader) Download(ctx context.Context, repo, version, filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || filename == ".." {
		return "", lerrors.E("download", lerrors.ErrInvalid, filename, fmt.Errorf("bad asset name %q", filename))
	}
	if version == "" {
		return "", lerrors.E("download", lerrors.ErrInvalid, filename, fmt.Errorf("empty version"))
	}
	dest := filepath.Join(d.workDir, filename)
	if err := d.DownloadURL(ctx, ReleaseAssetURL(repo, version, filename), dest); err != nil {
		return "", err
	}
	return dest, nil
}

// DownloadURL fetches url into dest. Nothing is written unless the server
// answers 2xx, and dest only appears once the whole body has arrived.
func (d *Downloader) DownloadURL(ctx context.Context, url, dest string) error {
	const op = "download"
	log := logging.For("fetch").WithField("url", url)
	log.Debug("downloading")

	resp, err := d.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return lerrors.E(op, lerrors.ErrNetwork, url, err)
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()

	if !resp.IsSuccess() {
		msg, _ := io.ReadAll(io.LimitReader(body, 64<<10))
		log.WithField("status", resp.StatusCode()).WithField("body", string(msg)).Debug("download refused")
		return lerrors.StatusError(op, url, resp.StatusCode())
	}

	total := resp.RawResponse.ContentLength
	err = writeFileAtomically(dest, func(f *os.File) error {
		return d.copyWithProgress(f, body, total, url)
	})
	if err != nil {
		return err
	}
	log.WithField("dest", dest).Info("downloaded")
	return nil
}

func (d *Downloader) copyWithProgress(dst io.Writer, src io.Reader, total int64, url string) error {
	var downloaded int64
	if d.progressHook != nil {
		d.progressHook(0, total)
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return lerrors.E("write", lerrors.ErrIO, url, writeErr)
			}
			downloaded += int64(n)
			if d.progressHook != nil {
				d.progressHook(downloaded, total)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return lerrors.E("download", lerrors.ErrNetwork, url, err)
		}
	}
}

// writeFileAtomically writes through a temp file in the destination
// directory and renames it into place.
func writeFileAtomically(outPath string, write func(f *os.File) error) error {
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return lerrors.E("create directory", lerrors.ErrIO, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return lerrors.E("create temp file", lerrors.ErrIO, dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return lerrors.E("sync", lerrors.ErrIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return lerrors.E("close", lerrors.ErrIO, tmpName, err)
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		return lerrors.E("rename", lerrors.ErrIO, outPath, err)
	}
	return nil
}
