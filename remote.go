package tarpath

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

// Remote downloads a root archive into a scratch directory and resolves nested
// archive paths beneath it.
//
//	r, err := tarpath.NewRemote("https://example.com/downloads/some.tar")
//	if err != nil { ... }
//	defer r.Close()
//	res, err := r.Get(ctx, "bar.tar/foo3.tar.gz/foo4")
//
// The download happens lazily on the first Get, GetAll or Results call. Close
// deletes the scratch directory along with the downloaded archive and every
// extraction target created under it.
type Remote struct {
	// Client is used for http and https URLs. Defaults to http.DefaultClient.
	Client *http.Client

	// S3 is used for s3://bucket/key URLs. If nil, a client is created from the
	// default AWS config on first use.
	S3 manager.DownloadAPIClient

	// Keep if true prevents Close from deleting the scratch directory.
	Keep bool

	// Progress, if set, receives the cumulative byte count during http downloads;
	// total is -1 when the server does not report a length. By default progress
	// is logged with log.Printf at most once per second.
	Progress func(written, total int64)

	rawURL     string
	dir        string
	filename   string
	downloaded bool
}

// NewRemote creates a Remote for the given http, https or s3 URL.
//
// The scratch directory is created immediately; the download is deferred until
// the first resolution. The downloaded archive keeps the basename of the URL
// path; URLs whose basename percent-encodes a path separator are rejected.
func NewRemote(rawURL string, optFns ...func(*Remote)) (*Remote, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf(`parse URL "%s" error: %w`, rawURL, err)
	}

	switch u.Scheme {
	case "http", "https", "s3":
	default:
		return nil, fmt.Errorf(`unsupported URL scheme "%s"`, u.Scheme)
	}

	filename, err := urlFilename(u)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "tarpath-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory error: %w", err)
	}

	r := &Remote{
		Client:   http.DefaultClient,
		rawURL:   rawURL,
		dir:      dir,
		filename: filename,
	}
	for _, fn := range optFns {
		fn(r)
	}

	return r, nil
}

// Root returns the path the root archive is (or will be) downloaded to.
func (r *Remote) Root() string {
	return filepath.Join(r.dir, r.filename)
}

// Download downloads the root archive if it has not been downloaded yet.
//
// Calling Download is optional: the first Get, GetAll or Results call triggers it
// as needed.
func (r *Remote) Download(ctx context.Context) error {
	return r.download(ctx)
}

// Get downloads the root archive if needed, then resolves the nested archive
// path relative to it. See Get.
func (r *Remote) Get(ctx context.Context, name string, optFns ...func(*Resolver)) (Result, error) {
	if err := r.download(ctx); err != nil {
		return Result{}, err
	}

	return Get(ctx, path.Join(r.filename, filepath.ToSlash(name)), r.rebase(optFns)...)
}

// GetAll downloads the root archive if needed, then resolves every match of the
// nested archive path relative to it. See GetAll.
func (r *Remote) GetAll(ctx context.Context, name string, optFns ...func(*Resolver)) ([]Result, error) {
	if err := r.download(ctx); err != nil {
		return nil, err
	}

	return GetAll(ctx, path.Join(r.filename, filepath.ToSlash(name)), r.rebase(optFns)...)
}

// Results downloads the root archive if needed, then lazily resolves every match
// of the nested archive path relative to it. See Resolver.Results.
//
// A download failure is yielded as the only element of the sequence.
func (r *Remote) Results(ctx context.Context, name string, optFns ...func(*Resolver)) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		if err := r.download(ctx); err != nil {
			yield(Result{}, err)
			return
		}

		full := path.Join(r.filename, filepath.ToSlash(name))
		for res, err := range newResolver(r.rebase(optFns)...).Results(ctx, full) {
			if !yield(res, err) {
				return
			}
		}
	}
}

// Close deletes the scratch directory unless Keep is set.
func (r *Remote) Close() error {
	if r.Keep {
		return nil
	}

	return os.RemoveAll(r.dir)
}

func (r *Remote) rebase(optFns []func(*Resolver)) []func(*Resolver) {
	return append(slices.Clone(optFns), func(rv *Resolver) {
		rv.Base = r.dir
	})
}

func (r *Remote) download(ctx context.Context) error {
	if r.downloaded {
		return nil
	}

	u, err := url.Parse(r.rawURL)
	if err != nil {
		return fmt.Errorf(`parse URL "%s" error: %w`, r.rawURL, err)
	}

	f, err := os.Create(r.Root())
	if err != nil {
		return fmt.Errorf(`create file "%s" error: %w`, r.Root(), err)
	}

	switch u.Scheme {
	case "s3":
		err = r.downloadS3(ctx, u, f)
	default:
		err = r.downloadHTTP(ctx, f)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(r.Root())
		return err
	}

	r.downloaded = true
	return nil
}

func (r *Remote) downloadHTTP(ctx context.Context, f *os.File) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request error: %w", err)
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf(`download "%s" error: %w`, r.rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf(`download "%s" error: %s`, r.rawURL, resp.Status)
	}

	progress := r.Progress
	if progress == nil {
		s := rate.Sometimes{Interval: time.Second}
		progress = func(written, total int64) {
			s.Do(func() {
				if total < 0 {
					log.Printf(`downloading "%s": %s`, r.filename, humanize.IBytes(uint64(written)))
					return
				}
				log.Printf(`downloading "%s": %s/%s`, r.filename, humanize.IBytes(uint64(written)), humanize.IBytes(uint64(total)))
			})
		}
	}

	w := &progressWriter{f: f, total: resp.ContentLength, progress: progress}
	if _, err = io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf(`download "%s" error: %w`, r.rawURL, err)
	}

	return nil
}

func (r *Remote) downloadS3(ctx context.Context, u *url.URL, f *os.File) error {
	client := r.S3
	if client == nil {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("load default config error: %w", err)
		}

		client = s3.NewFromConfig(cfg)
	}

	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return fmt.Errorf(`URL "%s" must have form s3://bucket/key`, r.rawURL)
	}

	if _, err := manager.NewDownloader(client).Download(ctx, f, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}); err != nil {
		return fmt.Errorf(`download "%s" error: %w`, r.rawURL, err)
	}

	return nil
}

// urlFilename returns the basename of the URL path after percent-decoding,
// rejecting names that smuggle a path separator through encoding.
func urlFilename(u *url.URL) (string, error) {
	name := path.Base(u.Path)

	rawName, err := url.PathUnescape(path.Base(u.EscapedPath()))
	if err != nil || name != rawName || name == "/" || name == "." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf(`cannot derive a file name from URL "%s"`, u)
	}

	return name, nil
}

type progressWriter struct {
	f        *os.File
	total    int64
	written  int64
	progress func(written, total int64)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.written += int64(n)
	w.progress(w.written, w.total)
	return n, err
}
