package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"opencap/internal/logging"
	"opencap/internal/services"
)

// Extension is appended to archive object keys.
const Extension = ".tar.zst"

// Uploader stores a finished archive under key.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.ReadSeeker, size int64) error
}

// Archiver packs session directories and hands them to an Uploader.
type Archiver struct {
	uploader Uploader
	prefix   string
	exclude  map[string]struct{}
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithExclude skips files with the given base names.
func WithExclude(names ...string) Option {
	return func(a *Archiver) {
		for _, name := range names {
			a.exclude[name] = struct{}{}
		}
	}
}

// WithClock overrides the time source used in object keys.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) {
		if now != nil {
			a.now = now
		}
	}
}

// New constructs an Archiver that writes keys under prefix.
func New(uploader Uploader, prefix string, logger *slog.Logger, opts ...Option) *Archiver {
	a := &Archiver{
		uploader: uploader,
		prefix:   strings.Trim(strings.TrimSpace(prefix), "/"),
		exclude:  map[string]struct{}{},
		now:      time.Now,
		logger:   logging.NewComponentLogger(logger, "archive"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Key returns the object key for a session archive taken at t.
func (a *Archiver) Key(sessionID string, t time.Time) string {
	name := sessionID + "/" + t.UTC().Format("20060102T150405Z") + Extension
	if a.prefix == "" {
		return name
	}
	return path.Join(a.prefix, name)
}

// ArchiveSession compresses dir and uploads it, returning the object key.
func (a *Archiver) ArchiveSession(ctx context.Context, sessionID, dir string) (string, error) {
	tmp, err := os.CreateTemp("", "opencap-"+sessionID+"-*"+Extension)
	if err != nil {
		return "", fmt.Errorf("create temp archive: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	files, err := Write(tmp, dir, sessionID, a.exclude)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "archive", "pack", dir, err)
	}
	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", fmt.Errorf("archive size: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind archive: %w", err)
	}

	key := a.Key(sessionID, a.now())
	if err := a.uploader.Upload(ctx, key, tmp, size); err != nil {
		return "", services.Wrap(services.ErrRemote, "archive", "upload", key, err)
	}
	logging.WithContext(ctx, a.logger).Info("session archived",
		logging.String("key", key),
		logging.Int("files", files),
		logging.Int64("bytes", size),
	)
	return key, nil
}

// Write streams root as a zstd-compressed tar to w. Entries are stored under
// base/ and files whose base name is in exclude are skipped. It returns the
// number of regular files written.
func Write(w io.Writer, root, base string, exclude map[string]struct{}) (int, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return 0, fmt.Errorf("zstd writer: %w", err)
	}
	tw := tar.NewWriter(enc)

	files := 0
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if _, skip := exclude[d.Name()]; skip && p != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = path.Join(base, filepath.ToSlash(rel))
		if info.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return err
		}
		files++
		return nil
	})
	if walkErr != nil {
		_ = tw.Close()
		_ = enc.Close()
		return files, walkErr
	}
	if err := tw.Close(); err != nil {
		_ = enc.Close()
		return files, fmt.Errorf("close tar: %w", err)
	}
	if err := enc.Close(); err != nil {
		return files, fmt.Errorf("close zstd: %w", err)
	}
	return files, nil
}
