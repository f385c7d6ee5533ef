package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/modelsync/internal/common"
)

// progressLogStep is the transferred-byte interval between progress records.
const progressLogStep = 100 << 20

// DownloadResult reports the outcome of a download attempt. On failure Err
// is set and Bytes/Duration still describe the partial transfer, so callers
// decide whether the failure is fatal.
type DownloadResult struct {
	Bytes    int64
	Duration time.Duration
	Err      error
}

// countingWriter accumulates the transferred byte count as data arrives and
// invokes onStep once per progressLogStep bytes.
type countingWriter struct {
	n      int64
	next   int64
	onStep func(n int64)
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	if w.onStep != nil && w.n >= w.next {
		w.onStep(w.n)
		w.next = w.n + progressLogStep
	}
	return len(p), nil
}

// Download fetches the remote object at key and installs it at finalPath.
//
// The object body is streamed into a staging file at finalPath+StagingSuffix,
// which is flushed and closed before verification runs: a stat racing ahead
// of the OS completing the write can observe a missing or short file even
// though the transfer succeeded, so verification must not begin until the
// write stream has been closed. The staged file is verified against the
// remote size and then renamed onto finalPath in one atomic step, the sole
// point at which consumers can observe the new version. Any failure after
// the staging file exists removes it before returning.
func (c *Client) Download(ctx context.Context, key, finalPath string) DownloadResult {
	start := time.Now()

	fail := func(n int64, err error) DownloadResult {
		return DownloadResult{Bytes: n, Duration: time.Since(start), Err: err}
	}

	info, err := c.Describe(ctx, key)
	if err != nil {
		return fail(0, err)
	}
	if info == nil {
		return fail(0, fmt.Errorf("download %s: %w", key, common.ErrNotFound))
	}

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fail(0, fmt.Errorf("mkdir for %s: %w", finalPath, err))
	}

	if !c.hasCapacity(ctx, filepath.Dir(finalPath), info.Size) {
		return fail(0, fmt.Errorf("download %s (%d bytes): %w", key, info.Size, common.ErrInsufficientSpace))
	}

	obj, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fail(0, fmt.Errorf("get %s: %w", key, err))
	}
	defer obj.Body.Close()

	stagingPath := finalPath + StagingSuffix

	counter := &countingWriter{onStep: func(n int64) {
		c.logger.Debug(ctx, "download progress", "key", key, "bytes", n, "total", info.Size)
	}}

	n, err := c.stageBody(obj.Body, stagingPath, counter)
	if err != nil {
		c.validator.Cleanup(ctx, stagingPath)
		return fail(n, fmt.Errorf("stage %s: %w", key, err))
	}

	if !c.validator.Verify(ctx, stagingPath, info.Size, "") {
		c.validator.Cleanup(ctx, stagingPath)
		return fail(n, fmt.Errorf("download %s: %w", key, common.ErrIntegrity))
	}

	if err := os.Rename(stagingPath, finalPath); err != nil {
		c.validator.Cleanup(ctx, stagingPath)
		return fail(n, fmt.Errorf("install %s: %w", finalPath, err))
	}

	return DownloadResult{Bytes: n, Duration: time.Since(start)}
}

// stageBody copies the object body into the staging file and does not return
// until the file has been synced and closed, which orders every later stat
// after the completed write.
func (c *Client) stageBody(body io.Reader, stagingPath string, counter *countingWriter) (int64, error) {
	f, err := os.OpenFile(stagingPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	if _, err := io.Copy(io.MultiWriter(f, counter), body); err != nil {
		f.Close()
		return counter.n, err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return counter.n, err
	}
	if err := f.Close(); err != nil {
		return counter.n, err
	}

	return counter.n, nil
}

// NeedsUpdate decides whether the local copy at localPath is stale relative
// to the remote object. Missing local file: stale. Missing remote object:
// not stale (a removed remote object must not trigger a re-download), with a
// warning. Otherwise the local copy is stale when sizes differ or the remote
// modification time is strictly newer. Unexpected errors default to stale:
// a redundant download beats silently skipping a needed update.
func (c *Client) NeedsUpdate(ctx context.Context, key, localPath string) bool {
	fi, err := os.Stat(localPath)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn(ctx, "cannot stat local artifact, assuming update needed",
				"path", localPath, "error", err.Error())
		}
		return true
	}

	info, err := c.Describe(ctx, key)
	if err != nil {
		c.logger.Warn(ctx, "cannot describe remote object, assuming update needed",
			"key", key, "error", err.Error())
		return true
	}
	if info == nil {
		c.logger.Warn(ctx, "remote object absent, keeping local copy", "key", key)
		return false
	}

	if fi.Size() != info.Size {
		return true
	}
	return info.LastModified.After(fi.ModTime())
}
