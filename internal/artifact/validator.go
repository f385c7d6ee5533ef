// Package artifact classifies and verifies model artifacts. The Validator
// is the pre-filter and post-download check used by the sync pipeline:
// qualification by file extension, streamed SHA-256 digests, fail-closed
// verification of staged files, and best-effort removal.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/dmitrijs2005/modelsync/internal/logging"
)

// DefaultSuffixes lists the recognized artifact extensions: binary model
// formats plus plain-text/JSON configuration formats.
var DefaultSuffixes = []string{
	".bin", ".onnx", ".pt", ".pth", ".tflite", ".gguf", ".safetensors",
	".json", ".txt", ".yaml", ".yml",
}

type Validator struct {
	suffixes []string
	logger   logging.Logger
}

// NewValidator builds a Validator recognizing the given suffixes; with none
// given, DefaultSuffixes applies.
func NewValidator(logger logging.Logger, suffixes ...string) *Validator {
	if len(suffixes) == 0 {
		suffixes = DefaultSuffixes
	}
	return &Validator{suffixes: suffixes, logger: logger}
}

// Qualifies reports whether the key names a recognized artifact. The check
// is a lowercased suffix match, cheap enough to run before any network call.
func (v *Validator) Qualifies(key string) bool {
	ext := strings.ToLower(path.Ext(key))
	if ext == "" {
		return false
	}
	for _, s := range v.suffixes {
		if ext == s {
			return true
		}
	}
	return false
}

// Digest streams the file at path and returns its SHA-256 as a hex string.
func (v *Validator) Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify checks the file at path against the expected attributes and fails
// closed: a missing file, a size mismatch, or a digest mismatch all return
// false with the specific cause logged. Pass wantSize < 0 to skip the size
// check and an empty wantDigest to skip the digest check.
func (v *Validator) Verify(ctx context.Context, path string, wantSize int64, wantDigest string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		v.logger.Warn(ctx, "verification failed: cannot stat file", "path", path, "error", err.Error())
		return false
	}

	if wantSize >= 0 && fi.Size() != wantSize {
		v.logger.Warn(ctx, "verification failed: size mismatch",
			"path", path, "want", wantSize, "got", fi.Size())
		return false
	}

	if wantDigest != "" {
		got, err := v.Digest(path)
		if err != nil {
			v.logger.Warn(ctx, "verification failed: cannot digest file", "path", path, "error", err.Error())
			return false
		}
		if got != wantDigest {
			v.logger.Warn(ctx, "verification failed: digest mismatch",
				"path", path, "want", wantDigest, "got", got)
			return false
		}
	}

	return true
}

// Cleanup removes the file at path if it exists. Absence is not an error;
// any other removal failure is logged and swallowed so cleanup never blocks
// the caller's error path.
func (v *Validator) Cleanup(ctx context.Context, path string) {
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return
	}
	v.logger.Warn(ctx, "cleanup failed", "path", path, "error", err.Error())
}
