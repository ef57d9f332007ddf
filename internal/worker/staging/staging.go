// Package staging owns the two local scratch directories a job moves files
// through: raw intake and processed output.
package staging

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"videoproc/internal/pkg/errors"
	"videoproc/internal/pkg/logger"
)

// Area is the pair of staging directories.
type Area struct {
	rawDir       string
	processedDir string
	log          *logger.Logger
}

func New(rawDir, processedDir string, log *logger.Logger) *Area {
	if log == nil {
		log = logger.Discard()
	}
	return &Area{
		rawDir:       filepath.Clean(rawDir),
		processedDir: filepath.Clean(processedDir),
		log:          log.WithComponent("staging"),
	}
}

func (a *Area) RawDir() string       { return a.rawDir }
func (a *Area) ProcessedDir() string { return a.processedDir }

// Setup ensures both staging directories exist. It is safe to call on every
// start.
func (a *Area) Setup() error {
	for _, dir := range []string{a.rawDir, a.processedDir} {
		if err := EnsureDirectory(dir); err != nil {
			return err
		}
	}
	a.log.Debug("staging directories ready", "raw_dir", a.rawDir, "processed_dir", a.processedDir)
	return nil
}

// EnsureDirectory creates path and any missing parents. An existing directory
// is left untouched.
func EnsureDirectory(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return errors.Filesystem(err, "staging.ensure_directory", "create directory").
			WithField("path", path)
	}
	st, err := os.Stat(path)
	if err != nil {
		return errors.Filesystem(err, "staging.ensure_directory", "stat directory").
			WithField("path", path)
	}
	if !st.IsDir() {
		return errors.Filesystem(fmt.Errorf("%s is not a directory", path), "staging.ensure_directory", "create directory").
			WithField("path", path)
	}
	return nil
}

// DeleteFile removes a regular file. A missing file is not an error.
func DeleteFile(path string) error {
	st, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Filesystem(err, "staging.delete_file", "stat file").WithField("path", path)
	}
	if st.IsDir() {
		return errors.Filesystem(fmt.Errorf("%s is a directory", path), "staging.delete_file", "refusing to delete").
			WithField("path", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Filesystem(err, "staging.delete_file", "delete file").WithField("path", path)
	}
	return nil
}

// Exists reports whether anything is present at path.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// RawPath returns the location of name inside the raw directory.
func (a *Area) RawPath(name string) (string, error) {
	return join(a.rawDir, name)
}

// ProcessedPath returns the location of name inside the processed directory.
func (a *Area) ProcessedPath(name string) (string, error) {
	return join(a.processedDir, name)
}

func join(dir, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ValidateName rejects local names that are empty or would leave the
// staging directory.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.ValidationField("name", "local file name is required")
	case name == "." || name == "..":
		return errors.ValidationField("name", "local file name is not a file").WithField("value", name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return errors.ValidationField("name", "local file name must not contain path separators").
			WithField("value", name)
	}
	return nil
}

// Claim holds a host-local lock on a raw staging name.
type Claim struct {
	lock *flock.Flock
}

// Claim takes an advisory lock on name so two processes on this host never
// stage the same file at once. A held lock yields a CONFLICT error.
func (a *Area) Claim(name string) (*Claim, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := EnsureDirectory(a.rawDir); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(a.rawDir, "."+name+".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, errors.Filesystem(err, "staging.claim", "acquire lock").WithField("name", name)
	}
	if !ok {
		return nil, errors.Conflict("local file is being staged by another process").WithField("name", name)
	}
	return &Claim{lock: lock}, nil
}

// Release unlocks and removes the lock file.
func (c *Claim) Release() error {
	if c == nil || c.lock == nil {
		return nil
	}
	path := c.lock.Path()
	if err := c.lock.Unlock(); err != nil {
		return errors.Filesystem(err, "staging.release", "release lock").WithField("path", path)
	}
	return DeleteFile(path)
}

// SweepResult reports what Sweep removed.
type SweepResult struct {
	Removed []string
	Errors  []error
}

// Sweep deletes regular files older than maxAge from both directories. These
// are leftovers of a process that died mid-job; a running job always cleans
// up after itself.
func (a *Area) Sweep(maxAge time.Duration) SweepResult {
	var result SweepResult
	cutoff := time.Now().Add(-maxAge)

	for _, dir := range []string{a.rawDir, a.processedDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				result.Errors = append(result.Errors, errors.Filesystem(err, "staging.sweep", "read directory").WithField("path", dir))
			}
			continue
		}
		for _, entry := range entries {
			// Lock files belong to live claims.
			if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				if !isNotExist(err) {
					result.Errors = append(result.Errors, err)
				}
				continue
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			p := filepath.Join(dir, entry.Name())
			if err := DeleteFile(p); err != nil {
				result.Errors = append(result.Errors, err)
				a.log.Warn("failed to remove stale staging file", "path", p, "error", err.Error())
				continue
			}
			result.Removed = append(result.Removed, p)
			a.log.Info("removed stale staging file", "path", p, "age", time.Since(info.ModTime()).String())
		}
	}
	return result
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
