// Package home manages the larder home directory layout.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the larder home directory.
	DefaultDirName = ".larder"

	// DBDirName is the subdirectory holding the embedded job store.
	DBDirName = "db"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the larder home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.larder).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DBPath returns the path to the embedded database directory.
func (d *Dir) DBPath() string {
	return filepath.Join(d.path, DBDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.DBPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create db directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(d.path, "originals"), 0o755); err != nil {
		return fmt.Errorf("failed to create originals directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(d.path, "pages"), 0o755); err != nil {
		return fmt.Errorf("failed to create pages directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// OriginalPath returns the path to a job's uploaded PDF.
func (d *Dir) OriginalPath(jobID string) string {
	return filepath.Join(d.path, "originals", jobID+".pdf")
}

// PagesDir returns the directory for rendered page images of a job.
func (d *Dir) PagesDir(jobID string) string {
	return filepath.Join(d.path, "pages", jobID)
}

// PageImagePath returns the path to a specific rendered page image.
// Page numbers are 1-indexed.
func (d *Dir) PageImagePath(jobID string, pageNum int) string {
	return filepath.Join(d.PagesDir(jobID), fmt.Sprintf("page_%04d.png", pageNum))
}

// EnsurePagesDir creates the page image directory for a job.
func (d *Dir) EnsurePagesDir(jobID string) error {
	return os.MkdirAll(d.PagesDir(jobID), 0o755)
}

// RemoveJobFiles deletes the uploaded PDF and rendered page images for a job.
// Missing files are not an error.
func (d *Dir) RemoveJobFiles(jobID string) error {
	if err := os.Remove(d.OriginalPath(jobID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove original: %w", err)
	}
	if err := os.RemoveAll(d.PagesDir(jobID)); err != nil {
		return fmt.Errorf("failed to remove page images: %w", err)
	}
	return nil
}
