package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// StorageCheck verifies the data directory and the files kept in it.
type StorageCheck struct {
	dataDir string
	files   []string
}

// NewStorageCheck creates a check for dataDir. files are paths, relative to
// dataDir or absolute, that must be readable if they exist.
func NewStorageCheck(dataDir string, files ...string) *StorageCheck {
	return &StorageCheck{dataDir: dataDir, files: files}
}

func (c *StorageCheck) Name() string {
	return "Storage"
}

func (c *StorageCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	info, err := os.Stat(c.dataDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		result.Items = append(result.Items, CheckItem{
			Label:  "Data directory",
			Status: StatusWarn,
			Detail: c.dataDir + " does not exist yet; it is created on first use",
		})
		return result
	case err != nil:
		result.Items = append(result.Items, CheckItem{
			Label:  "Data directory",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	case !info.IsDir():
		result.Items = append(result.Items, CheckItem{
			Label:  "Data directory",
			Status: StatusFail,
			Detail: c.dataDir + " is not a directory",
		})
		return result
	}

	if err := probeWritable(c.dataDir); err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "Data directory",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	result.Items = append(result.Items, CheckItem{
		Label:  "Data directory",
		Status: StatusPass,
		Detail: c.dataDir,
	})

	for _, f := range c.files {
		path := f
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.dataDir, path)
		}

		fh, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			continue
		case err != nil:
			result.Items = append(result.Items, CheckItem{
				Label:  filepath.Base(path),
				Status: StatusFail,
				Detail: err.Error(),
			})
			continue
		}
		_ = fh.Close()

		result.Items = append(result.Items, CheckItem{
			Label:  filepath.Base(path),
			Status: StatusPass,
		})
	}

	return result
}

func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
