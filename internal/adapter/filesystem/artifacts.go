package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArtifactStore writes page snapshots of one run into its own directory.
type ArtifactStore struct {
	dir string
}

// NewArtifactStore creates <root>/<timestamp>_<runID>/.
func NewArtifactStore(root, runID string, startedAt time.Time) (*ArtifactStore, error) {
	dir := filepath.Join(root, startedAt.Format("20060102-150405")+"_"+runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &ArtifactStore{dir: dir}, nil
}

// Dir returns the directory of the run.
func (s *ArtifactStore) Dir() string { return s.dir }

// Save writes name.html and name.png. Empty inputs are skipped.
func (s *ArtifactStore) Save(ctx context.Context, name, html string, png []byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := filepath.Join(s.dir, sanitize(name))

	var written []string
	var errs []error
	if html != "" {
		if err := os.WriteFile(base+".html", []byte(html), 0o644); err != nil {
			errs = append(errs, err)
		} else {
			written = append(written, base+".html")
		}
	}
	if len(png) > 0 {
		if err := os.WriteFile(base+".png", png, 0o644); err != nil {
			errs = append(errs, err)
		} else {
			written = append(written, base+".png")
		}
	}
	return written, errors.Join(errs...)
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
}
