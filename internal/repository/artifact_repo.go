package repository

import "context"

// ArtifactRepository keeps page snapshots for diagnosing a run.
type ArtifactRepository interface {
	// Save stores the html and png of a checkpoint and returns the written locations.
	Save(ctx context.Context, name string, html string, png []byte) ([]string, error)
}
