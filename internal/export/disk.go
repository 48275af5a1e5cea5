package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dpolishuk/sketch2code/internal/models"
)

// DiskWriter writes each artifact into <root>/<sessionID>/.
type DiskWriter struct {
	root string
}

func NewDiskWriter(root string) *DiskWriter {
	return &DiskWriter{root: root}
}

func (w *DiskWriter) Write(ctx context.Context, sessionID string, artifact *models.GeneratedArtifact) (string, error) {
	files, err := plan(sessionID, artifact)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(w.root, sessionID)
	for rel, content := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory for %s: %w", rel, err)
		}
		if err := os.WriteFile(target, content, 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", rel, err)
		}
	}
	return dir, nil
}
