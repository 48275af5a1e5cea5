// Package export persists generated artifacts for the caller to fetch.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dpolishuk/sketch2code/internal/coder"
	"github.com/dpolishuk/sketch2code/internal/models"
)

// Writer stores an artifact under a session id and returns where it went.
type Writer interface {
	Write(ctx context.Context, sessionID string, artifact *models.GeneratedArtifact) (string, error)
}

const ManifestName = "sketch2code.json"

var ErrInvalidSession = errors.New("invalid session id")

type manifest struct {
	SessionID string   `json:"sessionId"`
	Summary   string   `json:"summary"`
	Files     []string `json:"files"`
}

// plan returns the sanitized relative paths and contents to write, including
// the manifest. Paths that clean to nothing are skipped.
func plan(sessionID string, artifact *models.GeneratedArtifact) (map[string][]byte, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || sessionID == "." || sessionID == ".." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSession, sessionID)
	}

	files := make(map[string][]byte, len(artifact.Files)+1)
	m := manifest{SessionID: sessionID, Summary: artifact.Summary, Files: []string{}}
	for _, p := range artifact.Paths() {
		clean := coder.CleanPath(p)
		if clean == "" || clean == ManifestName {
			continue
		}
		files[clean] = []byte(artifact.Files[p])
		m.Files = append(m.Files, clean)
	}

	sort.Strings(m.Files)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	files[ManifestName] = data
	return files, nil
}
