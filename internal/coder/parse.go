package coder

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/dpolishuk/sketch2code/internal/llm"
	"github.com/dpolishuk/sketch2code/internal/models"
)

type filePayload struct {
	Path    string `json:"path" jsonschema:"description=Relative file path inside the project"`
	Content string `json:"content" jsonschema:"description=Full file content"`
}

type artifactPayload struct {
	Files   []filePayload `json:"files"`
	Summary string        `json:"summary" jsonschema:"description=How the generated components map to the diagram"`
}

var (
	fencePattern    = regexp.MustCompile("(?s)```([A-Za-z0-9_+.-]*)[^\\n]*\\n(.*?)```")
	fileHintPattern = regexp.MustCompile(`^\s*(?://|#|--)\s*(?:file:)?\s*([\w./-]+\.\w+)\s*$`)
)

var fenceExtensions = map[string]string{
	"go": "go", "golang": "go", "python": "py", "py": "py", "typescript": "ts", "ts": "ts",
	"tsx": "tsx", "javascript": "js", "js": "js", "java": "java", "kotlin": "kt",
	"sql": "sql", "yaml": "yaml", "yml": "yaml", "json": "json", "dockerfile": "Dockerfile",
	"bash": "sh", "sh": "sh",
}

// ParseArtifact reads the coder response. Output that is not the expected JSON
// is salvaged: fenced code blocks become files and the raw text the summary.
// The second return value reports whether salvage was needed.
func ParseArtifact(raw []byte) (*models.GeneratedArtifact, bool) {
	var payload artifactPayload
	if err := json.Unmarshal(llm.ExtractJSON(raw), &payload); err == nil && (len(payload.Files) > 0 || payload.Summary != "") {
		artifact := &models.GeneratedArtifact{
			Files:   make(map[string]string, len(payload.Files)),
			Summary: strings.TrimSpace(payload.Summary),
		}
		for i, f := range payload.Files {
			p := CleanPath(f.Path)
			if p == "" {
				p = fmt.Sprintf("generated/file%d.txt", i+1)
			}
			artifact.Files[uniquePath(artifact.Files, p)] = f.Content
		}
		return artifact, false
	}
	return salvage(string(raw)), true
}

func salvage(text string) *models.GeneratedArtifact {
	artifact := &models.GeneratedArtifact{
		Files:   map[string]string{},
		Summary: strings.TrimSpace(text),
	}
	for i, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		lang, body := strings.ToLower(m[1]), m[2]
		p := ""
		if first, rest, ok := strings.Cut(body, "\n"); ok {
			if hint := fileHintPattern.FindStringSubmatch(first); hint != nil {
				p = CleanPath(hint[1])
				body = rest
			}
		}
		if p == "" {
			ext := fenceExtensions[lang]
			if ext == "" {
				ext = "txt"
			}
			p = fmt.Sprintf("generated/snippet%d.%s", i+1, ext)
		}
		artifact.Files[uniquePath(artifact.Files, p)] = body
	}
	return artifact
}

// uniquePath returns p, or p with a numeric suffix before its extension when
// another file already holds that path.
func uniquePath(files map[string]string, p string) string {
	if _, taken := files[p]; !taken {
		return p
	}
	ext := path.Ext(p)
	base := strings.TrimSuffix(p, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		if _, taken := files[candidate]; !taken {
			return candidate
		}
	}
}

// CleanPath makes a model-supplied path relative and free of "..".
// It returns "" when nothing usable remains.
func CleanPath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return ""
	}
	return p
}
