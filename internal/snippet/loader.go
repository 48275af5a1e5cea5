package snippet

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dpolishuk/sketch2code/internal/models"
	"github.com/dpolishuk/sketch2code/pkg/tokenize"
	"github.com/dpolishuk/sketch2code/pkg/treesitter"
	"github.com/go-enry/go-enry/v2"
	"github.com/google/uuid"
)

var snippetNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("sketch2code/snippet"))

const (
	maxFileBytes    = 256 << 10
	loaderWorkers   = 4
	wholeFileSuffix = "#file"
)

var skippedDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "__pycache__": true,
	".venv": true, "dist": true, "build": true, "target": true,
}

var proseLanguages = map[string]bool{
	"markdown": true, "text": true, "restructuredtext": true, "asciidoc": true,
}

// LoadResult is the outcome of loading a directory of reference sources.
type LoadResult struct {
	FilesProcessed int
	Records        []models.SnippetRecord
	Errors         []string
}

// Loader turns source files into snippet records: one per top-level
// declaration when a grammar is available, otherwise one per file.
type Loader struct {
	workers int
}

func NewLoader() *Loader {
	return &Loader{workers: loaderWorkers}
}

// LoadDir walks dir and extracts snippets from every source file in it.
// Record order is deterministic.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*LoadResult, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && (skippedDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if enry.IsVendor(rel) {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	sort.Strings(files)

	perFile := make([][]models.SnippetRecord, len(files))
	processed := make([]bool, len(files))
	errs := make([]string, len(files))

	var wg sync.WaitGroup
	sem := make(chan struct{}, l.workers)
	for i, rel := range files {
		wg.Add(1)
		go func(i int, rel string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}
			content, err := readSource(filepath.Join(dir, filepath.FromSlash(rel)))
			if err != nil {
				errs[i] = fmt.Sprintf("%s: %v", rel, err)
				return
			}
			if content == nil {
				return
			}
			records, err := l.LoadFile(ctx, rel, content)
			if err != nil {
				errs[i] = fmt.Sprintf("%s: %v", rel, err)
				return
			}
			perFile[i] = records
			processed[i] = len(records) > 0
		}(i, rel)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &LoadResult{}
	for i := range files {
		if processed[i] {
			result.FilesProcessed++
			result.Records = append(result.Records, perFile[i]...)
		}
		if errs[i] != "" {
			result.Errors = append(result.Errors, errs[i])
		}
	}
	return result, nil
}

// readSource returns nil content for files that are too large or binary.
func readSource(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > maxFileBytes {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(content) == 0 || enry.IsBinary(content) {
		return nil, nil
	}
	return content, nil
}

// LoadFile extracts snippets from one source file. path is used for language
// detection, ids and tags.
func (l *Loader) LoadFile(ctx context.Context, path string, content []byte) ([]models.SnippetRecord, error) {
	lang := treesitter.DetectLanguage(path, content)
	if lang == "" || proseLanguages[lang] {
		return nil, nil
	}

	if treesitter.Supported(lang) {
		parser := treesitter.NewParser()
		defer parser.Close()

		decls, err := parser.Declarations(ctx, content, lang)
		if err != nil {
			return nil, fmt.Errorf("extraction failed: %w", err)
		}
		if len(decls) > 0 {
			records := make([]models.SnippetRecord, 0, len(decls))
			for _, d := range decls {
				records = append(records, models.SnippetRecord{
					ID:       SnippetID(path, d.Kind+":"+d.Name),
					Content:  d.Content,
					Language: lang,
					Tags:     tagsFor(path, d.Kind, d.Name),
				})
			}
			return records, nil
		}
	}

	return []models.SnippetRecord{{
		ID:       SnippetID(path, wholeFileSuffix),
		Content:  string(content),
		Language: lang,
		Tags:     tagsFor(path, "file", strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))),
	}}, nil
}

// SnippetID derives a stable id from the source path and a per-file key, so
// re-indexing the same tree replaces rather than duplicates snippets.
func SnippetID(path, key string) string {
	return uuid.NewSHA1(snippetNamespace, []byte(filepath.ToSlash(path)+"#"+key)).String()
}

func tagsFor(path, kind, name string) []string {
	seen := map[string]bool{}
	var tags []string
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}
	add(kind)
	for _, term := range tokenize.Terms(name) {
		add(term)
	}
	if dir := filepath.Dir(filepath.ToSlash(path)); dir != "." {
		for _, term := range tokenize.Terms(dir) {
			add(term)
		}
	}
	return tags
}
