package treesitter

import (
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

var languages = map[string]*sitter.Language{
	"go":         golang.GetLanguage(),
	"python":     python.GetLanguage(),
	"typescript": typescript.GetLanguage(),
	"tsx":        tsx.GetLanguage(),
	"javascript": javascript.GetLanguage(),
	"java":       java.GetLanguage(),
	"kotlin":     kotlin.GetLanguage(),
}

func GetLanguage(name string) *sitter.Language {
	return languages[name]
}

func SupportedLanguages() []string {
	keys := make([]string, 0, len(languages))
	for k := range languages {
		keys = append(keys, k)
	}
	return keys
}

// DetectLanguage returns the grammar name for a file, or the lowercased enry
// language name when no grammar is registered for it. Empty means unknown.
func DetectLanguage(path string, content []byte) string {
	lang := enry.GetLanguage(filepath.Base(path), content)
	if lang == "" {
		return ""
	}
	name := strings.ToLower(lang)
	if _, ok := languages[name]; ok {
		return name
	}
	return strings.ReplaceAll(name, " ", "-")
}

// Supported reports whether a grammar is registered for the language.
func Supported(language string) bool {
	_, ok := languages[language]
	return ok
}
