// Package source checks out remote repositories so their code can seed the
// snippet index.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var ErrInvalidURL = errors.New("invalid repository url")

// Checkout is a local working copy of a remote repository.
type Checkout struct {
	Name   string
	Dir    string
	Commit string
}

// GitFetcher keeps shallow clones under a cache directory and refreshes them
// on repeated fetches.
type GitFetcher struct {
	cacheDir string
	git      string
}

func NewGitFetcher(cacheDir string) *GitFetcher {
	return &GitFetcher{cacheDir: cacheDir, git: "git"}
}

// Fetch clones url at ref (default branch when empty) or, when a clone already
// exists, fast-forwards it.
func (f *GitFetcher) Fetch(ctx context.Context, url, ref string) (*Checkout, error) {
	name := RepoName(url)
	if name == "" || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, url)
	}
	dir := filepath.Join(f.cacheDir, name)

	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		if _, err := f.run(ctx, dir, "pull", "--ff-only"); err != nil {
			return nil, fmt.Errorf("git pull %s: %w", name, err)
		}
	} else {
		if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("create checkout dir: %w", err)
		}
		args := []string{"clone", "--depth", "1"}
		if ref != "" {
			args = append(args, "--branch", ref)
		}
		args = append(args, url, dir)
		if _, err := f.run(ctx, "", args...); err != nil {
			return nil, fmt.Errorf("git clone %s: %w", url, err)
		}
	}

	out, err := f.run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD of %s: %w", name, err)
	}
	return &Checkout{Name: name, Dir: dir, Commit: strings.TrimSpace(out)}, nil
}

func (f *GitFetcher) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, f.git, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}

// RepoName derives a directory name from an https or scp-style git url.
func RepoName(url string) string {
	url = strings.TrimSuffix(strings.TrimRight(strings.TrimSpace(url), "/"), ".git")
	if i := strings.Index(url, "://"); i >= 0 {
		url = url[i+3:]
	} else if i := strings.Index(url, ":"); i >= 0 {
		url = url[i+1:]
	}
	if i := strings.LastIndex(url, "/"); i >= 0 {
		url = url[i+1:]
	}
	return url
}
