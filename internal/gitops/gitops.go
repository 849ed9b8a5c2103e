// Package gitops records ledger changes as commits when the ledger root is a
// git repository.
package gitops

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNothingToCommit is returned by CommitAll when the tree is clean.
var ErrNothingToCommit = errors.New("nothing to commit")

// Author identifies who the commit is recorded for.
type Author struct {
	Name  string
	Email string
}

func (a Author) String() string {
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// git runs a git command in dir with author as the configured identity, so
// commits work on machines without a global git user.
func git(dir string, author Author, args ...string) ([]byte, error) {
	full := append([]string{"-c", "user.name=" + author.Name, "-c", "user.email=" + author.Email}, args...)
	cmd := exec.Command("git", full...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Init initializes a new git repository at dir.
func Init(dir string) error {
	if out, err := git(dir, Author{}, "init", "--quiet"); err != nil {
		return fmt.Errorf("git init: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// CommitAll stages every change under dir and commits it. It returns the
// short hash of the new commit, or ErrNothingToCommit.
func CommitAll(dir, message string, author Author) (string, error) {
	if out, err := git(dir, author, "add", "-A"); err != nil {
		return "", fmt.Errorf("git add: %s: %w", strings.TrimSpace(string(out)), err)
	}
	if _, err := git(dir, author, "diff", "--cached", "--quiet"); err == nil {
		return "", ErrNothingToCommit
	}
	if out, err := git(dir, author, "commit", "--quiet", "-m", message, "--author", author.String()); err != nil {
		return "", fmt.Errorf("git commit: %s: %w", strings.TrimSpace(string(out)), err)
	}
	out, err := git(dir, author, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Message formats a commit subject like "expense: add Dinner".
func Message(kind, format string, args ...any) string {
	return kind + ": " + fmt.Sprintf(format, args...)
}
