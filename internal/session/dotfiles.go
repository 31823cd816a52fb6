// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// dotfilesInstallCandidates are tried in order when no install command is
// configured. Paths are relative to the repository root.
var dotfilesInstallCandidates = []string{
	"install.sh",
	"setup.sh",
	"bootstrap.sh",
	"script/install.sh",
	"script/setup.sh",
	"script/bootstrap.sh",
}

type (
	// DotfilesSyncer makes a dotfiles repository available on the host.
	DotfilesSyncer interface {
		// Sync clones or updates repository and returns the checkout directory.
		Sync(ctx context.Context, repository string) (string, error)
	}

	// GitDotfiles keeps dotfiles checkouts under a cache directory.
	GitDotfiles struct {
		// CacheDir holds one checkout per repository URL.
		CacheDir string
	}
)

// NewGitDotfiles creates a syncer storing checkouts in cacheDir.
func NewGitDotfiles(cacheDir string) *GitDotfiles {
	return &GitDotfiles{CacheDir: cacheDir}
}

// DefaultDotfilesDir returns the default checkout cache directory.
func DefaultDotfilesDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "devcon", "dotfiles")
	}
	return filepath.Join(os.TempDir(), "devcon-dotfiles")
}

// Sync clones repository on first use and pulls it afterwards. A failed
// pull keeps the existing checkout.
func (g *GitDotfiles) Sync(ctx context.Context, repository string) (string, error) {
	dest := g.checkoutPath(repository)
	auth := authFor(repository)

	repo, err := git.PlainOpen(dest)
	if err != nil {
		if mkErr := os.MkdirAll(filepath.Dir(dest), 0o755); mkErr != nil {
			return "", fmt.Errorf("failed to create dotfiles cache: %w", mkErr)
		}
		_, err = git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
			URL:   repository,
			Auth:  auth,
			Depth: 1,
		})
		if err != nil {
			_ = os.RemoveAll(dest) // Partial clone; error non-critical
			return "", fmt.Errorf("failed to clone dotfiles repository: %w", err)
		}
		return dest, nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to open dotfiles worktree: %w", err)
	}
	err = worktree.PullContext(ctx, &git.PullOptions{Auth: auth, Force: true})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return dest, fmt.Errorf("failed to update dotfiles repository: %w", err)
	}
	return dest, nil
}

func (g *GitDotfiles) checkoutPath(repository string) string {
	sum := sha256.Sum256([]byte(repository))
	name := strings.TrimSuffix(filepath.Base(strings.TrimRight(repository, "/")), ".git")
	return filepath.Join(g.CacheDir, fmt.Sprintf("%s-%s", name, hex.EncodeToString(sum[:])[:12]))
}

// authFor picks credentials matching the URL's transport. Public HTTPS
// repositories need none.
func authFor(repository string) transport.AuthMethod {
	if strings.HasPrefix(repository, "git@") || strings.HasPrefix(repository, "ssh://") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		for _, key := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
			keyPath := filepath.Join(homeDir, ".ssh", key)
			if _, err := os.Stat(keyPath); err != nil {
				continue
			}
			if auth, err := ssh.NewPublicKeysFromFile("git", keyPath, ""); err == nil {
				return auth
			}
		}
		return nil
	}

	if !strings.HasPrefix(repository, "https://") && !strings.HasPrefix(repository, "http://") {
		return nil
	}
	for _, cred := range []struct{ env, user string }{
		{"GITHUB_TOKEN", "x-access-token"},
		{"GITLAB_TOKEN", "gitlab-ci-token"},
		{"GIT_TOKEN", "git"},
	} {
		if token := os.Getenv(cred.env); token != "" {
			return &http.BasicAuth{Username: cred.user, Password: token}
		}
	}
	return nil
}

// dotfilesInstallCommand returns the argv that installs the dotfiles mounted
// at containerDir, or nil when the checkout has no install script.
func dotfilesInstallCommand(hostDir, containerDir, configured string) []string {
	if configured != "" {
		return []string{"/bin/sh", "-c", "cd " + containerDir + " && " + configured}
	}
	for _, candidate := range dotfilesInstallCandidates {
		info, err := os.Stat(filepath.Join(hostDir, filepath.FromSlash(candidate)))
		if err == nil && info.Mode().IsRegular() {
			return []string{"/bin/sh", "-c", "cd " + containerDir + " && sh ./" + candidate}
		}
	}
	return nil
}
