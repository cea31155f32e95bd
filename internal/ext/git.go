package ext

import (
	"context"
	"fmt"
	"os"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/ballast-sh/ballast/internal/confmap"
	"github.com/ballast-sh/ballast/internal/ui"
)

func init() {
	Register("git", gitExtension{})
}

// gitExtension fetches the kard's sources from a git repository
// during setup. The repository URL comes from the git_repo meta (or
// the supplied extras), the branch from git_branch, defaulting to
// main. An existing source directory is left alone.
type gitExtension struct{}

func (gitExtension) Setup(ctx context.Context, extra confmap.Tree, target Target) error {
	repoURL := stringFrom(extra, target.Meta(), "git_repo")
	if repoURL == "" {
		return nil
	}

	srcPath := target.SrcPath()
	if _, err := os.Stat(srcPath); err == nil {
		ui.Info("Using sources from %s", srcPath)
		return nil
	}

	branch := stringFrom(extra, target.Meta(), "git_branch")
	if branch == "" {
		branch = "main"
	}

	ui.Info("Fetching sources from %s:%s to %s", repoURL, branch, srcPath)
	_, err := git.PlainCloneContext(ctx, srcPath, false, &git.CloneOptions{
		URL:               repoURL,
		ReferenceName:     plumbing.NewBranchReferenceName(branch),
		SingleBranch:      true,
		Depth:             1,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	})
	if err != nil {
		return fmt.Errorf("clone %s: %w", repoURL, err)
	}
	return nil
}

// stringFrom reads a string key from extra first, then meta.
func stringFrom(extra, meta confmap.Tree, key string) string {
	if s, ok := extra[key].(string); ok {
		return s
	}
	s, _ := meta[key].(string)
	return s
}
