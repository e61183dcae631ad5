// Package gitrev resolves a branch to an exact commit, so the composed
// manifest always pins a revision even when invoked with a moving branch.
package gitrev

import (
	"github.com/pkg/errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Resolve returns the commit the branch currently points at on the remote.
func Resolve(url, branch string) (string, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})

	refs, err := remote.List(&git.ListOptions{})
	if err != nil {
		return "", errors.Wrapf(err, "failed to list refs of %s", url)
	}

	want := plumbing.NewBranchReferenceName(branch)
	for _, ref := range refs {
		if ref.Name() == want {
			return ref.Hash().String(), nil
		}
	}

	return "", errors.Errorf("branch %s not found on %s", branch, url)
}
