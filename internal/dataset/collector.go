// Package dataset enumerates reference images on disk and groups them into
// identities.
package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/fairface-insight/fairaudit/internal/errors"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// IsImage reports whether name has a supported image extension.
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// Identity is one subject's image paths.
type Identity struct {
	Label string   `json:"label"`
	Paths []string `json:"paths"`
}

// Identities is ordered by label.
type Identities []Identity

// ImageCount returns the total number of images across identities.
func (ids Identities) ImageCount() int {
	n := 0
	for _, id := range ids {
		n += len(id.Paths)
	}
	return n
}

// Lister enumerates the identities of one group folder.
type Lister interface {
	ListIdentities(groupPath string) (Identities, error)
}

// DirLister reads identities from the filesystem. A folder with
// subdirectories holds one identity per subdirectory; in a flat folder the
// filename stem is the identity key, so a.jpg and a.png share an identity.
type DirLister struct{}

func (DirLister) ListIdentities(groupPath string) (Identities, error) {
	entries, err := os.ReadDir(groupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", apperrors.ErrEmptyGroup, groupPath)
		}
		return nil, apperrors.WrapStorageError(err, "dataset.ListIdentities", "failed to read group folder")
	}

	hasDirs := false
	for _, e := range entries {
		if e.IsDir() {
			hasDirs = true
			break
		}
	}

	var ids Identities
	if hasDirs {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			dir := filepath.Join(groupPath, e.Name())
			paths, err := listImages(dir)
			if err != nil {
				return nil, err
			}
			if len(paths) > 0 {
				ids = append(ids, Identity{Label: e.Name(), Paths: paths})
			}
		}
	} else {
		paths, err := listImages(groupPath)
		if err != nil {
			return nil, err
		}
		byStem := make(map[string][]string)
		for _, p := range paths {
			base := filepath.Base(p)
			stem := strings.TrimSuffix(base, filepath.Ext(base))
			byStem[stem] = append(byStem[stem], p)
		}
		for stem, ps := range byStem {
			ids = append(ids, Identity{Label: stem, Paths: ps})
		}
	}

	sortIdentities(ids)
	return ids, nil
}

// listImages returns the sorted image paths directly inside dir.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.WrapStorageError(err, "dataset.listImages", "failed to read folder")
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && IsImage(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Collect lists groupFolder with DirLister and samples it down to
// maxSamples images.
func Collect(groupFolder string, maxSamples int, rng *rand.Rand) (Identities, error) {
	return CollectFrom(DirLister{}, groupFolder, maxSamples, rng)
}

// CollectFrom lists groupFolder with l. When the flattened (identity, path)
// list exceeds maxSamples (> 0) it is shuffled with rng, truncated and
// regrouped, so the surviving subset depends only on the seed and the
// folder contents. A group with no images yields ErrEmptyGroup.
func CollectFrom(l Lister, groupFolder string, maxSamples int, rng *rand.Rand) (Identities, error) {
	ids, err := l.ListIdentities(groupFolder)
	if err != nil {
		return nil, err
	}
	if ids.ImageCount() == 0 {
		return nil, fmt.Errorf("%w: no images in %s", apperrors.ErrEmptyGroup, groupFolder)
	}
	if maxSamples <= 0 || ids.ImageCount() <= maxSamples {
		return ids, nil
	}

	type item struct{ label, path string }
	flat := make([]item, 0, ids.ImageCount())
	for _, id := range ids {
		for _, p := range id.Paths {
			flat = append(flat, item{id.Label, p})
		}
	}
	rng.Shuffle(len(flat), func(i, j int) { flat[i], flat[j] = flat[j], flat[i] })
	flat = flat[:maxSamples]

	byLabel := make(map[string][]string)
	for _, it := range flat {
		byLabel[it.label] = append(byLabel[it.label], it.path)
	}
	out := make(Identities, 0, len(byLabel))
	for label, paths := range byLabel {
		sort.Strings(paths)
		out = append(out, Identity{Label: label, Paths: paths})
	}
	sortIdentities(out)
	return out, nil
}

func sortIdentities(ids Identities) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Label < ids[j].Label })
}
