// Package artifacts resolves a Qiita artifact into the inputs the
// submission builder needs: the single directory holding every sequence
// file, the preparation information file, and (for primary alignment)
// the artifact's HTML summary.
package artifacts

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/antgonza/qp-woltka/internal/qiita"
)

// Fetcher is the slice of the orchestrator client this package consumes.
type Fetcher interface {
	ArtifactFiles(ctx context.Context, artifactID string) (qiita.ArtifactFiles, error)
	ArtifactAndPreparationFiles(ctx context.Context, artifactID string) (qiita.ArtifactFiles, *qiita.PrepInfo, error)
	ArtifactHTMLSummary(ctx context.Context, artifactID string) (string, error)
}

// Resolved is a fully located artifact, ready for script generation.
type Resolved struct {
	// Directory is the one directory every artifact file lives in.
	Directory string
	Files     qiita.ArtifactFiles
	// PrepPath is empty when resolved through the legacy accessor.
	PrepPath string
	// SummaryPath is only populated when the summary was required.
	SummaryPath string
}

// Resolve fetches an artifact through the current accessor shape
// (files + preparation information). When requireSummary is set the
// artifact must carry a pre-computed HTML summary; its absence is fatal.
func Resolve(ctx context.Context, f Fetcher, artifactID string, requireSummary bool) (*Resolved, error) {
	files, prep, err := f.ArtifactAndPreparationFiles(ctx, artifactID)
	if err != nil {
		return nil, err
	}

	dir, err := singleDirectory(files)
	if err != nil {
		return nil, err
	}

	resolved := &Resolved{Directory: dir, Files: files, PrepPath: prep.Path}

	if requireSummary {
		summary, err := f.ArtifactHTMLSummary(ctx, artifactID)
		if err != nil {
			return nil, err
		}
		if summary == "" {
			return nil, ErrMissingSummary
		}
		resolved.SummaryPath = summary
	}

	return resolved, nil
}

// ResolveLegacy fetches an artifact through the earlier accessor shape:
// the raw per-type file mapping, no preparation reference, no summary.
func ResolveLegacy(ctx context.Context, f Fetcher, artifactID string) (*Resolved, error) {
	files, err := f.ArtifactFiles(ctx, artifactID)
	if err != nil {
		return nil, err
	}

	dir, err := singleDirectory(files)
	if err != nil {
		return nil, err
	}

	return &Resolved{Directory: dir, Files: files}, nil
}

// singleDirectory computes the distinct parent directories across every
// non-null file path in every type bucket. Exactly one is required.
func singleDirectory(files qiita.ArtifactFiles) (string, error) {
	seen := map[string]struct{}{}
	for _, records := range files {
		for _, rec := range records {
			if rec.Path == "" {
				continue
			}
			seen[filepath.Dir(rec.Path)] = struct{}{}
		}
	}

	switch len(seen) {
	case 0:
		return "", ErrNoFiles
	case 1:
		for dir := range seen {
			return dir, nil
		}
	}

	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return "", &DirectoryError{Dirs: dirs}
}
