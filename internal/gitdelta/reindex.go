// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package gitdelta

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsgraph/engine/internal/ingest"
	"github.com/tsgraph/engine/internal/watch"
)

// Summary reports what ReindexDelta did.
type Summary struct {
	BaseSHA, HeadSHA string
	Reindexed        []string
	Removed          []string
	Failed           map[string]error
	FileResults      []ingest.FileResult
}

// ReindexDelta scopes a reindex run to exactly the files that changed
// between baseSHA and headSHA, reusing the manifest (internal/watch,
// §6) for file-state bookkeeping instead of requiring a live watch
// process - the offline/CI-friendly path §4.8 leaves open.
//
// Deleted files and the old half of a rename are removed first;
// added, modified, and renamed-to paths are then cleared of any prior
// data and re-ingested through pipeline. The manifest is updated to
// match and saved once at the end, whether or not individual files
// failed.
func ReindexDelta(ctx context.Context, pipeline *ingest.Pipeline, repoPath, manifestPath, pkgName string, opts FilterOptions, baseSHA, headSHA string) (Summary, error) {
	detector := NewDetector(repoPath)
	delta, err := detector.Detect(baseSHA, headSHA)
	if err != nil {
		return Summary{}, err
	}
	delta = Filter(delta, opts, repoPath)

	manifest, err := watch.Load(manifestPath)
	if err != nil {
		return Summary{}, fmt.Errorf("load manifest: %w", err)
	}

	summary := Summary{BaseSHA: delta.BaseSHA, HeadSHA: delta.HeadSHA, Failed: make(map[string]error)}
	ingest.AppendIndexLog(pipeline.DotDir, fmt.Sprintf("reindex delta %s..%s starting: %+v", delta.BaseSHA, delta.HeadSHA, delta.Stats()))

	for oldPath := range delta.RenamedPaths {
		removeTracked(pipeline, manifest, oldPath, &summary)
	}
	for _, path := range delta.DeletedPaths {
		removeTracked(pipeline, manifest, path, &summary)
	}

	toReindex := make([]string, 0, len(delta.AddedPaths)+len(delta.ModifiedPaths)+len(delta.RenamedPaths))
	toReindex = append(toReindex, delta.AddedPaths...)
	toReindex = append(toReindex, delta.ModifiedPaths...)
	for _, newPath := range delta.RenamedPaths {
		toReindex = append(toReindex, newPath)
	}

	for _, path := range toReindex {
		if err := pipeline.RemoveFile(path); err != nil {
			summary.Failed[path] = fmt.Errorf("remove prior: %w", err)
		}
	}

	for _, fr := range pipeline.IngestFiles(ctx, pkgName, toReindex) {
		summary.FileResults = append(summary.FileResults, fr)
		if fr.Error != nil {
			summary.Failed[fr.FilePath] = fr.Error
			continue
		}
		summary.Reindexed = append(summary.Reindexed, fr.FilePath)
		if err := recordManifest(manifest, repoPath, fr.FilePath); err != nil {
			summary.Failed[fr.FilePath] = err
		}
	}

	if err := manifest.Save(manifestPath); err != nil {
		return summary, fmt.Errorf("save manifest: %w", err)
	}
	ingest.AppendIndexLog(pipeline.DotDir, fmt.Sprintf("reindex delta %s..%s complete: %d reindexed, %d removed, %d failed",
		delta.BaseSHA, delta.HeadSHA, len(summary.Reindexed), len(summary.Removed), len(summary.Failed)))
	return summary, nil
}

func removeTracked(pipeline *ingest.Pipeline, manifest *watch.Manifest, path string, summary *Summary) {
	if err := pipeline.RemoveFile(path); err != nil {
		summary.Failed[path] = fmt.Errorf("remove: %w", err)
		return
	}
	manifest.Remove(path)
	summary.Removed = append(summary.Removed, path)
}

func recordManifest(manifest *watch.Manifest, repoPath, relPath string) error {
	info, err := os.Stat(filepath.Join(repoPath, relPath))
	if err != nil {
		return fmt.Errorf("stat %s: %w", relPath, err)
	}
	manifest.Set(relPath, watch.FileRecord{MTimeNS: info.ModTime().UnixNano(), SizeBytes: info.Size()})
	return nil
}
