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

// Package gitdelta implements C15: detecting the files that changed
// between two git revisions and scoping reindexing to just that set, an
// offline/CI-friendly alternative to the live watcher in §4.8.
package gitdelta

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// emptyTreeSHA is git's well-known hash of the empty tree, used as the
// base when a caller wants "everything in headSHA" treated as added.
const emptyTreeSHA = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// ChangeType classifies how a path changed in a Delta.
type ChangeType string

const (
	Added    ChangeType = "added"
	Modified ChangeType = "modified"
	Deleted  ChangeType = "deleted"
	Renamed  ChangeType = "renamed"
)

// Delta is the set of files that changed between BaseSHA and HeadSHA.
type Delta struct {
	BaseSHA string
	HeadSHA string

	AddedPaths    []string
	ModifiedPaths []string
	DeletedPaths  []string
	RenamedPaths  map[string]string // old path -> new path

	// All is the deduplicated, sorted union of every path touched by
	// the delta. For renames this includes both the old and new path.
	All []string
}

// ChangeType reports how path changed, or "" if path is not in the delta.
func (d *Delta) ChangeType(path string) ChangeType {
	for _, p := range d.AddedPaths {
		if p == path {
			return Added
		}
	}
	for _, p := range d.ModifiedPaths {
		if p == path {
			return Modified
		}
	}
	for _, p := range d.DeletedPaths {
		if p == path {
			return Deleted
		}
	}
	for oldPath, newPath := range d.RenamedPaths {
		if newPath == path {
			return Renamed
		}
		if oldPath == path {
			return Deleted
		}
	}
	return ""
}

// HasChanges reports whether the delta touched any file.
func (d *Delta) HasChanges() bool { return len(d.All) > 0 }

// Stats summarizes a Delta's counts.
type Stats struct {
	Added, Modified, Deleted, Renamed, Total int
}

// Stats computes summary counts for the delta.
func (d *Delta) Stats() Stats {
	return Stats{
		Added:    len(d.AddedPaths),
		Modified: len(d.ModifiedPaths),
		Deleted:  len(d.DeletedPaths),
		Renamed:  len(d.RenamedPaths),
		Total:    len(d.All),
	}
}

// Detector runs `git diff` against a repository checkout to find changed
// files.
type Detector struct {
	RepoPath string
}

// NewDetector returns a Detector rooted at repoPath.
func NewDetector(repoPath string) *Detector {
	return &Detector{RepoPath: repoPath}
}

// IsGitRepository reports whether RepoPath is inside a git working tree.
func (d *Detector) IsGitRepository() bool {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = d.RepoPath
	return cmd.Run() == nil
}

// HeadSHA resolves the repository's current HEAD commit.
func (d *Detector) HeadSHA() (string, error) {
	return d.resolveRef("HEAD")
}

// Detect finds the files changed between baseSHA and headSHA. An empty
// headSHA resolves to HEAD; an empty baseSHA compares against the empty
// tree, so every file in headSHA is reported as added - the "initial
// ingestion" case.
func (d *Detector) Detect(baseSHA, headSHA string) (*Delta, error) {
	resolvedHead, err := d.resolveRefOrHead(headSHA)
	if err != nil {
		return nil, fmt.Errorf("resolve head sha: %w", err)
	}
	resolvedBase, err := d.resolveBase(baseSHA)
	if err != nil {
		return nil, fmt.Errorf("resolve base sha: %w", err)
	}

	delta := &Delta{BaseSHA: resolvedBase, HeadSHA: resolvedHead, RenamedPaths: make(map[string]string)}

	out, err := d.runDiff(resolvedBase, resolvedHead)
	if err != nil {
		return nil, fmt.Errorf("git diff: %w", err)
	}
	if err := parseNameStatus(out, delta); err != nil {
		return nil, fmt.Errorf("parse git diff output: %w", err)
	}

	sortDelta(delta)
	rebuildAll(delta)
	return delta, nil
}

func (d *Detector) resolveRefOrHead(ref string) (string, error) {
	if ref == "" {
		ref = "HEAD"
	}
	return d.resolveRef(ref)
}

func (d *Detector) resolveBase(baseSHA string) (string, error) {
	if baseSHA == "" {
		return emptyTreeSHA, nil
	}
	return d.resolveRef(baseSHA)
}

func (d *Detector) resolveRef(ref string) (string, error) {
	cmd := exec.Command("git", "rev-parse", ref) //nolint:gosec // ref is caller-supplied but passed as an argv element, never a shell string
	cmd.Dir = d.RepoPath
	out, err := cmd.Output()
	if err != nil {
		return "", gitError("git rev-parse "+ref, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (d *Detector) runDiff(baseSHA, headSHA string) ([]byte, error) {
	cmd := exec.Command("git", "diff", "--name-status", "-M", baseSHA, headSHA) //nolint:gosec // args are resolved SHAs, not shell input
	cmd.Dir = d.RepoPath
	out, err := cmd.Output()
	if err != nil {
		return nil, gitError("git diff", err)
	}
	return out, nil
}

func gitError(what string, err error) error {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return fmt.Errorf("%s failed: %s", what, string(exitErr.Stderr))
	}
	return fmt.Errorf("%s: %w", what, err)
}

// parseNameStatus parses `git diff --name-status -M` output into delta.
func parseNameStatus(output []byte, delta *Delta) error {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		status, paths := splitNameStatusLine(line)
		if status == "" || len(paths) == 0 {
			continue
		}
		switch status[0] {
		case 'A':
			delta.AddedPaths = append(delta.AddedPaths, paths[0])
		case 'M':
			delta.ModifiedPaths = append(delta.ModifiedPaths, paths[0])
		case 'D':
			delta.DeletedPaths = append(delta.DeletedPaths, paths[0])
		case 'R':
			if len(paths) >= 2 {
				delta.RenamedPaths[paths[0]] = paths[1]
			}
		case 'C':
			if len(paths) >= 2 {
				delta.AddedPaths = append(delta.AddedPaths, paths[1])
			}
		}
	}
	return scanner.Err()
}

func splitNameStatusLine(line string) (status string, paths []string) {
	parts := strings.Split(line, "\t")
	if len(parts) < 2 {
		return "", nil
	}
	status = parts[0]
	paths = parts[1:]
	for i, p := range paths {
		paths[i] = unquoteGitPath(p)
	}
	return status, paths
}

func unquoteGitPath(path string) string {
	if len(path) < 2 || path[0] != '"' || path[len(path)-1] != '"' {
		return path
	}
	unquoted := path[1 : len(path)-1]
	unquoted = strings.ReplaceAll(unquoted, "\\n", "\n")
	unquoted = strings.ReplaceAll(unquoted, "\\t", "\t")
	unquoted = strings.ReplaceAll(unquoted, "\\\\", "\\")
	unquoted = strings.ReplaceAll(unquoted, "\\\"", "\"")
	return unquoted
}

func sortDelta(d *Delta) {
	sort.Strings(d.AddedPaths)
	sort.Strings(d.ModifiedPaths)
	sort.Strings(d.DeletedPaths)
}

func rebuildAll(d *Delta) {
	set := make(map[string]bool)
	for _, p := range d.AddedPaths {
		set[p] = true
	}
	for _, p := range d.ModifiedPaths {
		set[p] = true
	}
	for _, p := range d.DeletedPaths {
		set[p] = true
	}
	for oldPath, newPath := range d.RenamedPaths {
		set[oldPath] = true
		set[newPath] = true
	}
	d.All = make([]string, 0, len(set))
	for p := range set {
		d.All = append(d.All, p)
	}
	sort.Strings(d.All)
}

// FilterOptions bounds which delta paths are eligible for reindexing,
// mirroring the exclude-glob and max-size checks the live watcher's
// matches/walk already apply to filesystem events.
type FilterOptions struct {
	ExcludeGlobs []string
	MaxFileSize  int64 // 0 = no limit
}

// Filter narrows delta to the paths that pass opts, converting an
// ineligible rename's new path into a plain deletion of its old path so
// the file's prior graph data still gets cleaned up.
func Filter(delta *Delta, opts FilterOptions, repoPath string) *Delta {
	out := &Delta{BaseSHA: delta.BaseSHA, HeadSHA: delta.HeadSHA, RenamedPaths: make(map[string]string)}

	out.AddedPaths = filterPaths(delta.AddedPaths, opts, repoPath, true)
	out.ModifiedPaths = filterPaths(delta.ModifiedPaths, opts, repoPath, true)
	out.DeletedPaths = filterPaths(delta.DeletedPaths, opts, repoPath, false)

	for oldPath, newPath := range delta.RenamedPaths {
		if eligible(newPath, opts, repoPath, true) {
			out.RenamedPaths[oldPath] = newPath
			continue
		}
		if eligible(oldPath, opts, repoPath, false) {
			out.DeletedPaths = append(out.DeletedPaths, oldPath)
		}
	}

	sortDelta(out)
	rebuildAll(out)
	return out
}

func filterPaths(paths []string, opts FilterOptions, repoPath string, checkDisk bool) []string {
	var result []string
	for _, p := range paths {
		if eligible(p, opts, repoPath, checkDisk) {
			result = append(result, p)
		}
	}
	return result
}

func eligible(path string, opts FilterOptions, repoPath string, checkDisk bool) bool {
	normalized := filepath.ToSlash(path)
	for _, pattern := range opts.ExcludeGlobs {
		if ok, _ := doublestar.Match(pattern, normalized); ok {
			return false
		}
	}
	if !checkDisk {
		return true
	}
	return fileEligibleOnDisk(filepath.Join(repoPath, path), opts.MaxFileSize)
}

func fileEligibleOnDisk(fullPath string, maxFileSize int64) bool {
	info, err := os.Lstat(fullPath)
	if err != nil {
		return true // a later stage reports the real error if it's missing
	}
	if info.Mode()&os.ModeSymlink != 0 || info.IsDir() {
		return false
	}
	if maxFileSize > 0 && info.Size() > maxFileSize {
		return false
	}
	return !looksBinary(fullPath)
}

func looksBinary(fullPath string) bool {
	f, err := os.Open(fullPath) //nolint:gosec // path is derived from a filtered git diff path under repoPath
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	const sniff = 8192
	buf := make([]byte, sniff)
	n, _ := io.ReadFull(f, buf)
	if n <= 0 {
		return false
	}
	return bytes.IndexByte(buf[:n], 0x00) >= 0
}
