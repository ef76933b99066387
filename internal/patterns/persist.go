package patterns

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// FileSuffix is appended to the framework to form a pattern file name.
const FileSuffix = "-patterns.json"

// FileName returns the file name a framework's patterns are saved to.
func FileName(framework string) string {
	return framework + FileSuffix
}

// Save writes every pattern to disk, one file per framework.
//
// All frameworks and ids are validated before anything is written. Each file
// is written to a temp file in the storage directory, synced and renamed over
// the target, so a crash never leaves a truncated pattern file behind. Files a
// loaded pattern came from that are not its framework file are rewritten
// without it, or removed once empty, after the framework files are in place.
func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	groups, stale, saved, err := s.snapshot()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create pattern directory: %w", err)
	}
	root, err := canonicalDir(s.dir)
	if err != nil {
		return err
	}

	frameworks := make([]string, 0, len(groups))
	for fw := range groups {
		frameworks = append(frameworks, fw)
	}
	sort.Strings(frameworks)

	written := make(map[string]bool, len(frameworks))
	for _, fw := range frameworks {
		target := filepath.Join(root, FileName(fw))
		if err := ensureWithin(root, target); err != nil {
			return err
		}

		list := groups[fw]
		data, err := json.MarshalIndent(patternFile{Patterns: &list}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode patterns for %s: %w", fw, err)
		}
		if err := writeFileAtomic(root, target, data); err != nil {
			return err
		}
		written[FileName(fw)] = true
		s.logger.Debug("saved pattern file", zap.String("path", target), zap.Int("patterns", len(list)))
	}

	for _, name := range stale {
		if written[name] {
			continue
		}
		if err := s.prune(root, name, saved); err != nil {
			return err
		}
	}

	s.mu.Lock()
	for id := range saved {
		if p, ok := s.byID[id]; ok && s.origins != nil {
			s.origins[id] = FileName(s.patterns[p].Framework)
		}
	}
	s.mu.Unlock()

	s.logger.Info("saved patterns",
		zap.String("dir", root),
		zap.Int("patterns", len(saved)),
		zap.Int("files", len(frameworks)),
	)
	return nil
}

// snapshot validates and groups the collection by framework. It also returns
// the sorted names of files holding a loaded pattern outside its framework
// file, and the set of saved ids.
func (s *Store) snapshot() (map[string][]Pattern, []string, map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make(map[string][]Pattern)
	saved := make(map[string]bool, len(s.patterns))
	staleSet := make(map[string]bool)
	for _, p := range s.patterns {
		if err := ValidateID(p.ID); err != nil {
			return nil, nil, nil, fmt.Errorf("refusing to save pattern: %w", err)
		}
		if err := ValidateFramework(p.Framework); err != nil {
			return nil, nil, nil, fmt.Errorf("refusing to save pattern %s: %w", p.ID, err)
		}
		groups[p.Framework] = append(groups[p.Framework], p.clone())
		saved[p.ID] = true
		if origin, ok := s.origins[p.ID]; ok && origin != FileName(p.Framework) {
			staleSet[origin] = true
		}
	}

	stale := make([]string, 0, len(staleSet))
	for name := range staleSet {
		stale = append(stale, name)
	}
	sort.Strings(stale)
	return groups, stale, saved, nil
}

// prune rewrites the file name in root without the records whose ids were
// saved elsewhere, removing it when nothing else is left.
func (s *Store) prune(root, name string, saved map[string]bool) error {
	path := filepath.Join(root, name)
	if err := ensureWithin(root, path); err != nil {
		return err
	}

	records, err := readPatternFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to prune %s: %w", name, err)
	}

	keep := make([]Pattern, 0, len(records))
	for _, p := range records {
		if !saved[p.ID] {
			keep = append(keep, p)
		}
	}
	if len(keep) == len(records) {
		return nil
	}

	if len(keep) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
		s.logger.Debug("removed stale pattern file", zap.String("path", path))
		return nil
	}

	data, err := json.MarshalIndent(patternFile{Patterns: &keep}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode patterns for %s: %w", name, err)
	}
	if err := writeFileAtomic(root, path, data); err != nil {
		return err
	}
	s.logger.Debug("pruned stale pattern file", zap.String("path", path), zap.Int("kept", len(keep)))
	return nil
}

// canonicalDir returns the absolute, symlink-free form of dir.
func canonicalDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve pattern directory: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve pattern directory: %w", err)
	}
	return resolved, nil
}

// ensureWithin rejects targets that are not direct children of root.
func ensureWithin(root, target string) error {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPathEscape, target)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) ||
		filepath.Dir(target) != root {
		return fmt.Errorf("%w: %s", ErrPathEscape, target)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in dir and renames it to target.
func writeFileAtomic(dir, target string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".patterns-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
