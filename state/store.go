package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	// SummaryDirName is the hidden per-project directory holding all
	// persisted state and generated bundles.
	SummaryDirName = ".summary_files"

	selectionFilename = "previous_selection.json"
	collapsedFilename = "collapsed_folders.json"
	configsFilename   = "selection_configs.json"
)

// selectionJSON is the on-disk shape of a selection snapshot.
type selectionJSON struct {
	SelectedFiles   []string `json:"selected_files"`
	CompressedFiles []string `json:"compressed_files"`
}

// Store persists selection state, collapsed-folder state, and named
// selection configurations as JSON files under baseDir/.summary_files.
type Store struct {
	dir string
	log *zap.SugaredLogger
}

// NewStore creates a Store rooted at baseDir. logger may be nil.
func NewStore(baseDir string, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{
		dir: filepath.Join(baseDir, SummaryDirName),
		log: logger,
	}
}

// Dir returns the summary directory path.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir creates the summary directory if missing.
func (s *Store) EnsureDir() error {
	return os.MkdirAll(s.dir, 0o755)
}

// Load reads the persisted selection, pruning paths that no longer exist
// on disk. When anything was pruned the file is rewritten immediately, so
// a second Load is a no-op. A missing or corrupt file yields an empty
// selection.
func (s *Store) Load() (*SelectionState, error) {
	st := NewSelectionState()

	raw, err := os.ReadFile(filepath.Join(s.dir, selectionFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		s.log.Warnw("could not read selection file", "error", err)
		return st, nil
	}

	snap, ok := decodeSelection(raw)
	if !ok {
		s.log.Warnw("corrupt selection file, starting with empty selection")
		return st, nil
	}

	pruned := false
	for _, p := range snap.SelectedFiles {
		if fileExists(p) {
			st.Selected[p] = true
		} else {
			pruned = true
		}
	}
	for _, p := range snap.CompressedFiles {
		if !st.Selected[p] {
			pruned = pruned || !fileExists(p)
			continue
		}
		st.Compressed[p] = true
	}

	if pruned {
		if err := s.Save(st); err != nil {
			return st, fmt.Errorf("failed to rewrite pruned selection: %w", err)
		}
	}
	return st, nil
}

// decodeSelection accepts both the object form and the legacy bare array
// form (selected files only).
func decodeSelection(raw []byte) (selectionJSON, bool) {
	var snap selectionJSON
	if err := json.Unmarshal(raw, &snap); err == nil {
		return snap, true
	}
	var legacy []string
	if err := json.Unmarshal(raw, &legacy); err == nil {
		return selectionJSON{SelectedFiles: legacy}, true
	}
	return selectionJSON{}, false
}

// Save writes the selection snapshot.
func (s *Store) Save(st *SelectionState) error {
	snap := selectionJSON{
		SelectedFiles:   st.SelectedPaths(),
		CompressedFiles: st.CompressedPaths(),
	}
	return s.writeJSON(selectionFilename, snap)
}

// LoadCollapsed reads the persisted collapsed-folder set. Missing or
// corrupt state yields the empty set (everything expanded).
func (s *Store) LoadCollapsed() (map[string]bool, error) {
	collapsed := make(map[string]bool)

	raw, err := os.ReadFile(filepath.Join(s.dir, collapsedFilename))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warnw("could not read collapsed folders file", "error", err)
		}
		return collapsed, nil
	}

	var paths []string
	if err := json.Unmarshal(raw, &paths); err != nil {
		s.log.Warnw("corrupt collapsed folders file, expanding all")
		return collapsed, nil
	}
	for _, p := range paths {
		collapsed[p] = true
	}
	return collapsed, nil
}

// SaveCollapsed writes the collapsed-folder set.
func (s *Store) SaveCollapsed(collapsed map[string]bool) error {
	return s.writeJSON(collapsedFilename, sortedKeys(collapsed))
}

// loadConfigs reads the named-config mapping. Missing or corrupt state
// yields an empty mapping.
func (s *Store) loadConfigs() map[string]selectionJSON {
	configs := make(map[string]selectionJSON)
	raw, err := os.ReadFile(filepath.Join(s.dir, configsFilename))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warnw("could not read configs file", "error", err)
		}
		return configs
	}
	if err := json.Unmarshal(raw, &configs); err != nil {
		s.log.Warnw("corrupt configs file, starting empty")
		return make(map[string]selectionJSON)
	}
	return configs
}

// ConfigNames lists saved configuration names, sorted.
func (s *Store) ConfigNames() []string {
	configs := s.loadConfigs()
	names := make(map[string]bool, len(configs))
	for name := range configs {
		names[name] = true
	}
	return sortedKeys(names)
}

// SaveConfig stores st under name, overwriting any existing snapshot.
func (s *Store) SaveConfig(name string, st *SelectionState) error {
	configs := s.loadConfigs()
	configs[name] = selectionJSON{
		SelectedFiles:   st.SelectedPaths(),
		CompressedFiles: st.CompressedPaths(),
	}
	return s.writeJSON(configsFilename, configs)
}

// LoadConfig returns the snapshot stored under name, or nil when absent.
func (s *Store) LoadConfig(name string) *SelectionState {
	snap, ok := s.loadConfigs()[name]
	if !ok {
		return nil
	}
	st := NewSelectionState()
	for _, p := range snap.SelectedFiles {
		st.Selected[p] = true
	}
	for _, p := range snap.CompressedFiles {
		if st.Selected[p] {
			st.Compressed[p] = true
		}
	}
	return st
}

// DeleteConfig removes name, reporting whether it existed.
func (s *Store) DeleteConfig(name string) bool {
	configs := s.loadConfigs()
	if _, ok := configs[name]; !ok {
		return false
	}
	delete(configs, name)
	if err := s.writeJSON(configsFilename, configs); err != nil {
		s.log.Warnw("could not write configs file", "error", err)
		return false
	}
	return true
}

// RenameConfig renames oldName to newName. It fails when oldName does not
// exist or newName is already taken, leaving the store untouched.
func (s *Store) RenameConfig(oldName, newName string) bool {
	configs := s.loadConfigs()
	snap, ok := configs[oldName]
	if !ok {
		return false
	}
	if _, taken := configs[newName]; taken {
		return false
	}
	delete(configs, oldName)
	configs[newName] = snap
	if err := s.writeJSON(configsFilename, configs); err != nil {
		s.log.Warnw("could not write configs file", "error", err)
		return false
	}
	return true
}

// writeJSON writes v atomically: temp file in the same directory, then
// rename over the target.
func (s *Store) writeJSON(filename string, v any) error {
	if err := s.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filename, err)
	}

	tmp, err := os.CreateTemp(s.dir, filename+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", filename, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, filename)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", filename, err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
