// Package state holds the session's mutable selection data and its disk
// persistence under the project's .summary_files directory.
package state

import "sort"

// SelectionState tracks which absolute file paths are selected for the
// bundle and which of those are marked for compressed (AI-summarized)
// inclusion. Compressed is always a subset of Selected.
type SelectionState struct {
	Selected   map[string]bool
	Compressed map[string]bool
}

// NewSelectionState returns an empty selection.
func NewSelectionState() *SelectionState {
	return &SelectionState{
		Selected:   make(map[string]bool),
		Compressed: make(map[string]bool),
	}
}

// Select adds path to the selected set.
func (s *SelectionState) Select(path string) {
	s.Selected[path] = true
}

// Deselect removes path from both sets.
func (s *SelectionState) Deselect(path string) {
	delete(s.Selected, path)
	delete(s.Compressed, path)
}

// Toggle flips path's selection and reports whether it is now selected.
// Deselecting also clears the compressed mark.
func (s *SelectionState) Toggle(path string) bool {
	if s.Selected[path] {
		s.Deselect(path)
		return false
	}
	s.Select(path)
	return true
}

// ToggleCompressed flips path's compressed mark. Marking a file compressed
// selects it as well, keeping the subset invariant.
func (s *SelectionState) ToggleCompressed(path string) bool {
	if s.Compressed[path] {
		delete(s.Compressed, path)
		return false
	}
	s.Compressed[path] = true
	s.Selected[path] = true
	return true
}

// SelectedPaths returns the selected paths, sorted.
func (s *SelectionState) SelectedPaths() []string {
	return sortedKeys(s.Selected)
}

// CompressedPaths returns the compressed paths, sorted.
func (s *SelectionState) CompressedPaths() []string {
	return sortedKeys(s.Compressed)
}

// Clone returns an independent copy of the state.
func (s *SelectionState) Clone() *SelectionState {
	c := NewSelectionState()
	for p := range s.Selected {
		c.Selected[p] = true
	}
	for p := range s.Compressed {
		c.Compressed[p] = true
	}
	return c
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
