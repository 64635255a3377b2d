// Package picker is the interactive file-selection engine: a
// single-threaded bubbletea event loop over the flattened tree rows,
// mutating selection and collapse state in response to keyboard, mouse,
// and resize events.
package picker

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hayeah/codesum/state"
	"github.com/hayeah/codesum/tokens"
	"github.com/hayeah/codesum/tree"
)

// ExitState indicates how the selection session ended.
type ExitState int

const (
	ExitNone      ExitState = iota // Still running
	ExitCancelled                  // Quit, interrupt, or fatal error
	ExitConfirmed                  // Selection confirmed
)

type overlayMode int

const (
	overlayNone overlayMode = iota
	overlayHelp
	overlayConfigs
)

type inputAction int

const (
	inputNone inputAction = iota
	inputSaveConfig
	inputRenameConfig
)

const (
	headerHeight = 3 // title, hint, separator
	footerHeight = 2 // separator, status
)

var (
	cursorStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	folderStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	compressedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	statusStyle     = lipgloss.NewStyle().Reverse(true)
)

// Model is the bubbletea model for the selection session. It owns the
// display rows (rebuilt whenever the collapse set changes), the cursor,
// the selection state, and the collapsed-folder set.
type Model struct {
	fileTree  *tree.Dir
	rows      []tree.Row
	collapsed map[string]bool
	sel       *state.SelectionState
	store     *state.Store
	counter   *tokens.Counter

	cursor   int
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	overlay      overlayMode
	input        textinput.Model
	inputAction  inputAction
	renameFrom   string
	configNames  []string
	configCursor int
	status       string

	exit ExitState
}

// New builds a Model, loading persisted selection (with stale paths
// pruned) and collapsed-folder state from the store.
func New(fileTree *tree.Dir, store *state.Store, counter *tokens.Counter) (*Model, error) {
	sel, err := store.Load()
	if err != nil {
		return nil, err
	}
	collapsed, err := store.LoadCollapsed()
	if err != nil {
		return nil, err
	}

	ti := textinput.New()
	ti.Prompt = "name> "
	ti.CharLimit = 64

	return &Model{
		fileTree:  fileTree,
		rows:      tree.Flatten(fileTree, collapsed),
		collapsed: collapsed,
		sel:       sel,
		store:     store,
		counter:   counter,
		viewport:  viewport.New(0, 0),
		input:     ti,
	}, nil
}

// Select runs the interactive session. It returns the final selection and
// exit state. A fatal terminal error surfaces as a cancelled selection
// along with the error for the caller to report.
func Select(fileTree *tree.Dir, store *state.Store, counter *tokens.Counter) (*state.SelectionState, ExitState, error) {
	m, err := New(fileTree, store, counter)
	if err != nil {
		return nil, ExitCancelled, err
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return nil, ExitCancelled, err
	}

	fm, ok := final.(*Model)
	if !ok {
		return nil, ExitCancelled, fmt.Errorf("could not get final model state")
	}
	if fm.exit != ExitConfirmed {
		return nil, ExitCancelled, nil
	}
	return fm.sel, ExitConfirmed, nil
}

// Selection exposes the model's selection state (used by tests).
func (m *Model) Selection() *state.SelectionState { return m.sel }

// Rows exposes the current display rows (used by tests).
func (m *Model) Rows() []tree.Row { return m.rows }

// Cursor exposes the current cursor index (used by tests).
func (m *Model) Cursor() int { return m.cursor }

// Exit exposes the exit state (used by tests).
func (m *Model) Exit() ExitState { return m.exit }

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.exit != ExitNone {
		return m, tea.Quit
	}

	// The interrupt is delivered as an input event and checked before
	// any other handling, including while an overlay is open.
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "ctrl+c" {
		return m.cancel()
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg)
	case tea.KeyMsg:
		switch {
		case m.inputAction != inputNone:
			return m.updateTextInput(msg)
		case m.overlay == overlayHelp:
			m.overlay = overlayNone
			return m, nil
		case m.overlay == overlayConfigs:
			return m.updateConfigOverlay(msg)
		default:
			return m.updateBrowsing(msg)
		}
	case tea.MouseMsg:
		if m.overlay == overlayNone {
			return m.updateMouse(msg)
		}
	}
	return m, nil
}

func (m *Model) resize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.viewport.Width = msg.Width
	m.viewport.Height = max(1, msg.Height-headerHeight-footerHeight)
	m.clampCursor()
	m.updateViewportContent()
	m.ensureCursorVisible()
	m.ready = true
	return m, nil
}

func (m *Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m.cancel()
	case "enter":
		return m.confirm()
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "pgup", "left":
		m.moveCursor(-m.viewport.Height)
	case "pgdown", "right":
		m.moveCursor(m.viewport.Height)
	case "home":
		m.setCursor(0)
	case "end":
		m.setCursor(len(m.rows) - 1)
	case "n":
		m.jumpFolder(1)
	case "p":
		m.jumpFolder(-1)
	case " ":
		m.toggleCurrent()
	case "c":
		m.compressCurrent()
	case "d":
		m.toggleSubtreeSelection()
	case "+", "=":
		m.expandSubtree()
	case "-", "_":
		m.collapseSubtree()
	case "a":
		m.toggleAllVisible()
	case "s":
		m.openConfigOverlay()
	case "?":
		m.overlay = overlayHelp
	}
	return m, nil
}

func (m *Model) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.moveCursor(-1)
	case tea.MouseButtonWheelDown:
		m.moveCursor(1)
	case tea.MouseButtonLeft:
		if msg.Action != tea.MouseActionPress {
			break
		}
		idx := m.viewport.YOffset + msg.Y - headerHeight
		if idx < 0 || idx >= len(m.rows) {
			break
		}
		m.cursor = idx
		row := m.rows[idx]
		if row.IsFolder {
			m.toggleCollapse(row.RowPath)
		} else {
			m.sel.Toggle(row.AbsPath)
			m.updateViewportContent()
		}
	}
	return m, nil
}

func (m *Model) updateConfigOverlay(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "s":
		m.overlay = overlayNone
	case "up", "k":
		if m.configCursor > 0 {
			m.configCursor--
		}
	case "down", "j":
		if m.configCursor < len(m.configNames)-1 {
			m.configCursor++
		}
	case "enter":
		if name, ok := m.selectedConfigName(); ok {
			if loaded := m.store.LoadConfig(name); loaded != nil {
				m.sel = loaded
				m.status = fmt.Sprintf("loaded %q", name)
				m.overlay = overlayNone
				m.updateViewportContent()
			}
		}
	case "n":
		m.inputAction = inputSaveConfig
		m.input.SetValue("")
		m.input.Focus()
	case "r":
		if name, ok := m.selectedConfigName(); ok {
			m.inputAction = inputRenameConfig
			m.renameFrom = name
			m.input.SetValue(name)
			m.input.Focus()
		}
	case "d":
		if name, ok := m.selectedConfigName(); ok {
			if m.store.DeleteConfig(name) {
				m.status = fmt.Sprintf("deleted %q", name)
			}
			m.refreshConfigNames()
		}
	}
	return m, nil
}

// updateTextInput handles the blocking line-edit sub-state used for
// naming and renaming configurations.
func (m *Model) updateTextInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeTextInput()
		return m, nil
	case "enter":
		name := strings.TrimSpace(m.input.Value())
		if name == "" {
			m.closeTextInput()
			return m, nil
		}
		switch m.inputAction {
		case inputSaveConfig:
			if err := m.store.SaveConfig(name, m.sel); err != nil {
				m.status = "could not save configuration"
			} else {
				m.status = fmt.Sprintf("saved %q", name)
			}
		case inputRenameConfig:
			if m.store.RenameConfig(m.renameFrom, name) {
				m.status = fmt.Sprintf("renamed %q to %q", m.renameFrom, name)
			} else {
				m.status = fmt.Sprintf("cannot rename to %q", name)
			}
		}
		m.closeTextInput()
		m.refreshConfigNames()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) closeTextInput() {
	m.inputAction = inputNone
	m.renameFrom = ""
	m.input.Blur()
}

func (m *Model) openConfigOverlay() {
	m.refreshConfigNames()
	m.configCursor = 0
	m.overlay = overlayConfigs
}

func (m *Model) refreshConfigNames() {
	m.configNames = m.store.ConfigNames()
	if m.configCursor >= len(m.configNames) {
		m.configCursor = max(0, len(m.configNames)-1)
	}
}

func (m *Model) selectedConfigName() (string, bool) {
	if m.configCursor < 0 || m.configCursor >= len(m.configNames) {
		return "", false
	}
	return m.configNames[m.configCursor], true
}

func (m *Model) cancel() (tea.Model, tea.Cmd) {
	_ = m.store.SaveCollapsed(m.collapsed)
	m.exit = ExitCancelled
	return m, tea.Quit
}

func (m *Model) confirm() (tea.Model, tea.Cmd) {
	_ = m.store.SaveCollapsed(m.collapsed)
	m.exit = ExitConfirmed
	return m, tea.Quit
}

func (m *Model) moveCursor(delta int) {
	m.setCursor(m.cursor + delta)
}

func (m *Model) setCursor(pos int) {
	m.cursor = pos
	m.clampCursor()
	m.updateViewportContent()
	m.ensureCursorVisible()
}

func (m *Model) clampCursor() {
	if m.cursor > len(m.rows)-1 {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// jumpFolder moves the cursor to the nearest folder row in the given
// direction, scanning the full row list.
func (m *Model) jumpFolder(dir int) {
	for i := m.cursor + dir; i >= 0 && i < len(m.rows); i += dir {
		if m.rows[i].IsFolder {
			m.setCursor(i)
			return
		}
	}
}

func (m *Model) currentRow() (tree.Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return tree.Row{}, false
	}
	return m.rows[m.cursor], true
}

// toggleCurrent toggles collapse on a folder row or selection on a file
// row, auto-advancing the cursor after a file toggle.
func (m *Model) toggleCurrent() {
	row, ok := m.currentRow()
	if !ok {
		return
	}
	if row.IsFolder {
		m.toggleCollapse(row.RowPath)
		return
	}
	m.sel.Toggle(row.AbsPath)
	m.moveCursor(1)
}

func (m *Model) toggleCollapse(rowPath string) {
	if m.collapsed[rowPath] {
		delete(m.collapsed, rowPath)
	} else {
		m.collapsed[rowPath] = true
	}
	m.rebuildRows()
}

func (m *Model) compressCurrent() {
	row, ok := m.currentRow()
	if !ok || row.IsFolder {
		return
	}
	m.sel.ToggleCompressed(row.AbsPath)
	m.updateViewportContent()
}

// targetFolder resolves the current row to a folder: the row itself if it
// is a folder, else the nearest ancestor folder (the root for top-level
// files).
func (m *Model) targetFolder() (string, bool) {
	row, ok := m.currentRow()
	if !ok {
		return "", false
	}
	if row.IsFolder {
		return row.RowPath, true
	}
	if idx := strings.LastIndexByte(row.RowPath, '/'); idx >= 0 {
		return row.RowPath[:idx], true
	}
	return "", true
}

// toggleSubtreeSelection bulk-toggles every file beneath the target
// folder: deselect all when all are already selected, else select all.
func (m *Model) toggleSubtreeSelection() {
	target, ok := m.targetFolder()
	if !ok {
		return
	}
	files := tree.CollectFiles(m.fileTree, target)
	if len(files) == 0 {
		return
	}

	allSelected := true
	for _, f := range files {
		if !m.sel.Selected[f] {
			allSelected = false
			break
		}
	}
	for _, f := range files {
		if allSelected {
			m.sel.Deselect(f)
		} else {
			m.sel.Select(f)
		}
	}
	m.updateViewportContent()
}

// expandSubtree expands the target folder and everything beneath it.
func (m *Model) expandSubtree() {
	target, ok := m.targetFolder()
	if !ok {
		return
	}
	delete(m.collapsed, target)
	for _, f := range tree.DescendantFolders(m.fileTree, target) {
		delete(m.collapsed, f)
	}
	m.rebuildRows()
}

// collapseSubtree collapses every folder beneath the target, leaving the
// target itself expanded.
func (m *Model) collapseSubtree() {
	target, ok := m.targetFolder()
	if !ok {
		return
	}
	for _, f := range tree.DescendantFolders(m.fileTree, target) {
		m.collapsed[f] = true
	}
	m.rebuildRows()
}

// toggleAllVisible toggles every file currently represented among the
// visible rows: deselect when the visible set is already fully selected,
// else select. Files hidden by collapsed folders are untouched.
func (m *Model) toggleAllVisible() {
	visible := tree.FilePaths(m.rows)
	if len(visible) == 0 {
		return
	}

	allSelected := true
	for _, f := range visible {
		if !m.sel.Selected[f] {
			allSelected = false
			break
		}
	}
	for _, f := range visible {
		if allSelected {
			m.sel.Deselect(f)
		} else {
			m.sel.Select(f)
		}
	}
	m.updateViewportContent()
}

func (m *Model) rebuildRows() {
	m.rows = tree.Flatten(m.fileTree, m.collapsed)
	m.clampCursor()
	m.updateViewportContent()
	m.ensureCursorVisible()
}

// tokenTotal sums the cached counts of selected non-compressed files.
func (m *Model) tokenTotal() int {
	if m.counter == nil {
		return 0
	}
	var paths []string
	for p := range m.sel.Selected {
		if !m.sel.Compressed[p] {
			paths = append(paths, p)
		}
	}
	return m.counter.Total(paths)
}

func (m *Model) ensureCursorVisible() {
	top := m.viewport.YOffset
	bottom := m.viewport.YOffset + m.viewport.Height - 1
	if m.cursor < top {
		m.viewport.SetYOffset(m.cursor)
	} else if m.cursor > bottom {
		m.viewport.SetYOffset(m.cursor - m.viewport.Height + 1)
	}
}

func (m *Model) updateViewportContent() {
	var sb strings.Builder
	for i, row := range m.rows {
		sb.WriteString(m.renderRow(i, row))
		sb.WriteString("\n")
	}
	m.viewport.SetContent(sb.String())
}

func (m *Model) renderRow(i int, row tree.Row) string {
	cursor := " "
	if i == m.cursor {
		cursor = ">"
	}

	var marker, name string
	switch {
	case row.IsFolder && m.collapsed[row.RowPath]:
		marker = " ▸ "
		name = row.DisplayName
	case row.IsFolder:
		marker = " ▾ "
		name = row.DisplayName
	case m.sel.Compressed[row.AbsPath]:
		marker = "[c]"
		name = row.DisplayName + m.tokenNote(row.AbsPath)
	case m.sel.Selected[row.AbsPath]:
		marker = "[x]"
		name = row.DisplayName + m.tokenNote(row.AbsPath)
	default:
		marker = "[ ]"
		name = row.DisplayName
	}

	name = truncateName(name, m.width-len(cursor)-len(marker)-2)
	line := fmt.Sprintf("%s %s %s", cursor, marker, name)

	switch {
	case i == m.cursor:
		return cursorStyle.Render(line)
	case row.IsFolder:
		return folderStyle.Render(line)
	case m.sel.Compressed[row.AbsPath]:
		return compressedStyle.Render(line)
	default:
		return line
	}
}

// tokenNote annotates a selected file with its token count, or a
// placeholder when the count is unknown.
func (m *Model) tokenNote(absPath string) string {
	if m.counter == nil {
		return ""
	}
	n := m.counter.CountFile(absPath)
	if n == tokens.Unknown {
		return " (? tokens)"
	}
	return fmt.Sprintf(" (%d tokens)", n)
}

// truncateName keeps the tail of names too long for the terminal.
func truncateName(name string, maxWidth int) string {
	if maxWidth <= 3 || len(name) <= maxWidth {
		return name
	}
	return "..." + name[len(name)-(maxWidth-3):]
}

func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	switch m.overlay {
	case overlayHelp:
		return m.helpView()
	case overlayConfigs:
		return m.configView()
	}
	return m.headerView() + m.viewport.View() + m.footerView()
}

// headerView adapts to three width breakpoints: full hint, short hint,
// token total only.
func (m *Model) headerView() string {
	total := m.tokenTotal()
	var title, hint string
	switch {
	case m.width >= 100:
		title = fmt.Sprintf("codesum — select files (%d tokens selected)", total)
		hint = "[space] toggle  [c] compress  [d] folder  [a] all  [+/-] subtree  [n/p] folder jump  [s] configs  [?] help  [enter] confirm  [q] quit"
	case m.width >= 60:
		title = fmt.Sprintf("codesum (%d tokens)", total)
		hint = "[space] toggle  [enter] confirm  [?] help"
	default:
		title = fmt.Sprintf("%d tokens", total)
		hint = ""
	}
	sep := strings.Repeat("─", max(0, m.width))
	return fitLine(title, m.width) + "\n" + fitLine(hint, m.width) + "\n" + sep + "\n"
}

func (m *Model) footerView() string {
	selected := len(m.sel.Selected)
	page, pages := m.pageInfo()
	status := fmt.Sprintf(" %d/%d rows | %d selected | page %d/%d ", m.cursor+1, len(m.rows), selected, page, pages)
	if m.status != "" {
		status += "| " + m.status + " "
	}
	sep := strings.Repeat("─", max(0, m.width))
	return "\n" + sep + "\n" + statusStyle.Render(fitLine(status, m.width))
}

func (m *Model) pageInfo() (int, int) {
	size := m.viewport.Height
	if size <= 0 {
		return 1, 1
	}
	pages := (len(m.rows) + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	return m.cursor/size + 1, pages
}

func (m *Model) helpView() string {
	lines := []string{
		"codesum keys",
		"",
		"  ↑/↓, j/k      move cursor",
		"  ←/→, pgup/dn  page",
		"  n / p         jump to next/previous folder",
		"  space         toggle selection (file) or collapse (folder)",
		"  c             mark file for compressed (AI summary) inclusion",
		"  d             select/deselect every file under the folder",
		"  + / -         expand / collapse the folder's subtree",
		"  a             select/deselect all visible files",
		"  s             saved selection configurations",
		"  ?             this help",
		"  enter         confirm selection",
		"  q, esc        cancel",
		"",
		"press any key to close",
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}

func (m *Model) configView() string {
	var sb strings.Builder
	sb.WriteString("saved selection configurations\n\n")
	if len(m.configNames) == 0 {
		sb.WriteString("  (none saved yet)\n")
	}
	for i, name := range m.configNames {
		cursor := "  "
		if i == m.configCursor {
			cursor = "> "
		}
		line := cursor + name
		if i == m.configCursor {
			line = cursorStyle.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n")
	if m.inputAction != inputNone {
		sb.WriteString(m.input.View() + "\n")
	} else {
		sb.WriteString("[enter] load  [n] new  [r] rename  [d] delete  [esc] close\n")
	}
	if m.status != "" {
		sb.WriteString("\n" + m.status + "\n")
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(sb.String())
}

// fitLine pads or truncates a line to the terminal width; writes that
// would overflow are clipped rather than erroring.
func fitLine(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) > width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}
