// Package tui provides the interactive Bubble Tea dashboard for restock.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/restock/internal/config"
	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/pipeline"
	"github.com/theirongolddev/restock/internal/tui/components"
	"github.com/theirongolddev/restock/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// DataLoadedMsg carries a fresh read of the engine state.
type DataLoadedMsg struct {
	Views    []model.ItemView
	Entries  []model.ShoppingListItem
	Receipts []model.Receipt
	Summary  model.Summary
	LoadTime time.Duration
	Err      error
}

// ActionDoneMsg reports the result of a mutation started from the UI.
type ActionDoneMsg struct {
	Note string
	Err  error
}

// HistoryMsg carries the observations of one item for the detail pane.
type HistoryMsg struct {
	ItemID string
	Obs    []model.ConsumptionObservation
	Err    error
}

const (
	tabOverview = iota
	tabInventory
	tabShopping
	tabReceipts
	tabSettings
)

// App is the root Bubble Tea model.
type App struct {
	engine    *pipeline.Engine
	storeDesc string

	// Data
	views    []model.ItemView
	entries  []model.ShoppingListItem
	receipts []model.Receipt
	summary  model.Summary
	loaded   bool
	loadErr  error
	loadTime time.Duration

	// Auto-refresh state
	autoRefresh     bool
	refreshInterval time.Duration
	lastRefresh     time.Time
	refreshing      bool

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool
	flash     string
	flashErr  bool
	flashAt   time.Time

	// Per-tab state
	inv      inventoryState
	shop     shoppingState
	rec      receiptsState
	settings settingsState

	// First-run setup (huh form)
	setupForm *huh.Form
	setupVals SetupValues
	needSetup bool

	spinner spinner.Model
}

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 180

	scrollOverhead   = 10 // approximate header + status bar height for half-page calc
	minContentHeight = 5

	loadTimeout  = 30 * time.Second
	flashTimeout = 5 * time.Second
	receiptLimit = 50
)

// loadConfigOrDefault loads config, returning defaults on error.
// This ensures the TUI can always start even if config is corrupted.
func loadConfigOrDefault() config.Config {
	cfg, err := config.Load()
	if err != nil {
		return config.DefaultConfig()
	}
	return cfg
}

// NewApp creates a new TUI app model over eng. storeDesc names the backend
// for the loading and settings screens.
func NewApp(eng *pipeline.Engine, storeDesc string) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	cfg := loadConfigOrDefault()
	refreshInterval := time.Duration(cfg.TUI.RefreshIntervalSec) * time.Second
	if refreshInterval < 10*time.Second {
		refreshInterval = 30 * time.Second
	}

	return App{
		engine:          eng,
		storeDesc:       storeDesc,
		needSetup:       !config.Exists(),
		setupVals:       SetupValuesFrom(cfg),
		autoRefresh:     cfg.TUI.AutoRefresh,
		refreshInterval: refreshInterval,
		spinner:         sp,
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnableMouseCellMotion,
		loadDataCmd(a.engine),
		a.spinner.Tick,
		tickCmd(),
	)
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case tea.MouseMsg:
		if !a.loaded || a.showHelp || (a.needSetup && a.setupForm != nil) {
			return a, nil
		}
		return a.updateMouse(msg)

	case tea.KeyMsg:
		return a.updateKey(msg)

	case DataLoadedMsg:
		first := !a.loaded
		a.refreshing = false
		a.loaded = true
		a.lastRefresh = time.Now()
		a.loadTime = msg.LoadTime
		a.loadErr = msg.Err
		if msg.Err == nil {
			a.views = msg.Views
			a.entries = msg.Entries
			a.receipts = msg.Receipts
			a.summary = msg.Summary
			a.clampCursors()
		}

		a.inv.historyID = "" // observations may have changed

		if first && a.needSetup {
			a.setupForm = newSetupForm(len(a.views), a.storeDesc, &a.setupVals)
			if a.width > 0 {
				a.setupForm = a.setupForm.WithWidth(a.width).WithHeight(a.height)
			}
			return a, a.setupForm.Init()
		}
		hcmd := a.syncHistory()
		return a, hcmd

	case ActionDoneMsg:
		a.setFlash(msg.Note, msg.Err)
		a.refreshing = true
		return a, loadDataCmd(a.engine)

	case HistoryMsg:
		if msg.ItemID == a.inv.historyID {
			a.inv.history = msg.Obs
			a.inv.historyErr = msg.Err
		}
		return a, nil

	case spinner.TickMsg:
		if !a.loaded {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if a.flash != "" && time.Since(a.flashAt) > flashTimeout {
			a.flash = ""
		}
		if a.loaded && a.autoRefresh && !a.refreshing && time.Since(a.lastRefresh) >= a.refreshInterval {
			a.refreshing = true
			cmds = append(cmds, loadDataCmd(a.engine))
		}
		return a, tea.Batch(cmds...)
	}

	// Forward unhandled messages to the setup form (cursor blinks, etc.)
	if a.needSetup && a.setupForm != nil {
		return a.updateSetupForm(msg)
	}

	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return a, tea.Quit
	}
	if !a.loaded {
		return a, nil
	}

	// First-run setup wizard intercepts all keys
	if a.needSetup && a.setupForm != nil {
		return a.updateSetupForm(msg)
	}

	// Text inputs own the keyboard while focused
	switch {
	case a.activeTab == tabSettings && a.settings.editing:
		return a.updateSettingsInput(msg)
	case a.activeTab == tabInventory && a.inv.searching:
		return a.updateInventorySearch(msg)
	case a.activeTab == tabInventory && a.inv.counting:
		return a.updateInventoryCount(msg)
	}

	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	var (
		handled bool
		cmd     tea.Cmd
	)
	switch a.activeTab {
	case tabInventory:
		a, cmd, handled = a.inventoryKey(key)
	case tabShopping:
		a, cmd, handled = a.shoppingKey(key)
	case tabReceipts:
		a, cmd, handled = a.receiptsKey(key)
	case tabSettings:
		a, cmd, handled = a.settingsKey(key)
	}
	if handled {
		return a, cmd
	}

	switch key {
	case "q":
		return a, tea.Quit
	case "r":
		if !a.refreshing {
			a.refreshing = true
			return a, loadDataCmd(a.engine)
		}
		return a, nil
	case "R":
		a.autoRefresh = !a.autoRefresh
		cfg := loadConfigOrDefault()
		cfg.TUI.AutoRefresh = a.autoRefresh
		_ = config.Save(cfg)
		return a, nil
	case "left":
		a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
		hcmd := a.syncHistory()
		return a, hcmd
	case "right", "tab":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		hcmd := a.syncHistory()
		return a, hcmd
	}

	if len(key) == 1 {
		if idx := components.TabIdxByKey(rune(key[0])); idx >= 0 {
			a.activeTab = idx
			hcmd := a.syncHistory()
			return a, hcmd
		}
	}
	return a, nil
}

func (a App) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		a.moveCursor(-1)
		hcmd := a.syncHistory()
		return a, hcmd
	case tea.MouseButtonWheelDown:
		a.moveCursor(1)
		hcmd := a.syncHistory()
		return a, hcmd
	case tea.MouseButtonLeft:
		if msg.Action == tea.MouseActionPress && msg.Y == 0 {
			if tab := a.tabAtX(msg.X); tab >= 0 {
				a.activeTab = tab
				hcmd := a.syncHistory()
				return a, hcmd
			}
		}
	}
	return a, nil
}

// moveCursor moves the selection of the active list tab by delta.
func (a *App) moveCursor(delta int) {
	switch a.activeTab {
	case tabInventory:
		a.inv.cursor += delta
	case tabShopping:
		a.shop.cursor += delta
	case tabReceipts:
		a.rec.cursor += delta
	}
	a.clampCursors()
}

func (a *App) clampCursors() {
	a.inv.cursor = clamp(a.inv.cursor, len(a.visibleItems()))
	a.shop.cursor = clamp(a.shop.cursor, len(a.visibleEntries()))
	a.rec.cursor = clamp(a.rec.cursor, len(a.receipts))
}

func clamp(cursor, n int) int {
	if cursor >= n {
		cursor = n - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor
}

func (a *App) setFlash(note string, err error) {
	a.flashAt = time.Now()
	if err != nil {
		a.flash = err.Error()
		a.flashErr = true
		return
	}
	a.flash = note
	a.flashErr = false
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		if err := a.saveSetupConfig(); err != nil {
			a.setFlash("", fmt.Errorf("saving config: %w", err))
		} else {
			a.setFlash("Saved "+config.ConfigPath(), nil)
		}
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	case huh.StateAborted:
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}

	return a, cmd
}

func (a App) contentWidth() int {
	cw := a.width
	if cw > maxContentWidth {
		cw = maxContentWidth
	}
	return cw
}

func (a App) isCompactLayout() bool {
	return a.contentWidth() < compactWidth
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if !a.loaded {
		return a.viewLoading()
	}
	if a.needSetup && a.setupForm != nil {
		return a.setupForm.View()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := a.height
	if h < 5 {
		h = 5
	}
	msg := fmt.Sprintf(
		"\n  Terminal too narrow (%d cols)\n\n  restock needs at least %d columns.\n",
		a.width,
		minTerminalWidth,
	)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewLoading() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(2, 4)

	logoStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	subtitleStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	spinnerStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ restock"))
	b.WriteString(subtitleStyle.Render(" · Household Inventory"))
	b.WriteString("\n\n")
	b.WriteString(spinnerStyle.Render(a.spinner.View()))
	b.WriteString(subtitleStyle.Render(" Loading from " + a.storeDesc + "..."))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)

	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	sectionStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Info).Background(t.Surface).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	sections := []struct {
		title    string
		bindings []struct{ key, desc string }
	}{
		{"Navigation", []struct{ key, desc string }{
			{"o i s e x", "Jump to tab"},
			{"← → tab", "Previous / Next tab"},
			{"j k g G", "Move in lists"},
			{"^d ^u", "Half-page"},
		}},
		{"Inventory", []struct{ key, desc string }{
			{"/", "Search items"},
			{"u", "Use one unit"},
			{"c", "Record a new count"},
		}},
		{"Shopping & Receipts", []struct{ key, desc string }{
			{"b", "Mark entry bought"},
			{"p", "Re-plan shopping list"},
			{"a", "Show bought entries"},
			{"c", "Reconcile pending receipt"},
		}},
		{"General", []struct{ key, desc string }{
			{"r", "Reload data"},
			{"R", "Toggle auto-refresh"},
			{"?", "Toggle help"},
			{"q", "Quit"},
		}},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n")
	for _, sec := range sections {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render(sec.title))
		b.WriteString("\n")
		for _, bind := range sec.bindings {
			fmt.Fprintf(&b, "  %s  %s\n",
				keyStyle.Render(fmt.Sprintf("%-10s", bind.key)),
				descStyle.Render(bind.desc))
		}
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()
	h := a.height

	header := components.RenderTabBar(a.activeTab, w)

	info := components.StatusBarInfo{
		Hints:       a.tabHints(),
		Flash:       a.flash,
		FlashErr:    a.flashErr,
		Refreshing:  a.refreshing,
		AutoRefresh: a.autoRefresh,
	}
	if !a.lastRefresh.IsZero() {
		info.DataAge = fmt.Sprintf("%s ago (%dms)",
			time.Since(a.lastRefresh).Truncate(time.Second), a.loadTime.Milliseconds())
	}
	statusBar := components.RenderStatusBar(w, info)

	contentH := h - lipgloss.Height(header) - lipgloss.Height(statusBar)
	if contentH < minContentHeight {
		contentH = minContentHeight
	}

	var content string
	if a.loadErr != nil && len(a.views) == 0 {
		content = components.ContentCard("Error", "Could not load data: "+a.loadErr.Error()+"\n\nPress r to retry.", cw)
	} else {
		switch a.activeTab {
		case tabOverview:
			content = a.renderOverviewTab(cw)
		case tabInventory:
			content = a.renderInventoryTab(cw, contentH)
		case tabShopping:
			content = a.renderShoppingTab(cw, contentH)
		case tabReceipts:
			content = a.renderReceiptsTab(cw, contentH)
		case tabSettings:
			content = a.renderSettingsTab(cw)
		}
	}

	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLinesWithBackground(content, cw, t.Background)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
	return lipgloss.Place(w, h, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) tabHints() string {
	switch a.activeTab {
	case tabInventory:
		if a.inv.counting {
			return "[Enter] save  [Esc] cancel"
		}
		return "[/]search  [u]se  [c]ount"
	case tabShopping:
		return "[b]ought  [p]lan  [a]ll"
	case tabReceipts:
		return "[c] reconcile"
	case tabSettings:
		return "[Enter] edit"
	}
	return ""
}

// ─── Commands ───────────────────────────────────────────────────

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// loadDataCmd reads items, the full shopping list, recent receipts and the
// summary in one pass.
func loadDataCmd(eng *pipeline.Engine) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		msg := DataLoadedMsg{}
		fail := func(err error) tea.Msg {
			msg.Err = err
			msg.LoadTime = time.Since(start)
			return msg
		}

		var err error
		if msg.Views, err = eng.Items(ctx); err != nil {
			return fail(err)
		}
		if msg.Entries, err = eng.ShoppingList(ctx, true); err != nil {
			return fail(err)
		}
		if msg.Receipts, err = eng.Receipts(ctx, receiptLimit); err != nil {
			return fail(err)
		}
		if msg.Summary, err = eng.Summary(ctx); err != nil {
			return fail(err)
		}
		msg.LoadTime = time.Since(start)
		return msg
	}
}

// actionCmd runs a mutation off the UI goroutine.
func actionCmd(fn func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		note, err := fn(ctx)
		return ActionDoneMsg{Note: note, Err: err}
	}
}

func historyCmd(eng *pipeline.Engine, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		obs, err := eng.History(ctx, id)
		return HistoryMsg{ItemID: id, Obs: obs, Err: err}
	}
}

// ─── Helpers ────────────────────────────────────────────────────

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes are derived from the same width rules used by RenderTabBar.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW
		if i < len(components.Tabs)-1 {
			pos++ // separator
		}
	}
	return -1
}

func halfPage(height int) int {
	n := (height - scrollOverhead) / 2
	if n < 1 {
		n = 1
	}
	return n
}

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with background color.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")

	var result strings.Builder
	for i, line := range lines {
		placed := lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg))
		result.WriteString(placed)
		if i < len(lines)-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}
