package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// searchLimit is how many results a TUI search requests.
const searchLimit = 10

// searchCompleted is emitted when an asynchronous search finishes.
type searchCompleted struct {
	results []domain.RetrievalResult
	err     error
}

// statsLoaded is emitted when corpus totals have been fetched.
type statsLoaded struct {
	stats *domain.CorpusStats
	err   error
}

// App is the root bubbletea model: a single-screen semantic search
// over the indexed corpus. The query input and the result list share
// the screen; Enter on a result expands its surrounding context.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *Styles

	input textinput.Model

	results  []domain.RetrievalResult
	selected int
	stats    *domain.CorpusStats
	err      error

	// focusInput switches key handling between typing a query and
	// navigating results.
	focusInput bool
	expanded   bool
	searching  bool
	searched   bool

	width    int
	height   int
	ready    bool
	quitting bool
}

var _ tea.Model = (*App)(nil)

// NewApp creates the TUI application model.
func NewApp(ports *Ports) (*App, error) {
	if ports == nil {
		return nil, ErrInvalidPorts
	}
	if err := ports.Validate(); err != nil {
		return nil, err
	}

	ti := textinput.New()
	ti.Placeholder = "Search your documents..."
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 50

	return &App{
		ports:      ports,
		ctx:        context.Background(),
		styles:     DefaultStyles(),
		input:      ti,
		focusInput: true,
		width:      80,
		height:     24,
	}, nil
}

// WithContext sets the context used for service calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init starts the cursor blink and fetches corpus totals.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, tea.SetWindowTitle("quarry")}
	if a.ports.Documents != nil {
		cmds = append(cmds, a.loadStats())
	}
	return tea.Batch(cmds...)
}

// Update handles incoming messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.resizeInput()
		return a, nil

	case searchCompleted:
		return a.handleSearchCompleted(msg)

	case statsLoaded:
		if msg.err == nil {
			a.stats = msg.stats
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	if a.focusInput {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleSearchCompleted(msg searchCompleted) (tea.Model, tea.Cmd) {
	a.searching = false
	a.searched = true

	if msg.err != nil {
		a.err = msg.err
		a.results = nil
		a.focusInput = true
		return a, a.input.Focus()
	}

	a.err = nil
	a.results = msg.results
	a.selected = 0
	a.expanded = false

	if len(a.results) == 0 {
		// Keep the cursor in the input so the user can retype.
		a.focusInput = true
		return a, a.input.Focus()
	}

	a.focusInput = false
	a.input.Blur()
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		a.quitting = true
		return a, tea.Quit
	}

	if a.expanded {
		switch msg.String() {
		case "esc", "enter", "q":
			a.expanded = false
		}
		return a, nil
	}

	if a.focusInput {
		return a.handleInputKey(msg)
	}
	return a.handleResultsKey(msg)
}

func (a *App) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		query := strings.TrimSpace(a.input.Value())
		if query == "" {
			return a, nil
		}
		a.focusInput = false
		a.input.Blur()
		a.searching = true
		a.err = nil
		return a, a.performSearch(query)

	case tea.KeyEsc:
		a.quitting = true
		return a, tea.Quit
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) handleResultsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if a.selected > 0 {
			a.selected--
		}

	case "down", "j":
		if a.selected < len(a.results)-1 {
			a.selected++
		}

	case "enter":
		if len(a.results) > 0 {
			a.expanded = true
		}

	case "/", "n":
		a.input.Reset()
		a.err = nil
		a.focusInput = true
		return a, a.input.Focus()

	case "esc":
		// Back to the input with the query intact.
		a.focusInput = true
		return a, a.input.Focus()

	case "q":
		a.quitting = true
		return a, tea.Quit
	}
	return a, nil
}

// performSearch runs the query off the update loop. Context is fetched
// up front so expanding a result needs no second round trip.
func (a *App) performSearch(query string) tea.Cmd {
	return func() tea.Msg {
		opts := domain.QueryOptions{
			TopK:        searchLimit,
			WithContext: true,
			ContextSize: 1,
		}
		results, err := a.ports.Retriever.Query(a.ctx, query, opts)
		return searchCompleted{results: results, err: err}
	}
}

func (a *App) loadStats() tea.Cmd {
	return func() tea.Msg {
		stats, err := a.ports.Documents.Stats(a.ctx)
		return statsLoaded{stats: stats, err: err}
	}
}

// View renders the application.
func (a *App) View() string {
	if a.quitting {
		return ""
	}
	if !a.ready {
		return a.styles.Muted.Render("Initialising...")
	}

	sections := []string{
		a.renderHeader(),
		a.renderSearchBar(),
		"",
	}

	switch {
	case a.searching:
		sections = append(sections, a.styles.Muted.Render("Searching..."))
	case a.err != nil:
		sections = append(sections, a.styles.Error.Render("Error: "+a.err.Error()))
	case a.expanded:
		sections = append(sections, a.renderExpanded())
	default:
		sections = append(sections, a.renderResults())
	}

	sections = append(sections, "", a.renderStatusBar())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderHeader() string {
	return a.styles.Title.Render("Quarry") + a.styles.Muted.Render("  semantic search")
}

func (a *App) renderSearchBar() string {
	label := a.styles.Title.Render("Search: ")
	field := a.styles.InputField.Render(a.input.View())
	//nolint:misspell // lipgloss.Center is the correct constant from the library
	return lipgloss.JoinHorizontal(lipgloss.Center, label, field)
}

func (a *App) renderResults() string {
	if !a.searched {
		return a.styles.Muted.Render("Type a query and press enter to search.")
	}
	if len(a.results) == 0 {
		return a.styles.Muted.Render("No results")
	}

	lines := make([]string, 0, len(a.results)*2+2)
	header := a.styles.Subtitle.Render(fmt.Sprintf("Results (%d)", len(a.results)))
	lines = append(lines, header, "")

	// Each result takes two lines (title and preview); the header,
	// search bar, and status bar claim the rest of the screen.
	visibleCount := (a.height - 9) / 2
	if visibleCount < 1 {
		visibleCount = 1
	}

	start := 0
	if a.selected >= visibleCount {
		start = a.selected - visibleCount + 1
	}
	end := start + visibleCount
	if end > len(a.results) {
		end = len(a.results)
	}

	for i := start; i < end; i++ {
		lines = append(lines, a.renderResult(i, &a.results[i]))
	}

	return strings.Join(lines, "\n")
}

// renderResult formats a single retrieval result with preview text.
func (a *App) renderResult(index int, result *domain.RetrievalResult) string {
	indicator := "  "
	if index == a.selected {
		indicator = "> "
	}

	title := result.Document.Title
	if title == "" {
		title = result.Chunk.DocumentID
	}

	maxTitleLen := a.width - 20
	if maxTitleLen < 10 {
		maxTitleLen = 10
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen-3] + "..."
	}

	score := fmt.Sprintf("%.2f", result.Score)

	var titleLine string
	if index == a.selected {
		titleLine = a.styles.Selected.Render(fmt.Sprintf("%s%-*s  %s", indicator, maxTitleLen, title, score))
	} else {
		titleLine = a.styles.Normal.Render(fmt.Sprintf("%s%-*s  ", indicator, maxTitleLen, title)) +
			a.styles.Muted.Render(score)
	}

	maxPreviewLen := a.width - 6
	if maxPreviewLen < 20 {
		maxPreviewLen = 20
	}
	previewLine := a.styles.Muted.Render("    " + previewText(result.Chunk.Content, maxPreviewLen))

	return titleLine + "\n" + previewLine
}

// renderExpanded shows the selected result with its surrounding context.
func (a *App) renderExpanded() string {
	if a.selected < 0 || a.selected >= len(a.results) {
		return ""
	}
	result := &a.results[a.selected]

	title := result.Document.Title
	if title == "" {
		title = result.Chunk.DocumentID
	}

	body := result.Context
	if body == "" {
		body = result.Chunk.Content
	}

	bodyWidth := a.width - 4
	if bodyWidth < 20 {
		bodyWidth = 20
	}

	lines := []string{
		a.styles.Subtitle.Render(title) + a.styles.Muted.Render(fmt.Sprintf("  %.2f", result.Score)),
		a.styles.Muted.Render(domain.ChunkID(result.Chunk.DocumentID, result.Chunk.Position)),
		"",
		a.styles.Normal.Width(bodyWidth).Render(body),
	}

	return strings.Join(lines, "\n")
}

func (a *App) renderStatusBar() string {
	var help string
	switch {
	case a.expanded:
		help = "esc: back to results"
	case a.focusInput:
		help = "enter: search | esc: quit"
	default:
		help = "j/k: navigate | enter: expand | /: new search | esc: edit query | q: quit"
	}

	line := help
	if a.stats != nil {
		totals := fmt.Sprintf("%d documents, %d chunks", a.stats.Documents, a.stats.Chunks)
		pad := a.width - lipgloss.Width(help) - lipgloss.Width(totals) - 4
		if pad > 0 {
			line = help + strings.Repeat(" ", pad) + totals
		}
	}

	return a.styles.StatusBar.Width(a.width).Render(line)
}

func (a *App) resizeInput() {
	w := a.width - 14
	if w < 20 {
		w = 20
	}
	a.input.Width = w
}

// previewText flattens whitespace and truncates to maxLen runes.
func previewText(text string, maxLen int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= maxLen {
		return flat
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// Query returns the current input value.
func (a *App) Query() string {
	return a.input.Value()
}

// SetQuery sets the input value.
func (a *App) SetQuery(query string) {
	a.input.SetValue(query)
}

// Results returns the current search results.
func (a *App) Results() []domain.RetrievalResult {
	return a.results
}

// SelectedIndex returns the index of the selected result.
func (a *App) SelectedIndex() int {
	return a.selected
}

// Err returns the last search error, if any.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has received its dimensions.
func (a *App) Ready() bool {
	return a.ready
}

// InputFocused returns whether the query input has focus.
func (a *App) InputFocused() bool {
	return a.focusInput
}

// Expanded returns whether a result is expanded.
func (a *App) Expanded() bool {
	return a.expanded
}

// Width returns the current width.
func (a *App) Width() int {
	return a.width
}

// Height returns the current height.
func (a *App) Height() int {
	return a.height
}

// SetDimensions sets the dimensions directly, primarily for testing.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.resizeInput()
}
