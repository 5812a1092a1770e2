// Package tui renders both dashboard views in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"carbon_dashboard/internal/catalog"
	"carbon_dashboard/internal/models"
	"carbon_dashboard/internal/news"
	"carbon_dashboard/internal/view"
)

// CatalogView is the part of *catalog.View the terminal needs.
type CatalogView interface {
	Load(ctx context.Context) error
	Retry(ctx context.Context) error
	Snapshot() catalog.Snapshot
}

// NewsView is the part of *news.View the terminal needs.
type NewsView interface {
	Mount(ctx context.Context) error
	Refresh(ctx context.Context) error
	Retry(ctx context.Context) error
	ToggleSource(src models.Source) (bool, error)
	SelectTopic(topic string)
	SetAutoRefresh(enabled bool) error
	Snapshot() news.Snapshot
}

type Tab int

const (
	TabProjects Tab = iota
	TabNews
)

func (t Tab) String() string {
	if t == TabNews {
		return "Market News"
	}
	return "Offset Projects"
}

// pollInterval is how often the screen re-reads the view snapshots.
const pollInterval = time.Second

const cardColumns = 3

type tickMsg time.Time

// actionDoneMsg reports a finished view operation.
type actionDoneMsg struct {
	action string
	err    error
}

// Model is the bubbletea root model.
type Model struct {
	ctx     context.Context
	catalog CatalogView
	news    NewsView

	Tab     Tab
	width   int
	spinner spinner.Model
	notice  string

	projects catalog.Snapshot
	articles news.Snapshot
}

// NewModel builds the root model. ctx bounds every view operation it starts.
func NewModel(ctx context.Context, catalogView CatalogView, newsView NewsView) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent))

	return Model{
		ctx:      ctx,
		catalog:  catalogView,
		news:     newsView,
		spinner:  s,
		projects: catalogView.Snapshot(),
		articles: newsView.Snapshot(),
	}
}

// Init mounts both views and starts the spinner and snapshot ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tick(),
		m.run("load projects", m.catalog.Load),
		m.run("load news", m.news.Mount),
	)
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) run(action string, op func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: op(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		m.refreshSnapshots()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case actionDoneMsg:
		m.refreshSnapshots()
		m.notice = noticeFor(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		if m.Tab == TabProjects {
			m.Tab = TabNews
		} else {
			m.Tab = TabProjects
		}
		m.refreshSnapshots()
		return m, nil
	}

	if m.Tab == TabProjects {
		switch msg.String() {
		case "r", "R":
			return m, m.run("reload projects", m.catalog.Retry)
		}
		return m, nil
	}

	switch msg.String() {
	case "r":
		return m, m.run("refresh news", m.news.Refresh)
	case "R":
		return m, m.run("retry news", m.news.Retry)
	case "1", "2", "3":
		idx := int(msg.String()[0] - '1')
		if idx < len(models.AllSources) {
			changed, err := m.news.ToggleSource(models.AllSources[idx])
			switch {
			case err != nil:
				m.notice = err.Error()
			case !changed:
				m.notice = "At least one source must stay selected"
			}
		}
	case "t":
		m.news.SelectTopic(nextTopic(m.articles.Topics, m.articles.SelectedTopic))
	case "a":
		if err := m.news.SetAutoRefresh(!m.articles.AutoRefresh); err != nil {
			m.notice = err.Error()
		}
	}
	m.refreshSnapshots()
	return m, nil
}

func (m *Model) refreshSnapshots() {
	m.projects = m.catalog.Snapshot()
	m.articles = m.news.Snapshot()
}

// nextTopic cycles "" → topics[0] → … → topics[n-1] → "".
func nextTopic(topics []string, current string) string {
	if current == "" {
		if len(topics) == 0 {
			return ""
		}
		return topics[0]
	}
	for i, t := range topics {
		if t == current && i+1 < len(topics) {
			return topics[i+1]
		}
	}
	return ""
}

// noticeFor maps state errors to a hint. Fetch failures already show
// through the snapshot's error message.
func noticeFor(msg actionDoneMsg) string {
	switch {
	case errors.Is(msg.err, view.ErrRefreshInFlight):
		return "Refresh already in progress"
	case errors.Is(msg.err, view.ErrRetryRequired):
		return "Press R to retry"
	}
	return ""
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(Styles.Title.Render("Carbon Markets Dashboard"))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	if m.Tab == TabProjects {
		b.WriteString(m.renderProjects())
	} else {
		b.WriteString(m.renderNews())
	}

	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(Styles.Error.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(Styles.Hint.Render(m.hint()))
	return b.String()
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, 2)
	for _, t := range []Tab{TabProjects, TabNews} {
		style := Styles.Tab
		if t == m.Tab {
			style = Styles.ActiveTab
		}
		tabs = append(tabs, style.Render(t.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) hint() string {
	if m.Tab == TabProjects {
		return "tab: news • r: reload • q: quit"
	}
	return "tab: projects • r: refresh • R: retry • 1/2/3: sources • t: topic • a: auto-refresh • q: quit"
}

func (m Model) renderProjects() string {
	snap := m.projects
	switch snap.Status {
	case view.StatusIdle, view.StatusLoading:
		return m.spinner.View() + " Loading projects..."
	case view.StatusError:
		return Styles.Error.Render(snap.Error) + "\n" + Styles.Muted.Render("Press r to try again.")
	}

	var rows []string
	for i := 0; i < len(snap.Projects); i += cardColumns {
		end := min(i+cardColumns, len(snap.Projects))
		cards := make([]string, 0, cardColumns)
		for _, p := range snap.Projects[i:end] {
			cards = append(cards, renderCard(p))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}

	header := Styles.Muted.Render(fmt.Sprintf("%d projects from the %s registry", len(snap.Projects), snap.Registry))
	if snap.Status == view.StatusRefreshing {
		header = m.spinner.View() + " " + header
	}
	return header + "\n" + lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCard(p models.OffsetProject) string {
	price := fmt.Sprintf("$%.2f / credit", p.PricePerCredit)
	if p.PriceSimulated {
		price += Styles.Muted.Render(" (est.)")
	}

	lines := []string{
		Styles.CardTitle.Render(truncate(p.Name, 30)),
		Styles.Muted.Render(truncate(p.Location, 30)),
		Styles.Normal.Render(truncate(p.Category, 30)),
		Styles.Price.Render(price),
		Styles.Muted.Render(fmt.Sprintf("%d credits • %s", p.CreditsAvailable, p.Standard)),
	}
	return Styles.Card.Render(strings.Join(lines, "\n"))
}

func (m Model) renderNews() string {
	snap := m.articles
	var b strings.Builder

	b.WriteString(m.renderSources(snap))
	b.WriteString("\n")
	b.WriteString(renderTopics(snap))
	b.WriteString("\n\n")

	switch snap.Status {
	case view.StatusIdle, view.StatusLoading:
		b.WriteString(m.spinner.View() + " Loading news...")
		return b.String()
	case view.StatusError:
		b.WriteString(Styles.Error.Render(snap.Error))
		b.WriteString("\n")
		b.WriteString(Styles.Muted.Render("Press R to retry."))
		return b.String()
	case view.StatusRefreshing:
		b.WriteString(m.spinner.View() + " Refreshing...\n")
	}

	if len(snap.Articles) == 0 {
		b.WriteString(Styles.Muted.Render("No articles match the current filters."))
		return b.String()
	}
	for _, a := range snap.Articles {
		b.WriteString(renderArticle(a))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderSources(snap news.Snapshot) string {
	selected := make(map[models.Source]bool, len(snap.SelectedSources))
	for _, s := range snap.SelectedSources {
		selected[s] = true
	}

	parts := make([]string, 0, len(models.AllSources)+1)
	for i, src := range models.AllSources {
		label := fmt.Sprintf("[%d] %s", i+1, src)
		if selected[src] {
			parts = append(parts, Styles.Selected.Render("● "+label))
		} else {
			parts = append(parts, Styles.Muted.Render("○ "+label))
		}
	}

	auto := "auto-refresh off"
	if snap.AutoRefresh {
		auto = "auto-refresh on"
	}
	parts = append(parts, Styles.Muted.Render(auto))
	return strings.Join(parts, "  ")
}

func renderTopics(snap news.Snapshot) string {
	if len(snap.Topics) == 0 {
		return Styles.Muted.Render("Trending: none")
	}
	parts := make([]string, 0, len(snap.Topics)+1)
	all := Styles.Muted.Render("all")
	if snap.SelectedTopic == "" {
		all = Styles.Selected.Render("all")
	}
	parts = append(parts, all)
	for _, t := range snap.Topics {
		if strings.EqualFold(t, snap.SelectedTopic) {
			parts = append(parts, Styles.Selected.Render(t))
		} else {
			parts = append(parts, Styles.Normal.Render(t))
		}
	}
	return Styles.Muted.Render("Trending: ") + strings.Join(parts, Styles.Muted.Render(" · "))
}

func renderArticle(a models.NewsArticle) string {
	title := Styles.CardTitle.Render(a.Title)
	if a.IsRecent {
		title = Styles.Badge.Render("NEW ") + title
	}
	meta := fmt.Sprintf("%s • %s • %s", a.SourceLabel, a.Category, a.PublishedAt.Local().Format("Jan 2 15:04"))
	return title + "\n" + Styles.Muted.Render(meta)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
