package ui

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/skalibog/cryptoscalp/internal/analysis/orderbook"
	"github.com/skalibog/cryptoscalp/internal/config"
	"github.com/skalibog/cryptoscalp/internal/report"
	"github.com/skalibog/cryptoscalp/pkg/logger"
	"github.com/skalibog/cryptoscalp/pkg/models"
	"go.uber.org/zap"
)

// Стили UI
var (
	// Основные цвета
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")
	mutedColor     = lipgloss.Color("#999999")

	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1).
			Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(secondaryColor).
			Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)
	alertStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(errorColor).
			Padding(0, 1)
	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)
)

// Регулярное выражение для удаления ANSI-цветов
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

const (
	logTimeLayout = "02.01.2006 - 15:04:05.000000000Z07:00"
	maxWallsShown = 5
)

// TermUI терминальный интерфейс: список инструментов, детали выбранного и хвост лога
type TermUI struct {
	mu            sync.RWMutex
	results       map[string]*models.AnalysisResult
	books         map[string]*models.OrderBookState
	alerts        map[string]models.SpoofAlert
	logs          []string
	config        config.UIConfig
	logFile       string
	walls         *orderbook.Analyzer
	program       *tea.Program
	selectedIndex int
	width         int
	height        int
	now           func() time.Time
}

// Сообщения для обновления UI
type refreshMsg struct{}
type tickMsg time.Time

// bubbleModel модель для bubbletea
type bubbleModel struct {
	ui *TermUI
}

// NewTermUI создает интерфейс. logFile путь к JSON-логу, который показывается внизу экрана.
func NewTermUI(cfg config.UIConfig, logFile string, bookCfg config.OrderBookConfig) *TermUI {
	return &TermUI{
		results: make(map[string]*models.AnalysisResult),
		books:   make(map[string]*models.OrderBookState),
		alerts:  make(map[string]models.SpoofAlert),
		logs:    []string{"Анализатор запущен. Ожидание данных..."},
		config:  cfg,
		logFile: logFile,
		walls:   orderbook.NewAnalyzer(bookCfg),
		width:   120,
		height:  40,
		now:     time.Now,
	}
}

// Start запускает интерфейс и блокируется до выхода пользователя или отмены контекста
func (ui *TermUI) Start(ctx context.Context) error {
	go ui.tailLogs(ctx)

	ui.mu.Lock()
	ui.program = tea.NewProgram(bubbleModel{ui: ui}, tea.WithAltScreen(), tea.WithContext(ctx))
	program := ui.program
	ui.mu.Unlock()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("ошибка запуска UI: %w", err)
	}
	return nil
}

// OnResult принимает новый результат анализа
func (ui *TermUI) OnResult(result *models.AnalysisResult) {
	ui.mu.Lock()
	ui.results[result.Symbol] = result
	ui.mu.Unlock()
	ui.refresh()
}

// OnOrderBook принимает новый снимок стакана
func (ui *TermUI) OnOrderBook(book *models.OrderBookState) {
	ui.mu.Lock()
	ui.books[book.Symbol] = book
	ui.mu.Unlock()
	ui.refresh()
}

// OnSpoofAlert принимает предупреждение; показывается последнее до истечения
func (ui *TermUI) OnSpoofAlert(alert models.SpoofAlert) {
	ui.mu.Lock()
	ui.alerts[alert.Symbol] = alert
	ui.mu.Unlock()
	ui.refresh()
}

func (ui *TermUI) refresh() {
	ui.mu.RLock()
	program := ui.program
	ui.mu.RUnlock()

	if program != nil {
		program.Send(refreshMsg{})
	}
}

func (ui *TermUI) tailLogs(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if err := ui.loadLogsFromFile(); err != nil {
			logger.Warn("Ошибка загрузки логов", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// loadLogsFromFile перечитывает хвост JSON-лога
func (ui *TermUI) loadLogsFromFile() error {
	file, err := os.Open(ui.logFile)
	if err != nil {
		if os.IsNotExist(err) {
			// Файл не существует, это не ошибка
			return nil
		}
		return err
	}
	defer file.Close()

	maxLogs := ui.config.MaxLogs
	if maxLogs <= 0 {
		maxLogs = 50
	}

	var logs []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		logs = append(logs, formatLogLine(scanner.Text()))
		if len(logs) > maxLogs {
			logs = logs[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if len(logs) > 0 {
		ui.mu.Lock()
		ui.logs = logs
		ui.mu.Unlock()
		ui.refresh()
	}
	return nil
}

// formatLogLine превращает JSON-запись zap в строку вида [15:04:05] [INFO] msg (key: value)
func formatLogLine(line string) string {
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return line
	}

	level, _ := entry["level"].(string)
	ts, _ := entry["ts"].(string)
	msg, _ := entry["msg"].(string)
	level = ansiRegex.ReplaceAllString(level, "")

	timestamp := ""
	if t, err := time.Parse(logTimeLayout, ts); err == nil {
		timestamp = t.Format("15:04:05")
	}

	keys := make([]string, 0, len(entry))
	for k := range entry {
		if k != "level" && k != "ts" && k != "msg" && k != "caller" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] [%s] %s", timestamp, level, msg)
	for _, k := range keys {
		fmt.Fprintf(&sb, " (%s: %v)", k, entry[k])
	}
	return sb.String()
}

// Методы для bubbletea
func (m bubbleModel) Init() tea.Cmd {
	return m.tick()
}

func (m bubbleModel) tick() tea.Cmd {
	every := time.Duration(m.ui.config.RefreshRate) * time.Millisecond
	if every <= 0 {
		every = time.Second
	}
	return tea.Tick(every, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m bubbleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.ui.mu.Lock()
			m.ui.selectedIndex = max(0, m.ui.selectedIndex-1)
			m.ui.mu.Unlock()
		case "down", "j":
			m.ui.mu.Lock()
			m.ui.selectedIndex = max(0, min(len(m.ui.results)-1, m.ui.selectedIndex+1))
			m.ui.mu.Unlock()
		case "r":
			// Перечитываем лог вне цикла событий: loadLogsFromFile сам шлет refreshMsg
			return m, func() tea.Msg {
				if err := m.ui.loadLogsFromFile(); err != nil {
					logger.Warn("Ошибка загрузки логов", zap.Error(err))
				}
				return nil
			}
		}

	case tea.WindowSizeMsg:
		m.ui.mu.Lock()
		m.ui.width = msg.Width
		m.ui.height = msg.Height
		m.ui.mu.Unlock()

	case tickMsg:
		// Перерисовка нужна для истечения предупреждений
		return m, m.tick()

	case refreshMsg:
	}

	return m, nil
}

func (m bubbleModel) View() string {
	return m.ui.render()
}

func (ui *TermUI) render() string {
	ui.mu.RLock()
	defer ui.mu.RUnlock()

	symbols := sortedSymbols(ui.results)
	selected := ""
	if len(symbols) > 0 {
		selected = symbols[min(ui.selectedIndex, len(symbols)-1)]
	}

	sections := []string{
		titleStyle.Render("CRYPTOSCALP - Market Signal & Microstructure Engine"),
		ui.renderSignals(symbols, selected),
	}
	if selected != "" {
		sections = append(sections, ui.renderDetails(ui.results[selected]))
	}
	sections = append(sections,
		ui.renderLogs(),
		footerStyle.Render("Клавиши: ↑/↓ - навигация, R - перезагрузить логи, Q - выход"),
	)

	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (ui *TermUI) renderSignals(symbols []string, selected string) string {
	content := strings.Builder{}

	if len(symbols) == 0 {
		content.WriteString("  Ожидание данных...\n")
	}
	for _, symbol := range symbols {
		r := ui.results[symbol]

		line := fmt.Sprintf("  %-10s %s %-5s %3d%%  %-12s RSI %5.1f  Bias %+.2f  Цена %s",
			report.FormatPair(symbol),
			statusText(r.Status, r.Direction),
			r.Direction,
			r.ConfidenceScore,
			r.Regime,
			r.RSI,
			r.OrderBookBias,
			formatPrice(r.Price))

		if alert, ok := ui.alerts[symbol]; ok && !alert.Expired(ui.now()) {
			line += " " + alertStyle.Render("SPOOF")
		}

		if symbol == selected {
			line = "> " + line[2:]
			line = lipgloss.NewStyle().Background(lipgloss.Color("#222222")).Render(line)
		}
		content.WriteString(line + "\n")
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("СИГНАЛЫ"),
		content.String(),
	))
}

func (ui *TermUI) renderDetails(r *models.AnalysisResult) string {
	content := strings.Builder{}

	fmt.Fprintf(&content, "  Режим: %s  Тренд: %s  EMA9/EMA21: %s / %s\n",
		r.Regime, r.Trend, formatPrice(r.EMA9), formatPrice(r.EMA21))
	fmt.Fprintf(&content, "  ATR: %s  Объем подтверждает: %s  Цена у EMA: %s\n",
		formatPrice(r.Context.ATR), yesNo(r.Context.VolumeSupporting), yesNo(r.Context.PriceNearEMA))

	if r.Direction != models.DirectionNone {
		content.WriteString("\n")
		for _, line := range strings.Split(report.SignalText(r), "\n") {
			content.WriteString("  " + line + "\n")
		}
		fmt.Fprintf(&content, "  TP3: %s  R:R %.2f\n", formatPrice(r.TakeProfits[2]), r.RiskReward)
	}

	content.WriteString("\n")
	for _, c := range r.Confirmations {
		content.WriteString("  " + lipgloss.NewStyle().Foreground(successColor).Render("✓ "+c) + "\n")
	}
	for _, b := range r.BlockingReasons {
		content.WriteString("  " + lipgloss.NewStyle().Foreground(errorColor).Render("✗ "+b) + "\n")
	}

	if walls := ui.renderWalls(ui.books[r.Symbol]); walls != "" {
		content.WriteString("\n" + walls)
	}

	if alert, ok := ui.alerts[r.Symbol]; ok && !alert.Expired(ui.now()) {
		content.WriteString("\n  " + alertStyle.Render(alert.Message) + "\n")
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(report.FormatPair(r.Symbol)),
		content.String(),
	))
}

// renderWalls крупнейшие китовые заявки и «великие стены» стакана
func (ui *TermUI) renderWalls(book *models.OrderBookState) string {
	if book == nil {
		return ""
	}

	type wall struct {
		side  string
		entry models.OrderBookEntry
		class orderbook.WallClass
	}

	var walls []wall
	for _, e := range book.Bids {
		if c := ui.walls.ClassifyWall(e); c != orderbook.WallNone {
			walls = append(walls, wall{"BID", e, c})
		}
	}
	for _, e := range book.Asks {
		if c := ui.walls.ClassifyWall(e); c != orderbook.WallNone {
			walls = append(walls, wall{"ASK", e, c})
		}
	}
	if len(walls) == 0 {
		return ""
	}

	sort.SliceStable(walls, func(i, j int) bool {
		return walls[i].entry.Total > walls[j].entry.Total
	})
	if len(walls) > maxWallsShown {
		walls = walls[:maxWallsShown]
	}

	maxTotal := orderbook.MaxTotal(book)
	content := strings.Builder{}
	for _, w := range walls {
		label := "WHALE"
		color := warningColor
		if w.class == orderbook.WallMega {
			label = "MEGA WALL"
			color = errorColor
		}
		bar := strings.Repeat("█", int(10*w.entry.Total/maxTotal))
		fmt.Fprintf(&content, "  %s %s %s $%.0fk %s\n",
			w.side,
			formatPrice(w.entry.Price),
			lipgloss.NewStyle().Foreground(color).Render(label),
			w.entry.Total/1000,
			bar)
	}
	return content.String()
}

func (ui *TermUI) renderLogs() string {
	content := strings.Builder{}

	maxLogsToShow := 10
	if ui.height > 40 {
		maxLogsToShow = ui.height - 30
	}

	start := 0
	if len(ui.logs) > maxLogsToShow {
		start = len(ui.logs) - maxLogsToShow
	}

	for _, log := range ui.logs[start:] {
		// Выделение по уровню логирования
		switch {
		case strings.Contains(log, "[ERROR]"):
			log = lipgloss.NewStyle().Foreground(errorColor).Render(log)
		case strings.Contains(log, "[INFO]"):
			log = lipgloss.NewStyle().Foreground(successColor).Render(log)
		case strings.Contains(log, "[WARN]"):
			log = lipgloss.NewStyle().Foreground(warningColor).Render(log)
		case strings.Contains(log, "[DEBUG]"):
			log = lipgloss.NewStyle().Foreground(lipgloss.Color("#9999ff")).Render(log)
		}
		content.WriteString("  " + log + "\n")
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("ЛОГИ"),
		content.String(),
	))
}

// Вспомогательные функции
func statusText(status models.Status, direction models.Direction) string {
	var style lipgloss.Style

	switch {
	case status == models.StatusActive && direction == models.DirectionLong:
		style = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	case status == models.StatusActive && direction == models.DirectionShort:
		style = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	case status == models.StatusPotential:
		style = lipgloss.NewStyle().Foreground(warningColor)
	default:
		style = lipgloss.NewStyle().Foreground(mutedColor)
	}

	return style.Render(fmt.Sprintf("%-9s", status))
}

func sortedSymbols(results map[string]*models.AnalysisResult) []string {
	symbols := make([]string, 0, len(results))
	for symbol := range results {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// formatPrice подбирает точность под порядок цены
func formatPrice(v float64) string {
	switch {
	case v == 0:
		return "-"
	case v < 1:
		return fmt.Sprintf("%.5f", v)
	case v < 100:
		return fmt.Sprintf("%.3f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func yesNo(v bool) string {
	if v {
		return "да"
	}
	return "нет"
}
