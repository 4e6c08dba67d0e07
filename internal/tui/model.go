package tui

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fchimpan/paddle-pilot/internal/game"
	"github.com/fchimpan/paddle-pilot/internal/mapping"
	"github.com/fchimpan/paddle-pilot/internal/scene"
	"github.com/fchimpan/paddle-pilot/internal/session"
)

// Model watches a session play, a few court frames per tick.
type Model struct {
	sess   *session.Session
	rounds int // 0 = keep playing
	played int
	speed  int // court frames per tick

	paused bool
	hold   int // ticks left showing a finished round
	last   *session.Result

	ready bool
	w     int
	h     int

	viewBuf bytes.Buffer
	canvas  canvasBuf
}

// MaxSpeed is the most court frames advanced per screen tick.
const MaxSpeed = 32

const holdTicks = 45

func NewModel(sess *session.Session, rounds, speed int) *Model {
	return &Model{
		sess:   sess,
		rounds: rounds,
		speed:  min(max(speed, 1), MaxSpeed),
	}
}

// Played is the number of rounds finished so far.
func (m *Model) Played() int { return m.played }

type tickMsg time.Time

func tickCmd(d time.Duration) tea.Cmd {
	if d <= 0 {
		d = time.Second / 60
	}
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Init() tea.Cmd {
	return tickCmd(time.Second / 60)
}

func (m *Model) done() bool { return m.rounds > 0 && m.played >= m.rounds }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.w = msg.Width
		m.h = msg.Height
		m.ready = true
		return m, nil
	case tickMsg:
		m.advance()
		return m, tickCmd(m.frameDuration())
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ", "p":
			m.paused = !m.paused
		case "r", "R":
			if !m.done() {
				m.sess.Policy().Reset()
				m.sess.NextRound()
				m.hold, m.last = 0, nil
			}
		case "+", "=":
			m.speed = min(m.speed*2, MaxSpeed)
		case "-", "_":
			m.speed = max(m.speed/2, 1)
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) advance() {
	if m.paused || m.done() {
		return
	}
	if m.hold > 0 {
		m.hold--
		if m.hold == 0 && !m.done() {
			m.sess.NextRound()
			m.last = nil
		}
		return
	}
	for i := 0; i < m.speed; i++ {
		if _, res := m.sess.Tick(); res != nil {
			m.last = res
			m.played++
			m.hold = holdTicks
			return
		}
	}
}

func (m *Model) frameDuration() time.Duration {
	// Bubble Tea drives View() on every message; avoid rendering 60fps when not needed.
	if m.paused || m.done() {
		return time.Second / 15
	}
	return time.Second / 60
}

func (m *Model) View() string {
	if !m.ready {
		return "loading...\n"
	}

	m.viewBuf.Reset()
	b := &m.viewBuf
	st := m.sess.Round()
	snap := st.Snapshot()

	b.WriteString(m.renderHUD(snap))
	b.WriteString("\n")

	info := "space pause, r restart round, +/- speed, q quit"
	switch {
	case m.done():
		info = fmt.Sprintf("finished %d rounds (q quit)", m.played)
	case m.paused:
		info = "paused (space resume, q quit)"
	}
	b.WriteString(styleHudDim.Render(info))
	b.WriteString("\n")

	var ov *fieldOverlay
	if m.last != nil {
		ov = resultOverlay(*m.last)
	}
	landing, ok := m.sess.Policy().LastLanding()
	fieldW := max(m.w-2, 20)
	fieldH := max(m.h-4, 10)
	renderField(b, st, landing, ok, ov, &m.canvas, fieldW, fieldH)
	return b.String()
}

func resultOverlay(r session.Result) *fieldOverlay {
	ov := &fieldOverlay{
		Lines: []string{fmt.Sprintf("frames: %d", r.Frames)},
	}
	if r.Status == scene.StatusGamePass {
		ov.Title = "CLEAR!"
	} else {
		ov.Title = "GAME OVER..."
	}
	if r.File != "" {
		ov.Lines = append(ov.Lines, fmt.Sprintf("recorded %d observations", r.Observations))
	}
	return ov
}

func (m *Model) renderHUD(snap scene.Snapshot) string {
	sep := styleHudDim.Render("  |  ")

	mode := "threshold"
	if m.sess.Policy().HasClassifier() {
		mode = "knn"
	}
	landing := "-"
	if x, ok := m.sess.Policy().LastLanding(); ok {
		landing = fmt.Sprintf("%5.1f", x)
	}
	round := fmt.Sprintf("%d", m.played+1)
	if m.rounds > 0 {
		round = fmt.Sprintf("%d/%d", min(m.played+1, m.rounds), m.rounds)
	}

	return strings.Join([]string{
		styleHudLabel.Render("round ") + styleHudValue.Render(round),
		sep,
		styleHudLabel.Render("frame ") + styleHudValue.Render(fmt.Sprintf("%6d", snap.Frame)),
		sep,
		styleHudLabel.Render("status ") + styleHudValue.Render(string(snap.Status)),
		sep,
		styleHudLabel.Render("landing ") + styleHudScore.Render(landing),
		sep,
		styleHudLabel.Render("mode ") + styleHudValue.Render(mode),
		sep,
		styleHudOk.Render(fmt.Sprintf("%d pass", m.sess.Passes())) + " " +
			styleHudBad.Render(fmt.Sprintf("%d over", m.sess.Losses())),
		sep,
		styleHudLabel.Render("speed ") + styleHudValue.Render(fmt.Sprintf("%dx", m.speed)),
	}, "")
}

// ===== Render helpers (cached styles) =====

var (
	stylePaddle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d0d7de"))
	styleBall   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd33d"))
	styleMarker = lipgloss.NewStyle().Foreground(lipgloss.Color("#79c0ff"))

	paddleCell = stylePaddle.Render("=")
	ballCell   = styleBall.Render("*")
	markerCell = styleMarker.Render("^")
	wallCell   = lipgloss.NewStyle().Foreground(lipgloss.Color("#30363d")).Render("|")

	styleHudLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("#8b949e"))
	styleHudValue = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#d0d7de"))
	styleHudScore = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffd33d"))
	styleHudOk    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7ee787"))
	styleHudBad   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff7b72"))
	styleHudDim   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))

	// Soft bricks light green, hard bricks dark green.
	brickCell = [3]string{
		"",
		lipgloss.NewStyle().Background(lipgloss.Color("#40c463")).Render(" "),
		lipgloss.NewStyle().Background(lipgloss.Color("#216e39")).Render(" "),
	}
)

type canvasBuf struct {
	w     int
	h     int
	cells []string // flat: y*w + x
}

func (c *canvasBuf) Resize(w, h int) {
	n := w * h
	if c.w == w && c.h == h && cap(c.cells) >= n {
		c.cells = c.cells[:n]
		return
	}
	c.w = w
	c.h = h
	c.cells = make([]string, n)
}

func (c *canvasBuf) Fill(cell string) {
	for i := range c.cells {
		c.cells[i] = cell
	}
}

func (c *canvasBuf) Set(x, y int, cell string) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return
	}
	c.cells[y*c.w+x] = cell
}

// renderField scales the court into a w x h cell canvas. One row below the
// paddle line marks the predicted landing.
func renderField(out *bytes.Buffer, st *game.State, landing float64, landingOK bool, ov *fieldOverlay, canvas *canvasBuf, w, h int) {
	cfg := st.Config()
	// Court columns plus a wall on each side.
	cols := min(max(w-2, 10), int(cfg.Width))
	rows := max(h-1, 5)
	sx := cfg.Width / float64(cols)
	sy := (cfg.PaddleY + cfg.BallSize) / float64(rows)
	cellX := func(x float64) int { return int(x/sx) + 1 }
	cellY := func(y float64) int { return int(y / sy) }

	canvas.Resize(cols+2, rows+1)
	canvas.Fill(" ")
	for y := 0; y <= rows; y++ {
		canvas.Set(0, y, wallCell)
		canvas.Set(cols+1, y, wallCell)
	}

	// Bricks.
	for _, br := range st.Bricks {
		if br.HP <= 0 {
			continue
		}
		cell := brickCell[min(br.HP, 2)]
		for y := cellY(br.Y); y <= cellY(br.Y+mapping.BrickH-1); y++ {
			for x := cellX(br.X); x <= cellX(br.X+mapping.BrickW-1); x++ {
				canvas.Set(x, y, cell)
			}
		}
	}

	// Paddle.
	py := cellY(cfg.PaddleY)
	for x := cellX(st.PaddleX); x <= cellX(st.PaddleX+cfg.PaddleW-1); x++ {
		canvas.Set(x, py, paddleCell)
	}

	if landingOK {
		canvas.Set(cellX(landing), rows, markerCell)
	}

	canvas.Set(cellX(st.BallX), cellY(st.BallY), ballCell)

	if ov != nil {
		applyOverlay(canvas, ov)
	}

	for y := 0; y < canvas.h; y++ {
		row := y * canvas.w
		for x := 0; x < canvas.w; x++ {
			out.WriteString(canvas.cells[row+x])
		}
		out.WriteByte('\n')
	}
}

type fieldOverlay struct {
	Title string
	Lines []string
}

var (
	styleOverlayTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffd33d"))
	styleOverlayText  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d0d7de"))
)

// applyOverlay writes the overlay text centered on the canvas, one cell per rune.
func applyOverlay(canvas *canvasBuf, ov *fieldOverlay) {
	lines := append([]string{ov.Title, ""}, ov.Lines...)
	top := (canvas.h - len(lines)) / 2
	for i, line := range lines {
		style := styleOverlayText
		if i == 0 {
			style = styleOverlayTitle
		}
		runes := []rune(line)
		left := (canvas.w - len(runes)) / 2
		for j, r := range runes {
			canvas.Set(left+j, top+i, style.Render(string(r)))
		}
	}
}
