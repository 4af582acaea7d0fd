// Package ui renders the job lifecycle to a terminal.
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"tubefetch/internal/domain/consts"
	"tubefetch/internal/models"
	"tubefetch/internal/parsing"
	"tubefetch/internal/preview"
)

// Terminal is a models.Surface writing to a terminal stream.
type Terminal struct {
	mu       sync.Mutex
	out      io.Writer
	color    bool
	live     bool
	width    int
	frame    int
	baseURL  string
	program  string
	now      func() time.Time
	lastLine string
}

// TerminalOption configures a Terminal.
type TerminalOption func(*Terminal)

// WithoutColor disables ANSI colours and in-place line rewrites.
func WithoutColor() TerminalOption {
	return func(t *Terminal) {
		t.color = false
		t.live = false
	}
}

// WithBaseURL makes relative download links absolute.
func WithBaseURL(base string) TerminalOption {
	return func(t *Terminal) {
		t.baseURL = strings.TrimSuffix(base, "/")
	}
}

// WithClock replaces time.Now for expiry countdowns.
func WithClock(now func() time.Time) TerminalOption {
	return func(t *Terminal) {
		t.now = now
	}
}

// NewTerminal returns a surface writing to out.
func NewTerminal(out io.Writer, opts ...TerminalOption) *Terminal {
	t := &Terminal{
		out:     out,
		color:   true,
		live:    true,
		width:   consts.ProgressBarWidth,
		program: consts.ProgramName,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ShowPreview prints the preview panel.
func (t *Terminal) ShowPreview(p models.Preview) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLineLocked()

	title := p.Meta.Title
	if title == "" {
		title = "(untitled)"
	}
	uploader := p.Meta.UploaderName
	if uploader == "" {
		uploader = "Unknown channel"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", t.paint(consts.ColorCyan, "┌ "+title))
	fmt.Fprintf(&b, "│ %s %s", t.avatar(p), uploader)
	if subs := parsing.SubscriberText(p.Meta.SubscriberCount); subs != "" {
		fmt.Fprintf(&b, " %s", t.paint(consts.ColorDim, "· "+subs))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "│ %s\n", p.Source.String())

	switch {
	case p.Meta.ThumbnailURL == "":
	case p.ThumbnailLoaded:
		fmt.Fprintf(&b, "│ Thumbnail: %s\n", p.Meta.ThumbnailURL)
	default:
		fmt.Fprintf(&b, "│ Thumbnail: %s\n", t.paint(consts.ColorDim, "unavailable"))
	}
	b.WriteString("└\n")

	t.write(b.String())
}

// ClearPreview drops any half-drawn progress line.
func (t *Terminal) ClearPreview() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLineLocked()
}

// ShowProgress draws (or redraws) the progress line.
func (t *Terminal) ShowProgress(job models.ActiveJob, st models.RenderState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.frame++
	var bar string
	if st.Indeterminate {
		bar = shimmer(t.width, t.frame)
	} else {
		bar = meter(t.width, st.Percent)
	}

	speed := st.Speed
	if speed != consts.PlaceholderSpeed {
		speed += "/s"
	}
	line := fmt.Sprintf("%-11s [%s] %6s  %s / %s  %s",
		st.Label, bar, st.PercentText, st.Downloaded, st.Total, speed)
	if st.ETA != "" {
		line += "  ETA " + st.ETA
	}

	if !t.live {
		if line == t.lastLine {
			return
		}
		t.lastLine = line
		t.write(line + "\n")
		return
	}

	t.lastLine = line
	t.write(consts.ClearLine + t.paint(phaseColor(st.Phase), line))
}

// ShowResult prints the finished panel.
func (t *Terminal) ShowResult(job models.ActiveJob, st models.RenderState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLineLocked()

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", t.paint(consts.ColorGreen, "✔ Finished: "+orDash(st.Filename)))
	if st.DownloadURL != "" {
		fmt.Fprintf(&b, "  Download: %s\n", t.link(st.DownloadURL))
	}
	if st.StartedAt != "" {
		fmt.Fprintf(&b, "  Started:  %s\n", st.StartedAt)
	}
	if st.ExpiresAt != "" {
		left := parsing.ExpiresIn(st.ExpiresAtTime, t.now())
		if left != "" {
			fmt.Fprintf(&b, "  Expires:  %s (%s)\n", st.ExpiresAt, left)
		} else {
			fmt.Fprintf(&b, "  Expires:  %s\n", st.ExpiresAt)
		}
	}
	t.write(b.String())
}

// ShowCancelled prints the cancelled panel with its two ways forward.
func (t *Terminal) ShowCancelled(job models.ActiveJob) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLineLocked()

	t.write(fmt.Sprintf("%s\n  Retry:   %s get %s\n  New job: %s get <url>\n",
		t.paint(consts.ColorYellow, "■ Job "+job.ID+" was cancelled."),
		t.program, job.Source.String(), t.program))
}

// ShowError prints the error panel.
func (t *Terminal) ShowError(job models.ActiveJob, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLineLocked()

	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	t.write(t.paint(consts.ColorRed, "✖ "+msg) + "\n")
}

// OfferNewJob tells the user how to start over.
func (t *Terminal) OfferNewJob() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLineLocked()

	t.write(fmt.Sprintf("  New job: %s get <url>\n", t.program))
}

// Notify prints a one-line notice.
func (t *Terminal) Notify(level models.NoticeLevel, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLineLocked()

	var prefix, colour string
	switch level {
	case models.NoticeSuccess:
		prefix, colour = "✔", consts.ColorGreen
	case models.NoticeWarn:
		prefix, colour = "!", consts.ColorYellow
	case models.NoticeError:
		prefix, colour = "✖", consts.ColorRed
	default:
		prefix, colour = "•", consts.ColorBlue
	}
	t.write(t.paint(colour, prefix+" "+msg) + "\n")
}

// Reset ends any live line and forgets render state.
func (t *Terminal) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLineLocked()
	t.frame = 0
}

// endLineLocked terminates an in-place progress line.
func (t *Terminal) endLineLocked() {
	if t.live && t.lastLine != "" {
		t.write("\n")
	}
	t.lastLine = ""
}

func (t *Terminal) write(s string) {
	_, _ = io.WriteString(t.out, s)
}

func (t *Terminal) paint(colour, s string) string {
	if !t.color {
		return s
	}
	return colour + s + consts.ColorReset
}

func (t *Terminal) avatar(p models.Preview) string {
	mark := "(" + preview.Initial(p.Meta.UploaderName) + ")"
	if !p.AvatarGenerated {
		mark = "[" + preview.Initial(p.Meta.UploaderName) + "]"
	}
	return t.paint(consts.ColorPurple, mark)
}

func (t *Terminal) link(downloadURL string) string {
	if t.baseURL == "" || strings.Contains(downloadURL, "://") {
		return downloadURL
	}
	if !strings.HasPrefix(downloadURL, "/") {
		downloadURL = "/" + downloadURL
	}
	return t.baseURL + downloadURL
}

// meter is a filled bar for pct in [0,100].
func meter(width int, pct float64) string {
	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("=", filled) + strings.Repeat(" ", width-filled)
}

// shimmer is a short block sweeping across the bar.
func shimmer(width, frame int) string {
	const block = 4
	span := width - block
	if span <= 0 {
		return strings.Repeat("~", width)
	}
	pos := frame % (2 * span)
	if pos > span {
		pos = 2*span - pos
	}
	return strings.Repeat(" ", pos) + strings.Repeat("~", block) + strings.Repeat(" ", width-block-pos)
}

func phaseColor(p models.JobPhase) string {
	switch p {
	case models.PhaseQueued:
		return consts.ColorDim
	case models.PhaseProcessing:
		return consts.ColorPurple
	case models.PhaseFinished:
		return consts.ColorGreen
	}
	return consts.ColorCyan
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
