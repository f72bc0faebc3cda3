package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/legaldb/caseanalyzer/internal/core"
	"github.com/legaldb/caseanalyzer/internal/steps"
)

// Progress prints one line per step transition while an analysis runs.
type Progress struct {
	writer    io.Writer
	useColor  bool
	verbose   bool
	labels    map[string]string
	mu        sync.Mutex
	startTime time.Time
}

// NewProgress creates a progress printer writing to w.
func NewProgress(w io.Writer, useColor, verbose bool) *Progress {
	labels := make(map[string]string)
	for _, d := range steps.Definitions() {
		labels[d.Name] = d.Label
	}
	return &Progress{
		writer:    w,
		useColor:  useColor,
		verbose:   verbose,
		labels:    labels,
		startTime: time.Now(),
	}
}

// Started prints the run header.
func (p *Progress) Started(draftID int64, resume bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	title := fmt.Sprintf("Analyzing draft #%d", draftID)
	if resume {
		title += " (resume)"
	}
	p.printHeader(title)
}

// Event prints one applied stream event. It matches the session's
// OnEvent callback.
func (p *Progress) Event(ev core.StreamEvent, tr steps.Transition) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tr.Heartbeat {
		if p.verbose {
			p.printf("%s\n", p.muted("  … still working"))
		}
		return
	}
	if !tr.Known {
		return
	}
	// Repeated completions carry no news.
	if ev.Status == tr.Previous && !p.verbose {
		return
	}

	label := p.label(ev.Step)
	icon := StatusIcon(ev.Status, p.useColor)
	switch ev.Status {
	case core.StepInProgress:
		p.printf("%s %s\n", icon, label)
	case core.StepCompleted:
		line := fmt.Sprintf("%s %s", icon, label)
		if c, ok := ev.Data["confidence"].(string); ok && c != "" {
			line += " " + p.muted("confidence:") + " " + Confidence(&c, p.useColor)
		}
		p.printf("%s\n", line)
		if ev.Step == steps.JurisdictionDetection {
			p.commonLawNote(ev.Data)
		}
	case core.StepError:
		msg := ev.Error
		if msg == "" {
			msg = "failed"
		}
		p.printf("%s %s: %s\n", icon, label, p.errorText(msg))
	}
}

// Finished prints the outcome footer.
func (p *Progress) Finished(outcome core.SessionOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime).Round(time.Millisecond)
	switch {
	case outcome.Success:
		p.printSection(fmt.Sprintf("Analysis completed in %s", elapsed))
	case outcome.Canceled:
		p.printSection("Analysis cancelled")
	default:
		p.printf("\n%s\n", p.errorText("!!! "+outcome.Error))
	}
}

// commonLawNote flags that the common-law steps only carry findings for
// common-law jurisdictions.
func (p *Progress) commonLawNote(data map[string]any) {
	system, _ := data["legal_system_type"].(string)
	if system == "" {
		return
	}
	j := core.JurisdictionInfo{LegalSystemType: system}
	if j.IsCommonLaw() {
		return
	}
	var labels []string
	for _, d := range steps.Definitions() {
		if d.Phase == core.PhaseCommonLaw {
			labels = append(labels, d.Label)
		}
	}
	p.printf("  %s\n", p.muted(fmt.Sprintf("%s: %s apply to common-law jurisdictions only",
		system, strings.Join(labels, " and "))))
}

func (p *Progress) label(step string) string {
	if l, ok := p.labels[step]; ok {
		return l
	}
	return step
}

func (p *Progress) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.writer, format, args...)
}

func (p *Progress) printHeader(text string) {
	line := strings.Repeat("=", 60)
	if p.useColor {
		p.printf("%s\n%s\n%s\n", headerStyle.Render(line), headerStyle.Render(">>> "+text), headerStyle.Render(line))
		return
	}
	p.printf("%s\n>>> %s\n%s\n", line, text, line)
}

func (p *Progress) printSection(text string) {
	if p.useColor {
		p.printf("\n%s %s\n", sectionStyle.Render("---"), text)
		return
	}
	p.printf("\n--- %s\n", text)
}

func (p *Progress) muted(s string) string {
	if p.useColor {
		return mutedStyle.Render(s)
	}
	return s
}

func (p *Progress) errorText(s string) string {
	if p.useColor {
		return errorStyle.Render(s)
	}
	return s
}
