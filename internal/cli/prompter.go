package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/conciliador/internal/engine"
	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/workflow"
)

// ErrInputClosed is returned when input ends before the operator answers.
var ErrInputClosed = errors.New("input terminated")

const dateLayout = "02/01/2006"

var _ engine.Prompter = (*Prompter)(nil)

// Prompter resolves divergences on a plain terminal, one line of input per
// answer.
type Prompter struct {
	startTime   time.Time
	writer      io.Writer
	reader      *LineReader
	progressBar *progressbar.ProgressBar
	shown       map[int]bool
	mu          sync.Mutex
}

// NewCLIPrompter creates a new CLI prompter with the given reader and writer.
func NewCLIPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Prompter{
		reader:    NewLineReader(reader),
		writer:    writer,
		shown:     make(map[int]bool),
		startTime: time.Now(),
	}
}

// PromptDivergence shows one divergent invoice and reads the operator's
// answer. Unparseable input is rejected on the spot and asked again.
func (p *Prompter) PromptDivergence(ctx context.Context, prompt engine.DivergencePrompt) (engine.Answer, error) {
	if err := ctx.Err(); err != nil {
		return engine.Answer{}, err
	}

	p.mu.Lock()
	p.updateProgress(prompt)
	p.mu.Unlock()

	if _, err := fmt.Fprintln(p.writer, RenderBox(
		fmt.Sprintf("Divergence %d of %d", prompt.Position+1, prompt.Total),
		FormatDivergence(prompt))); err != nil {
		return engine.Answer{}, fmt.Errorf("failed to write divergence box: %w", err)
	}

	if prompt.Problem != "" {
		if _, err := fmt.Fprintln(p.writer, FormatError(prompt.Problem)); err != nil {
			return engine.Answer{}, fmt.Errorf("failed to write problem: %w", err)
		}
	}

	if _, err := fmt.Fprintln(p.writer, Options(prompt.Invoice)); err != nil {
		return engine.Answer{}, fmt.Errorf("failed to write options: %w", err)
	}

	for {
		if _, err := fmt.Fprint(p.writer, FormatPrompt("Decision")); err != nil {
			return engine.Answer{}, fmt.Errorf("failed to write prompt: %w", err)
		}

		line, err := p.reader.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, ErrInputCancelled) {
				return engine.Answer{}, ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return engine.Answer{}, ErrInputClosed
			}
			return engine.Answer{}, err
		}

		answer, err := ParseAnswer(line)
		if err == nil {
			return answer, nil
		}
		if _, werr := fmt.Fprintln(p.writer, FormatError(err.Error())); werr != nil {
			slog.Warn("Failed to write error message", "error", werr)
		}
	}
}

// ParseAnswer reads one line of operator input: a decision code, "=CODE",
// "b" to go back or "q" to stop.
func ParseAnswer(line string) (engine.Answer, error) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "b", "back":
		return engine.Answer{Action: engine.ActionBack}, nil
	case "q", "quit", "stop":
		return engine.Answer{Action: engine.ActionStop}, nil
	case "":
		return engine.Answer{}, errors.New("enter a decision, b to go back or q to stop")
	}

	d, err := workflow.ParseDecision(line)
	if err != nil {
		return engine.Answer{}, err
	}
	return engine.Answer{Action: engine.ActionDecide, Decision: d}, nil
}

// ShowCompletion finishes the progress bar and prints the session summary.
func (p *Prompter) ShowCompletion(stats engine.CompletionStats) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.progressBar != nil {
		if err := p.progressBar.Finish(); err != nil {
			slog.Warn("Failed to finish progress bar", "error", err)
		}
		p.progressBar = nil
	}

	title := "Resolution Complete"
	if stats.Stopped {
		title = "Resolution Stopped"
	}

	summary := fmt.Sprintf("%s Statistics:\n", ChartIcon) +
		fmt.Sprintf("  • Divergences: %d\n", stats.Total) +
		fmt.Sprintf("  • Resolved: %d\n", stats.Resolved) +
		fmt.Sprintf("  • Ignored: %d\n", stats.Dropped) +
		fmt.Sprintf("  • Pending: %d\n", stats.Pending) +
		fmt.Sprintf("  • Time taken: %s", time.Since(p.startTime).Round(time.Second))
	if stats.Pending > 0 {
		summary += "\n\n" + WarningStyle.Render("Pending divergences block the close. Resume with: conciliador resolve")
	}

	if _, err := fmt.Fprintln(p.writer, RenderBox(title, summary)); err != nil {
		slog.Warn("Failed to write completion box", "error", err)
	}
}

// updateProgress advances the bar the first time each position is shown, so
// going back does not count twice.
func (p *Prompter) updateProgress(prompt engine.DivergencePrompt) {
	if p.progressBar == nil {
		p.progressBar = progressbar.NewOptions(prompt.Total,
			progressbar.OptionSetWriter(p.writer),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan][bold]Resolving divergences...[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				if _, err := fmt.Fprintln(p.writer); err != nil {
					slog.Warn("Failed to write newline after progress bar", "error", err)
				}
			}),
		)
	}
	if p.shown[prompt.Position] {
		return
	}
	p.shown[prompt.Position] = true
	if err := p.progressBar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// FormatDivergence renders both sides of a divergent invoice.
func FormatDivergence(prompt engine.DivergencePrompt) string {
	inv := prompt.Invoice

	var b strings.Builder
	fmt.Fprintf(&b, "Invoice %s  %s  %s\n", BoldStyle.Render(inv.Key), inv.Type, Money(inv.Amount))
	if inv.Cancelled {
		b.WriteString(WarningStyle.Render("Cancelled") + "\n")
	}
	if inv.Buyer != "" {
		fmt.Fprintf(&b, "Buyer: %s\n", inv.Buyer)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "%-10s %-12s %-8s %s\n", "", "Date", "Seller", "Method")
	if inv.HasMovement {
		fmt.Fprintf(&b, "%-10s %-12s %-8s %s\n", "Movement", formatDate(inv.PaymentDate), sellerOrDash(inv.MovementSeller), inv.PaymentMethod)
	} else {
		fmt.Fprintf(&b, "%-10s %s\n", "Movement", SubtleStyle.Render("not in the movement sheet"))
	}
	if inv.HasXML {
		fmt.Fprintf(&b, "%-10s %-12s %-8s\n", "XML", formatDate(inv.EmissionDate), sellerOrDash(inv.XMLSeller))
	} else {
		fmt.Fprintf(&b, "%-10s %s\n", "XML", SubtleStyle.Render("no fiscal document"))
	}
	if !inv.CorrectedSeller.IsZero() {
		fmt.Fprintf(&b, "%-10s %-12s %-8s\n", "Corrected", "", inv.CorrectedSeller)
	}
	if inv.OriginalKey != "" {
		fmt.Fprintf(&b, "Returns invoice %s\n", inv.OriginalKey)
	}

	b.WriteString("\n")
	b.WriteString(SeverityStyle(inv.Severity).Render(inv.DivergenceReason))
	if len(inv.DivergenceKinds) > 1 {
		kinds := make([]string, len(inv.DivergenceKinds))
		for i, k := range inv.DivergenceKinds {
			kinds[i] = string(k)
		}
		b.WriteString("\n" + SubtleStyle.Render("Also: "+strings.Join(kinds[1:], ", ")))
	}
	if prompt.Previous != nil {
		b.WriteString("\n" + InfoStyle.Render(fmt.Sprintf("Previously: %s (%s)", prompt.Previous, prompt.Previous.Describe())))
	}
	return b.String()
}

// Options lists the decisions that can apply to the invoice.
func Options(inv model.ReconciledInvoice) string {
	var b strings.Builder
	b.WriteString(FormatInfo("Options:") + "\n")
	if !inv.MovementSeller.IsZero() {
		fmt.Fprintf(&b, "  [1] Use movement seller %s\n", inv.MovementSeller)
	}
	if !inv.XMLSeller.IsZero() {
		fmt.Fprintf(&b, "  [2] Use XML seller %s\n", inv.XMLSeller)
	}
	if !inv.CorrectedSeller.IsZero() {
		fmt.Fprintf(&b, "  [3] Use corrected seller %s\n", inv.CorrectedSeller)
	}
	if inv.HasMovement && inv.HasXML {
		fmt.Fprintf(&b, "  [4] Use movement date %s\n", formatDate(inv.PaymentDate))
		fmt.Fprintf(&b, "  [5] Use XML date %s\n", formatDate(inv.EmissionDate))
		if inv.HasKind(model.KindSellerMismatch) {
			b.WriteString("  [4=CODE] [5=CODE] Pick a date and a seller\n")
		}
	}
	b.WriteString("  [=CODE] Assign a seller\n")
	b.WriteString("  [i] Ignore this invoice\n")
	b.WriteString(SubtleStyle.Render("  [b] Back  [q] Stop and save"))
	return b.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

func sellerOrDash(s model.SellerCode) string {
	if s.IsZero() {
		return "-"
	}
	return string(s)
}
