package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/stone-age-io/sysinfo/internal/inventory"
	"go.uber.org/zap"
)

// DefaultReportFile is offered when the user does not name a file
const DefaultReportFile = "system_info.json"

// Transmitter sends a report to the assistant endpoint
type Transmitter interface {
	Transmit(ctx context.Context, apiKey, prompt string, report *inventory.Report) (string, error)
}

// MenuOptions carries configured defaults for the menu prompts
type MenuOptions struct {
	DefaultPrompt string
	// APIKey is used when the user enters no key
	APIKey string
}

// Menu is the interactive action loop run after a successful collection
type Menu struct {
	in          *bufio.Scanner
	out         io.Writer
	report      *inventory.Report
	transmitter Transmitter
	opts        MenuOptions
	logger      *zap.Logger

	ok   *color.Color
	fail *color.Color
}

// NewMenu creates a menu over a collected report
func NewMenu(in io.Reader, out io.Writer, report *inventory.Report, transmitter Transmitter, opts MenuOptions, logger *zap.Logger) *Menu {
	return &Menu{
		in:          bufio.NewScanner(in),
		out:         out,
		report:      report,
		transmitter: transmitter,
		opts:        opts,
		logger:      logger,
		ok:          color.New(color.FgGreen),
		fail:        color.New(color.FgRed),
	}
}

// Run shows the menu until the user exits or input ends.
// Action failures are printed and the loop continues.
func (m *Menu) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintln(m.out)
		fmt.Fprintln(m.out, "What would you like to do?")
		fmt.Fprintln(m.out, "1. Save to JSON file")
		fmt.Fprintln(m.out, "2. Send to assistant (requires API key)")
		fmt.Fprintln(m.out, "3. Show summary")
		fmt.Fprintln(m.out, "4. Exit")

		choice, ok := m.ask("\nChoice (1-4): ")
		if !ok {
			return nil
		}

		switch choice {
		case "1":
			m.save()
		case "2":
			m.transmit(ctx)
		case "3":
			m.summary()
		case "4":
			fmt.Fprintln(m.out, "Exiting...")
			return nil
		default:
			m.fail.Fprintln(m.out, "ERROR Invalid option!")
		}
	}
}

// ask prints a prompt and reads one trimmed line; ok is false at end of input
func (m *Menu) ask(prompt string) (string, bool) {
	fmt.Fprint(m.out, prompt)
	if !m.in.Scan() {
		fmt.Fprintln(m.out)
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

func (m *Menu) save() {
	filename, ok := m.ask(fmt.Sprintf("File name (enter for '%s'): ", DefaultReportFile))
	if !ok {
		return
	}
	if filename == "" {
		filename = DefaultReportFile
	}

	if err := inventory.Persist(m.report, filename); err != nil {
		m.logger.Warn("Failed to save report", zap.String("path", filename), zap.Error(err))
		m.fail.Fprintf(m.out, "ERROR saving: %v\n", err)
		return
	}
	m.ok.Fprintf(m.out, "OK Report saved to %s\n", filename)
}

func (m *Menu) transmit(ctx context.Context) {
	keyPrompt := "API key: "
	if m.opts.APIKey != "" {
		keyPrompt = "API key (enter to use the configured key): "
	}
	apiKey, ok := m.ask(keyPrompt)
	if !ok {
		return
	}
	if apiKey == "" {
		apiKey = m.opts.APIKey
	}
	if apiKey == "" {
		return
	}

	prompt, ok := m.ask("Question for the assistant (enter for default analysis): ")
	if !ok {
		return
	}
	if prompt == "" {
		prompt = m.opts.DefaultPrompt
	}

	text, err := m.transmitter.Transmit(ctx, apiKey, prompt, m.report)
	if err != nil {
		m.logger.Warn("Transmit failed", zap.Error(err))
		m.fail.Fprintf(m.out, "ERROR communicating with assistant: %v\n", err)
		return
	}

	rule := strings.Repeat("=", 50)
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, rule)
	fmt.Fprintln(m.out, "ASSISTANT RESPONSE:")
	fmt.Fprintln(m.out, rule)
	fmt.Fprintln(m.out, text)
}

func (m *Menu) summary() {
	s, err := inventory.Summarize(m.report)
	if err != nil {
		m.fail.Fprintf(m.out, "ERROR showing summary: %v\n", err)
		return
	}
	WriteSummary(m.out, s)
}
