// Package viewer asks a human which image of a similar pair to remove.
package viewer

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"imagededup/logging"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"golang.org/x/term"
)

// ChoicePrompt is shown after each pair
const ChoicePrompt = "Options: '1' to delete original, '2' to delete duplicate, 'n' to keep both. Choice: "

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Width(44)
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// lineReader reads one answer after showing a prompt
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// Prompt is a DecisionProvider backed by a terminal or any line source
type Prompt struct {
	fs          afero.Fs
	out         io.Writer
	reader      lineReader
	viewerCmd   []string
	onInterrupt func()
}

// Options configures a Prompt
type Options struct {
	// ViewerCommand is an external program opened with both image paths,
	// e.g. "feh -." ; empty shows only the text panel
	ViewerCommand string
	// OnInterrupt is called when the user presses Ctrl-C at the prompt
	OnInterrupt func()
}

// NewTerminalPrompt reads answers from stdin, with line editing when stdin
// is a terminal and plain line reads otherwise
func NewTerminalPrompt(fs afero.Fs, options Options) (*Prompt, error) {
	var reader lineReader
	if term.IsTerminal(int(os.Stdin.Fd())) {
		rl, err := readline.NewEx(&readline.Config{
			InterruptPrompt: "^C",
			EOFPrompt:       "n",
		})
		if err != nil {
			return nil, fmt.Errorf("cannot open terminal prompt: %w", err)
		}
		reader = &readlineReader{rl: rl}
	} else {
		reader = newScannerReader(os.Stdin, os.Stdout)
	}
	return newPrompt(fs, os.Stdout, reader, options), nil
}

// NewPrompt reads answers line by line from in and writes panels to out
func NewPrompt(fs afero.Fs, in io.Reader, out io.Writer, options Options) *Prompt {
	return newPrompt(fs, out, newScannerReader(in, out), options)
}

func newPrompt(fs afero.Fs, out io.Writer, reader lineReader, options Options) *Prompt {
	return &Prompt{
		fs:          fs,
		out:         out,
		reader:      reader,
		viewerCmd:   strings.Fields(options.ViewerCommand),
		onInterrupt: options.OnInterrupt,
	}
}

// Ask shows the pair, optionally opens the external viewer, and returns the
// raw answer. The viewer is closed before Ask returns.
func (p *Prompt) Ask(original, duplicate string) (string, error) {
	fmt.Fprintln(p.out, p.Render(original, duplicate))

	stop := p.openViewer(original, duplicate)
	defer stop()

	answer, err := p.reader.ReadLine(ChoicePrompt)
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) && p.onInterrupt != nil {
			p.onInterrupt()
		}
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// Render draws the original and duplicate side by side
func (p *Prompt) Render(original, duplicate string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(p.describe("Original Image", original)),
		panelStyle.Render(p.describe("Duplicate Image", duplicate)),
	)
}

func (p *Prompt) describe(title, path string) string {
	lines := []string{titleStyle.Render(title), path}

	info, err := p.fs.Stat(path)
	if err != nil {
		lines = append(lines, dimStyle.Render("unavailable: "+err.Error()))
		return strings.Join(lines, "\n")
	}
	details := humanize.Bytes(uint64(info.Size()))
	if w, h, ok := p.dimensions(path); ok {
		details = fmt.Sprintf("%s, %dx%d", details, w, h)
	}
	lines = append(lines, dimStyle.Render(details))
	return strings.Join(lines, "\n")
}

func (p *Prompt) dimensions(path string) (int, int, bool) {
	f, err := p.fs.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// openViewer starts the external viewer and returns a func that closes it
func (p *Prompt) openViewer(original, duplicate string) func() {
	if len(p.viewerCmd) == 0 {
		return func() {}
	}

	args := append(append([]string{}, p.viewerCmd[1:]...), original, duplicate)
	cmd := exec.Command(p.viewerCmd[0], args...)
	if err := cmd.Start(); err != nil {
		logging.LogWarning("cannot start viewer %s: %v", p.viewerCmd[0], err)
		return func() {}
	}
	return func() {
		cmd.Process.Kill()
		cmd.Wait()
	}
}

// Close releases the terminal
func (p *Prompt) Close() error {
	return p.reader.Close()
}

type readlineReader struct {
	rl *readline.Instance
}

func (r *readlineReader) ReadLine(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	return r.rl.Readline()
}

func (r *readlineReader) Close() error {
	return r.rl.Close()
}

type scannerReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newScannerReader(in io.Reader, out io.Writer) *scannerReader {
	return &scannerReader{scanner: bufio.NewScanner(in), out: out}
}

func (r *scannerReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *scannerReader) Close() error {
	return nil
}
