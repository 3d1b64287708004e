package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"
)

// prompter asks the user for input.
type prompter interface {
	Line(prompt string) (string, error)
	Secret(prompt string) (string, error)
}

// stdPrompter reads from stdin, hiding secrets when stdin is a terminal.
type stdPrompter struct {
	in     *bufio.Reader
	file   *os.File
	out    io.Writer
	noEcho bool
}

func (c *CLI) stdPrompter() *stdPrompter {
	return &stdPrompter{in: c.in, file: c.inFile, out: c.errOut, noEcho: !c.passwordStdin}
}

func (p *stdPrompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	s, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(s), nil
}

func (p *stdPrompter) Secret(prompt string) (string, error) {
	if p.noEcho && p.file != nil && term.IsTerminal(int(p.file.Fd())) {
		fmt.Fprint(p.out, prompt)
		b, err := term.ReadPassword(int(p.file.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	return p.Line(prompt)
}

// linerPrompter reads from the interactive shell's line editor.
type linerPrompter struct {
	line *liner.State
}

func (p *linerPrompter) Line(prompt string) (string, error) {
	s, err := p.line.Prompt(prompt)
	return strings.TrimSpace(s), err
}

func (p *linerPrompter) Secret(prompt string) (string, error) {
	return p.line.PasswordPrompt(prompt)
}
