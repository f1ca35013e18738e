// ABOUTME: Line-oriented terminal input for the admin REPL
// ABOUTME: Shared scanner for commands, confirmations, form fields and hidden passwords

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/2389/brewdesk/internal/catalog"
)

// prompter reads operator input. Every read goes through one scanner so
// nested prompts (confirmations inside commands) see the same stream.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
	fd  int // terminal for hidden input, or -1
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewScanner(in), out: out, fd: -1}
	p.in.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), 1024*1024)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
	}
	return p
}

// line prints prompt and returns the trimmed reply. ok is false at EOF.
func (p *prompter) line(prompt string) (string, bool) {
	fmt.Fprint(p.out, prompt)
	if !p.in.Scan() {
		fmt.Fprintln(p.out)
		return "", false
	}
	return strings.TrimSpace(p.in.Text()), true
}

// confirm asks a yes/no question. Anything but y/yes declines.
func (p *prompter) confirm(question string) bool {
	reply, ok := p.line(color.YellowString(question) + " [y/N] ")
	if !ok {
		return false
	}
	switch strings.ToLower(reply) {
	case "y", "yes":
		return true
	}
	return false
}

// password reads without echo on a terminal and falls back to a plain line.
func (p *prompter) password(prompt string) (string, bool) {
	if p.fd < 0 {
		return p.line(prompt)
	}
	fmt.Fprint(p.out, prompt)
	pw, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", false
	}
	return string(pw), true
}

// clearValue is typed at a field prompt to empty the field.
const clearValue = "-"

// fillForm walks every field of form. Enter keeps the current value and
// clearValue empties it. It returns false if input ended.
func (p *prompter) fillForm(form *catalog.Form) bool {
	gray := color.New(color.FgHiBlack)
	for _, fv := range form.Fields() {
		label := fv.Field.Label
		if fv.Field.Required {
			label += "*"
		}
		hint := ""
		if len(fv.Field.Options) > 0 {
			hint = gray.Sprintf(" (%s)", strings.Join(fv.Field.Options, " | "))
		}
		current := ""
		if fv.Value != "" {
			current = gray.Sprintf(" [%s]", fv.Value)
		}

		reply, ok := p.line(fmt.Sprintf("  %s%s%s: ", label, hint, current))
		if !ok {
			return false
		}
		switch reply {
		case "":
			continue
		case clearValue:
			reply = ""
		}
		// Names come from the form's own schema.
		_ = form.Set(fv.Field.Name, reply)
	}
	return true
}
