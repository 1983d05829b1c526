// Package prompt asks the operator questions on a terminal, or on any
// reader in tests.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/mmr-tortoise/ctdeploy/internal/model"
)

// maxAttempts is how often Confirm re-asks after an unrecognized answer.
const maxAttempts = 3

// Prompter reads answers line by line from in and writes questions to out.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// New creates a Prompter.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Confirm asks a yes/no question. An empty answer picks def.
func (p *Prompter) Confirm(question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		answer, err := p.ask(fmt.Sprintf("%s %s ", question, hint))
		if err != nil {
			return false, err
		}

		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, color.YellowString("Please answer y or n."))
	}

	return false, model.NewCLIError(model.ExitInvalidInput,
		fmt.Sprintf("no valid answer to %q after %d attempts", question, maxAttempts))
}

// Ask asks a free-text question. An empty answer picks def.
func (p *Prompter) Ask(question, def string) (string, error) {
	label := question + ": "
	if def != "" {
		label = fmt.Sprintf("%s [%s]: ", question, def)
	}

	answer, err := p.ask(label)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Required asks a question whose answer must not be empty.
func (p *Prompter) Required(question string) (string, error) {
	answer, err := p.ask(question + ": ")
	if err != nil {
		return "", err
	}
	if answer == "" {
		return "", model.NewCLIError(model.ExitInvalidInput,
			fmt.Sprintf("%s: an answer is required", question))
	}
	return answer, nil
}

// ask prints label and reads one trimmed line. Input that ends before a
// newline still counts as an answer; input that ends with nothing typed
// means the operator closed the prompt.
func (p *Prompter) ask(label string) (string, error) {
	fmt.Fprint(p.out, color.CyanString("? ")+label)

	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(p.out)
			return "", model.NewCLIError(model.ExitUserCancelled, "input closed")
		}
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}
