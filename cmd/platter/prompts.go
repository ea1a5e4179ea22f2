package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"platter/internal/services"
)

// prompter collects interactive answers. When the input is not a terminal
// every prompt resolves to its default, and prompts without a default fail,
// so scripted runs must supply flags instead.
type prompter struct {
	in          *bufio.Scanner
	out         io.Writer
	interactive bool
}

func newPrompter() *prompter {
	return &prompter{
		in:          bufio.NewScanner(os.Stdin),
		out:         os.Stdout,
		interactive: isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()),
	}
}

func newPrompterFor(in io.Reader, out io.Writer, interactive bool) *prompter {
	return &prompter{in: bufio.NewScanner(in), out: out, interactive: interactive}
}

func (p *prompter) read(label, fallback string) (string, error) {
	if !p.interactive {
		if fallback == "" {
			return "", services.Wrap(services.ErrValidation, "prompt", "", label+" required when not running interactively", nil)
		}
		return fallback, nil
	}
	if fallback != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, fallback)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return fallback, nil
	}
	answer := strings.TrimSpace(p.in.Text())
	if answer == "" {
		return fallback, nil
	}
	return answer, nil
}

func (p *prompter) String(label, fallback string) (string, error) {
	answer, err := p.read(label, fallback)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return "", services.Wrap(services.ErrValidation, "prompt", "", label+" must not be empty", nil)
	}
	return answer, nil
}

func (p *prompter) Int(label string, fallback int) (int, error) {
	answer, err := p.read(label, strconv.Itoa(fallback))
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(answer)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "prompt", "", label+" must be a number, got "+answer, nil)
	}
	return value, nil
}

func (p *prompter) Choice(label string, options []string, fallback string) (string, error) {
	answer, err := p.read(fmt.Sprintf("%s (%s)", label, strings.Join(options, "/")), fallback)
	if err != nil {
		return "", err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	for _, option := range options {
		if answer == option {
			return answer, nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "prompt", "", fmt.Sprintf("%s must be one of %s, got %q", label, strings.Join(options, ", "), answer), nil)
}

func (p *prompter) Confirm(label string, fallback bool) (bool, error) {
	def := "y"
	if !fallback {
		def = "n"
	}
	answer, err := p.read(label+" (y/n)", def)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return false, services.Wrap(services.ErrValidation, "prompt", "", "answer y or n", nil)
	}
}
