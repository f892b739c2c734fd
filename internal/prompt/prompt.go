// Package prompt provides user interaction primitives using charmbracelet/huh.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Sentinel errors for prompts.
var (
	ErrCanceled       = errors.New("canceled by user")
	ErrNotInteractive = errors.New("stdin is not a terminal")
)

// Prompter abstracts user interaction for testability.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/prompter.go . Prompter
type Prompter interface {
	// Print outputs text to the user.
	Print(message string)

	// Confirm prompts for yes/no confirmation.
	Confirm(title, description string) (bool, error)

	// Input prompts for a single line of visible text.
	Input(title, placeholder string) (string, error)

	// Secret prompts for secret input (no echo).
	Secret(title string) (string, error)
}

// HuhPrompter implements Prompter using charmbracelet/huh for interactive forms.
type HuhPrompter struct {
	out io.Writer
}

// New creates a HuhPrompter printing to os.Stdout.
func New() *HuhPrompter {
	return &HuhPrompter{out: os.Stdout}
}

// Interactive reports whether stdin is a terminal that can host a form.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Print outputs text to the user.
func (p *HuhPrompter) Print(message string) {
	fmt.Fprintln(p.out, message) //nolint:errcheck
}

// Confirm prompts for yes/no confirmation.
func (p *HuhPrompter) Confirm(title, description string) (bool, error) {
	if !Interactive() {
		return false, ErrNotInteractive
	}

	var confirmed bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed).
		Run()
	if err != nil {
		return false, wrap("confirm prompt", err)
	}
	return confirmed, nil
}

// Input prompts for a line of text. Empty input is rejected by the form.
func (p *HuhPrompter) Input(title, placeholder string) (string, error) {
	if !Interactive() {
		return "", ErrNotInteractive
	}

	var value string
	err := huh.NewInput().
		Title(title).
		Placeholder(placeholder).
		Validate(notBlank).
		Value(&value).
		Run()
	if err != nil {
		return "", wrap("input prompt", err)
	}
	return strings.TrimSpace(value), nil
}

// Secret prompts for secret input with masked display.
func (p *HuhPrompter) Secret(title string) (string, error) {
	if !Interactive() {
		return "", ErrNotInteractive
	}

	var value string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Validate(notBlank).
		Value(&value).
		Run()
	if err != nil {
		return "", wrap("secret prompt", err)
	}
	return strings.TrimSpace(value), nil
}

func notBlank(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("value is required")
	}
	return nil
}

func wrap(op string, err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrCanceled
	}
	return fmt.Errorf("%s: %w", op, err)
}
