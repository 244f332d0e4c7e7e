package ui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"flakecast/pkg/errors"
)

// UI is the terminal surface of the CLI commands.
type UI struct {
	Verbose bool
	Quiet   bool
	Out     io.Writer
	spinner *Spinner
}

// NewUI creates a new UI instance writing to stdout
func NewUI(verbose, quiet bool) *UI {
	return &UI{
		Verbose: verbose,
		Quiet:   quiet,
		Out:     os.Stdout,
	}
}

// Writer is where rendered output goes; it discards everything in quiet mode.
func (u *UI) Writer() io.Writer {
	if u.Quiet {
		return io.Discard
	}
	return u.Out
}

// Printf prints formatted output if not in quiet mode
func (u *UI) Printf(format string, args ...interface{}) {
	fmt.Fprintf(u.Writer(), format, args...)
}

// Println prints a line if not in quiet mode
func (u *UI) Println(args ...interface{}) {
	fmt.Fprintln(u.Writer(), args...)
}

// VerbosePrintf prints formatted output only in verbose mode
func (u *UI) VerbosePrintf(format string, args ...interface{}) {
	if u.Verbose {
		u.Printf(format, args...)
	}
}

func (u *UI) Info(message string)    { ShowInfo(u.Writer(), message) }
func (u *UI) Success(message string) { ShowSuccess(u.Writer(), message) }
func (u *UI) Warning(message string) { ShowWarning(u.Writer(), message) }

// Error prints err even in quiet mode.
func (u *UI) Error(err error) {
	ShowError(u.Out, err)
}

// StartProgress starts a progress indicator with a message
func (u *UI) StartProgress(message string) {
	if u.Quiet {
		return
	}
	u.spinner = NewSpinner(u.Out, message, supportsColor)
	u.spinner.Start()
}

// StopProgress stops the progress indicator
func (u *UI) StopProgress(success bool, message string) {
	if u.spinner != nil {
		u.spinner.Stop(success, message)
		u.spinner = nil
	}
}

// Prompter asks the user for the values a command was not given.
type Prompter interface {
	Select(message string, options []string) (string, error)
	Input(message, defaultValue string, validate func(string) error) (string, error)
	Password(message string) (string, error)
}

// SurveyPrompter prompts on the terminal.
type SurveyPrompter struct{}

func (SurveyPrompter) Select(message string, options []string) (string, error) {
	if len(options) == 0 {
		return "", errors.EmptyResultError("Nothing to choose from")
	}
	var result string
	prompt := &survey.Select{
		Message:  message,
		Options:  options,
		PageSize: 10,
		Filter: func(filter string, value string, index int) bool {
			return strings.Contains(strings.ToLower(value), strings.ToLower(filter))
		},
	}
	err := survey.AskOne(prompt, &result)
	return result, interrupted(err)
}

func (SurveyPrompter) Input(message, defaultValue string, validate func(string) error) (string, error) {
	var result string
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}
	var opts []survey.AskOpt
	if validate != nil {
		opts = append(opts, survey.WithValidator(func(ans interface{}) error {
			s, _ := ans.(string)
			return validate(s)
		}))
	}
	err := survey.AskOne(prompt, &result, opts...)
	return result, interrupted(err)
}

func (SurveyPrompter) Password(message string) (string, error) {
	var result string
	prompt := &survey.Password{
		Message: message,
		Help:    "Stored in the OS keyring, or an encrypted file when no keyring is available",
	}
	err := survey.AskOne(prompt, &result, survey.WithValidator(survey.Required))
	return result, interrupted(err)
}

func interrupted(err error) error {
	if err == terminal.InterruptErr {
		return errors.New(errors.ErrCodeInvalidInput, "Cancelled")
	}
	return err
}

// IntValidator builds an Input validator for integers within [min, max].
func IntValidator(min, max int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("enter a whole number")
		}
		if n < min || n > max {
			return fmt.Errorf("enter a number between %d and %d", min, max)
		}
		return nil
	}
}
