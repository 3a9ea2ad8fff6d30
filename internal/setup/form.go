// Package setup builds the interactive form used to create a config file.
package setup

import (
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/hay-kot/ntfyc/internal/core/config"
	"github.com/hay-kot/ntfyc/internal/core/validate"
	"github.com/hay-kot/ntfyc/internal/styles"
)

// Form collects the commonly edited config fields.
type Form struct {
	form *huh.Form
	cfg  *config.Config

	host        string
	topic       string
	strict      bool
	markdown    bool
	maxMessages string
}

// NewForm creates a form prefilled from cfg. Submitted values are written
// back to cfg by Apply.
func NewForm(cfg *config.Config) *Form {
	f := &Form{
		cfg:         cfg,
		host:        cfg.Host,
		topic:       cfg.Topic,
		strict:      cfg.Send.StrictStatus,
		markdown:    cfg.TUI.Markdown,
		maxMessages: strconv.Itoa(cfg.TUI.MaxMessages),
	}

	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server").
				Description("Base URL of the ntfy server").
				Value(&f.host).
				Validate(func(s string) error {
					_, err := validate.Host(s)
					return err
				}),
			huh.NewInput().
				Title("Default topic").
				Value(&f.topic).
				Validate(func(s string) error {
					return validate.Topic(strings.TrimSpace(s))
				}),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Treat non-2xx responses as failed sends?").
				Value(&f.strict),
			huh.NewConfirm().
				Title("Render messages as markdown in chat?").
				Value(&f.markdown),
			huh.NewInput().
				Title("Messages kept in chat").
				Description("0 keeps every message").
				Value(&f.maxMessages).
				Validate(validateCount),
		),
	).WithTheme(styles.FormTheme())

	return f
}

// Form returns the underlying huh.Form.
func (f *Form) Form() *huh.Form {
	return f.form
}

// Run shows the form on the terminal and applies the result.
func (f *Form) Run() error {
	if err := f.form.Run(); err != nil {
		return err
	}
	return f.Apply()
}

// Apply copies the collected values into the config.
func (f *Form) Apply() error {
	if _, err := validate.Host(f.host); err != nil {
		return err
	}
	topic := strings.TrimSpace(f.topic)
	if err := validate.Topic(topic); err != nil {
		return err
	}
	if err := validateCount(f.maxMessages); err != nil {
		return err
	}

	n, _ := strconv.Atoi(strings.TrimSpace(f.maxMessages))

	f.cfg.Host = validate.NormalizeHost(f.host)
	f.cfg.Topic = topic
	f.cfg.Send.StrictStatus = f.strict
	f.cfg.TUI.Markdown = f.markdown
	f.cfg.TUI.MaxMessages = n
	return nil
}

func validateCount(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return errors.New("must be a whole number")
	}
	if n < 0 {
		return errors.New("cannot be negative")
	}
	return nil
}
