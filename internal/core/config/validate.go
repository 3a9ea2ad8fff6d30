package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"

	"github.com/hay-kot/ntfyc/internal/core/validate"
	"github.com/hay-kot/ntfyc/pkg/tmpl"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// HookTemplateData defines the fields available to hook command templates.
type HookTemplateData struct {
	ID      string
	Topic   string
	Message string
	Title   string
	Time    time.Time
}

// ValidateDeep performs comprehensive validation of the configuration.
// Unlike Validate, it checks file access, glob patterns and template
// syntax. The returned error is a criterio.FieldErrors.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrors

	errs = append(errs, c.validateFileAccess(configPath)...)
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateSend()...)
	errs = append(errs, c.validateHooks()...)

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func fieldErr(field string, err error) criterio.FieldErrors {
	return criterio.FieldErrors{{Field: field, Err: err}}
}

func (c *Config) validateFileAccess(configPath string) criterio.FieldErrors {
	var errs criterio.FieldErrors

	if configPath != "" {
		info, err := os.Stat(configPath)
		switch {
		case err == nil && info.IsDir():
			errs = append(errs, fieldErr("config_file", fmt.Errorf("%s is a directory, not a file", configPath))...)
		case err != nil && !os.IsNotExist(err):
			errs = append(errs, fieldErr("config_file", fmt.Errorf("cannot access %s: %w", configPath, err))...)
		}
	}

	if c.DataDir != "" {
		info, err := os.Stat(c.DataDir)
		switch {
		case err == nil && !info.IsDir():
			errs = append(errs, fieldErr("data_dir", fmt.Errorf("%s exists but is not a directory", c.DataDir))...)
		case err != nil && !os.IsNotExist(err):
			errs = append(errs, fieldErr("data_dir", fmt.Errorf("cannot access %s: %w", c.DataDir, err))...)
		}
	}

	return errs
}

func (c *Config) validateServer() criterio.FieldErrors {
	var errs criterio.FieldErrors

	if _, err := validate.Host(c.Host); err != nil {
		errs = append(errs, fieldErr("host", err)...)
	}

	if err := validate.Topic(c.Topic); err != nil {
		errs = append(errs, fieldErr("topic", err)...)
	}

	return errs
}

func (c *Config) validateSend() criterio.FieldErrors {
	var errs criterio.FieldErrors

	if c.Send.Timeout < 0 {
		errs = append(errs, fieldErr("send.timeout", fmt.Errorf("cannot be negative"))...)
	}

	if c.TUI.MaxMessages < 0 {
		errs = append(errs, fieldErr("tui.max_messages", fmt.Errorf("cannot be negative"))...)
	}

	return errs
}

func (c *Config) validateHooks() criterio.FieldErrors {
	var errs criterio.FieldErrors

	for i, hook := range c.Hooks {
		if hook.Pattern == "" {
			errs = append(errs, fieldErr(fmt.Sprintf("hooks[%d].pattern", i), fmt.Errorf("pattern cannot be empty"))...)
		} else if !doublestar.ValidatePattern(hook.Pattern) {
			errs = append(errs, fieldErr(fmt.Sprintf("hooks[%d].pattern", i), fmt.Errorf("invalid glob %q", hook.Pattern))...)
		}

		for j, cmd := range hook.Commands {
			if err := tmpl.Check(cmd, HookTemplateData{}); err != nil {
				errs = append(errs, fieldErr(
					fmt.Sprintf("hooks[%d].commands[%d]", i, j),
					fmt.Errorf("template error: %w", err),
				)...)
			}
		}
	}

	return errs
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if u, err := validate.Host(c.Host); err == nil && u.Scheme == "http" && !isLocal(u.Hostname()) {
		warnings = append(warnings, ValidationWarning{
			Category: "Server",
			Item:     "host",
			Message:  fmt.Sprintf("%s uses plain http; messages are sent unencrypted", c.Host),
		})
	}

	if !c.Send.StrictStatus {
		warnings = append(warnings, ValidationWarning{
			Category: "Send",
			Item:     "strict_status",
			Message:  "non-2xx responses are treated as successful sends",
		})
	}

	if c.Send.Timeout == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Send",
			Item:     "timeout",
			Message:  "no send timeout; a stalled server blocks publishing indefinitely",
		})
	}

	for i, hook := range c.Hooks {
		if len(hook.Commands) == 0 {
			warnings = append(warnings, ValidationWarning{
				Category: "Hooks",
				Item:     fmt.Sprintf("hook %d", i),
				Message:  "hook has no commands defined",
			})
		}
	}

	return warnings
}

func isLocal(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsPrivate())
}
