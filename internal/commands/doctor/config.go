package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/ntfyc/internal/core/config"
)

// ConfigCheck reports on the loaded configuration: where it came from,
// deep validation errors, warnings, and the configured hooks.
type ConfigCheck struct {
	config     *config.Config
	configPath string
}

// NewConfigCheck creates a new configuration check.
func NewConfigCheck(cfg *config.Config, configPath string) *ConfigCheck {
	return &ConfigCheck{
		config:     cfg,
		configPath: configPath,
	}
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

func (c *ConfigCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	if c.config == nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "Config loaded",
			Status: StatusFail,
			Detail: "configuration not loaded",
		})
		return result
	}

	if item, ok := c.sourceItem(); ok {
		result.Items = append(result.Items, item)
	}

	errItems := validationItems(c.config.ValidateDeep(c.configPath))
	warnItems := warningItems(c.config.Warnings())

	if len(errItems) == 0 && len(warnItems) == 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "Config valid",
			Status: StatusPass,
			Detail: fmt.Sprintf("%s, topic %s", c.config.Host, c.config.Topic),
		})
	}
	result.Items = append(result.Items, errItems...)
	result.Items = append(result.Items, warnItems...)

	if n := len(c.config.Hooks); n > 0 && len(errItems) == 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "Hooks",
			Status: StatusPass,
			Detail: fmt.Sprintf("%d configured", n),
		})
	}

	return result
}

// sourceItem describes where settings came from. A missing file is fine:
// defaults apply.
func (c *ConfigCheck) sourceItem() (CheckItem, bool) {
	if c.configPath == "" {
		return CheckItem{}, false
	}

	if _, err := os.Stat(c.configPath); errors.Is(err, os.ErrNotExist) {
		return CheckItem{
			Label:  "Config file",
			Status: StatusPass,
			Detail: "not found, using defaults",
		}, true
	}

	return CheckItem{
		Label:  "Config file",
		Status: StatusPass,
		Detail: c.configPath,
	}, true
}

func validationItems(err error) []CheckItem {
	if err == nil {
		return nil
	}

	var fieldErrs criterio.FieldErrors
	if !errors.As(err, &fieldErrs) {
		return []CheckItem{{Label: "validation", Status: StatusFail, Detail: err.Error()}}
	}

	items := make([]CheckItem, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		label := fe.Field
		if label == "" {
			label = "validation"
		}
		items = append(items, CheckItem{Label: label, Status: StatusFail, Detail: fe.Err.Error()})
	}
	return items
}

func warningItems(warnings []config.ValidationWarning) []CheckItem {
	items := make([]CheckItem, 0, len(warnings))
	for _, w := range warnings {
		label := w.Category
		if w.Item != "" {
			label += " (" + w.Item + ")"
		}
		items = append(items, CheckItem{Label: label, Status: StatusWarn, Detail: w.Message})
	}
	return items
}
