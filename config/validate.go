package config

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// minDebounce is the shortest quiet period that does not warn.
const minDebounce = 100 * time.Millisecond

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
}

func (w ValidationWarning) String() string {
	return fmt.Sprintf("config warning: %s: %s", w.Field, w.Message)
}

// ValidationResults holds the results of configuration validation.
type ValidationResults struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are validation errors.
func (r ValidationResults) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are validation warnings.
func (r ValidationResults) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// ErrorMessage returns a combined error message for all validation errors.
func (r ValidationResults) ErrorMessage() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// WriteWarnings writes all warnings to the given writer.
func (r ValidationResults) WriteWarnings(w io.Writer) {
	for _, warn := range r.Warnings {
		_, _ = fmt.Fprintln(w, warn.String())
	}
}

// Validate checks the configuration for errors and warnings.
// It returns errors for invalid values that would cause runtime issues,
// and warnings for issues that can be safely ignored.
func (c *Config) Validate() ValidationResults {
	var result ValidationResults

	addErr := func(field, format string, args ...any) {
		result.Errors = append(result.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
	addWarn := func(field, format string, args ...any) {
		result.Warnings = append(result.Warnings, ValidationWarning{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	for field, d := range map[string]time.Duration{
		"debounce":      c.Debounce,
		"ready_timeout": c.ReadyTimeout,
		"grace_period":  c.GracePeriod,
	} {
		if d <= 0 {
			addErr(field, "must be positive, got %s", d)
		}
	}
	if c.Debounce > 0 && c.Debounce < minDebounce {
		addWarn("debounce", "%s is shorter than %s and may rebuild on every keystroke", c.Debounce, minDebounce)
	}

	if len(c.Extensions) == 0 {
		addErr("extensions", "at least one extension is required")
	}
	for _, ext := range c.Extensions {
		if ext == "" || strings.ContainsAny(ext, `./\*?[]{},`) {
			addErr("extensions", "invalid extension %q, use a bare name such as \"js\"", ext)
		}
	}

	for _, dir := range []struct{ field, value string }{
		{"client_dir", c.ClientDir},
		{"server_dir", c.ServerDir},
		{"shared_dir", c.SharedDir},
	} {
		if strings.TrimSpace(dir.value) == "" {
			addErr(dir.field, "must not be empty")
		}
	}

	for _, bundle := range []struct {
		name    string
		enabled bool
		cfg     BundleConfig
	}{
		{"node", c.Build.Node, c.Bundles.Node},
		{"browser", c.Build.Browser, c.Bundles.Browser},
	} {
		if !bundle.enabled {
			continue
		}
		field := "bundles." + bundle.name
		if len(strings.Fields(strings.Join(bundle.cfg.Command, " "))) == 0 {
			addErr(field+".command", "required when build.%s is enabled", bundle.name)
		}
		if bundle.cfg.Entry == "" {
			addErr(field+".entry", "required when build.%s is enabled", bundle.name)
		}
		if bundle.cfg.Output == "" {
			addErr(field+".output", "required when build.%s is enabled", bundle.name)
		}
	}
	if len(c.Bundles.Browser.Run) > 0 {
		addWarn("bundles.browser.run", "ignored, only the node bundle is run")
	}

	if !c.Build.Node && !c.Build.Browser {
		addWarn("build", "both targets are disabled, nothing will be built")
	}

	if c.Reloader.Addr == "" {
		addErr("reloader.addr", "must not be empty")
	}

	return result
}
