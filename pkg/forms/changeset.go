// Package forms provides field validation and input masking for LiveView forms.
package forms

import "regexp"

// Changeset collects validation results for a flat set of string fields.
// It is inspired by Ecto changesets but keeps a single message per field:
// the first rule that fails for a field wins and later rules skip it.
type Changeset struct {
	// Values are the field values under validation.
	Values map[string]string

	// Errors holds one message per invalid field.
	Errors map[string]string

	// Valid is false once any rule has failed.
	Valid bool
}

// NewChangeset creates a changeset over a copy of values.
func NewChangeset(values map[string]string) *Changeset {
	valuesCopy := make(map[string]string, len(values))
	for k, v := range values {
		valuesCopy[k] = v
	}

	return &Changeset{
		Values: valuesCopy,
		Errors: make(map[string]string),
		Valid:  true,
	}
}

// Get returns a field value, or "" when the field is unknown.
func (cs *Changeset) Get(field string) string {
	return cs.Values[field]
}

// ValidateRequired reports message for every field that is blank after trimming.
func (cs *Changeset) ValidateRequired(message string, fields ...string) *Changeset {
	for _, field := range fields {
		if cs.HasError(field) {
			continue
		}
		if isBlank(cs.Get(field)) {
			cs.AddError(field, message)
		}
	}
	return cs
}

// ValidateFormat validates a field against pattern.
// Blank fields and fields that already carry an error are skipped, so a
// required rule declared first always takes precedence.
func (cs *Changeset) ValidateFormat(field string, pattern *regexp.Regexp, opts ...FormatOption) *Changeset {
	if cs.HasError(field) {
		return cs
	}

	value := cs.Get(field)
	if isBlank(value) {
		return cs
	}

	cfg := formatConfig{message: "has invalid format"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.transform != nil {
		value = cfg.transform(value)
	}

	if !pattern.MatchString(value) {
		cs.AddError(field, cfg.message)
	}
	return cs
}

type formatConfig struct {
	message   string
	transform func(string) string
}

// FormatOption configures format validation.
type FormatOption func(*formatConfig)

// WithMessage sets the error message.
func WithMessage(msg string) FormatOption {
	return func(c *formatConfig) {
		c.message = msg
	}
}

// WithTransform maps the value before matching, e.g. strings.ToUpper.
func WithTransform(fn func(string) string) FormatOption {
	return func(c *formatConfig) {
		c.transform = fn
	}
}

// AddError records message for field unless the field already has one.
func (cs *Changeset) AddError(field, message string) *Changeset {
	if _, exists := cs.Errors[field]; !exists {
		cs.Errors[field] = message
	}
	cs.Valid = false
	return cs
}

// HasError returns true if a field has an error.
func (cs *Changeset) HasError(field string) bool {
	_, ok := cs.Errors[field]
	return ok
}

// Error returns the message recorded for field, or "".
func (cs *Changeset) Error(field string) string {
	return cs.Errors[field]
}

func isBlank(s string) bool {
	return TrimSpace(s) == ""
}
