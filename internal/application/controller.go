package application

import (
	"errors"
	"fmt"
	"time"
)

// Controller errors.
var (
	ErrUnknownField  = errors.New("unknown field")
	ErrLocked        = errors.New("action not allowed in the current phase")
	ErrNotSubmitting = errors.New("no submission in progress")
)

// Outcome is the result of a Submit action.
type Outcome int

const (
	// OutcomeInvalid means validation failed and the phase did not change.
	OutcomeInvalid Outcome = iota
	// OutcomeAdvanced means step 1 validated and the form moved to step 2.
	OutcomeAdvanced
	// OutcomeStarted means step 2 validated and a submission must now be run.
	OutcomeStarted
	// OutcomeIgnored means the submit control is disabled in the current phase.
	OutcomeIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvalid:
		return "invalid"
	case OutcomeAdvanced:
		return "advanced"
	case OutcomeStarted:
		return "started"
	case OutcomeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Controller owns the state of one form session. It is not safe for
// concurrent use; callers serialize events the way a LiveView session does.
type Controller struct {
	phase     Phase
	draft     Draft
	errors    Errors
	receipt   *Receipt
	submitErr string
}

// NewController returns a controller on step 1 with a blank draft.
func NewController() *Controller {
	return &Controller{
		phase:  PhasePersonal,
		errors: make(Errors),
	}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase { return c.phase }

// Step returns the current form page.
func (c *Controller) Step() Step { return c.phase.Step() }

// Progress returns the completion percentage of the current step.
func (c *Controller) Progress() int { return c.phase.Step().Progress() }

// IsSubmitting reports whether a submission is in flight.
func (c *Controller) IsSubmitting() bool { return c.phase == PhaseSubmitting }

// IsSuccess reports whether the success view should replace the form.
func (c *Controller) IsSuccess() bool { return c.phase == PhaseSuccess }

// Draft returns a copy of the draft.
func (c *Controller) Draft() Draft { return c.draft }

// Errors returns a copy of the current error map.
func (c *Controller) Errors() Errors { return c.errors.Clone() }

// Error returns the message for a single field.
func (c *Controller) Error(f Field) (string, bool) { return c.errors.Get(f) }

// Receipt returns the receipt of the completed submission, if any.
func (c *Controller) Receipt() (Receipt, bool) {
	if c.receipt == nil {
		return Receipt{}, false
	}
	return *c.receipt, true
}

// SubmitError returns the message of the last failed submission, or "".
func (c *Controller) SubmitError() string { return c.submitErr }

func (c *Controller) editable() bool {
	return c.phase == PhasePersonal || c.phase == PhaseFinancial
}

// Change normalizes raw and stores it into field. Only the edited field's
// error is cleared; the field is not re-validated.
func (c *Controller) Change(field Field, raw string) error {
	if !field.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if !c.editable() {
		return ErrLocked
	}

	c.draft.set(field, Normalize(field, raw))
	delete(c.errors, field)
	return nil
}

// SetAddNominee sets the nominee toggle. Nominee values are kept when the
// toggle is turned off; they are simply no longer validated.
func (c *Controller) SetAddNominee(on bool) error {
	if !c.editable() {
		return ErrLocked
	}
	c.draft.AddNominee = on
	delete(c.errors, AddNominee)
	return nil
}

// Submit validates the current step. On step 1 a clean draft advances to
// step 2; on step 2 it enters PhaseSubmitting and the caller must run a
// Submitter and report back through Complete.
func (c *Controller) Submit() Outcome {
	if !c.editable() {
		return OutcomeIgnored
	}

	c.errors = ValidateStep(c.phase.Step(), c.draft)
	if len(c.errors) > 0 {
		return OutcomeInvalid
	}

	switch c.phase {
	case PhasePersonal:
		c.phase = PhaseFinancial
		return OutcomeAdvanced
	default:
		c.phase = PhaseSubmitting
		c.submitErr = ""
		return OutcomeStarted
	}
}

// Back returns from step 2 to step 1 and reports whether it moved.
// Step 2 errors are left in place; the step 1 view does not show them.
func (c *Controller) Back() bool {
	if c.phase != PhaseFinancial {
		return false
	}
	c.phase = PhasePersonal
	return true
}

// Complete finishes the submission started by Submit. A nil err moves to
// PhaseSuccess; otherwise the form returns to step 2 with the draft intact.
func (c *Controller) Complete(receipt Receipt, err error) error {
	if c.phase != PhaseSubmitting {
		return ErrNotSubmitting
	}

	if err != nil {
		c.phase = PhaseFinancial
		c.submitErr = "We couldn't submit your application. Please try again."
		return nil
	}

	c.phase = PhaseSuccess
	c.receipt = &receipt
	return nil
}

// Reset discards the draft and returns to a blank step 1. Only a completed
// application can be reset; any other phase returns ErrLocked.
func (c *Controller) Reset() error {
	if c.phase != PhaseSuccess {
		return ErrLocked
	}
	*c = *NewController()
	return nil
}

// Snapshot is the serializable state of a Controller.
type Snapshot struct {
	Phase       Phase            `msgpack:"phase"`
	Draft       Draft            `msgpack:"draft"`
	Errors      map[Field]string `msgpack:"errors"`
	Receipt     *Receipt         `msgpack:"receipt,omitempty"`
	SubmitError string           `msgpack:"submit_error,omitempty"`
	Redacted    bool             `msgpack:"redacted,omitempty"`
	TakenAt     time.Time        `msgpack:"taken_at"`
}

// Redact clears the sensitive draft fields and their errors.
func (s Snapshot) Redact() Snapshot {
	s.Draft = s.Draft.Redacted()
	errs := Errors(s.Errors).Clone()
	for _, f := range SensitiveFields {
		delete(errs, f)
	}
	s.Errors = errs
	s.Redacted = true
	return s
}

// Snapshot exports the controller state.
func (c *Controller) Snapshot() Snapshot {
	var receipt *Receipt
	if c.receipt != nil {
		r := *c.receipt
		receipt = &r
	}
	return Snapshot{
		Phase:       c.phase,
		Draft:       c.draft,
		Errors:      c.errors.Clone(),
		Receipt:     receipt,
		SubmitError: c.submitErr,
		TakenAt:     time.Now(),
	}
}

// RestoreController rebuilds a controller from a snapshot. A success
// snapshot without a receipt is downgraded to step 2, and so is a redacted
// submitting snapshot, since its draft can no longer be submitted.
func RestoreController(s Snapshot) (*Controller, error) {
	if s.Phase < PhasePersonal || s.Phase > PhaseSuccess {
		return nil, fmt.Errorf("restore controller: invalid phase %d", s.Phase)
	}

	c := &Controller{
		phase:     s.Phase,
		draft:     s.Draft,
		errors:    Errors(s.Errors).Clone(),
		submitErr: s.SubmitError,
	}
	if s.Receipt != nil {
		r := *s.Receipt
		c.receipt = &r
	}
	if c.phase == PhaseSuccess && c.receipt == nil {
		c.phase = PhaseFinancial
	}
	if c.phase == PhaseSubmitting && s.Redacted {
		c.phase = PhaseFinancial
	}
	return c, nil
}
