package application

import (
	"maps"
	"regexp"
	"strings"

	"github.com/gabrielmiguelok/kycform/pkg/forms"
)

// Errors maps an invalid field to its message. Valid fields are absent.
type Errors map[Field]string

// Get returns the message for f and whether one exists.
func (e Errors) Get(f Field) (string, bool) {
	msg, ok := e[f]
	return msg, ok
}

// Has reports whether f has an error.
func (e Errors) Has(f Field) bool {
	_, ok := e[f]
	return ok
}

// Clone returns an independent copy; a nil receiver yields an empty map.
func (e Errors) Clone() Errors {
	out := make(Errors, len(e))
	maps.Copy(out, e)
	return out
}

var (
	phonePattern   = regexp.MustCompile(`^[0-9]{10}$`)
	emailPattern   = regexp.MustCompile(`^[^@` + forms.SpaceClass + `]+@[^@` + forms.SpaceClass + `]+\.[^@` + forms.SpaceClass + `]+$`)
	pinPattern     = regexp.MustCompile(`^[0-9]{6}$`)
	aadhaarPattern = regexp.MustCompile(`^[0-9]{12}$`)
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	ifscPattern    = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
)

const invalidAadhaar = "Please enter a valid 12-digit Aadhaar number"

// rule declares the checks for one field: a required message and an
// optional format pattern that runs only once the field is non-blank.
type rule struct {
	field    Field
	required string
	pattern  *regexp.Regexp
	invalid  string
	upper    bool
}

var personalRules = []rule{
	{field: FullName, required: "Full name is required"},
	{field: PhoneNumber, required: "Phone number is required", pattern: phonePattern, invalid: "Please enter a valid 10-digit phone number"},
	{field: Email, required: "Email is required", pattern: emailPattern, invalid: "Please enter a valid email address"},
	{field: City, required: "City is required"},
	{field: PinCode, required: "Pin code is required", pattern: pinPattern, invalid: "Please enter a valid 6-digit pin code"},
}

var financialRules = []rule{
	{field: AadhaarNumber, required: "Aadhaar number is required", pattern: aadhaarPattern, invalid: invalidAadhaar},
	{field: PANNumber, required: "PAN number is required", pattern: panPattern, invalid: "Please enter a valid PAN number", upper: true},
	{field: BankAccountNumber, required: "Bank account number is required"},
	{field: IFSCCode, required: "IFSC code is required", pattern: ifscPattern, invalid: "Please enter a valid IFSC code", upper: true},
}

var nomineeRules = []rule{
	{field: NomineeName, required: "Nominee name is required"},
	{field: NomineeAadhaar, required: "Nominee Aadhaar is required", pattern: aadhaarPattern, invalid: invalidAadhaar},
}

// ValidateStep validates the fields belonging to step and returns a fresh
// error map. Nominee fields are checked only when the nominee toggle is on.
// An unknown step yields no errors.
func ValidateStep(step Step, d Draft) Errors {
	var rules []rule
	switch step {
	case StepPersonal:
		rules = personalRules
	case StepFinancial:
		rules = financialRules
		if d.AddNominee {
			rules = append(rules[:len(rules):len(rules)], nomineeRules...)
		}
	}

	cs := forms.NewChangeset(d.Values())
	for _, r := range rules {
		cs.ValidateRequired(r.required, string(r.field))
		if r.pattern == nil {
			continue
		}
		opts := []forms.FormatOption{forms.WithMessage(r.invalid)}
		if r.upper {
			opts = append(opts, forms.WithTransform(strings.ToUpper))
		}
		cs.ValidateFormat(string(r.field), r.pattern, opts...)
	}

	errs := make(Errors, len(cs.Errors))
	for field, msg := range cs.Errors {
		errs[Field(field)] = msg
	}
	return errs
}
