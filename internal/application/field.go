// Package application implements the two-step intake form: the draft record,
// input normalization, step validation and the step/submission state machine.
package application

import "slices"

// Field identifies one input of the intake form.
// The string value doubles as the error key and the HTML input name.
type Field string

// Personal details.
const (
	FullName    Field = "fullName"
	PhoneNumber Field = "phoneNumber"
	Email       Field = "email"
	City        Field = "city"
	PinCode     Field = "pinCode"
)

// Financial details.
const (
	AadhaarNumber     Field = "aadhaarNumber"
	PANNumber         Field = "panNumber"
	BankAccountNumber Field = "bankAccountNumber"
	IFSCCode          Field = "ifscCode"
)

// Nominee details, only meaningful when the nominee toggle is on.
const (
	NomineeName    Field = "nomineeName"
	NomineeAadhaar Field = "nomineeAadhaar"
)

// AddNominee is the key of the nominee toggle.
const AddNominee Field = "addNominee"

var (
	personalFields  = []Field{FullName, PhoneNumber, Email, City, PinCode}
	financialFields = []Field{AadhaarNumber, PANNumber, BankAccountNumber, IFSCCode}
	nomineeFields   = []Field{NomineeName, NomineeAadhaar}
)

// Fields returns the text fields shown on step, in display order.
// Nominee fields are included for StepFinancial only when withNominee is set.
func Fields(step Step, withNominee bool) []Field {
	switch step {
	case StepPersonal:
		return slices.Clone(personalFields)
	case StepFinancial:
		fields := slices.Clone(financialFields)
		if withNominee {
			fields = append(fields, nomineeFields...)
		}
		return fields
	default:
		return nil
	}
}

// TextFields returns every text field of the form.
func TextFields() []Field {
	return slices.Concat(personalFields, financialFields, nomineeFields)
}

// Valid reports whether f names a text field.
func (f Field) Valid() bool {
	return slices.Contains(personalFields, f) ||
		slices.Contains(financialFields, f) ||
		slices.Contains(nomineeFields, f)
}

func (f Field) String() string {
	return string(f)
}

type fieldText struct {
	label       string
	placeholder string
}

var texts = map[Field]fieldText{
	FullName:          {"Full Name", "Enter your full name"},
	PhoneNumber:       {"Phone Number", "Enter 10-digit phone number"},
	Email:             {"Email", "Enter your email address"},
	City:              {"City", "Enter your city"},
	PinCode:           {"Pin Code", "Enter 6-digit pin code"},
	AadhaarNumber:     {"Aadhaar Number", "Enter 12-digit Aadhaar number"},
	PANNumber:         {"PAN Number", "Enter PAN number (e.g., ABCDE1234F)"},
	BankAccountNumber: {"Bank Account Number", "Enter bank account number"},
	IFSCCode:          {"IFSC Code", "Enter IFSC code (e.g., SBIN0001234)"},
	NomineeName:       {"Nominee Name", "Enter nominee's full name"},
	NomineeAadhaar:    {"Nominee Aadhaar No", "Enter nominee's Aadhaar number"},
}

// Label returns the display label of a text field, or "" for unknown fields.
func (f Field) Label() string { return texts[f].label }

// Placeholder returns the input hint of a text field.
func (f Field) Placeholder() string { return texts[f].placeholder }

// MaxLength returns the stored length limit of a masked field, or 0.
func (f Field) MaxLength() int {
	switch f {
	case PhoneNumber:
		return 10
	case PinCode:
		return 6
	case AadhaarNumber, NomineeAadhaar:
		return 12
	case PANNumber:
		return 10
	case IFSCCode:
		return 11
	default:
		return 0
	}
}
