package application

// Draft is the mutable record behind one form session.
// Its zero value is the blank initial draft.
type Draft struct {
	FullName    string `json:"fullName" msgpack:"full_name"`
	PhoneNumber string `json:"phoneNumber" msgpack:"phone_number"`
	Email       string `json:"email" msgpack:"email"`
	City        string `json:"city" msgpack:"city"`
	PinCode     string `json:"pinCode" msgpack:"pin_code"`

	AadhaarNumber     string `json:"aadhaarNumber" msgpack:"aadhaar_number"`
	PANNumber         string `json:"panNumber" msgpack:"pan_number"`
	BankAccountNumber string `json:"bankAccountNumber" msgpack:"bank_account_number"`
	IFSCCode          string `json:"ifscCode" msgpack:"ifsc_code"`

	AddNominee     bool   `json:"addNominee" msgpack:"add_nominee"`
	NomineeName    string `json:"nomineeName" msgpack:"nominee_name"`
	NomineeAadhaar string `json:"nomineeAadhaar" msgpack:"nominee_aadhaar"`
}

// SensitiveFields hold identity and account numbers. They are kept out of
// snapshots written to shared stores.
var SensitiveFields = []Field{AadhaarNumber, PANNumber, BankAccountNumber, NomineeAadhaar}

// Redacted returns a copy of d with the sensitive fields cleared.
func (d Draft) Redacted() Draft {
	for _, f := range SensitiveFields {
		d.set(f, "")
	}
	return d
}

// Value returns the stored value of a text field, or "" for unknown fields.
func (d *Draft) Value(f Field) string {
	if p := d.ref(f); p != nil {
		return *p
	}
	return ""
}

// set stores v into f and reports whether f is a text field.
func (d *Draft) set(f Field, v string) bool {
	p := d.ref(f)
	if p == nil {
		return false
	}
	*p = v
	return true
}

func (d *Draft) ref(f Field) *string {
	switch f {
	case FullName:
		return &d.FullName
	case PhoneNumber:
		return &d.PhoneNumber
	case Email:
		return &d.Email
	case City:
		return &d.City
	case PinCode:
		return &d.PinCode
	case AadhaarNumber:
		return &d.AadhaarNumber
	case PANNumber:
		return &d.PANNumber
	case BankAccountNumber:
		return &d.BankAccountNumber
	case IFSCCode:
		return &d.IFSCCode
	case NomineeName:
		return &d.NomineeName
	case NomineeAadhaar:
		return &d.NomineeAadhaar
	default:
		return nil
	}
}

// Values returns the text fields keyed by field name.
func (d *Draft) Values() map[string]string {
	values := make(map[string]string, len(TextFields()))
	for _, f := range TextFields() {
		values[string(f)] = d.Value(f)
	}
	return values
}

// IsBlank reports whether d equals the initial draft.
func (d Draft) IsBlank() bool {
	return d == Draft{}
}
