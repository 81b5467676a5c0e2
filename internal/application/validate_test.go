package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validPersonal() Draft {
	return Draft{
		FullName:    "Asha Rao",
		PhoneNumber: "9876543210",
		Email:       "asha@example.com",
		City:        "Bengaluru",
		PinCode:     "560001",
	}
}

func validFinancial() Draft {
	d := validPersonal()
	d.AadhaarNumber = "123456789012"
	d.PANNumber = "ABCDE1234F"
	d.BankAccountNumber = "001234567890"
	d.IFSCCode = "SBIN0001234"
	return d
}

func TestValidateStep_PersonalValid(t *testing.T) {
	assert.Empty(t, ValidateStep(StepPersonal, validPersonal()))
}

func TestValidateStep_PersonalBlank(t *testing.T) {
	errs := ValidateStep(StepPersonal, Draft{})

	assert.Equal(t, Errors{
		FullName:    "Full name is required",
		PhoneNumber: "Phone number is required",
		Email:       "Email is required",
		City:        "City is required",
		PinCode:     "Pin code is required",
	}, errs)
}

func TestValidateStep_PersonalFormats(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Draft)
		field Field
		want  string
	}{
		{"short phone", func(d *Draft) { d.PhoneNumber = "12345" }, PhoneNumber, "Please enter a valid 10-digit phone number"},
		{"email without tld", func(d *Draft) { d.Email = "asha@example" }, Email, "Please enter a valid email address"},
		{"email with space", func(d *Draft) { d.Email = "asha rao@example.com" }, Email, "Please enter a valid email address"},
		{"email with no-break space", func(d *Draft) { d.Email = "asha" + "\u00a0" + "rao@example.com" }, Email, "Please enter a valid email address"},
		{"email with ideographic space", func(d *Draft) { d.Email = "asha@exa" + "\u3000" + "mple.com" }, Email, "Please enter a valid email address"},
		{"short pin", func(d *Draft) { d.PinCode = "5600" }, PinCode, "Please enter a valid 6-digit pin code"},
		{"byte order mark name", func(d *Draft) { d.FullName = "\ufeff" }, FullName, "Full name is required"},
		{"no-break space city", func(d *Draft) { d.City = "\u00a0" }, City, "City is required"},
		{"whitespace name", func(d *Draft) { d.FullName = "   " }, FullName, "Full name is required"},
		{"whitespace city", func(d *Draft) { d.City = "\t" }, City, "City is required"},
		{"whitespace phone is required not format", func(d *Draft) { d.PhoneNumber = "  " }, PhoneNumber, "Phone number is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validPersonal()
			tt.edit(&d)

			errs := ValidateStep(StepPersonal, d)
			assert.Equal(t, Errors{tt.field: tt.want}, errs)
		})
	}
}

func TestValidateStep_IgnoresOtherStep(t *testing.T) {
	d := validPersonal()
	d.PANNumber = "garbage"

	assert.Empty(t, ValidateStep(StepPersonal, d))

	errs := ValidateStep(StepFinancial, validPersonal())
	assert.NotContains(t, errs, FullName)
	assert.Contains(t, errs, AadhaarNumber)
}

func TestValidateStep_FinancialValid(t *testing.T) {
	assert.Empty(t, ValidateStep(StepFinancial, validFinancial()))
}

func TestValidateStep_FinancialBlank(t *testing.T) {
	errs := ValidateStep(StepFinancial, Draft{})

	assert.Equal(t, Errors{
		AadhaarNumber:     "Aadhaar number is required",
		PANNumber:         "PAN number is required",
		BankAccountNumber: "Bank account number is required",
		IFSCCode:          "IFSC code is required",
	}, errs)
}

func TestValidateStep_FinancialFormats(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Draft)
		field Field
		want  string
	}{
		{"short aadhaar", func(d *Draft) { d.AadhaarNumber = "12345" }, AadhaarNumber, "Please enter a valid 12-digit Aadhaar number"},
		{"pan wrong shape", func(d *Draft) { d.PANNumber = "ABCD12345F" }, PANNumber, "Please enter a valid PAN number"},
		{"ifsc missing zero", func(d *Draft) { d.IFSCCode = "SBIN1001234" }, IFSCCode, "Please enter a valid IFSC code"},
		{"ifsc too short", func(d *Draft) { d.IFSCCode = "SBIN000123" }, IFSCCode, "Please enter a valid IFSC code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validFinancial()
			tt.edit(&d)

			assert.Equal(t, Errors{tt.field: tt.want}, ValidateStep(StepFinancial, d))
		})
	}
}

func TestValidateStep_PANAndIFSCCaseInsensitive(t *testing.T) {
	d := validFinancial()
	d.PANNumber = "abcde1234f"
	d.IFSCCode = "sbin0001234"

	assert.Empty(t, ValidateStep(StepFinancial, d))
}

func TestValidateStep_BankAccountAnyNonBlank(t *testing.T) {
	d := validFinancial()
	d.BankAccountNumber = "x"

	assert.Empty(t, ValidateStep(StepFinancial, d))
}

func TestValidateStep_NomineeIgnoredWhenToggleOff(t *testing.T) {
	d := validFinancial()
	d.AddNominee = false
	d.NomineeName = ""
	d.NomineeAadhaar = "12a"

	errs := ValidateStep(StepFinancial, d)
	assert.NotContains(t, errs, NomineeName)
	assert.NotContains(t, errs, NomineeAadhaar)
}

func TestValidateStep_NomineeRequiredWhenToggleOn(t *testing.T) {
	d := validFinancial()
	d.AddNominee = true

	assert.Equal(t, Errors{
		NomineeName:    "Nominee name is required",
		NomineeAadhaar: "Nominee Aadhaar is required",
	}, ValidateStep(StepFinancial, d))
}

func TestValidateStep_NomineeAadhaarFormat(t *testing.T) {
	d := validFinancial()
	d.AddNominee = true
	d.NomineeName = "Ravi Rao"
	d.NomineeAadhaar = "12a"

	errs := ValidateStep(StepFinancial, d)
	assert.Equal(t, Errors{NomineeAadhaar: "Please enter a valid 12-digit Aadhaar number"}, errs)
}

func TestValidateStep_FreshMap(t *testing.T) {
	first := ValidateStep(StepPersonal, Draft{})
	second := ValidateStep(StepPersonal, validPersonal())

	assert.NotEmpty(t, first)
	assert.Empty(t, second)
}

func TestValidateStep_UnknownStep(t *testing.T) {
	assert.Empty(t, ValidateStep(Step(3), Draft{}))
}
