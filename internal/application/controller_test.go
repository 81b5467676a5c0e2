package application

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(t *testing.T, c *Controller, d Draft) {
	t.Helper()
	for _, f := range TextFields() {
		if v := d.Value(f); v != "" {
			require.NoError(t, c.Change(f, v))
		}
	}
	if d.AddNominee {
		require.NoError(t, c.SetAddNominee(true))
	}
}

func TestNewController(t *testing.T) {
	c := NewController()

	assert.Equal(t, PhasePersonal, c.Phase())
	assert.Equal(t, StepPersonal, c.Step())
	assert.Equal(t, 50, c.Progress())
	assert.True(t, c.Draft().IsBlank())
	assert.Empty(t, c.Errors())
	assert.False(t, c.IsSubmitting())
	assert.False(t, c.IsSuccess())
}

func TestController_ChangeNormalizes(t *testing.T) {
	c := NewController()

	require.NoError(t, c.Change(PhoneNumber, "98765-43210"))
	require.NoError(t, c.Change(PANNumber, "abcde1234f"))

	d := c.Draft()
	assert.Equal(t, "9876543210", d.PhoneNumber)
	assert.Equal(t, "ABCDE1234F", d.PANNumber)
}

func TestController_ChangeUnknownField(t *testing.T) {
	c := NewController()

	err := c.Change(Field("favouriteColour"), "teal")
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.True(t, c.Draft().IsBlank())
}

func TestController_ChangeClearsOnlyThatFieldError(t *testing.T) {
	c := NewController()

	require.Equal(t, OutcomeInvalid, c.Submit())
	require.Len(t, c.Errors(), 5)

	require.NoError(t, c.Change(PhoneNumber, "12"))

	errs := c.Errors()
	assert.NotContains(t, errs, PhoneNumber)
	assert.Len(t, errs, 4)
	assert.Contains(t, errs, FullName)
	assert.Contains(t, errs, Email)
}

func TestController_SubmitInvalidPersonal(t *testing.T) {
	c := NewController()
	d := validPersonal()
	d.PhoneNumber = "12345"
	fill(t, c, d)

	assert.Equal(t, OutcomeInvalid, c.Submit())
	assert.Equal(t, PhasePersonal, c.Phase())

	msg, ok := c.Error(PhoneNumber)
	require.True(t, ok)
	assert.Equal(t, "Please enter a valid 10-digit phone number", msg)
}

func TestController_FullFlow(t *testing.T) {
	c := NewController()
	fill(t, c, validPersonal())

	require.Equal(t, OutcomeAdvanced, c.Submit())
	assert.Equal(t, PhaseFinancial, c.Phase())
	assert.Equal(t, 100, c.Progress())
	assert.Empty(t, c.Errors())

	fill(t, c, validFinancial())
	require.Equal(t, OutcomeStarted, c.Submit())
	assert.True(t, c.IsSubmitting())
	assert.Equal(t, StepFinancial, c.Step())

	receipt := Receipt{Reference: "APP-1234abcd", SubmittedAt: time.Now()}
	require.NoError(t, c.Complete(receipt, nil))
	assert.True(t, c.IsSuccess())

	got, ok := c.Receipt()
	require.True(t, ok)
	assert.Equal(t, "APP-1234abcd", got.Reference)

	require.NoError(t, c.Reset())
	assert.Equal(t, PhasePersonal, c.Phase())
	assert.True(t, c.Draft().IsBlank())
	assert.Empty(t, c.Errors())
	_, ok = c.Receipt()
	assert.False(t, ok)
}

func TestController_NomineeToggle(t *testing.T) {
	c := NewController()
	fill(t, c, validPersonal())
	require.Equal(t, OutcomeAdvanced, c.Submit())
	fill(t, c, validFinancial())

	require.NoError(t, c.SetAddNominee(true))
	require.NoError(t, c.Change(NomineeName, "Ravi Rao"))
	require.NoError(t, c.Change(NomineeAadhaar, "12a"))

	require.Equal(t, OutcomeInvalid, c.Submit())
	msg, _ := c.Error(NomineeAadhaar)
	assert.Equal(t, "Please enter a valid 12-digit Aadhaar number", msg)

	require.NoError(t, c.SetAddNominee(false))
	assert.Equal(t, "Ravi Rao", c.Draft().NomineeName)
	assert.Equal(t, OutcomeStarted, c.Submit())
}

func TestController_BackKeepsDraft(t *testing.T) {
	c := NewController()
	fill(t, c, validPersonal())

	assert.False(t, c.Back())
	require.Equal(t, OutcomeAdvanced, c.Submit())
	require.NoError(t, c.Change(AadhaarNumber, "1234"))

	assert.True(t, c.Back())
	assert.Equal(t, PhasePersonal, c.Phase())
	assert.Equal(t, "Asha Rao", c.Draft().FullName)
	assert.Equal(t, "1234", c.Draft().AadhaarNumber)

	require.Equal(t, OutcomeAdvanced, c.Submit())
	assert.Equal(t, "1234", c.Draft().AadhaarNumber)
}

func TestController_LockedWhileSubmitting(t *testing.T) {
	c := NewController()
	fill(t, c, validPersonal())
	require.Equal(t, OutcomeAdvanced, c.Submit())
	fill(t, c, validFinancial())
	require.Equal(t, OutcomeStarted, c.Submit())

	assert.ErrorIs(t, c.Change(FullName, "Someone Else"), ErrLocked)
	assert.ErrorIs(t, c.SetAddNominee(true), ErrLocked)
	assert.Equal(t, OutcomeIgnored, c.Submit())
	assert.False(t, c.Back())
	assert.Equal(t, "Asha Rao", c.Draft().FullName)
	assert.True(t, c.IsSubmitting())
}

func TestController_LockedAfterSuccess(t *testing.T) {
	c := NewController()
	fill(t, c, validPersonal())
	require.Equal(t, OutcomeAdvanced, c.Submit())
	fill(t, c, validFinancial())
	require.Equal(t, OutcomeStarted, c.Submit())
	require.NoError(t, c.Complete(Receipt{Reference: "APP-x"}, nil))

	assert.ErrorIs(t, c.Change(City, "Pune"), ErrLocked)
	assert.Equal(t, OutcomeIgnored, c.Submit())
	assert.ErrorIs(t, c.Complete(Receipt{}, nil), ErrNotSubmitting)
}

func TestController_CompleteWithoutSubmission(t *testing.T) {
	c := NewController()
	assert.ErrorIs(t, c.Complete(Receipt{}, nil), ErrNotSubmitting)
	assert.Equal(t, PhasePersonal, c.Phase())
}

func TestController_CompleteFailure(t *testing.T) {
	c := NewController()
	fill(t, c, validPersonal())
	require.Equal(t, OutcomeAdvanced, c.Submit())
	fill(t, c, validFinancial())
	require.Equal(t, OutcomeStarted, c.Submit())

	require.NoError(t, c.Complete(Receipt{}, errors.New("provider unavailable")))

	assert.Equal(t, PhaseFinancial, c.Phase())
	assert.NotEmpty(t, c.SubmitError())
	assert.Equal(t, "ABCDE1234F", c.Draft().PANNumber)

	require.Equal(t, OutcomeStarted, c.Submit())
	assert.Empty(t, c.SubmitError())
}

func TestController_SnapshotRoundTrip(t *testing.T) {
	c := NewController()
	fill(t, c, validPersonal())
	require.Equal(t, OutcomeAdvanced, c.Submit())
	require.NoError(t, c.Change(AadhaarNumber, "12"))
	require.Equal(t, OutcomeInvalid, c.Submit())

	snap := c.Snapshot()
	restored, err := RestoreController(snap)
	require.NoError(t, err)

	assert.Equal(t, c.Phase(), restored.Phase())
	assert.Equal(t, c.Draft(), restored.Draft())
	assert.Equal(t, c.Errors(), restored.Errors())

	// The snapshot is detached from the live controller.
	require.NoError(t, c.Change(AadhaarNumber, "123456789012"))
	assert.Contains(t, restored.Errors(), AadhaarNumber)
}

func TestRestoreController_InvalidPhase(t *testing.T) {
	_, err := RestoreController(Snapshot{Phase: Phase(9)})
	assert.Error(t, err)
}

func TestRestoreController_SuccessWithoutReceipt(t *testing.T) {
	c, err := RestoreController(Snapshot{Phase: PhaseSuccess, Draft: validFinancial()})
	require.NoError(t, err)
	assert.Equal(t, PhaseFinancial, c.Phase())
}

func TestSnapshot_Redact(t *testing.T) {
	c := NewController()
	fill(t, c, validPersonal())
	require.Equal(t, OutcomeAdvanced, c.Submit())
	d := validFinancial()
	d.AddNominee = true
	d.NomineeName = "Ravi Rao"
	d.NomineeAadhaar = "12"
	fill(t, c, d)
	require.Equal(t, OutcomeInvalid, c.Submit())

	snap := c.Snapshot().Redact()
	assert.True(t, snap.Redacted)
	assert.Empty(t, snap.Draft.AadhaarNumber)
	assert.Empty(t, snap.Draft.PANNumber)
	assert.Empty(t, snap.Draft.BankAccountNumber)
	assert.Empty(t, snap.Draft.NomineeAadhaar)
	assert.NotContains(t, snap.Errors, NomineeAadhaar)
	assert.Equal(t, "SBIN0001234", snap.Draft.IFSCCode)
	assert.Equal(t, "Ravi Rao", snap.Draft.NomineeName)
	assert.Equal(t, "Asha Rao", snap.Draft.FullName)

	// The live controller keeps its values.
	assert.Equal(t, "123456789012", c.Draft().AadhaarNumber)
	assert.Contains(t, c.Errors(), NomineeAadhaar)
}

func TestRestoreController_RedactedSubmitting(t *testing.T) {
	c := NewController()
	fill(t, c, validPersonal())
	require.Equal(t, OutcomeAdvanced, c.Submit())
	fill(t, c, validFinancial())
	require.Equal(t, OutcomeStarted, c.Submit())

	restored, err := RestoreController(c.Snapshot().Redact())
	require.NoError(t, err)
	assert.Equal(t, PhaseFinancial, restored.Phase())
	assert.Equal(t, OutcomeInvalid, restored.Submit())
	assert.Contains(t, restored.Errors(), AadhaarNumber)

	kept, err := RestoreController(c.Snapshot())
	require.NoError(t, err)
	assert.True(t, kept.IsSubmitting())
}

func TestController_ResetOnlyAfterSuccess(t *testing.T) {
	c := NewController()
	fill(t, c, validPersonal())
	assert.ErrorIs(t, c.Reset(), ErrLocked)
	assert.Equal(t, "Asha Rao", c.Draft().FullName)

	require.Equal(t, OutcomeAdvanced, c.Submit())
	fill(t, c, validFinancial())
	assert.ErrorIs(t, c.Reset(), ErrLocked)
	assert.Equal(t, PhaseFinancial, c.Phase())

	require.Equal(t, OutcomeStarted, c.Submit())
	assert.ErrorIs(t, c.Reset(), ErrLocked)
	require.True(t, c.IsSubmitting())

	require.NoError(t, c.Complete(Receipt{Reference: "APP-1"}, nil))
	assert.True(t, c.IsSuccess())
	require.NoError(t, c.Reset())
	assert.True(t, c.Draft().IsBlank())
}
