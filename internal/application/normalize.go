package application

import "github.com/gabrielmiguelok/kycform/pkg/forms"

var masks = map[Field]forms.Mask{
	PhoneNumber:    forms.Digits(10),
	PinCode:        forms.Digits(6),
	AadhaarNumber:  forms.Digits(12),
	NomineeAadhaar: forms.Digits(12),
	PANNumber:      forms.UpperAlnum(10),
	IFSCCode:       forms.UpperAlnum(11),
}

// Normalize rewrites raw input for field before it is stored.
// Masked fields keep only their allowed charset up to their maximum length;
// every other field is returned unchanged.
func Normalize(field Field, raw string) string {
	if mask, ok := masks[field]; ok {
		return mask(raw)
	}
	return raw
}
