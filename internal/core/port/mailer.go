package port

import "context"

// OTPMessage carries everything needed to deliver a password-reset code.
type OTPMessage struct {
	To            string
	Name          string
	Code          string
	ExpiryMinutes int
}

// OTPMailer delivers password-reset codes out of band.
type OTPMailer interface {
	SendResetOTP(ctx context.Context, msg OTPMessage) error
}
