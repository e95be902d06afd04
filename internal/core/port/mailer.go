package port

import "context"

// Mailer delivers one-time codes by email.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, username, code string) error
	SendPasswordResetEmail(ctx context.Context, email, username, code string) error
}
