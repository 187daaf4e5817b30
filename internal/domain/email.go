package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// WelcomeEmailData holds data for the welcome email.
type WelcomeEmailData struct {
	Email string
	Name  string
}

// InvitationEmailData holds data for the invitation and reminder emails.
type InvitationEmailData struct {
	Email         string
	OrganizerName string
	Title         string
	ActivityDate  string
	DeadlineText  string
	ResponseURL   string
}

// FinalizedEmailData holds data for the email sent to the final guest list.
type FinalizedEmailData struct {
	Email         string
	OrganizerName string
	Title         string
	ActivityDate  string
	Venue         string
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendWelcome(ctx context.Context, data *WelcomeEmailData) error
	SendInvitation(ctx context.Context, data *InvitationEmailData) error
	SendReminder(ctx context.Context, data *InvitationEmailData) error
	SendFinalized(ctx context.Context, data *FinalizedEmailData) error
}
