// Package email delivers verification codes and password reset links.
//
// Two providers are available: ResendProvider posts to the Resend HTTP API,
// LogProvider only writes the message to the logger and is meant for local
// development. Sender renders the templates and adapts either provider to
// auth.Mailer:
//
//	provider, err := email.NewResendProvider(email.ResendConfig{APIKey: key})
//	mailer := email.NewSender(provider, email.SenderConfig{
//		From:       "Whiskey Canon <noreply@example.com>",
//		AppBaseURL: "https://whiskey.example.com",
//	}, metrics, logger)
//
// Send failures are logged and reported as false; they are never retried.
package email
