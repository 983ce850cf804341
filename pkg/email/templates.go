package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

type templateData struct {
	Code          string
	ExpiryMinutes int
	ResetURL      string
}

type emailTemplate struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

var verificationTemplate = emailTemplate{
	subject: "Verify your Whiskey Canon account",
	text: texttemplate.Must(texttemplate.New("verify.txt").Parse(`Welcome to Whiskey Canon!

Your verification code is: {{.Code}}

The code expires in {{.ExpiryMinutes}} minutes. If you did not create an account, ignore this email.
`)),
	html: htmltemplate.Must(htmltemplate.New("verify.html").Parse(`<h2>Welcome to Whiskey Canon!</h2>
<p>Your verification code is:</p>
<p style="font-size:24px;font-weight:bold;letter-spacing:4px">{{.Code}}</p>
<p>The code expires in {{.ExpiryMinutes}} minutes. If you did not create an account, ignore this email.</p>
`)),
}

var resetTemplate = emailTemplate{
	subject: "Reset your Whiskey Canon password",
	text: texttemplate.Must(texttemplate.New("reset.txt").Parse(`A password reset was requested for your Whiskey Canon account.

Reset your password: {{.ResetURL}}

The link expires in {{.ExpiryMinutes}} minutes. If you did not request a reset, ignore this email.
`)),
	html: htmltemplate.Must(htmltemplate.New("reset.html").Parse(`<h2>Reset your password</h2>
<p>A password reset was requested for your Whiskey Canon account.</p>
<p><a href="{{.ResetURL}}">Reset your password</a></p>
<p>The link expires in {{.ExpiryMinutes}} minutes. If you did not request a reset, ignore this email.</p>
`)),
}

func (t emailTemplate) render(from, to string, data templateData) (*Message, error) {
	var text, html bytes.Buffer
	if err := t.text.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("failed to render text body: %w", err)
	}
	if err := t.html.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("failed to render html body: %w", err)
	}
	return &Message{
		From:    from,
		To:      to,
		Subject: t.subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
