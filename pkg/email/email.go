package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/fabianMendez/luxflix/pkg/config"
	"github.com/fabianMendez/luxflix/pkg/form"
	"github.com/mailgun/mailgun-go/v4"
)

func BuildMessage(body string, data interface{}) (string, error) {
	if data == nil {
		return body, nil
	}

	buf := new(bytes.Buffer)
	tpl, err := template.New("email body").Parse(body)
	if err != nil {
		return "", err
	}

	err = tpl.Execute(buf, data)
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}

// Mailer sends a copy of each form submission, attachment included, to the
// admin mailbox.
type Mailer struct {
	mg   mailgun.Mailgun
	from string
	to   []string
}

func New(settings config.MailgunSettings, to ...string) *Mailer {
	mg := mailgun.NewMailgun(settings.Domain, settings.APIKey)
	if settings.APIBase != "" {
		mg.SetAPIBase(settings.APIBase)
	}

	from := settings.From
	if from == "" {
		from = "LuxFlix <noreply@" + settings.Domain + ">"
	}

	return &Mailer{mg: mg, from: from, to: to}
}

func (m *Mailer) SendSubmission(ctx context.Context, sub form.Submission) error {
	html, err := BuildMessage(TplSubmission, sub)
	if err != nil {
		return fmt.Errorf("could not build message: %w", err)
	}

	subject := fmt.Sprintf("Payment submission from %s", sub.Get(form.FieldName))
	if sub.Get(form.FieldName) == "" {
		subject = "Payment submission " + sub.ID
	}

	msg := m.mg.NewMessage(m.from, subject, "", m.to...)
	msg.SetHtml(html)
	if a := sub.Attachment; a != nil {
		msg.AddBufferAttachment(a.Filename, a.Data)
	}

	_, _, err = m.mg.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("could not send email: %w", err)
	}

	return nil
}
