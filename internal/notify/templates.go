package notify

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"
)

const (
	TypeApplicationSubmitted = "application_submitted"
	TypeApplicationUpdated   = "application_updated"
)

// Data is what the templates can reference.
type Data struct {
	GivenName     string
	ApplicationID string
}

type messageTemplate struct {
	subject *template.Template
	text    *template.Template
	html    *htmltemplate.Template
	sms     *template.Template
}

type rendered struct {
	Subject string
	Text    string
	HTML    string
	SMS     string
}

func newTemplate(name, subject, text, html, sms string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New(name + ".subject").Parse(subject)),
		text:    template.Must(template.New(name + ".text").Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(name + ".html").Parse(html)),
		sms:     template.Must(template.New(name + ".sms").Parse(sms)),
	}
}

var templates = map[string]messageTemplate{
	TypeApplicationSubmitted: newTemplate(TypeApplicationSubmitted,
		"Solo parent application received",
		"Hi {{.GivenName}},\n\nWe received your solo parent application. Your reference number is {{.ApplicationID}}.\nWe will contact you once it has been reviewed.",
		"<p>Hi {{.GivenName}},</p><p>We received your solo parent application. Your reference number is <strong>{{.ApplicationID}}</strong>.</p><p>We will contact you once it has been reviewed.</p>",
		"Hi {{.GivenName}}, your solo parent application {{.ApplicationID}} was received.",
	),
	TypeApplicationUpdated: newTemplate(TypeApplicationUpdated,
		"Solo parent application updated",
		"Hi {{.GivenName}},\n\nYour solo parent application {{.ApplicationID}} was updated. If you did not make this change, please contact the office.",
		"<p>Hi {{.GivenName}},</p><p>Your solo parent application <strong>{{.ApplicationID}}</strong> was updated. If you did not make this change, please contact the office.</p>",
		"Hi {{.GivenName}}, your solo parent application {{.ApplicationID}} was updated.",
	),
}

func (t messageTemplate) render(d Data) (rendered, error) {
	var out rendered
	for _, part := range []struct {
		dst  *string
		exec func(*bytes.Buffer) error
	}{
		{&out.Subject, func(b *bytes.Buffer) error { return t.subject.Execute(b, d) }},
		{&out.Text, func(b *bytes.Buffer) error { return t.text.Execute(b, d) }},
		{&out.HTML, func(b *bytes.Buffer) error { return t.html.Execute(b, d) }},
		{&out.SMS, func(b *bytes.Buffer) error { return t.sms.Execute(b, d) }},
	} {
		var b bytes.Buffer
		if err := part.exec(&b); err != nil {
			return rendered{}, err
		}
		*part.dst = b.String()
	}
	return out, nil
}
