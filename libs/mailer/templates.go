package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<p>Namaste {{.Name}},</p>
<p>An administrator account has been created for you on Sambodhan with the role <strong>{{.Role}}</strong>.</p>
<p>Sign in at <a href="{{.LoginURL}}">{{.LoginURL}}</a> with this email address.</p>`))

// AdminWelcome describes a newly registered administrator.
type AdminWelcome struct {
	Name     string
	Email    string
	Role     string
	LoginURL string
}

// WelcomeMessage builds the email sent after an admin registration.
func WelcomeMessage(w AdminWelcome) (Message, error) {
	var html bytes.Buffer
	if err := welcomeTemplate.Execute(&html, w); err != nil {
		return Message{}, fmt.Errorf("render welcome email: %w", err)
	}
	text := fmt.Sprintf("Namaste %s,\n\nAn administrator account has been created for you on Sambodhan with the role %s.\nSign in at %s with this email address.\n",
		w.Name, w.Role, w.LoginURL)
	return Message{
		To:      []string{w.Email},
		Subject: "Your Sambodhan administrator account",
		HTML:    html.String(),
		Text:    text,
		Tags:    map[string]string{"category": "admin_welcome"},
	}, nil
}

// ExportMessage wraps an analytics export as an attachment.
func ExportMessage(to, filename string, content []byte) Message {
	contentType := "text/csv"
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		contentType = "application/pdf"
	}
	return Message{
		To:      []string{to},
		Subject: "Sambodhan analytics export: " + filename,
		Text:    "The requested analytics export is attached.\n",
		HTML:    "<p>The requested analytics export is attached.</p>",
		Attachments: []Attachment{{
			Filename:    filename,
			ContentType: contentType,
			Content:     content,
		}},
		Tags: map[string]string{"category": "analytics_export"},
	}
}
