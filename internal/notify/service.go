// Package notify sends email notifications via SMTP. An unconfigured
// service is a valid no-op; callers check IsConfigured before depending on
// delivery.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

const appName = "Concord"

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service provides notification email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new notification service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if SMTP delivery is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("notify not configured")
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		s.fromHeader(),
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends a multipart email with an HTML body
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("notify not configured")
	}

	boundary := "boundary-concord"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromHeader())
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

func (s *Service) fromHeader() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	return s.config.From
}

// InviteData holds data for collaborator invitation emails
type InviteData struct {
	AppName     string
	UserName    string
	EntityTitle string
	EntityURL   string
	InviterName string
}

// ForwardingData holds data for forwarding status emails
type ForwardingData struct {
	AppName        string
	UserName       string
	AmendmentTitle string
	GroupName      string
	EventTitle     string
	AmendmentURL   string
}

// SendCollaboratorInvite tells a user they were added to an entity.
func (s *Service) SendCollaboratorInvite(to, userName, inviterName, entityTitle, entityURL string) error {
	data := InviteData{
		AppName:     appName,
		UserName:    userName,
		EntityTitle: entityTitle,
		EntityURL:   entityURL,
		InviterName: inviterName,
	}

	subject := fmt.Sprintf("You were added to %q on %s", entityTitle, appName)
	html, err := renderTemplate(inviteEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render invite template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

// SendForwardingUpdate tells an amendment owner their amendment reached the
// agenda of a group on its forwarding route.
func (s *Service) SendForwardingUpdate(to, userName, amendmentTitle, groupName, eventTitle, amendmentURL string) error {
	data := ForwardingData{
		AppName:        appName,
		UserName:       userName,
		AmendmentTitle: amendmentTitle,
		GroupName:      groupName,
		EventTitle:     eventTitle,
		AmendmentURL:   amendmentURL,
	}

	subject := fmt.Sprintf("%q is on the agenda of %s", amendmentTitle, groupName)
	html, err := renderTemplate(forwardingEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render forwarding template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("notify").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const inviteEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>You were added to a document on {{.AppName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #2a7d4f; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #2a7d4f; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #2a7d4f; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Hi {{.UserName}},</h2>

    <p>{{.InviterName}} added you as a collaborator on <strong>{{.EntityTitle}}</strong>.</p>

    <p>
        <a href="{{.EntityURL}}" class="button">Open it</a>
    </p>

    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.EntityURL}}</p>

    <div class="footer">
        <p>You receive this because you have an account on {{.AppName}}.</p>
    </div>
</body>
</html>`

const forwardingEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Your amendment moved forward on {{.AppName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #2a7d4f; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #2a7d4f; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .highlight { background: #eef7f1; padding: 12px; border-radius: 4px; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Hi {{.UserName}},</h2>

    <p>Your amendment <strong>{{.AmendmentTitle}}</strong> was put on the agenda of {{.GroupName}}.</p>

    <div class="highlight">
        {{if .EventTitle}}<p>It will be decided at: <strong>{{.EventTitle}}</strong></p>{{else}}<p>No decision event is scheduled yet.</p>{{end}}
    </div>

    <p>
        <a href="{{.AmendmentURL}}" class="button">View the amendment</a>
    </p>

    <div class="footer">
        <p>You receive this because you own this amendment on {{.AppName}}.</p>
    </div>
</body>
</html>`
