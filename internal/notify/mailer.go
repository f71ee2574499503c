// Package notify delivers alert hits to their outbound channels: email
// over SMTP and JSON webhooks over HTTP.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/caselens/lexalert/internal/config"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/hit"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// highlightStripper removes the emphasis tags the percolator injects so
// the plain-text part reads clean.
var highlightStripper = strings.NewReplacer("<strong>", "", "</strong>", "")

func stripField(d hit.Document, name string) string {
	return highlightStripper.Replace(d.Fields[name])
}

func rawField(d hit.Document, name string) htmltemplate.HTML {
	v := d.Fields[name]
	escaped := htmltemplate.HTMLEscapeString(highlightStripper.Replace(v))
	if strings.Contains(v, "<strong>") {
		// Re-apply emphasis around the escaped text segments.
		parts := strings.Split(v, "<strong>")
		var b strings.Builder
		b.WriteString(htmltemplate.HTMLEscapeString(parts[0]))
		for _, part := range parts[1:] {
			marked, rest, _ := strings.Cut(part, "</strong>")
			b.WriteString("<strong>")
			b.WriteString(htmltemplate.HTMLEscapeString(marked))
			b.WriteString("</strong>")
			b.WriteString(htmltemplate.HTMLEscapeString(rest))
		}
		return htmltemplate.HTML(b.String())
	}
	return htmltemplate.HTML(escaped)
}

func hiddenChildren(d hit.Document) int {
	return d.ChildCount - len(d.ChildDocs)
}

var textTemplate = texttemplate.Must(texttemplate.New("alert.txt.tmpl").
	Funcs(texttemplate.FuncMap{
		"field":  stripField,
		"hidden": hiddenChildren,
	}).
	ParseFS(templateFS, "templates/alert.txt.tmpl"))

var htmlTemplate = htmltemplate.Must(htmltemplate.New("alert.html.tmpl").
	Funcs(htmltemplate.FuncMap{
		"field":  rawField,
		"hidden": hiddenChildren,
	}).
	ParseFS(templateFS, "templates/alert.html.tmpl"))

type emailData struct {
	Heading string
	Hits    []hit.Hit
}

// sendFunc matches smtp.SendMail and is swappable in tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends alert emails over SMTP.
type Mailer struct {
	addr        string
	auth        smtp.Auth
	from        string
	send        sendFunc
	dialTimeout time.Duration
}

// NewMailer builds a mailer from SMTP settings.
func NewMailer(cfg config.SMTPConfig) *Mailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &Mailer{
		addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth:        auth,
		from:        cfg.From,
		send:        smtp.SendMail,
		dialTimeout: 3 * time.Second,
	}
}

// SendAlert emails one user the hits a fresh document produced.
func (m *Mailer) SendAlert(ctx context.Context, to string, hits []hit.Hit) error {
	data := emailData{Heading: "Your search alerts have new hits", Hits: hits}
	return m.deliver(ctx, to, "New hits for your search alerts", data)
}

// SendDigest emails one user everything that accrued at a cadence.
func (m *Mailer) SendDigest(ctx context.Context, to string, rate domalert.Rate, hits []hit.Hit) error {
	label := rateLabel(rate)
	data := emailData{Heading: label + " digest of your search alerts", Hits: hits}
	return m.deliver(ctx, to, label+" alert digest", data)
}

// HealthCheck probes the SMTP endpoint.
func (m *Mailer) HealthCheck(ctx context.Context) error {
	d := net.Dialer{Timeout: m.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return fmt.Errorf("smtp unreachable at %s: %w", m.addr, err)
	}
	return conn.Close()
}

func (m *Mailer) deliver(ctx context.Context, to, subject string, data emailData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := m.compose(to, subject, data)
	if err != nil {
		return err
	}
	if err := m.send(m.addr, m.auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// compose renders a multipart/alternative message with text and HTML parts.
func (m *Mailer) compose(to, subject string, data emailData) ([]byte, error) {
	var text, html bytes.Buffer
	if err := textTemplate.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "From: %s\r\n", m.from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", w.Boundary())

	part, err := w.CreatePart(partHeader("text/plain; charset=utf-8"))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(text.Bytes()); err != nil {
		return nil, err
	}
	part, err = w.CreatePart(partHeader("text/html; charset=utf-8"))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(html.Bytes()); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func partHeader(contentType string) textproto.MIMEHeader {
	return textproto.MIMEHeader{"Content-Type": {contentType}}
}

func rateLabel(rate domalert.Rate) string {
	switch rate {
	case domalert.RateDaily:
		return "Daily"
	case domalert.RateWeekly:
		return "Weekly"
	case domalert.RateMonthly:
		return "Monthly"
	default:
		return "Real time"
	}
}
