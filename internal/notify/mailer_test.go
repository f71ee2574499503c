package notify

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/caselens/lexalert/internal/config"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
)

func sampleHits() []hit.Hit {
	return []hit.Hit{
		{
			AlertID:    "alert-1",
			AlertName:  "securities fraud",
			SearchType: searchtype.Recap,
			Documents: []hit.Document{
				{
					ID: "doc-1",
					Fields: map[string]string{
						"caseName":     "SEC v. <strong>Acme</strong> Corp",
						"docketNumber": "1:21-cv-1234",
						"court":        "S.D.N.Y.",
						"dateFiled":    "2024-06-01",
					},
					ChildDocs: []hit.Document{
						{ID: "doc-1-1", Fields: map[string]string{"description": "Motion to dismiss"}},
					},
					ChildCount: 4,
				},
			},
		},
	}
}

func captureMailer() (*Mailer, *sentMail) {
	sent := &sentMail{}
	m := NewMailer(config.SMTPConfig{Host: "mail.internal", Port: 25, From: "alerts@example.com"})
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent.addr, sent.from, sent.to, sent.msg = addr, from, to, string(msg)
		return nil
	}
	return m, sent
}

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func TestSendAlert_RendersBothParts(t *testing.T) {
	m, sent := captureMailer()

	if err := m.SendAlert(context.Background(), "user@example.com", sampleHits()); err != nil {
		t.Fatalf("SendAlert: %v", err)
	}
	if sent.addr != "mail.internal:25" || sent.from != "alerts@example.com" {
		t.Fatalf("unexpected envelope %q from %q", sent.addr, sent.from)
	}
	if len(sent.to) != 1 || sent.to[0] != "user@example.com" {
		t.Fatalf("unexpected recipients %v", sent.to)
	}
	for _, want := range []string{
		"Subject: New hits for your search alerts",
		"Content-Type: multipart/alternative",
		"securities fraud",
		"SEC v. Acme Corp",
		"<strong>Acme</strong>",
		"Motion to dismiss",
		"... and 3 more",
	} {
		if !strings.Contains(sent.msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSendDigest_SubjectCarriesCadence(t *testing.T) {
	m, sent := captureMailer()

	if err := m.SendDigest(context.Background(), "user@example.com", domalert.RateWeekly, sampleHits()); err != nil {
		t.Fatalf("SendDigest: %v", err)
	}
	if !strings.Contains(sent.msg, "Subject: Weekly alert digest") {
		t.Fatalf("unexpected subject in %q", firstLines(sent.msg, 4))
	}
}

func TestSendAlert_CancelledContext(t *testing.T) {
	m, sent := captureMailer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.SendAlert(ctx, "user@example.com", sampleHits()); err == nil {
		t.Fatal("expected context error")
	}
	if sent.msg != "" {
		t.Fatal("cancelled send must not hit SMTP")
	}
}

func TestRawField_EscapesUntrustedText(t *testing.T) {
	d := hit.Document{Fields: map[string]string{
		"caseName": "<script>x</script> v. <strong>Acme</strong>",
	}}
	got := string(rawField(d, "caseName"))
	if strings.Contains(got, "<script>") {
		t.Fatalf("html injection survived: %q", got)
	}
	if !strings.Contains(got, "<strong>Acme</strong>") {
		t.Fatalf("emphasis dropped: %q", got)
	}
}

func firstLines(s string, n int) string {
	lines := strings.SplitN(s, "\r\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
