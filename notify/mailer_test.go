package notify

import (
	"strings"
	"testing"
	"time"

	"testex/config"
	"testex/termination"
)

func testReport() *termination.Report {
	return &termination.Report{
		RunID:      "run-1",
		CustomerID: "CLI001",
		Scope:      termination.ScopeAll,
		Mode:       "apply",
		Database:   termination.OperationOutcome{Attempted: true, Success: true, Detail: "client terminated, 2 contracts terminated"},
		Directory:  termination.OperationOutcome{Attempted: true, Success: false, Detail: "connect: ldap unreachable"},
		Files:      termination.OperationOutcome{Attempted: true, Success: true, Detail: "0 files found"},
		ExternalAPI: termination.OperationOutcome{
			Attempted: true, Success: true, Detail: "2 services removed, client disabled",
		},
		Errors:         []string{"directory: connect: ldap unreachable"},
		StartedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Duration:       "3s",
		Classification: termination.PartialSuccess,
	}
}

func TestEnabled(t *testing.T) {
	m := NewMailer(config.Notify{}, nil)
	if m.Enabled() {
		t.Errorf("mailer enabled without host")
	}
	m = NewMailer(config.Notify{Host: "smtp.testex.local"}, nil)
	if m.Enabled() {
		t.Errorf("mailer enabled without recipients")
	}
	m = NewMailer(config.Notify{Host: "smtp.testex.local", Recipients: []string{"ops@testex.com"}}, nil)
	if !m.Enabled() {
		t.Errorf("mailer disabled despite full config")
	}
}

func TestCompose(t *testing.T) {
	m := NewMailer(config.Notify{
		Host:       "smtp.testex.local",
		Sender:     "noreply@testex.com",
		SenderName: "TESTEX System",
		Recipients: []string{"ops@testex.com"},
	}, nil)

	msg, err := m.Compose(testReport())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	subject := msg.GetGenHeader("Subject")
	if len(subject) != 1 || !strings.Contains(subject[0], "CLI001") || !strings.Contains(subject[0], "partial success") {
		t.Errorf("subject = %v", subject)
	}
}

func TestBody(t *testing.T) {
	b := body(testReport())
	for _, want := range []string{
		"customer CLI001",
		"partial success",
		"Database: ok - client terminated, 2 contracts terminated",
		"Directory: FAILED - connect: ldap unreachable",
		"External API: ok - 2 services removed, client disabled",
		"- directory: connect: ldap unreachable",
	} {
		if !strings.Contains(b, want) {
			t.Errorf("body missing %q:\n%s", want, b)
		}
	}
}

func TestCompose_RejectsBadSender(t *testing.T) {
	m := NewMailer(config.Notify{
		Host:       "smtp.testex.local",
		Sender:     "not-an-address",
		Recipients: []string{"ops@testex.com"},
	}, nil)
	if _, err := m.Compose(testReport()); err == nil {
		t.Fatalf("expected error for malformed sender")
	}
}
