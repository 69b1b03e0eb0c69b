// Package notify sends the completion email summarizing a termination run.
// Notification is best-effort: a send failure is logged and never changes
// the run's outcome.
package notify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/wneessen/go-mail"

	"testex/config"
	"testex/termination"
)

type Mailer struct {
	cfg config.Notify
	log *slog.Logger
}

func NewMailer(cfg config.Notify, log *slog.Logger) *Mailer {
	if log == nil {
		log = slog.Default()
	}
	return &Mailer{cfg: cfg, log: log}
}

// Enabled reports whether notification is configured at all.
func (m *Mailer) Enabled() bool {
	return m.cfg.Host != "" && len(m.cfg.Recipients) > 0
}

// Compose builds the completion message for a finished run.
func (m *Mailer) Compose(report *termination.Report) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.SenderName, m.cfg.Sender); err != nil {
		return nil, fmt.Errorf("notify: sender address: %w", err)
	}
	if err := msg.To(m.cfg.Recipients...); err != nil {
		return nil, fmt.Errorf("notify: recipients: %w", err)
	}
	msg.Subject(fmt.Sprintf("[TESTEX] termination of %s: %s",
		report.CustomerID, report.Classification.String()))
	msg.SetBodyString(mail.TypeTextPlain, body(report))
	return msg, nil
}

// Send composes and delivers the completion email.
func (m *Mailer) Send(report *termination.Report) error {
	msg, err := m.Compose(report)
	if err != nil {
		return err
	}

	opts := []mail.Option{mail.WithPort(m.cfg.Port)}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password))
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("notify: smtp client: %w", err)
	}
	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	m.log.Info("completion email sent", "customer_id", report.CustomerID, "recipients", len(m.cfg.Recipients))
	return nil
}

func body(report *termination.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Termination run %s for customer %s finished: %s.\n\n",
		report.RunID, report.CustomerID, report.Classification.String())
	fmt.Fprintf(&b, "Scope: %s\nMode: %s\nStarted: %s\nDuration: %s\n\n",
		report.Scope, report.Mode, report.StartedAt.Format("2006-01-02 15:04:05 MST"), report.Duration)

	outcome := func(name string, oc termination.OperationOutcome) {
		switch {
		case !oc.Attempted:
			fmt.Fprintf(&b, "%s: skipped\n", name)
		case oc.Success:
			fmt.Fprintf(&b, "%s: ok - %s\n", name, oc.Detail)
		default:
			fmt.Fprintf(&b, "%s: FAILED - %s\n", name, oc.Detail)
		}
	}
	outcome("Database", report.Database)
	outcome("Directory", report.Directory)
	outcome("Files", report.Files)
	outcome("External API", report.ExternalAPI)

	if len(report.Errors) > 0 {
		b.WriteString("\nErrors:\n")
		for _, e := range report.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	return b.String()
}
