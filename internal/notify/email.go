package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/oszuidwest/zwfm-capture/internal/types"
	"github.com/oszuidwest/zwfm-capture/internal/util"
	"github.com/wneessen/go-mail"
)

// EmailConfig contains SMTP server settings for email notifications.
type EmailConfig struct {
	Host       string
	Port       int
	FromName   string
	Username   string
	Password   string
	Recipients string
}

// SendArtifactEmail sends an email notification for a saved recording.
func SendArtifactEmail(cfg *EmailConfig, sessionID string, artifact types.ArtifactInfo) error {
	if !util.IsConfigured(cfg.Host, cfg.Username, cfg.Recipients) {
		return nil // Silently skip if not configured
	}

	subject := "[OK] Recording Saved - ZuidWest FM Capture"
	body := fmt.Sprintf(
		"A recording was saved.\n\n"+
			"File:    %s\n"+
			"Size:    %s\n"+
			"Type:    %s\n"+
			"Session: %s\n"+
			"Time:    %s",
		artifact.Name,
		humanize.Bytes(uint64(max(artifact.Size, 0))),
		artifact.ContentType,
		sessionID,
		time.UnixMilli(artifact.CreatedAt).Format(util.HumanTimeFormat),
	)

	return sendEmail(cfg, subject, body)
}

// SendFailureEmail sends an email notification when a capture fails.
func SendFailureEmail(cfg *EmailConfig, sessionID, kind, message string) error {
	if !util.IsConfigured(cfg.Host, cfg.Username, cfg.Recipients) {
		return nil // Silently skip if not configured
	}

	subject := "[ALERT] Capture Failed - ZuidWest FM Capture"
	body := fmt.Sprintf(
		"The microphone could not be recorded.\n\n"+
			"Reason:  %s\n"+
			"Error:   %s\n"+
			"Session: %s\n"+
			"Time:    %s\n\n"+
			"%s",
		kind, message, sessionID, util.HumanTime(), failureAdvice(kind),
	)

	return sendEmail(cfg, subject, body)
}

// failureAdvice returns the operator hint for an error kind.
func failureAdvice(kind string) string {
	if kind == "permission_denied" {
		return "Grant microphone access to the capture service and start a new recording."
	}
	return "Please check the audio input device."
}

// SendTestEmail sends a test email to verify SMTP configuration.
func SendTestEmail(cfg *EmailConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("SMTP host not configured")
	}
	if cfg.Username == "" {
		return fmt.Errorf("email username not configured")
	}
	if cfg.Recipients == "" {
		return fmt.Errorf("email recipients not configured")
	}

	subject := "[TEST] ZuidWest FM Capture"
	body := fmt.Sprintf(
		"Test email from the capture service.\n\n"+
			"Time: %s\n\n"+
			"SMTP configuration is working correctly.",
		util.HumanTime(),
	)

	return sendEmail(cfg, subject, body)
}

// parseRecipients splits a comma-separated recipient list.
func parseRecipients(list string) []string {
	var recipients []string
	for r := range strings.SplitSeq(list, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	return recipients
}

// sendEmail delivers an email message to configured recipients.
func sendEmail(cfg *EmailConfig, subject, body string) error {
	recipients := parseRecipients(cfg.Recipients)
	if len(recipients) == 0 {
		return fmt.Errorf("no valid recipients")
	}

	m := mail.NewMsg()
	if cfg.FromName != "" {
		if err := m.FromFormat(cfg.FromName, cfg.Username); err != nil {
			return util.WrapError("set from address", err)
		}
	} else {
		if err := m.From(cfg.Username); err != nil {
			return util.WrapError("set from address", err)
		}
	}
	if err := m.To(recipients...); err != nil {
		return util.WrapError("set recipient address", err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)

	c, err := mail.NewClient(cfg.Host, clientOptions(cfg)...)
	if err != nil {
		return util.WrapError("create SMTP client", err)
	}

	if err := c.DialAndSend(m); err != nil {
		return util.WrapError("send email", err)
	}

	return nil
}

// clientOptions builds SMTP client options with port-appropriate TLS settings.
func clientOptions(cfg *EmailConfig) []mail.Option {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}

	switch cfg.Port {
	case 465: // SMTPS - implicit TLS
		opts = append(opts, mail.WithSSL())
	case 587: // Submission - STARTTLS required
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	default: // Port 25 or custom - opportunistic TLS
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}
	return opts
}
