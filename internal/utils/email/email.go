package email

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/drivewise/drivewise/internal/config"
)

// Sender handles sending emails via SMTP. When no SMTP host is configured
// every send is a silent no-op, so local setups work without a mail server.
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendWelcome sends a greeting to a freshly registered user
func (s *Sender) SendWelcome(to, name string) error {
	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Welcome to DriveWise! Your account has been created.\n"+
			"You can now list your car for sale or browse thousands of listings.\n"+
			"\nBest regards,\nDriveWise",
		name,
	)
	return s.send(to, "Welcome to DriveWise", body)
}

// SendPasswordReset sends a password reset link
func (s *Sender) SendPasswordReset(to, name, resetURL string) error {
	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"We received a request to reset your DriveWise password.\n"+
			"Open the link below to choose a new password. The link expires in 15 minutes.\n\n"+
			"%s\n\n"+
			"If you did not request this, you can ignore this email.\n"+
			"\nBest regards,\nDriveWise",
		name, resetURL,
	)
	return s.send(to, "Reset your DriveWise password", body)
}

func (s *Sender) send(to, subject, body string) error {
	if s.cfg.SMTPHost == "" {
		s.logger.Debugf("SMTP not configured, skipping email to %s: %s", to, subject)
		return nil
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}
