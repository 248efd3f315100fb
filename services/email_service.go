package services

import (
	"fmt"
	"time"

	"pagovecinal/config"
	"pagovecinal/models"

	"gopkg.in/gomail.v2"
)

// EmailService sends owner-facing notifications. Every call site treats a
// send failure as best-effort: logged, never rolled into the primary result.
type EmailService struct {
	dialer *gomail.Dialer
	from   string
	config *config.Config
}

// NewEmailService creates a new EmailService
func NewEmailService(cfg *config.Config) *EmailService {
	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)

	return &EmailService{
		dialer: dialer,
		from:   cfg.SMTP.From,
		config: cfg,
	}
}

// SendEmail sends a single HTML message
func (s *EmailService) SendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}

	return nil
}

// SendPaymentApprovedNotification tells the owner their payment was approved.
// The receipt may be nil when issuance failed; the notification still goes out.
func (s *EmailService) SendPaymentApprovedNotification(user *models.User, payment *models.Payment, receipt *models.Receipt) error {
	subject := "Pago aprobado"

	receiptLine := ""
	if receipt != nil {
		receiptLine = fmt.Sprintf("<p>Recibo: %s</p>", receipt.CorrelativeNumber)
	}

	body := fmt.Sprintf(`
		<h2>Pago aprobado</h2>
		<p>Estimado(a) %s,</p>
		<p>Su pago de %.2f del %s ha sido aprobado.</p>
		%s
		<p>Gracias por mantenerse al día con sus cuotas.</p>
	`, user.FullName, payment.Amount, payment.PaymentDate.Format("02/01/2006"), receiptLine)

	return s.SendEmail(user.Email, subject, body)
}

// SendAgreementCompletedNotification congratulates the owner on finishing
// their installment plan
func (s *EmailService) SendAgreementCompletedNotification(user *models.User, agreement *models.Agreement) error {
	subject := "Convenio de pago completado"

	body := fmt.Sprintf(`
		<h2>¡Felicidades!</h2>
		<p>Estimado(a) %s,</p>
		<p>Su convenio de pago %s ha sido completado en su totalidad.</p>
		<p>Deuda saldada: %.2f</p>
		<p>Fecha: %s</p>
		<p>Gracias por cumplir con su plan de pagos.</p>
	`, user.FullName, agreement.AgreementNumber, agreement.TotalDebt, time.Now().Format("02/01/2006"))

	return s.SendEmail(user.Email, subject, body)
}

// SendWelcomeEmail greets a newly registered owner
func (s *EmailService) SendWelcomeEmail(user *models.User) error {
	subject := "Bienvenido al sistema de pago vecinal"

	body := fmt.Sprintf(`
		<h2>Bienvenido(a)</h2>
		<p>Estimado(a) %s,</p>
		<p>Su cuenta ha sido creada. Desde el portal puede consultar sus cuotas,
		registrar pagos y revisar sus recibos.</p>
	`, user.FullName)

	return s.SendEmail(user.Email, subject, body)
}
