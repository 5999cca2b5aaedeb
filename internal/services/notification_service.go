package services

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/johkker/delice/internal/verification"
)

type codeCopy struct {
	Subject string
	Heading string
	Intro   string
}

var emailCodeCopy = map[verification.Kind]codeCopy{
	verification.KindRegistration: {
		Subject: "Código de Verificação - Delice",
		Heading: "Confirme seu e-mail",
		Intro:   "Use o código abaixo para confirmar o e-mail da sua conta Delice.",
	},
	verification.KindEmailChange: {
		Subject: "Confirme seu novo e-mail - Delice",
		Heading: "Alteração de e-mail",
		Intro:   "Recebemos um pedido para usar este endereço na sua conta Delice. Informe o código abaixo para confirmar.",
	},
	verification.KindPasswordChange: {
		Subject: "Confirmação de alteração de senha - Delice",
		Heading: "Alteração de senha",
		Intro:   "Recebemos um pedido para alterar a senha da sua conta Delice. Informe o código abaixo para confirmar. Se não foi você, ignore este e-mail.",
	},
}

const codeEmailHTML = `<!DOCTYPE html>
<html lang="pt-BR">
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1>{{.Heading}}</h1>
    <p>Olá {{.Name}},</p>
    <p>{{.Intro}}</p>
    <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
    <p>O código é válido por {{.Minutes}} minutos.</p>
    <p style="color: #666; font-size: 12px;">Esta é uma mensagem automática, não responda.</p>
  </div>
</body>
</html>`

const codeEmailText = `{{.Heading}}

Olá {{.Name}},

{{.Intro}}

Código: {{.Code}}

O código é válido por {{.Minutes}} minutos.
`

const welcomeEmailHTML = `<!DOCTYPE html>
<html lang="pt-BR">
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1>Bem-vindo à Delice, {{.Name}}!</h1>
    <p>Sua conta foi criada com sucesso. Agora você já pode explorar os produtos dos nossos produtores.</p>
  </div>
</body>
</html>`

const welcomeEmailText = `Bem-vindo à Delice, {{.Name}}!

Sua conta foi criada com sucesso. Agora você já pode explorar os produtos dos nossos produtores.
`

var (
	codeHTMLTmpl    = htmltemplate.Must(htmltemplate.New("code_html").Parse(codeEmailHTML))
	codeTextTmpl    = texttemplate.Must(texttemplate.New("code_text").Parse(codeEmailText))
	welcomeHTMLTmpl = htmltemplate.Must(htmltemplate.New("welcome_html").Parse(welcomeEmailHTML))
	welcomeTextTmpl = texttemplate.Must(texttemplate.New("welcome_text").Parse(welcomeEmailText))
)

type templateData struct {
	codeCopy
	Name    string
	Code    string
	Minutes int
}

// NotificationService renders verification and welcome messages and routes
// them to the email or SMS sender.
type NotificationService struct {
	email  EmailSender
	sms    SMSSender
	logger *slog.Logger
}

func NewNotificationService(email EmailSender, sms SMSSender, logger *slog.Logger) *NotificationService {
	return &NotificationService{email: email, sms: sms, logger: logger}
}

// SendCode implements verification.Notifier.
func (s *NotificationService) SendCode(ctx context.Context, d verification.Delivery) error {
	minutes := int(d.TTL.Round(time.Minute) / time.Minute)
	name := firstName(d.To.Name)

	switch d.Channel {
	case verification.ChannelPhone:
		return s.sms.SendSMS(ctx, d.To.Address, smsText(d.Kind, name, d.Code, minutes))

	case verification.ChannelEmail:
		text, ok := emailCodeCopy[d.Kind]
		if !ok {
			return fmt.Errorf("no email template for %s", d.Kind)
		}

		data := templateData{codeCopy: text, Name: name, Code: d.Code, Minutes: minutes}
		msg, err := render(d.To.Address, text.Subject, codeHTMLTmpl, codeTextTmpl, data)
		if err != nil {
			return err
		}
		return s.email.SendEmail(ctx, msg)
	}

	return fmt.Errorf("unsupported channel %q", d.Channel)
}

// SendWelcome sends the post-registration welcome email.
func (s *NotificationService) SendWelcome(ctx context.Context, name, email string) error {
	data := templateData{Name: firstName(name)}
	msg, err := render(email, "Bem-vindo à Delice!", welcomeHTMLTmpl, welcomeTextTmpl, data)
	if err != nil {
		return err
	}
	return s.email.SendEmail(ctx, msg)
}

func smsText(kind verification.Kind, name, code string, minutes int) string {
	if kind == verification.KindPhoneChange {
		return fmt.Sprintf("Delice: use o código %s para confirmar seu novo telefone. Válido por %d minutos.", code, minutes)
	}
	return fmt.Sprintf("Olá %s, seu código de verificação Delice é: %s. Válido por %d minutos.", name, code, minutes)
}

func render(to, subject string, html *htmltemplate.Template, text *texttemplate.Template, data templateData) (EmailMessage, error) {
	var h, t bytes.Buffer
	if err := html.Execute(&h, data); err != nil {
		return EmailMessage{}, fmt.Errorf("render html: %w", err)
	}
	if err := text.Execute(&t, data); err != nil {
		return EmailMessage{}, fmt.Errorf("render text: %w", err)
	}
	return EmailMessage{To: to, Subject: subject, HTML: h.String(), Text: t.String()}, nil
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "cliente"
	}
	return fields[0]
}

// timeoutNotifier bounds every send so a hanging provider cannot hold the
// request open.
type timeoutNotifier struct {
	next    verification.Notifier
	timeout time.Duration
}

func withSendTimeout(next verification.Notifier, timeout time.Duration) verification.Notifier {
	if timeout <= 0 {
		return next
	}
	return &timeoutNotifier{next: next, timeout: timeout}
}

func (n *timeoutNotifier) SendCode(ctx context.Context, d verification.Delivery) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- n.next.SendCode(ctx, d) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send %s code: %w", d.Channel, ctx.Err())
	}
}
