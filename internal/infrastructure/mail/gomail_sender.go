// Package mail envia o DANFE por e-mail ao destinatário da nota.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"

	gomail "gopkg.in/gomail.v2"

	"github.com/oficinapro/fiscal-api/internal/domain"
	"github.com/oficinapro/fiscal-api/pkg/config"
)

// GomailSender despacha e-mails via SMTP com o PDF anexado. Usado pelo
// pipeline pós-autorização em modo melhor esforço: falha de envio é logada e
// nunca reverte a autorização.
type GomailSender struct {
	cfg config.SMTPConfig
}

func NewGomailSender(cfg config.SMTPConfig) *GomailSender {
	return &GomailSender{cfg: cfg}
}

// SendDANFE envia o PDF da nota para o e-mail do cliente.
func (s *GomailSender) SendDANFE(ctx context.Context, to, subject, body string, pdf []byte, filename string) error {
	if s.cfg.Host == "" {
		return domain.NewFiscalError(domain.KindEmailDispatch, "SMTP não configurado")
	}
	if to == "" {
		return domain.NewFiscalError(domain.KindEmailDispatch, "destinatário sem e-mail")
	}
	if err := ctx.Err(); err != nil {
		return domain.WrapFiscal(domain.KindEmailDispatch, "contexto cancelado antes do envio", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	if len(pdf) > 0 {
		m.Attach(filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := io.Copy(w, bytes.NewReader(pdf))
			return err
		}))
	}

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return domain.WrapFiscal(domain.KindEmailDispatch,
			fmt.Sprintf("enviar DANFE para %s", to), err)
	}
	return nil
}
