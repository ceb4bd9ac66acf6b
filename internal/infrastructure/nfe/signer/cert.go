// Carga e validação do certificado A1 do emitente (.p12/.pfx).

package signer

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/pkcs12"

	"github.com/oficinapro/fiscal-api/internal/domain"
	"github.com/oficinapro/fiscal-api/pkg/config"
)

// LoadCertificate carrega o certificado do emitente a partir da configuração:
// caminho de arquivo ou blob base64 inline. Valida a vigência e a presença de
// chave RSA antes de devolver; um certificado vencido nunca chega ao signer
// nem ao canal TLS.
func LoadCertificate(cfg config.FiscalConfig) (tls.Certificate, error) {
	data, err := certBytes(cfg)
	if err != nil {
		return tls.Certificate{}, err
	}
	priv, cert, err := pkcs12.Decode(data, cfg.CertPassword)
	if err != nil {
		return tls.Certificate{}, domain.WrapFiscal(domain.KindCertificateInvalid,
			"decodificar PKCS#12 (senha ou formato)", err)
	}
	if err := validate(cert, priv); err != nil {
		return tls.Certificate{}, err
	}
	// pkcs12.Decode devolve só o certificado folha; para a SEFAZ é suficiente.
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}

func certBytes(cfg config.FiscalConfig) ([]byte, error) {
	switch {
	case cfg.CertBlob != "":
		data, err := base64.StdEncoding.DecodeString(cfg.CertBlob)
		if err != nil {
			return nil, domain.WrapFiscal(domain.KindCertificateInvalid,
				"decodificar blob base64 do certificado", err)
		}
		return data, nil
	case cfg.CertPath != "":
		data, err := os.ReadFile(cfg.CertPath)
		if err != nil {
			return nil, domain.WrapFiscal(domain.KindCertificateInvalid,
				fmt.Sprintf("ler certificado %q", cfg.CertPath), err)
		}
		return data, nil
	}
	return nil, domain.NewFiscalError(domain.KindCertificateInvalid,
		"nenhum certificado configurado (FISCAL_CERT_PATH ou FISCAL_CERT_BLOB)")
}

func validate(cert *x509.Certificate, priv interface{}) error {
	now := time.Now()
	if now.After(cert.NotAfter) {
		return domain.NewFiscalError(domain.KindCertificateExpired,
			fmt.Sprintf("certificado vencido em %s", cert.NotAfter.Format("2006-01-02")))
	}
	if now.Before(cert.NotBefore) {
		return domain.NewFiscalError(domain.KindCertificateInvalid,
			fmt.Sprintf("certificado ainda não vigente (início em %s)", cert.NotBefore.Format("2006-01-02")))
	}
	if _, ok := priv.(*rsa.PrivateKey); !ok {
		return domain.NewFiscalError(domain.KindCertificateInvalid,
			"a chave privada do certificado deve ser RSA")
	}
	return nil
}
