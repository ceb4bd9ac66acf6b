// Package nfe: porta para assinatura digital de documentos XML (assinatura
// envelopada sobre infNFe, referenciada pelo atributo Id).

package nfe

import "crypto/tls"

// Signer assina o XML da nota e devolve o documento com o nó Signature
// inserido como irmão do subárvore assinada. A entrada nunca é mutada.
type Signer interface {
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error)
}
