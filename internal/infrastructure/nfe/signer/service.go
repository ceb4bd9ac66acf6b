// Assinatura digital envelopada (XML-DSig) da NF-e e dos seus eventos.
// O nó <Signature> é inserido como irmão do elemento referenciado (infNFe
// ou infEvento), conforme o layout da SEFAZ.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	"github.com/oficinapro/fiscal-api/internal/domain"
	pkgnfe "github.com/oficinapro/fiscal-api/pkg/nfe"
)

// XMLDSigService implementa pkg/nfe.Signer. O documento de entrada nunca é
// mutado: a injeção acontece em uma cópia parseada.
type XMLDSigService struct{}

func NewXMLDSigService() *XMLDSigService {
	return &XMLDSigService{}
}

// Sign assina o documento e devolve o XML com o nó Signature injetado.
// A Reference aponta para o atributo Id do infNFe (ou infEvento), com
// transforms enveloped + C14N, digest SHA-256 e RSA-PKCS1v15.
func (s *XMLDSigService) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, domain.NewFiscalError(domain.KindSignature, "documento vazio")
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, domain.NewFiscalError(domain.KindCertificateInvalid,
			"a chave privada do certificado deve ser RSA")
	}
	x509Cert := cert.Leaf
	if x509Cert == nil {
		parsed, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, domain.WrapFiscal(domain.KindCertificateInvalid, "parsear certificado", err)
		}
		x509Cert = parsed
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, domain.WrapFiscal(domain.KindSignature, "parsear documento", err)
	}
	target := findSignableElement(doc.Root())
	if target == nil {
		return nil, domain.NewFiscalError(domain.KindSignature,
			"documento sem elemento com atributo Id para referenciar")
	}
	refID := target.SelectAttrValue("Id", "")

	// 1) Digest da subárvore referenciada, canonicalizada com os namespaces
	// herdados. É o que um verificador computa ao resolver a URI "#Id".
	subtree, err := detachedSubtree(target)
	if err != nil {
		return nil, domain.WrapFiscal(domain.KindSignature, "serializar elemento referenciado", err)
	}
	canonicalRef, err := canonicalizeXML(subtree)
	if err != nil {
		return nil, domain.WrapFiscal(domain.KindSignature, "canonicalizar elemento referenciado", err)
	}
	refDigest := sha256.Sum256(canonicalRef)

	// 2) SignedInfo canonicalizado, hash e assinatura RSA.
	signedInfoXML := buildSignedInfo(refID, base64.StdEncoding.EncodeToString(refDigest[:]))
	canonicalSignedInfo, err := canonicalizeXML([]byte(signedInfoXML))
	if err != nil {
		return nil, domain.WrapFiscal(domain.KindSignature, "canonicalizar SignedInfo", err)
	}
	signHash := sha256.Sum256(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA256, signHash[:])
	if err != nil {
		return nil, domain.WrapFiscal(domain.KindSignature, "assinar SignedInfo", err)
	}

	// 3) Nó Signature completo. O certificado vai cru em base64, sem
	// delimitadores PEM.
	signatureXML := buildSignature(signedInfoXML,
		base64.StdEncoding.EncodeToString(signatureValue),
		base64.StdEncoding.EncodeToString(x509Cert.Raw))

	// 4) Injeção como irmão do elemento referenciado.
	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, domain.WrapFiscal(domain.KindSignature, "parsear nó Signature", err)
	}
	parent := target.Parent()
	if parent == nil {
		return nil, domain.NewFiscalError(domain.KindSignature, "elemento referenciado sem pai")
	}
	parent.AddChild(sigDoc.Root())

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, domain.WrapFiscal(domain.KindSignature, "serializar documento assinado", err)
	}
	return out.Bytes(), nil
}

// findSignableElement localiza o elemento a referenciar: infNFe ou infEvento,
// senão o primeiro com atributo Id.
func findSignableElement(el *etree.Element) *etree.Element {
	if el == nil {
		return nil
	}
	for _, tag := range []string{"infNFe", "infEvento"} {
		if found := findByTag(el, tag); found != nil && found.SelectAttr("Id") != nil {
			return found
		}
	}
	return findWithID(el)
}

func findByTag(el *etree.Element, tag string) *etree.Element {
	if el.Tag == tag {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findByTag(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func findWithID(el *etree.Element) *etree.Element {
	if el.SelectAttr("Id") != nil {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findWithID(child); found != nil {
			return found
		}
	}
	return nil
}

// detachedSubtree serializa o elemento referenciado como documento próprio,
// copiando para ele as declarações de namespace herdadas dos ancestrais, que
// de outro modo se perderiam fora do documento original.
func detachedSubtree(target *etree.Element) ([]byte, error) {
	cp := target.Copy()
	for anc := target.Parent(); anc != nil; anc = anc.Parent() {
		for _, attr := range anc.Attr {
			if attr.Space != "xmlns" && !(attr.Space == "" && attr.Key == "xmlns") {
				continue
			}
			full := attr.Key
			if attr.Space != "" {
				full = attr.Space + ":" + attr.Key
			}
			if cp.SelectAttr(full) == nil {
				cp.CreateAttr(full, attr.Value)
			}
		}
	}
	doc := etree.NewDocument()
	doc.SetRoot(cp)
	return doc.WriteToBytes()
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func buildSignedInfo(refID, docDigestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<SignedInfo xmlns="` + NamespaceDS + `">`)
	sb.WriteString(`<CanonicalizationMethod Algorithm="` + AlgC14N + `"/>`)
	sb.WriteString(`<SignatureMethod Algorithm="` + AlgRSASHA256 + `"/>`)
	sb.WriteString(`<Reference URI="#` + refID + `">`)
	sb.WriteString(`<Transforms><Transform Algorithm="` + TransformEnveloped + `"/>`)
	sb.WriteString(`<Transform Algorithm="` + AlgC14N + `"/></Transforms>`)
	sb.WriteString(`<DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<DigestValue>` + docDigestB64 + `</DigestValue>`)
	sb.WriteString(`</Reference>`)
	sb.WriteString(`</SignedInfo>`)
	return sb.String()
}

func buildSignature(signedInfoXML, signatureValueB64, certB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<Signature xmlns="` + NamespaceDS + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<SignatureValue>` + signatureValueB64 + `</SignatureValue>`)
	sb.WriteString(`<KeyInfo><X509Data><X509Certificate>` + certB64 + `</X509Certificate></X509Data></KeyInfo>`)
	sb.WriteString(`</Signature>`)
	return sb.String()
}

var _ pkgnfe.Signer = (*XMLDSigService)(nil)
