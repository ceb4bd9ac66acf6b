package nfe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oficinapro/fiscal-api/internal/infrastructure/nfe"
)

const respAutorizada = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <nfeResultMsg xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeRetAutorizacao4">
      <retConsReciNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
        <tpAmb>2</tpAmb>
        <cStat>104</cStat>
        <xMotivo>Lote processado</xMotivo>
        <protNFe versao="4.00">
          <infProt>
            <tpAmb>2</tpAmb>
            <chNFe>35250732409620000175550010000037471011544648</chNFe>
            <dhRecbto>2025-07-10T14:31:02-03:00</dhRecbto>
            <nProt>135250000012345</nProt>
            <cStat>100</cStat>
            <xMotivo>Autorizado o uso da NF-e</xMotivo>
          </infProt>
        </protNFe>
      </retConsReciNFe>
    </nfeResultMsg>
  </soap:Body>
</soap:Envelope>`

const respProcessando = `<?xml version="1.0" encoding="UTF-8"?>
<retEnviNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
  <tpAmb>2</tpAmb>
  <cStat>103</cStat>
  <xMotivo>Lote recebido com sucesso</xMotivo>
  <infRec>
    <nRec>351000012345678</nRec>
    <tMed>1</tMed>
  </infRec>
</retEnviNFe>`

const respEvento = `<?xml version="1.0" encoding="UTF-8"?>
<retEnvEvento xmlns="http://www.portalfiscal.inf.br/nfe" versao="1.00">
  <retEvento versao="1.00">
    <infEvento>
      <tpAmb>2</tpAmb>
      <cStat>135</cStat>
      <xMotivo>Evento registrado e vinculado a NF-e</xMotivo>
      <chNFe>35250732409620000175550010000037471011544648</chNFe>
      <nProt>135250000054321</nProt>
    </infEvento>
  </retEvento>
</retEnvEvento>`

// O protocolo de autorização é extraído do infProt mesmo com o resultado do
// lote (cStat 104) por cima e envelope SOAP por fora.
func TestResponseParser_Autorizada(t *testing.T) {
	parser := nfe.NewResponseParserService()

	resp := parser.Parse([]byte(respAutorizada))
	require.NotNil(t, resp)

	assert.Equal(t, 100, resp.CStat)
	assert.True(t, resp.Authorized())
	assert.False(t, resp.Processing())
	assert.Equal(t, "Autorizado o uso da NF-e", resp.Motivo)
	assert.Equal(t, "135250000012345", resp.Protocolo)
	assert.Equal(t, "35250732409620000175550010000037471011544648", resp.Chave)
	assert.NotEmpty(t, resp.Recebido)
}

// Lote na fila: sem infProt, o cStat genérico é usado e o recibo vem do infRec.
func TestResponseParser_LoteRecebido(t *testing.T) {
	parser := nfe.NewResponseParserService()

	resp := parser.Parse([]byte(respProcessando))

	assert.Equal(t, 103, resp.CStat)
	assert.False(t, resp.Authorized())
	assert.True(t, resp.Processing())
	assert.Equal(t, "351000012345678", resp.Recibo)
}

// cStat 105 é processamento em andamento.
func TestResponseParser_EmProcessamento(t *testing.T) {
	parser := nfe.NewResponseParserService()

	xml := `<retConsReciNFe xmlns="http://www.portalfiscal.inf.br/nfe"><cStat>105</cStat><xMotivo>Lote em processamento</xMotivo></retConsReciNFe>`
	resp := parser.Parse([]byte(xml))

	assert.Equal(t, 105, resp.CStat)
	assert.True(t, resp.Processing())
}

// Evento de cancelamento registrado (cStat 135) via infEvento.
func TestResponseParser_EventoRegistrado(t *testing.T) {
	parser := nfe.NewResponseParserService()

	resp := parser.Parse([]byte(respEvento))

	assert.Equal(t, 135, resp.CStat)
	assert.True(t, resp.EventAccepted())
	assert.Equal(t, "135250000054321", resp.Protocolo)
}

// Rejeição simples propaga cStat e motivo sem protocolo.
func TestResponseParser_Rejeicao(t *testing.T) {
	parser := nfe.NewResponseParserService()

	xml := `<retEnviNFe xmlns="http://www.portalfiscal.inf.br/nfe"><cStat>225</cStat><xMotivo>Rejeicao: Falha no Schema XML</xMotivo></retEnviNFe>`
	resp := parser.Parse([]byte(xml))

	assert.Equal(t, 225, resp.CStat)
	assert.False(t, resp.Authorized())
	assert.False(t, resp.Processing())
	assert.Contains(t, resp.Motivo, "Falha no Schema")
}

// Resposta ilegível nunca derruba o fluxo: cStat 0 e o corpo fica no Raw.
func TestResponseParser_RespostaIlegivel(t *testing.T) {
	parser := nfe.NewResponseParserService()

	t.Run("não é XML", func(t *testing.T) {
		resp := parser.Parse([]byte("<html>erro 500</html"))
		assert.Equal(t, 0, resp.CStat)
		assert.NotEmpty(t, resp.Motivo)
	})

	t.Run("XML sem cStat", func(t *testing.T) {
		resp := parser.Parse([]byte(`<foo><bar>1</bar></foo>`))
		assert.Equal(t, 0, resp.CStat)
		assert.NotEmpty(t, resp.Motivo)
		assert.Contains(t, resp.Raw, "<foo>")
	})
}
