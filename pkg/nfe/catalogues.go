package nfe

// Catálogos do layout NF-e (Manual de Orientação do Contribuinte) usados pelo
// builder de XML e pelo interpretador de respostas da SEFAZ.

// =============================================================================
// Modelo, tipo de emissão e ambiente
// =============================================================================

const (
	ModeloNFe  = "55" // NF-e (produto)
	ModeloNFCe = "65" // NFC-e (consumidor final, não usado na emissão de oficina)

	TpEmisNormal       = "1" // emissão normal
	TpEmisContingencia = "9" // contingência off-line

	AmbienteProducao    = "1" // produção
	AmbienteHomologacao = "2" // homologação
)

// =============================================================================
// Códigos de status (cStat) retornados pela SEFAZ
// =============================================================================

const (
	CStatAutorizado       = 100 // Autorizado o uso da NF-e
	CStatLoteRecebido     = 103 // Lote recebido com sucesso (consultar pelo recibo)
	CStatLoteProcessando  = 105 // Lote em processamento (consultar pelo recibo)
	CStatLoteNaFila       = 106 // Lote na fila de processamento
	CStatEventoRegistrado = 135 // Evento registrado e vinculado à NF-e
	CStatEventoHomologado = 155 // Cancelamento homologado fora de prazo
)

// IsProcessing indica que o lote ainda não tem resultado definitivo e deve ser
// consultado depois pelo número do recibo.
func IsProcessing(cStat int) bool {
	return cStat == CStatLoteRecebido || cStat == CStatLoteProcessando || cStat == CStatLoteNaFila
}

// IsEventAccepted indica aceitação de evento (cancelamento/carta de correção).
func IsEventAccepted(cStat int) bool {
	return cStat == CStatEventoRegistrado || cStat == CStatEventoHomologado
}

// =============================================================================
// Regime tributário (CRT), decide o ramo de cálculo de impostos por linha
// =============================================================================

const (
	RegimeSimples = "1" // Simples Nacional: CSOSN de presunção, sem cálculo por alíquota
	RegimeNormal  = "3" // Regime normal: CST + base × alíquota para ICMS/PIS/COFINS

	CSOSNSimples = "102" // Simples Nacional sem permissão de crédito
	CSTNormal    = "00"  // Tributada integralmente
)

// =============================================================================
// Transporte e pagamento
// =============================================================================

const (
	ModFreteSemFrete = "9" // operação sem ocorrência de transporte

	PagamentoAVista     = "0"  // indPag: pagamento à vista
	MeioPagDinheiro     = "01" // tPag: dinheiro
	MeioPagPix          = "17" // tPag: PIX
	MeioPagSemPagamento = "90"
)

// =============================================================================
// CFOP e unidades de uso frequente em oficina (venda de peças e serviços)
// =============================================================================

const (
	CFOPVendaDentroUF = "5102" // venda de mercadoria adquirida de terceiros, dentro da UF
	CFOPVendaForaUF   = "6102" // idem, interestadual

	UnidadeUN = "UN"
	UnidadePC = "PC"
	UnidadeLT = "LT"
	UnidadeKG = "KG"
)

// =============================================================================
// Eventos pós-autorização
// =============================================================================

const (
	EventoCancelamento    = "110111" // tpEvento de cancelamento
	EventoCartaCorrecao   = "110110" // tpEvento de carta de correção eletrônica
	VersaoEventoCancel    = "1.00"
	VersaoEventoCCe       = "1.00"
)
