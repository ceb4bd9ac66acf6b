package nfe

import (
	"fmt"

	pkgnfe "github.com/oficinapro/fiscal-api/pkg/nfe"
)

// Operacao identifica o serviço SOAP da SEFAZ a ser chamado.
type Operacao string

const (
	OperacaoAutorizacao    Operacao = "NFeAutorizacao4"
	OperacaoRetAutorizacao Operacao = "NFeRetAutorizacao4"
	OperacaoRecepcaoEvento Operacao = "NFeRecepcaoEvento4"
)

// endpointSet URLs dos três serviços de um mesmo ambiente.
type endpointSet struct {
	Autorizacao    string
	RetAutorizacao string
	RecepcaoEvento string
}

// Autorizadores próprios. As demais UFs são atendidas pela SVRS.
var endpointsProducao = map[string]endpointSet{
	"SP": {
		Autorizacao:    "https://nfe.fazenda.sp.gov.br/ws/nfeautorizacao4.asmx",
		RetAutorizacao: "https://nfe.fazenda.sp.gov.br/ws/nferetautorizacao4.asmx",
		RecepcaoEvento: "https://nfe.fazenda.sp.gov.br/ws/nferecepcaoevento4.asmx",
	},
	"MG": {
		Autorizacao:    "https://nfe.fazenda.mg.gov.br/nfe2/services/NFeAutorizacao4",
		RetAutorizacao: "https://nfe.fazenda.mg.gov.br/nfe2/services/NFeRetAutorizacao4",
		RecepcaoEvento: "https://nfe.fazenda.mg.gov.br/nfe2/services/NFeRecepcaoEvento4",
	},
	"PR": {
		Autorizacao:    "https://nfe.sefa.pr.gov.br/nfe/NFeAutorizacao4",
		RetAutorizacao: "https://nfe.sefa.pr.gov.br/nfe/NFeRetAutorizacao4",
		RecepcaoEvento: "https://nfe.sefa.pr.gov.br/nfe/NFeRecepcaoEvento4",
	},
	"RS": {
		Autorizacao:    "https://nfe.sefazrs.rs.gov.br/ws/NfeAutorizacao/NFeAutorizacao4.asmx",
		RetAutorizacao: "https://nfe.sefazrs.rs.gov.br/ws/NfeRetAutorizacao/NFeRetAutorizacao4.asmx",
		RecepcaoEvento: "https://nfe.sefazrs.rs.gov.br/ws/recepcaoevento/recepcaoevento4.asmx",
	},
}

var endpointsHomologacao = map[string]endpointSet{
	"SP": {
		Autorizacao:    "https://homologacao.nfe.fazenda.sp.gov.br/ws/nfeautorizacao4.asmx",
		RetAutorizacao: "https://homologacao.nfe.fazenda.sp.gov.br/ws/nferetautorizacao4.asmx",
		RecepcaoEvento: "https://homologacao.nfe.fazenda.sp.gov.br/ws/nferecepcaoevento4.asmx",
	},
	"MG": {
		Autorizacao:    "https://hnfe.fazenda.mg.gov.br/nfe2/services/NFeAutorizacao4",
		RetAutorizacao: "https://hnfe.fazenda.mg.gov.br/nfe2/services/NFeRetAutorizacao4",
		RecepcaoEvento: "https://hnfe.fazenda.mg.gov.br/nfe2/services/NFeRecepcaoEvento4",
	},
	"PR": {
		Autorizacao:    "https://homologacao.nfe.sefa.pr.gov.br/nfe/NFeAutorizacao4",
		RetAutorizacao: "https://homologacao.nfe.sefa.pr.gov.br/nfe/NFeRetAutorizacao4",
		RecepcaoEvento: "https://homologacao.nfe.sefa.pr.gov.br/nfe/NFeRecepcaoEvento4",
	},
	"RS": {
		Autorizacao:    "https://nfe-homologacao.sefazrs.rs.gov.br/ws/NfeAutorizacao/NFeAutorizacao4.asmx",
		RetAutorizacao: "https://nfe-homologacao.sefazrs.rs.gov.br/ws/NfeRetAutorizacao/NFeRetAutorizacao4.asmx",
		RecepcaoEvento: "https://nfe-homologacao.sefazrs.rs.gov.br/ws/recepcaoevento/recepcaoevento4.asmx",
	},
}

// SVRS atende as UFs sem autorizador próprio.
var (
	svrsProducao = endpointSet{
		Autorizacao:    "https://nfe.svrs.rs.gov.br/ws/NfeAutorizacao/NFeAutorizacao4.asmx",
		RetAutorizacao: "https://nfe.svrs.rs.gov.br/ws/NfeRetAutorizacao/NFeRetAutorizacao4.asmx",
		RecepcaoEvento: "https://nfe.svrs.rs.gov.br/ws/recepcaoevento/recepcaoevento4.asmx",
	}
	svrsHomologacao = endpointSet{
		Autorizacao:    "https://nfe-homologacao.svrs.rs.gov.br/ws/NfeAutorizacao/NFeAutorizacao4.asmx",
		RetAutorizacao: "https://nfe-homologacao.svrs.rs.gov.br/ws/NfeRetAutorizacao/NFeRetAutorizacao4.asmx",
		RecepcaoEvento: "https://nfe-homologacao.svrs.rs.gov.br/ws/recepcaoevento/recepcaoevento4.asmx",
	}
)

// EndpointFor resolve a URL do serviço para a UF e o ambiente (1=produção,
// 2=homologação). UF sem autorizador próprio cai na SVRS.
func EndpointFor(uf, ambiente string, op Operacao) (string, error) {
	var table map[string]endpointSet
	var fallback endpointSet
	switch ambiente {
	case pkgnfe.AmbienteProducao:
		table, fallback = endpointsProducao, svrsProducao
	case pkgnfe.AmbienteHomologacao:
		table, fallback = endpointsHomologacao, svrsHomologacao
	default:
		return "", fmt.Errorf("nfe: ambiente desconhecido %q (usar '1' ou '2')", ambiente)
	}

	set, ok := table[uf]
	if !ok {
		set = fallback
	}
	switch op {
	case OperacaoAutorizacao:
		return set.Autorizacao, nil
	case OperacaoRetAutorizacao:
		return set.RetAutorizacao, nil
	case OperacaoRecepcaoEvento:
		return set.RecepcaoEvento, nil
	}
	return "", fmt.Errorf("nfe: operação desconhecida %q", op)
}
