package entity

import "time"

// FiscalClient é o cadastro fiscal do destinatário (tomador), mantido à parte
// do cliente comercial do ERP. CpfCnpj decide pessoa física vs jurídica no XML.
type FiscalClient struct {
	ID              string
	Nome            string
	CpfCnpj         string // 11 (CPF) ou 14 (CNPJ) dígitos
	IE              string // inscrição estadual, vazio para pessoa física
	Email           string // se presente, o DANFE é enviado após autorização
	Endereco        string
	CodigoMunicipio string // código IBGE do município (seleciona a estratégia NFS-e)
	UF              string
	CEP             string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsPessoaJuridica indica se o documento é um CNPJ (14 dígitos).
func (c *FiscalClient) IsPessoaJuridica() bool {
	digits := 0
	for _, r := range c.CpfCnpj {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits == 14
}
