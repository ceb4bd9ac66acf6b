// Package nfe: regras compartilhadas de documento fiscal eletrônico (NF-e modelo 55).
// Chave de acesso de 44 dígitos, dígito verificador módulo 11 e validação de CPF/CNPJ.
package nfe

import (
	"fmt"
	"strings"
	"time"
)

// ChaveParams contém os campos de largura fixa que compõem a chave de acesso,
// na ordem exigida pelo layout: cUF(2) AAMM(4) CNPJ(14) mod(2) serie(3) nNF(9) tpEmis(1) cNF(8) cDV(1).
type ChaveParams struct {
	UF       string    // código IBGE da UF do emitente (2 dígitos, ex: "35" = SP)
	Emissao  time.Time // usada para AAMM (ano/mês de emissão)
	CNPJ     string    // CNPJ do emitente (com ou sem pontuação)
	Modelo   string    // modelo do documento ("55" = NF-e)
	Serie    int       // série do documento
	Numero   int64     // número sequencial da nota
	TpEmis   string    // tipo de emissão ("1" = normal)
	CodigoNF string    // código numérico aleatório de 8 dígitos (cNF)
}

// ChaveGeneratorService monta a chave de acesso de 44 dígitos.
type ChaveGeneratorService struct{}

// NewChaveGeneratorService cria o serviço.
func NewChaveGeneratorService() *ChaveGeneratorService {
	return &ChaveGeneratorService{}
}

// Generate concatena os campos de largura fixa (43 dígitos), calcula o dígito
// verificador módulo 11 e devolve a chave completa de 44 dígitos.
// Com os mesmos parâmetros o resultado é sempre o mesmo (determinístico).
func (s *ChaveGeneratorService) Generate(p *ChaveParams) (string, error) {
	if p == nil {
		return "", fmt.Errorf("nfe: ChaveParams é obrigatório")
	}
	cnpj := OnlyDigits(p.CNPJ)
	if len(cnpj) != 14 {
		return "", fmt.Errorf("nfe: CNPJ do emitente deve ter 14 dígitos, veio %d", len(cnpj))
	}
	uf := OnlyDigits(p.UF)
	if len(uf) != 2 {
		return "", fmt.Errorf("nfe: código da UF deve ter 2 dígitos, veio %q", p.UF)
	}
	modelo := p.Modelo
	if modelo == "" {
		modelo = ModeloNFe
	}
	tpEmis := p.TpEmis
	if tpEmis == "" {
		tpEmis = TpEmisNormal
	}
	cnf := OnlyDigits(p.CodigoNF)
	if len(cnf) != 8 {
		return "", fmt.Errorf("nfe: cNF deve ter 8 dígitos, veio %d", len(cnf))
	}
	if p.Numero <= 0 {
		return "", fmt.Errorf("nfe: número da nota deve ser positivo")
	}

	base := uf +
		p.Emissao.Format("0601") + // AAMM
		cnpj +
		modelo +
		fmt.Sprintf("%03d", p.Serie) +
		fmt.Sprintf("%09d", p.Numero) +
		tpEmis +
		cnf

	if len(base) != 43 {
		return "", fmt.Errorf("nfe: base da chave com %d dígitos (esperado 43)", len(base))
	}
	dv := computeDV(base)
	return base + string(rune('0'+dv)), nil
}

// ValidateChave verifica formato (44 dígitos numéricos) e dígito verificador.
func ValidateChave(chave string) error {
	chave = strings.TrimSpace(chave)
	if len(chave) != 44 {
		return fmt.Errorf("nfe: chave deve ter exatamente 44 dígitos (tem %d)", len(chave))
	}
	for _, c := range chave {
		if c < '0' || c > '9' {
			return fmt.Errorf("nfe: chave deve conter apenas números")
		}
	}
	if computeDV(chave[:43]) != int(chave[43]-'0') {
		return fmt.Errorf("nfe: dígito verificador da chave inválido")
	}
	return nil
}

// computeDV calcula o dígito verificador módulo 11 da chave.
// Pesos 2..9 aplicados da direita para a esquerda; resto < 2 → 0, senão 11-resto.
func computeDV(base string) int {
	mult := 2
	soma := 0
	for i := len(base) - 1; i >= 0; i-- {
		soma += int(base[i]-'0') * mult
		mult++
		if mult > 9 {
			mult = 2
		}
	}
	resto := soma % 11
	if resto < 2 {
		return 0
	}
	return 11 - resto
}

// OnlyDigits remove tudo que não é dígito 0-9 (CNPJ/CPF com pontuação, chaves copiadas).
func OnlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
