package nfe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oficinapro/fiscal-api/pkg/nfe"
)

func chaveParams() *nfe.ChaveParams {
	return &nfe.ChaveParams{
		UF:       "35",
		Emissao:  time.Date(2025, 7, 10, 14, 30, 0, 0, time.UTC),
		CNPJ:     "32.409.620/0001-75",
		Modelo:   "55",
		Serie:    1,
		Numero:   3747,
		TpEmis:   "1",
		CodigoNF: "01154464",
	}
}

// A chave tem 44 dígitos, carrega os campos na ordem do layout e o dígito
// verificador fecha com o módulo 11.
func TestChaveGenerator_VetorConhecido(t *testing.T) {
	gen := nfe.NewChaveGeneratorService()

	chave, err := gen.Generate(chaveParams())
	require.NoError(t, err)

	assert.Len(t, chave, 44)
	assert.Equal(t, "35250732409620000175550010000037471011544648", chave)
	assert.NoError(t, nfe.ValidateChave(chave), "a chave gerada deve se validar sozinha")
}

// Mesmos parâmetros, mesma chave: a geração é determinística.
func TestChaveGenerator_Deterministica(t *testing.T) {
	gen := nfe.NewChaveGeneratorService()

	a, err := gen.Generate(chaveParams())
	require.NoError(t, err)
	b, err := gen.Generate(chaveParams())
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

// Pontuação no CNPJ e na UF não muda o resultado.
func TestChaveGenerator_IgnoraPontuacao(t *testing.T) {
	gen := nfe.NewChaveGeneratorService()

	limpo := chaveParams()
	limpo.CNPJ = "32409620000175"
	a, err := gen.Generate(limpo)
	require.NoError(t, err)

	b, err := gen.Generate(chaveParams())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestChaveGenerator_EntradasInvalidas(t *testing.T) {
	gen := nfe.NewChaveGeneratorService()

	t.Run("params nil", func(t *testing.T) {
		_, err := gen.Generate(nil)
		assert.Error(t, err)
	})

	t.Run("CNPJ curto", func(t *testing.T) {
		p := chaveParams()
		p.CNPJ = "12345678"
		_, err := gen.Generate(p)
		assert.Error(t, err)
	})

	t.Run("UF inválida", func(t *testing.T) {
		p := chaveParams()
		p.UF = "SP"
		_, err := gen.Generate(p)
		assert.Error(t, err)
	})

	t.Run("cNF curto", func(t *testing.T) {
		p := chaveParams()
		p.CodigoNF = "123"
		_, err := gen.Generate(p)
		assert.Error(t, err)
	})

	t.Run("número zero", func(t *testing.T) {
		p := chaveParams()
		p.Numero = 0
		_, err := gen.Generate(p)
		assert.Error(t, err)
	})
}

func TestValidateChave(t *testing.T) {
	t.Run("tamanho errado", func(t *testing.T) {
		assert.Error(t, nfe.ValidateChave("123"))
	})

	t.Run("caracter não numérico", func(t *testing.T) {
		chave := "3525073240962000017555001000003747101154464X"
		assert.Error(t, nfe.ValidateChave(chave))
	})

	t.Run("dígito verificador errado", func(t *testing.T) {
		chave := "35250732409620000175550010000037471011544649"
		assert.Error(t, nfe.ValidateChave(chave))
	})

	t.Run("chave válida com espaços", func(t *testing.T) {
		assert.NoError(t, nfe.ValidateChave(" 35250732409620000175550010000037471011544648 "))
	})
}

func TestOnlyDigits(t *testing.T) {
	assert.Equal(t, "32409620000175", nfe.OnlyDigits("32.409.620/0001-75"))
	assert.Equal(t, "", nfe.OnlyDigits("abc"))
}
