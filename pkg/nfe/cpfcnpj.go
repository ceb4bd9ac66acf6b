package nfe

// Validação de CPF (11 dígitos) e CNPJ (14 dígitos) pelos dígitos verificadores
// módulo 11. Sequências de dígitos repetidos são rejeitadas mesmo quando o
// cálculo fecharia (ex: 111.111.111-11).

var (
	cnpjWeightsFirst  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeightsSecond = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// IsValidCpfCnpj valida um CPF ou CNPJ conforme o tamanho após remover a
// pontuação. Qualquer outro tamanho é inválido.
func IsValidCpfCnpj(doc string) bool {
	digits := OnlyDigits(doc)
	switch len(digits) {
	case 11:
		return IsValidCPF(digits)
	case 14:
		return IsValidCNPJ(digits)
	default:
		return false
	}
}

// IsValidCPF valida os dois dígitos verificadores do CPF.
// Primeira passada com pesos 10..2 sobre 9 dígitos; segunda com 11..2 sobre 10.
func IsValidCPF(doc string) bool {
	digits := OnlyDigits(doc)
	if len(digits) != 11 || allEqual(digits) {
		return false
	}
	if cpfDigit(digits, 9, 10) != int(digits[9]-'0') {
		return false
	}
	return cpfDigit(digits, 10, 11) == int(digits[10]-'0')
}

// IsValidCNPJ valida os dois dígitos verificadores do CNPJ com os vetores de
// pesos próprios (5,4,3,2,9,8,7,6,5,4,3,2 e 6,5,...).
func IsValidCNPJ(doc string) bool {
	digits := OnlyDigits(doc)
	if len(digits) != 14 || allEqual(digits) {
		return false
	}
	if weightedDigit(digits[:12], cnpjWeightsFirst) != int(digits[12]-'0') {
		return false
	}
	return weightedDigit(digits[:13], cnpjWeightsSecond) == int(digits[13]-'0')
}

// cpfDigit calcula um dígito verificador do CPF: soma ponderada de `length`
// dígitos com peso inicial `startWeight` decrescendo até 2.
func cpfDigit(digits string, length, startWeight int) int {
	soma := 0
	for i := 0; i < length; i++ {
		soma += int(digits[i]-'0') * (startWeight - i)
	}
	resto := soma % 11
	if resto < 2 {
		return 0
	}
	return 11 - resto
}

func weightedDigit(digits string, weights []int) int {
	soma := 0
	for i, w := range weights {
		soma += int(digits[i]-'0') * w
	}
	resto := soma % 11
	if resto < 2 {
		return 0
	}
	return 11 - resto
}

func allEqual(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}
