package payment

import "strings"

var InstructionMap = map[Method][]string{
	MethodPix: {
		"Abra o aplicativo do seu banco e escolha a opção Pix",
		"Escaneie o QR Code ou use o Pix Copia e Cola: {{payment_code}}",
		"Confira o valor de {{amount}} antes de confirmar",
		"A confirmação é automática e leva poucos segundos",
	},

	MethodBoleto: {
		"Imprima o boleto ou copie a linha digitável {{payment_code}}",
		"Pague em qualquer banco, lotérica ou aplicativo bancário",
		"Confira o valor de {{amount}} e a data de vencimento",
		"A compensação pode levar até 3 dias úteis",
	},

	MethodCreditCard: {
		"O pagamento de {{amount}} foi enviado à operadora do cartão",
		"Você receberá a confirmação por e-mail assim que for aprovado",
	},
}

func GetInstructions(method Method) []string {
	if steps, ok := InstructionMap[method]; ok {
		return steps
	}

	return []string{
		"Siga as instruções de pagamento exibidas nesta página",
	}
}

type InstructionVars map[string]string

func InjectVariables(steps []string, vars InstructionVars) []string {
	result := make([]string, 0, len(steps))

	for _, step := range steps {
		updated := step
		for key, value := range vars {
			updated = strings.ReplaceAll(updated, "{{"+key+"}}", value)
		}
		result = append(result, updated)
	}

	return result
}
