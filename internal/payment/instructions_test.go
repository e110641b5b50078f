package payment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInstructions(t *testing.T) {
	t.Run("PixCarriesPaymentCode", func(t *testing.T) {
		instructions := GetInstructions(MethodPix)
		assert.NotEmpty(t, instructions)

		found := false
		for _, instr := range instructions {
			if strings.Contains(instr, "{{payment_code}}") {
				found = true
				break
			}
		}
		assert.True(t, found, "Pix instructions should contain {{payment_code}} placeholder")
	})

	t.Run("EveryMethodHasSteps", func(t *testing.T) {
		for _, m := range []Method{MethodPix, MethodBoleto, MethodCreditCard} {
			assert.NotEmpty(t, GetInstructions(m), string(m))
		}
	})

	t.Run("DefaultForUnknown", func(t *testing.T) {
		instructions := GetInstructions(Method("cash"))
		assert.Len(t, instructions, 1)
	})
}

func TestInjectVariables(t *testing.T) {
	t.Run("ReplacesPlaceholders", func(t *testing.T) {
		template := []string{"Pague {{amount}} com o código {{payment_code}}."}
		vars := InstructionVars{
			"amount":       "R$ 220,00",
			"payment_code": "000201abc",
		}

		result := InjectVariables(template, vars)
		assert.Equal(t, []string{"Pague R$ 220,00 com o código 000201abc."}, result)
	})

	t.Run("LeavesUnknownPlaceholders", func(t *testing.T) {
		result := InjectVariables([]string{"Pague {{amount}}"}, InstructionVars{})
		assert.Equal(t, "Pague {{amount}}", result[0])
	})
}
