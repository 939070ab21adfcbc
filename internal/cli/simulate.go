package cli

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateField string
	simulateFrom  string
	simulateTo    string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次字段变动并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateField == "" {
			return errors.New("--field 不能为空")
		}

		from, err := decimal.NewFromString(simulateFrom)
		if err != nil {
			return fmt.Errorf("invalid --from value: %w", err)
		}
		to, err := decimal.NewFromString(simulateTo)
		if err != nil {
			return fmt.Errorf("invalid --to value: %w", err)
		}
		if from.IsZero() {
			return errors.New("--from 不能为 0")
		}

		return getApp().SimulateAlert(cmd.Context(), simulateField, from, to)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateField, "field", "", "字段名, 例如 usd_inr")
	simulateCmd.Flags().StringVar(&simulateFrom, "from", "", "上一次快照中的取值")
	simulateCmd.Flags().StringVar(&simulateTo, "to", "", "本次快照中的取值")
}
