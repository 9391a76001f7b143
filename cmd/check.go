package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/csms/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration file",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Printf("config ok: broker=%s heartbeat=%ds tokens=%d\n",
		cfg.MQTT.Broker, cfg.Central.HeartbeatIntervalSeconds, len(cfg.Tokens))
	return nil
}
