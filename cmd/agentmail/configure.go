package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/agentmail-skill/internal/credential"
	"github.com/nhle/agentmail-skill/internal/model"
	uiconfig "github.com/nhle/agentmail-skill/internal/ui/config"
)

func newConfigureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactively set the backend and store credentials",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(false)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			form := uiconfig.NewForm(a.cfg)
			if err := form.Build().RunWithContext(cmd.Context()); err != nil {
				return fmt.Errorf("running form: %w", err)
			}

			if err := form.Apply(a.cfg); err != nil {
				return err
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			for _, s := range form.Secrets() {
				if err := credential.Set(s.Item, s.Value); err != nil {
					return fmt.Errorf("saving credential: %w", err)
				}
				a.logger.Info("credential stored in keyring", "item", s.Item)
			}

			if err := model.SaveConfig(a.configPath, a.cfg); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", a.configPath)
			return err
		},
	}
}
