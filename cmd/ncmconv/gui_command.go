package main

import (
	"embed"

	"github.com/spf13/cobra"

	"ncm-converter/internal/bootstrap"
)

//go:embed frontend/index.html
var appAssets embed.FS

func newGUICommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "gui",
		Short: "Open the desktop converter window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			app, err := bootstrap.NewWithAssets(cfg, logger.With("component", "gui"), appAssets)
			if err != nil {
				return err
			}
			return app.Run()
		},
	}
}
