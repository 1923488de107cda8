package cli

import (
	"os"

	"github.com/spf13/cobra"

	app "github.com/rocketscienceinc/bingo-backend/internal"
)

func newServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := opts.load()
			if err != nil {
				return err
			}

			return app.RunApp(newLogger(os.Stdout, conf), conf)
		},
	}
}
