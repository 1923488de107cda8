package cli

import (
	"fmt"
	"os"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	app "github.com/rocketscienceinc/bingo-backend/internal"
	"github.com/rocketscienceinc/bingo-backend/internal/bingo"
	"github.com/rocketscienceinc/bingo-backend/internal/config"
	"github.com/rocketscienceinc/bingo-backend/internal/pkg"
	"github.com/rocketscienceinc/bingo-backend/internal/usecase"
)

type createOptions struct {
	BoardPath string
	Name      string
	HostName  string
	NoQR      bool
}

func newCreateCommand(root *RootOptions) *cobra.Command {
	opts := &createOptions{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session from a board file and remember yourself as its host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := root.load()
			if err != nil {
				return err
			}

			if conf.Store == config.StoreMemory {
				return fmt.Errorf("create needs a shared store, the memory store lives inside one process")
			}

			data, err := os.ReadFile(opts.BoardPath)
			if err != nil {
				return fmt.Errorf("failed to read board file: %w", err)
			}

			board, err := usecase.ParseBoard(data)
			if err != nil {
				return err
			}

			name := opts.Name
			if name == "" {
				name = board.Name
			}

			ctx := cmd.Context()
			logger := newLogger(cmd.ErrOrStderr(), conf)

			store, closeStore, err := app.OpenStore(ctx, logger, conf)
			if err != nil {
				return err
			}
			defer closeStore()

			identities, closeIdentities, err := app.OpenIdentities(ctx, conf)
			if err != nil {
				return err
			}
			defer closeIdentities()

			session, host, err := usecase.NewSessionManager(logger, store).CreateSession(ctx, name, board.Statements, opts.HostName)
			if err != nil {
				return err
			}

			if err = identities.Remember(ctx, session.Code, host.ID); err != nil {
				logger.Error("failed to remember host", "error", err)
			}

			out := cmd.OutOrStdout()
			link := pkg.GameLink(conf.PublicURL, session.Code)

			fmt.Fprintf(out, "%s\n\ncode: %s\nlink: %s\nhost: %s (%s)\nhost token: %s\n\n",
				session.Name, session.Code, link, host.Name, host.ID, host.Secret)

			if !opts.NoQR {
				qr, err := qrcode.New(link, qrcode.Medium)
				if err != nil {
					return fmt.Errorf("failed to build qr code: %w", err)
				}
				fmt.Fprintln(out, qr.ToSmallString(false))
			}

			fmt.Fprint(out, bingo.RenderCard(session.Board, host.Cells()))

			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.BoardPath, "board", "b", "", "YAML or plain text file with 24 statements")
	fs.StringVarP(&opts.Name, "name", "n", "", "game name, defaults to the name in the board file")
	fs.StringVar(&opts.HostName, "host", "", "host display name")
	fs.BoolVar(&opts.NoQR, "no-qr", false, "do not print the QR code")
	_ = cmd.MarkFlagRequired("board")

	return cmd
}
