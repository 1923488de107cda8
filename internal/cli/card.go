package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	app "github.com/rocketscienceinc/bingo-backend/internal"
	"github.com/rocketscienceinc/bingo-backend/internal/bingo"
	"github.com/rocketscienceinc/bingo-backend/internal/pkg"
	"github.com/rocketscienceinc/bingo-backend/internal/synchronizer"
)

// newCardCommand prints the remembered player's card and the leaderboard.
func newCardCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "card CODE",
		Short: "Show your card and the leaderboard for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := root.load()
			if err != nil {
				return err
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

			syncer := synchronizer.New(logger, store, identities)
			defer syncer.Close()

			view, err := syncer.Load(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), renderView(view))

			return nil
		},
	}
}

func newForgetCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "forget CODE",
		Short: "Forget which player you are in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := root.load()
			if err != nil {
				return err
			}

			identities, closeIdentities, err := app.OpenIdentities(cmd.Context(), conf)
			if err != nil {
				return err
			}
			defer closeIdentities()

			return identities.Forget(cmd.Context(), pkg.NormalizeCode(args[0]))
		},
	}
}

func renderView(view synchronizer.View) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s [%s] round %d\n\n", view.Session.Name, view.Session.Status, view.Round)

	if view.Me != nil {
		b.WriteString(bingo.RenderCard(view.Session.Board, view.Me.Cells()))

		if view.Me.HasWon {
			b.WriteString("\nBINGO!\n")
		} else {
			fmt.Fprintf(&b, "\n%d to go\n", view.ClosestToWin)
		}
	} else {
		b.WriteString("you have not joined this session\n")
	}

	names := make(map[string]string, len(view.Players))
	closest := make(map[string]int, len(view.Players))
	won := make(map[string]bool, len(view.Players))
	for _, player := range view.Players {
		names[player.ID] = player.Name
		closest[player.ID] = player.ClosestToWin
		won[player.ID] = player.HasWon
	}

	b.WriteString("\n")
	for i, id := range view.Ranking {
		status := fmt.Sprintf("%d to go", closest[id])
		if won[id] {
			status = "BINGO"
		}
		fmt.Fprintf(&b, "%2d. %-20s %s\n", i+1, names[id], status)
	}

	return b.String()
}
