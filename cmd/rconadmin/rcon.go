package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/reedfamily/rconadmin/internal/moderation"
	"github.com/reedfamily/rconadmin/internal/rcon"
)

var (
	rconHost     string
	rconPort     uint16
	rconPassword string
	rconGame     string
)

var execCmd = &cobra.Command{
	Use:   "exec <command...>",
	Short: "Run one console command on a server and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		client := rcon.NewClient(cfg.RCON.DialTimeout, cfg.RCON.Timeout)
		out := client.Execute(cmd.Context(), address(), strings.Join(args, " "))
		if err := out.Err(); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out.Body)
		return nil
	},
}

var playersCmd = &cobra.Command{
	Use:   "players",
	Short: "List the players connected to a server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		coord := moderation.NewCoordinator(rcon.NewClient(cfg.RCON.DialTimeout, cfg.RCON.Timeout), nil, nil)
		players, err := coord.ListRoster(cmd.Context(), moderation.Server{Name: rconHost, Game: rconGame, Addr: address()})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "USERID\tNAME\tSTEAM ID\tTIME\tPING")
		for _, p := range players {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", p.UserID, p.Name, p.Identity, p.Connected, p.Ping)
		}
		return w.Flush()
	},
}

func init() {
	for _, c := range []*cobra.Command{execCmd, playersCmd} {
		c.Flags().StringVar(&rconHost, "host", "127.0.0.1", "Server address")
		c.Flags().Uint16Var(&rconPort, "port", 27015, "RCON port")
		c.Flags().StringVar(&rconPassword, "password", envOr("RCONADMIN_RCON_PASSWORD", ""), "RCON password")
	}
	playersCmd.Flags().StringVar(&rconGame, "game", "sourcemod", "Game dialect")
}

func address() rcon.Address {
	return rcon.Address{Host: rconHost, Port: rconPort, Secret: rconPassword}
}
