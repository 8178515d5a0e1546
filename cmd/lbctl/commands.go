package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/lwwboard/internal/client"
	"github.com/okian/lwwboard/internal/domain/protocol"
	"github.com/okian/lwwboard/internal/loadtest"
)

// withClient dials, runs fn and closes the connection.
func withClient(g *globalFlags, fn func(cmd *cobra.Command, c *client.Client) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		c, err := g.dial(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(cmd, c)
	}
}

func newPingCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server answers.",
		Args:  cobra.NoArgs,
		RunE: withClient(g, func(cmd *cobra.Command, c *client.Client) error {
			start := time.Now()
			pong, err := c.Ping(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "PONG rtt=%.2fms server_time=%.3f\n",
				float64(time.Since(start))/float64(time.Millisecond), pong.ServerTime)
			return err
		}),
	}
}

func newUpdateCmd(g *globalFlags) *cobra.Command {
	var (
		name string
		ts   float64
	)
	cmd := &cobra.Command{
		Use:   "update <player_id> <score>",
		Short: "Submit a score. The timestamp defaults to now.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("parse score %q: %w", args[1], err)
			}
			if name == "" {
				name = args[0]
			}
			if !cmd.Flags().Changed("ts") {
				ts = protocol.UnixSeconds(time.Now())
			}
			return withClient(g, func(cmd *cobra.Command, c *client.Client) error {
				upd, err := c.Update(cmd.Context(), args[0], name, score, ts)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), upd)
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the player id)")
	cmd.Flags().Float64Var(&ts, "ts", 0, "update timestamp in seconds since the epoch")
	return cmd
}

func newTopCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "top [n]",
		Short: "Show the best n players.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 10
			if len(args) == 1 {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("parse n %q: %w", args[0], err)
				}
				n = v
			}
			return withClient(g, func(cmd *cobra.Command, c *client.Client) error {
				top, err := c.Top(cmd.Context(), n)
				if err != nil {
					return err
				}
				printLeaderboard(cmd.OutOrStdout(), top)
				return nil
			})(cmd, args)
		},
	}
}

func newPlayerCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "player <player_id>",
		Short: "Look up one player.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(g, func(cmd *cobra.Command, c *client.Client) error {
				p, err := c.Player(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})(cmd, args)
		},
	}
}

func newStatsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show server counters.",
		Args:  cobra.NoArgs,
		RunE: withClient(g, func(cmd *cobra.Command, c *client.Client) error {
			st, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		}),
	}
}

func newBenchCmd(g *globalFlags) *cobra.Command {
	cfg := loadtest.DefaultConfig("")
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run concurrent clients that each submit random scores.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Addr = g.addr
			cfg.Options = g.options()
			report, err := loadtest.RunBenchmark(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			report.Fprint(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.Clients, "clients", cfg.Clients, "concurrent clients")
	cmd.Flags().IntVar(&cfg.Updates, "updates", cfg.Updates, "updates per client")
	return cmd
}

func newDemoCmd(g *globalFlags) *cobra.Command {
	cfg := loadtest.DefaultConfig("")
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Simulate ten players and print the final leaderboard.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Addr = g.addr
			cfg.Options = g.options()
			res, err := loadtest.RunDemo(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			res.Fprint(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.Rounds, "rounds", cfg.Rounds, "updates per player")
	cmd.Flags().IntVar(&cfg.TopN, "top", cfg.TopN, "leaderboard size to print")
	cmd.Flags().DurationVar(&cfg.MaxPause, "max-pause", cfg.MaxPause, "longest pause between rounds")
	return cmd
}
