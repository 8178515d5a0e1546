package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/lwwboard/internal/client"
	"github.com/okian/lwwboard/internal/domain/protocol"
	"github.com/okian/lwwboard/internal/domain/types"
)

const replHelp = `commands:
  score <n>        submit a score for the current player
  top [n]          show the leaderboard
  player <id>      look up a player
  stats            show server counters
  ping             measure the round trip
  raw <json>       send one raw frame
  help             show this help
  quit             leave
`

func newREPLCmd(g *globalFlags) *cobra.Command {
	var playerID, name string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive shell bound to one player.",
		Args:  cobra.NoArgs,
		RunE: withClient(g, func(cmd *cobra.Command, c *client.Client) error {
			return runREPL(cmd.Context(), c, cmd.InOrStdin(), cmd.OutOrStdout(), playerID, name)
		}),
	}
	cmd.Flags().StringVar(&playerID, "player", "player_1", "player id used by score")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the player id)")
	return cmd
}

// runREPL reads one command per line from in until quit or EOF.
func runREPL(ctx context.Context, c *client.Client, in io.Reader, out io.Writer, playerID, name string) error {
	if name == "" {
		name = playerID
	}
	fmt.Fprintf(out, "playing as %s (%s); type help for commands\n", playerID, name)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		verb, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		err := replCommand(ctx, c, out, strings.ToLower(verb), rest, playerID, name)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out, "bye")
			return nil
		}
		if err != nil {
			if !errors.Is(err, client.ErrServer) && !errors.Is(err, errUsage) {
				return err
			}
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

var errUsage = errors.New("usage")

func replCommand(ctx context.Context, c *client.Client, out io.Writer, verb, arg, playerID, name string) error {
	switch verb {
	case "score", "update":
		score, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: score <n>", errUsage)
		}
		upd, err := c.Update(ctx, playerID, name, score, protocol.UnixSeconds(time.Now()))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "[%s] score: %d\n", strings.ToUpper(upd.Status), upd.CurrentScore)
		printLeaderboard(out, upd.Top)

	case "top":
		n := 10
		if arg != "" {
			v, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("%w: top [n]", errUsage)
			}
			n = v
		}
		top, err := c.Top(ctx, n)
		if err != nil {
			return err
		}
		printLeaderboard(out, top)

	case "player":
		if arg == "" {
			return fmt.Errorf("%w: player <id>", errUsage)
		}
		p, err := c.Player(ctx, arg)
		if err != nil {
			return err
		}
		if !p.Found {
			fmt.Fprintf(out, "  %s\n", p.Error)
			return nil
		}
		fmt.Fprintf(out, "  %s: %d\n", p.Name, *p.Score)

	case "stats":
		st, err := c.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  players:%d updates:%d rate:%.2f/s uptime:%.2fs clients:%d\n",
			st.TotalPlayers, st.TotalUpdates, st.UpdatesPerSecond, st.UptimeSeconds, st.ConnectedClients)

	case "ping":
		start := time.Now()
		if _, err := c.Ping(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "  PONG rtt=%.2fms\n", float64(time.Since(start))/float64(time.Millisecond))

	case "raw":
		resp, err := c.RoundTrip(ctx, []byte(arg))
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(resp))

	case "help", "?":
		fmt.Fprint(out, replHelp)

	case "quit", "exit", "q":
		return io.EOF

	default:
		fmt.Fprintf(out, "unknown command %q; type help\n", verb)
	}
	return nil
}

func printLeaderboard(out io.Writer, top []types.Entry) {
	fmt.Fprintf(out, "%-4s %-20s %10s\n", "#", "Name", "Score")
	for _, e := range top {
		fmt.Fprintf(out, "%-4d %-20s %10d\n", e.Rank, e.Name, e.Score)
	}
}
