// Command lbctl talks to a leaderboard server over TLS or QUIC.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/lwwboard/internal/client"
	"github.com/okian/lwwboard/pkg/logger"
)

const (
	defaultAddr    = "127.0.0.1:9443"
	defaultTimeout = 5 * time.Second
)

type globalFlags struct {
	addr       string
	quic       bool
	insecure   bool
	caFile     string
	serverName string
	timeout    time.Duration
	logLevel   string
}

func (g *globalFlags) options() []client.Option {
	opts := []client.Option{
		client.WithQUIC(g.quic),
		client.WithInsecure(g.insecure),
		client.WithTimeout(g.timeout),
	}
	if g.caFile != "" {
		opts = append(opts, client.WithCAFile(g.caFile))
	}
	if g.serverName != "" {
		opts = append(opts, client.WithServerName(g.serverName))
	}
	return opts
}

func (g *globalFlags) dial(ctx context.Context) (*client.Client, error) {
	c, err := client.Dial(ctx, g.addr, g.options()...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", g.addr, err)
	}
	return c, nil
}

// newRootCmd builds the command tree. Output goes to cmd.OutOrStdout.
func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "lbctl",
		Short:         "Client for the lwwboard leaderboard server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := logger.InitWithWriter(os.Stderr); err != nil {
				return err
			}
			return logger.SetLevelString(g.logLevel)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.addr, "addr", defaultAddr, "server address (host:port)")
	pf.BoolVar(&g.quic, "quic", false, "connect over QUIC instead of TLS over TCP")
	pf.BoolVar(&g.insecure, "insecure", true, "skip server certificate verification")
	pf.StringVar(&g.caFile, "ca-file", "", "PEM bundle used to verify the server (disables --insecure)")
	pf.StringVar(&g.serverName, "server-name", "", "name checked against the server certificate")
	pf.DurationVar(&g.timeout, "timeout", defaultTimeout, "dial and request timeout")
	pf.StringVar(&g.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		newPingCmd(g),
		newUpdateCmd(g),
		newTopCmd(g),
		newPlayerCmd(g),
		newStatsCmd(g),
		newBenchCmd(g),
		newDemoCmd(g),
		newREPLCmd(g),
		newGenCertCmd(),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Stderr.WriteString("lbctl: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
