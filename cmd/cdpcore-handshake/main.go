// Command cdpcore-handshake dials a running Chrome instance's debugger
// endpoint, attaches to its first page target, runs a small domain-enable
// handshake, and reports how long the whole handshake took. It exists to exercise
// the Dispatcher/CommandChain/Handler wiring end to end without pulling
// in the generated CDP type catalogue: the commands it issues are
// expressed as the minimal method-only values the core itself requires.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chromedp/cdpcore"
)

type enableCommand struct {
	domain string
}

func (c enableCommand) Method() string { return c.domain + ".enable" }

func newRootCmd() *cobra.Command {
	var (
		endpoint string
		timeout  time.Duration
		verbose  bool
	)

	root := &cobra.Command{
		Use:   "cdpcore-handshake",
		Short: "Run the cdpcore initialization handshake against a live Chrome target",
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			return runHandshake(ctx, endpoint, timeout)
		},
	}

	root.Flags().StringVar(&endpoint, "endpoint", cdpcore.DefaultDiscoveryEndpoint, "Chrome DevTools discovery endpoint")
	root.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall handshake timeout")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return root
}

func runHandshake(ctx context.Context, endpoint string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	disco := cdpcore.NewDiscoveryClient(endpoint)
	page, err := disco.FindPage(ctx)
	if err != nil {
		return fmt.Errorf("find page target: %w", err)
	}

	conn, err := cdpcore.DialContext(ctx, page.WebSocketDebuggerURL)
	if err != nil {
		return fmt.Errorf("dial %s: %w", page.WebSocketDebuggerURL, err)
	}
	defer conn.Close()

	metrics := cdpcore.NewMetrics(prometheus.DefaultRegisterer)
	tab := cdpcore.NewTab(conn, "", cdpcore.WithTabMetrics(metrics))

	go func() {
		if err := tab.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "tab run: %v\n", err)
		}
	}()

	steps := []cdpcore.ChainStep{
		{Command: enableCommand{domain: "Page"}},
		{Command: enableCommand{domain: "Runtime"}},
		{Command: enableCommand{domain: "Log"}},
	}

	start := time.Now()
	if err := tab.RunChain(ctx, steps); err != nil {
		return fmt.Errorf("handshake chain: %w", err)
	}
	fmt.Printf("handshake completed against %s in %s\n", page.URL, time.Since(start))
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
