// Command arith serves the arithmetic endpoint over stdio (default) or NATS.
//
// Usage:
//
//	arith                                   # MCP over stdin/stdout
//	arith --nats nats://127.0.0.1:4222 --subject tools.arith
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fwojciec/relay/arith"
	relaynats "github.com/fwojciec/relay/nats"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "arith: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var natsURL, subject string
	cmd := &cobra.Command{
		Use:           "arith",
		Short:         "Arithmetic endpoint: add, subtract, multiply, divide",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logrus.New()
			log.SetOutput(os.Stderr)
			if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
				log.SetLevel(lvl)
			} else {
				log.SetLevel(logrus.WarnLevel)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := arith.NewServer(log)
			if natsURL == "" {
				return srv.Serve(ctx, os.Stdin, os.Stdout)
			}
			return relaynats.ListenAndServe(ctx, natsURL, arith.Name, subject, srv, log)
		},
	}
	cmd.Flags().StringVar(&natsURL, "nats", "", "serve over NATS at this URL instead of stdio")
	cmd.Flags().StringVar(&subject, "subject", "tools.arith", "NATS subject to serve on")
	return cmd
}
