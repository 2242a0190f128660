// Command files serves a read-only view of a directory over stdio (default)
// or NATS.
//
// Usage:
//
//	files --root ./docs                       # MCP over stdin/stdout
//	files --root ./docs --nats nats://127.0.0.1:4222 --subject tools.files
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fwojciec/relay/files"
	relaynats "github.com/fwojciec/relay/nats"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "files: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var root, natsURL, subject string
	cmd := &cobra.Command{
		Use:           "files",
		Short:         "Read-only filesystem endpoint: read, glob, grep",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := os.Stat(root)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", root)
			}

			log := logrus.New()
			log.SetOutput(os.Stderr)
			if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
				log.SetLevel(lvl)
			} else {
				log.SetLevel(logrus.WarnLevel)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := files.NewServer(root, log)
			if natsURL == "" {
				return srv.Serve(ctx, os.Stdin, os.Stdout)
			}
			return relaynats.ListenAndServe(ctx, natsURL, files.Name, subject, srv, log)
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "directory to serve")
	cmd.Flags().StringVar(&natsURL, "nats", "", "serve over NATS at this URL instead of stdio")
	cmd.Flags().StringVar(&subject, "subject", "tools.files", "NATS subject to serve on")
	return cmd
}
