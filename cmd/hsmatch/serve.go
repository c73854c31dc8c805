package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/hsmatch/pkg/serve"
)

var serveCatalog bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming server over stdin/stdout",
	Long: `Run hsmatch as a long-lived server that accepts NDJSON requests on stdin
and writes one NDJSON response per request to stdout.

Databases and scratch spaces are referenced by integer handles. The process
runs until stdin closes, a "close" request arrives or SIGTERM is received;
every handle still open is then released.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveCatalog, "with-catalog", false, "Enable catalog_* requests against --catalog")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	var opts []serve.Option
	if serveCatalog {
		s, err := openCatalog()
		if err != nil {
			return err
		}
		defer s.Close()
		opts = append(opts, serve.WithCatalog(s))
	}

	srv := serve.NewServer(cmd.InOrStdin(), cmd.OutOrStdout(), opts...)
	return srv.Run(ctx)
}
