package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	iec104 "github.com/9d77v/iec104client"
	"github.com/9d77v/iec104client/example/client/config"
	"github.com/9d77v/iec104client/example/client/worker"
)

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the server and stream decoded ASDUs",
		Long: `Connect to the server, send STARTDT and write every received I-frame as JSON.
SERVER_HOST, SERVER_PORT, DEBUG and LOG_FILE override the config file.`,
		Example: `  SERVER_HOST=10.0.0.5 iec104client run --config config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "config file")
	return cmd
}

func runClient(parent context.Context, configPath string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, closer, err := settings.NewLogger()
	if err != nil {
		return err
	}
	defer closer.Close()

	catalog, err := settings.LoadCatalog()
	if err != nil {
		return err
	}
	decoder := iec104.NewDecoder(catalog, iec104.WithLogger(logger))
	client, err := iec104.NewClient(settings.Client, decoder, logger)
	if err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}
	client.SetTimeoutHandler(func(c *iec104.Client, e iec104.TimeoutEvent) {
		c.Logger.Warnf("%s超时,已过%s", e.Timer, e.Elapsed)
		if e.Timer == iec104.T0 || e.Timer == iec104.T1 {
			c.Reconnect()
		}
	})

	var out io.Writer = os.Stdout
	if settings.Output != "" {
		f, err := os.OpenFile(settings.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		defer f.Close()
		out = f
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Start(ctx); err != nil {
		return err
	}
	//客户端停止后再停止数据处理协程,避免丢弃队列中的数据
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Handler(workerCtx, client.Queue(), out, logger)
	}()

	<-ctx.Done()
	client.Stop()
	cancelWorker()
	<-done
	return nil
}
