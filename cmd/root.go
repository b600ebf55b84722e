package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ValentinKolb/theaterctl/cmd/actor"
	"github.com/ValentinKolb/theaterctl/cmd/channel"
	"github.com/ValentinKolb/theaterctl/cmd/config"
	"github.com/ValentinKolb/theaterctl/cmd/monitor"
	"github.com/ValentinKolb/theaterctl/cmd/raw"
	"github.com/ValentinKolb/theaterctl/cmd/serve"
	"github.com/ValentinKolb/theaterctl/cmd/util"
	"github.com/ValentinKolb/theaterctl/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "0.3.0"
)

var (
	cliLogger = logger.GetLogger("cli")

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "theaterctl",
		Short: "management client for the Theater actor runtime",
		Long: fmt.Sprintf(`theaterctl (v%s)

A command line client for the management interface of a Theater server.
Commands are sent over a single framed TCP (or unix socket) connection that
is probed before use, re-established when it was lost and retried with
exponential backoff.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: setupRoot,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of theaterctl",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("theaterctl v%s\n", Version)
		},
	}
)

func init() {
	// run the pre-run hooks of the root and of the command groups
	cobra.EnableTraverseRunHooks = true

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(actor.ActorCommands)
	RootCmd.AddCommand(channel.ChannelCommands)
	RootCmd.AddCommand(raw.SendCmd)
	RootCmd.AddCommand(monitor.WatchCmd)
	RootCmd.AddCommand(monitor.PerfCmd)
	RootCmd.AddCommand(config.ConfigCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
	key = "config"
	RootCmd.PersistentFlags().StringVar(&util.ConfigFile, key, "", util.WrapString("config file (TOML, YAML or JSON), see 'theaterctl config init'"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
	key = "log-file"
	RootCmd.PersistentFlags().String(key, "", util.WrapString("Write logs to this file (rotated) instead of stderr"))
	key = "metrics-endpoint"
	RootCmd.PersistentFlags().String(key, "", util.WrapString("Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464), empty disables it"))
}

// setupRoot configures logging and the metrics endpoint for every command
func setupRoot(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := common.InitLoggers(common.LogConfig{
		Level: viper.GetString("log-level"),
		File:  viper.GetString("log-file"),
	}); err != nil {
		return err
	}

	if addr := viper.GetString("metrics-endpoint"); addr != "" {
		startMetricsServer(cmd.Context(), addr)
	}
	return nil
}

// startMetricsServer serves /metrics in the background until ctx is done
func startMetricsServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		cliLogger.Infof("Serving metrics on http://%s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cliLogger.Errorf("Metrics endpoint failed: %v", err)
		}
	}()
	context.AfterFunc(ctx, func() { _ = srv.Close() })
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
// The context of all commands is cancelled on SIGINT and SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
