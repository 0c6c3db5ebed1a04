package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mobile-home-delivery/internal/gateway/api"
	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/metrics"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

// agentConfig is resolved per command from flags, AGENT_* environment
// variables and an optional config file, in that order of precedence.
type agentConfig struct {
	Server   string
	DriverID int64
	Timeout  time.Duration
	Verbose  bool
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "driver-agent",
		Short:         "Driver device agent for mobile-home deliveries",
		Long:          "driver-agent samples GPS fixes, queues them offline and talks to the delivery service on behalf of one driver.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "optional config file (yaml, json or toml)")
	pf.String("server", "http://localhost:8080", "delivery service base URL")
	pf.Int64("driver-id", 0, "driver id sent as X-Driver-ID")
	pf.Duration("timeout", api.DefaultTimeout, "per-request timeout")
	pf.BoolP("verbose", "v", false, "debug logging")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newTrackCmd())
	cmd.AddCommand(newFlushCmd())
	cmd.AddCommand(newTransitionCmd())
	cmd.AddCommand(newPhotoCmd())
	cmd.AddCommand(newQualityCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "driver-agent %s (commit: %s)\n", Version, Commit)
		},
	}
}

// loadViper binds the command's flags to a fresh viper instance.
func loadViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

func loadConfig(v *viper.Viper) (agentConfig, error) {
	cfg := agentConfig{
		Server:   strings.TrimSpace(v.GetString("server")),
		DriverID: v.GetInt64("driver-id"),
		Timeout:  v.GetDuration("timeout"),
		Verbose:  v.GetBool("verbose"),
	}
	if cfg.Server == "" {
		return cfg, fmt.Errorf("server is required")
	}
	if cfg.DriverID <= 0 {
		return cfg, fmt.Errorf("driver-id is required (flag --driver-id or AGENT_DRIVER_ID)")
	}
	return cfg, nil
}

func deliveryID(v *viper.Viper) (int64, error) {
	id := v.GetInt64("delivery")
	if id <= 0 {
		return 0, fmt.Errorf("delivery is required (flag --delivery or AGENT_DELIVERY)")
	}
	return id, nil
}

func newLogger(w io.Writer, verbose bool) logx.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return logx.NewSlogAdapter(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// commandAPI is the retrying client used by one-shot commands.
func commandAPI(cmd *cobra.Command, cfg agentConfig) *api.RetryingClient {
	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	return api.NewRetryingClient(
		api.NewClient(cfg.Server, cfg.DriverID, cfg.Timeout),
		logger,
		metrics.NewGatewayRetriesTotal(),
		api.DefaultRetryConfig(),
	)
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
