package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mbuck21/BOM-Manager/pkg/config"
	"github.com/mbuck21/BOM-Manager/pkg/observability"
	"github.com/mbuck21/BOM-Manager/pkg/observability/prom"
	"github.com/mbuck21/BOM-Manager/pkg/server"
)

// serveCommand creates the serve command, which exposes the backend over
// HTTP until interrupted.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string
	var noMetrics bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Long: `Serve the JSON API under /api/v1 with /healthz and Prometheus metrics at
/metrics. Every response body is the result envelope.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			var opts server.Options
			if !noMetrics {
				reg := prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				prom.New(reg).Install()
				defer observability.Reset()
				opts.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
			}

			b, err := config.Open(cmd.Context(), cfg, c.Logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := b.Close(); cerr != nil {
					c.Logger.Warn("close backend", "err", cerr)
				}
			}()

			c.Logger.Info("listening", "addr", addr, "storage", cfg.Storage.Backend, "snapshots", cfg.Snapshots.Backend, "cache", cfg.Cache.Backend)
			return server.New(b, c.Logger, opts).ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "do not expose /metrics")
	return cmd
}
