package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/TheusHen/oscore/oscore"
	"github.com/TheusHen/oscore/oscore/observability"
	"github.com/TheusHen/oscore/oscore/store/memory"
)

func serveCmd() *cobra.Command {
	var (
		listen      string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a key/value resource tree to peers holding a configured context",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.InitLogger("oscored", cfg.LogLevel)
			if listen == "" {
				listen = cfg.Listen
			}

			transport, err := cfg.Transport.Options()
			if err != nil {
				return err
			}

			db := memory.New()
			if err := cfg.Provision(db); err != nil {
				return err
			}
			logger.Info().Int("contexts", db.Len()).Msg("contexts provisioned")

			ep := oscore.NewEndpoint(db, oscore.EndpointOptions{
				Logger:    logger,
				RateLimit: cfg.RateLimit.RPS,
				Burst:     cfg.RateLimit.Burst,
				Transport: transport,
			})
			if err := ep.Listen(listen); err != nil {
				return err
			}
			defer ep.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error().Err(err).Msg("metrics server")
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			logger.Info().Str("addr", ep.ListenAddr()).Msg("serving")
			err = ep.Serve(ctx, newResourceTree())
			logger.Info().Msg("stopped")
			return err
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides the config file)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address for the Prometheus /metrics endpoint")
	return cmd
}
