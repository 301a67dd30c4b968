package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shaiso/shardbus/internal/broker"
	"github.com/shaiso/shardbus/internal/telemetry"
	"github.com/shaiso/shardbus/internal/transport"
)

// DeliveryView — доставка в выводе consume.
type DeliveryView struct {
	MessageID   string    `json:"message_id"`
	Exchange    string    `json:"exchange"`
	RoutingKey  string    `json:"routing_key"`
	ContentType string    `json:"content_type"`
	Timestamp   time.Time `json:"timestamp"`
	Redelivered bool      `json:"redelivered"`
	Body        string    `json:"body"`
}

// NewConsumeCmd создаёт команду чтения сообщений со всех очередей.
//
// Работает до SIGINT/SIGTERM (или отмены контекста команды), затем
// отключает транспорт. Если задан --metrics-addr, на нём отдаются
// /metrics и /healthz.
func NewConsumeCmd(configFn func() transport.Config, outputFn func() *Output) *cobra.Command {
	var metricsAddr string
	var prefetch int

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Consume messages from every shard queue until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			cfg := configFn()
			cfg.Prefetch = prefetch

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			reg := prometheus.NewRegistry()
			cfg.Metrics = telemetry.NewMetrics(reg)

			sys, err := transport.New(cfg)
			if err != nil {
				return err
			}
			defer sys.Disconnect()

			cons, err := sys.Consumer(ctx)
			if err != nil {
				return fmt.Errorf("attach to topology (run setup first): %w", err)
			}

			if metricsAddr != "" {
				srv := newMetricsServer(metricsAddr, reg)
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						out.Error(fmt.Sprintf("metrics server: %v", err))
						cancel()
					}
				}()
				defer shutdown(srv)
			}

			if err := cons.Each(ctx, printDelivery(out)); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Consuming from %d queue(s), press Ctrl+C to stop", len(sys.Shards())))

			<-ctx.Done()

			if err := sys.Disconnect(); err != nil {
				return fmt.Errorf("disconnect: %w", err)
			}
			out.Success("Stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9102", "Address for /metrics and /healthz (empty disables)")
	cmd.Flags().IntVar(&prefetch, "prefetch", 1, "QoS prefetch per queue")

	return cmd
}

func printDelivery(out *Output) transport.Handler {
	return func(ctx context.Context, d *broker.Delivery) error {
		view := DeliveryView{
			MessageID:   d.MessageID,
			Exchange:    d.Exchange,
			RoutingKey:  d.RoutingKey,
			ContentType: d.ContentType,
			Timestamp:   d.Timestamp,
			Redelivered: d.Redelivered,
			Body:        string(d.Body),
		}
		out.Line(fmt.Sprintf("%s\t%s\t%s", d.RoutingKey, d.MessageID, d.Body), view)

		telemetry.FromContext(ctx).Debug("delivery printed", "message_id", d.MessageID)
		return nil
	}
}

func newMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
