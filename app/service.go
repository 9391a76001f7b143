package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/csms/api/stations"
	"github.com/kilianp07/csms/config"
	"github.com/kilianp07/csms/core/central"
	coremetrics "github.com/kilianp07/csms/core/metrics"
	"github.com/kilianp07/csms/core/transaction"
	"github.com/kilianp07/csms/infra/logger"
	"github.com/kilianp07/csms/infra/metrics"
	"github.com/kilianp07/csms/infra/mqtt"
	memstore "github.com/kilianp07/csms/infra/store"
	"github.com/kilianp07/csms/internal/eventbus"
)

// Service wires the central system together: store, registry, transport,
// metrics and the operator API.
type Service struct {
	Registry *central.Registry
	Store    *memstore.MemoryStore

	cfg  *config.Config
	bus  eventbus.EventBus
	sink coremetrics.MetricsSink
	log  logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	cfg.Logging.Apply()
	logg := logger.New("service")

	st := memstore.NewMemoryStore()
	for _, tok := range cfg.Tokens {
		st.PutToken(tok.Token())
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken,
			cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	tx := transaction.NewManager(st, bus, logger.New("transactions"))
	registry := central.NewRegistry(cfg.Central.Central(), st, tx, bus, sink, logger.New("central"))

	return &Service{
		Registry: registry,
		Store:    st,
		cfg:      cfg,
		bus:      bus,
		sink:     sink,
		log:      logg,
	}, nil
}

// Run starts the transport and servers, then blocks until the context is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)

	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	listener, err := mqtt.NewListener(ctx, s.cfg.MQTT, s.Registry)
	if err != nil {
		return fmt.Errorf("mqtt listener: %w", err)
	}
	defer listener.Close()

	var apiSrv *http.Server
	if s.cfg.API.Enabled {
		apiSrv = &http.Server{
			Addr:    s.cfg.API.Address,
			Handler: stations.NewHandler(s.Registry, s.Store, s.cfg.API.Token),
		}
		go func() {
			s.log.Infof("operator API listening on %s", s.cfg.API.Address)
			if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}

	<-ctx.Done()
	if apiSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
		cancel()
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.Registry.Shutdown()
	s.bus.Close()
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	return nil
}
