package di

import (
	"context"
	"fmt"
	"time"

	"TwsePulse/internal/domain/models"
	"TwsePulse/internal/domain/repository"
	"TwsePulse/internal/handler/api"
	internalrepo "TwsePulse/internal/repository"
	"TwsePulse/internal/scheduler"
	"TwsePulse/internal/service/fetch"
	"TwsePulse/internal/service/indicator"
	"TwsePulse/internal/service/overlap"
	"TwsePulse/internal/service/report"
	"TwsePulse/internal/service/twse"
	"TwsePulse/internal/usecase"
	"TwsePulse/pkg/cache"
	pkgch "TwsePulse/pkg/clickhouse"
	"TwsePulse/pkg/config"
	xhttp "TwsePulse/pkg/http"
	pkgkafka "TwsePulse/pkg/kafka"
	applogger "TwsePulse/pkg/logger"
	"TwsePulse/pkg/metrics"
	"TwsePulse/pkg/server"
	"TwsePulse/pkg/util"
)

const defaultOverlapThreshold = 0.3

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideHTTPClient creates the upstream HTTP client.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(cfg.Upstream.Timeout))
}

// ProvideFetcher creates the rate-governed, retrying fetcher.
func ProvideFetcher(cfg *config.Config, m repository.Metrics, l *applogger.Logger) *fetch.Fetcher {
	return fetch.New(
		fetch.WithMinInterval(cfg.Fetch.MinRequestInterval),
		fetch.WithMaxRetries(cfg.Fetch.MaxRetries),
		fetch.WithBaseDelay(cfg.Fetch.BaseDelay),
		fetch.WithMaxBackoff(cfg.Fetch.MaxBackoff),
		fetch.WithMetrics(m),
		fetch.WithLogger(l),
	)
}

// ProvideMarketSource creates the exchange client.
func ProvideMarketSource(cfg *config.Config, hc *xhttp.Client, f *fetch.Fetcher, l *applogger.Logger) repository.MarketSource {
	return twse.New(twse.Config{
		QuoteURL:    cfg.Upstream.QuoteURL,
		HistoryURL:  cfg.Upstream.HistoryURL,
		HoldingsURL: cfg.Upstream.HoldingsURL,
		UserAgent:   cfg.Upstream.UserAgent,
	}, hc, f, l)
}

// ProvideQuoteStore creates the quote cache. Redis shares warm quotes
// across instances when enabled; memory is the default.
func ProvideQuoteStore(cfg *config.Config) (cache.Store[*models.Quote], error) {
	if cfg.Cache.Redis.Enabled {
		store, err := cache.NewRedisStore[*models.Quote](
			cache.WithRedisAddr(cfg.Cache.Redis.Addr),
			cache.WithRedisAuth(cfg.Cache.Redis.Password, cfg.Cache.Redis.DB),
			cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("quote store: %w", err)
		}
		return store, nil
	}
	return cache.NewMemoryStore[*models.Quote](cache.WithMaxEntries(cfg.Cache.MaxEntries)), nil
}

// ProvideHistoryStore creates the bar-series cache. History payloads are
// large and per-process recomputation is cheap, so this stays in memory.
func ProvideHistoryStore(cfg *config.Config) cache.Store[[]models.Bar] {
	return cache.NewMemoryStore[[]models.Bar](cache.WithMaxEntries(cfg.Cache.MaxEntries))
}

// ProvideHoldingsStore creates the fund-holdings cache.
func ProvideHoldingsStore(cfg *config.Config) cache.Store[*models.FundHoldings] {
	return cache.NewMemoryStore[*models.FundHoldings](cache.WithMaxEntries(cfg.Cache.MaxEntries))
}

// ProvideKafkaProducer creates the Kafka producer, or nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideClickHouseClient creates the ClickHouse client, or nil when
// ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSnapshotSink assembles the snapshot audit sink from whichever
// backends are enabled, initializing storage schema up front. With neither
// backend configured the sink is nil and archiving is skipped.
func ProvideSnapshotSink(cfg *config.Config, producer *pkgkafka.Producer, chClient *pkgch.Client) (repository.SnapshotSink, error) {
	var sinks []repository.SnapshotSink
	if chClient != nil {
		sinks = append(sinks, internalrepo.NewClickHouseSnapshotSink(chClient.DB(), ""))
	}
	if producer != nil && cfg.Kafka.SnapshotTopic != "" {
		sinks = append(sinks, internalrepo.NewKafkaSnapshotSink(producer, cfg.Kafka.SnapshotTopic))
	}

	var sink repository.SnapshotSink
	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		sink = sinks[0]
	default:
		sink = internalrepo.NewFanoutSnapshotSink(sinks...)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sink.Init(ctx); err != nil {
		return nil, fmt.Errorf("snapshot sink init: %w", err)
	}
	return sink, nil
}

// ProvideNotifier creates the broadcast notifier, or nil when Kafka is
// disabled.
func ProvideNotifier(cfg *config.Config, producer *pkgkafka.Producer) repository.Notifier {
	if producer == nil || cfg.Kafka.NotificationTopic == "" {
		return nil
	}
	return internalrepo.NewKafkaNotifier(producer, cfg.Kafka.NotificationTopic)
}

// ProvideIndicatorEngine creates the indicator engine.
func ProvideIndicatorEngine() *indicator.Engine {
	return indicator.New()
}

// ProvideOverlapEngine creates the overlap engine.
func ProvideOverlapEngine() *overlap.Engine {
	return overlap.New()
}

// ProvideFormatter creates the report formatter.
func ProvideFormatter(cfg *config.Config) *report.Formatter {
	threshold := cfg.Analytics.OverlapThreshold
	if threshold <= 0 {
		threshold = defaultOverlapThreshold
	}
	return report.New(threshold)
}

// ProvideQuoteService creates the quote use case.
func ProvideQuoteService(
	cfg *config.Config,
	source repository.MarketSource,
	store cache.Store[*models.Quote],
	sink repository.SnapshotSink,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.QuoteService {
	return usecase.NewQuoteService(source, store, cfg.Cache.TTL.Quote,
		usecase.WithSnapshotSink(sink),
		usecase.WithQuoteMetrics(m),
		usecase.WithQuoteLogger(l),
	)
}

// ProvideIndicatorService creates the indicator use case.
func ProvideIndicatorService(
	cfg *config.Config,
	source repository.MarketSource,
	store cache.Store[[]models.Bar],
	engine *indicator.Engine,
	m repository.Metrics,
) *usecase.IndicatorService {
	return usecase.NewIndicatorService(source, store, engine, cfg.Cache.TTL.History, m)
}

// ProvideOverlapService creates the ETF analytics use case.
func ProvideOverlapService(
	cfg *config.Config,
	source repository.MarketSource,
	store cache.Store[*models.FundHoldings],
	engine *overlap.Engine,
	formatter *report.Formatter,
	quotes *usecase.QuoteService,
	notifier repository.Notifier,
	l *applogger.Logger,
) *usecase.OverlapService {
	return usecase.NewOverlapService(source, store, engine, formatter, cfg.Analytics.ETFs, cfg.Cache.TTL.Holdings,
		usecase.WithQuotes(quotes),
		usecase.WithNotifier(notifier),
		usecase.WithOverlapLogger(l),
	)
}

// ProvideMarketHandler creates the HTTP handler.
func ProvideMarketHandler(
	l *applogger.Logger,
	quotes *usecase.QuoteService,
	indicators *usecase.IndicatorService,
	overlapSvc *usecase.OverlapService,
	formatter *report.Formatter,
) *api.MarketHandler {
	return api.NewMarketHandler(l, quotes, indicators, overlapSvc, formatter)
}

// ProvideScheduler creates the cron scheduler in the exchange time zone.
// Registration and start are gated on config by the app.
func ProvideScheduler(overlapSvc *usecase.OverlapService, l *applogger.Logger) *scheduler.Scheduler {
	return scheduler.New(util.Taipei(), overlapSvc, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.MarketHandler,
	sched *scheduler.Scheduler,
	sink repository.SnapshotSink,
	notifier repository.Notifier,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, l, handler, sched, sink, notifier, producer, chClient)
}
