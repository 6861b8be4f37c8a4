package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	"github.com/schooldash/entity-cache-go/entitycache"
	"github.com/schooldash/entity-cache-go/entitycache/oteladapters"
	"github.com/schooldash/entity-cache-go/entitycache/postgresengine"
	"github.com/schooldash/entity-cache-go/example/shared/config"
)

const (
	defaultRate            = 30
	defaultScenarioWeights = "90,10" // reads, mutations
)

type Config struct {
	Rate                 int
	ObservabilityEnabled bool
	ScenarioWeights      []int
}

func main() {
	cfg := parseFlags()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize database connection using the demo config
	pgxPool, err := pgxpool.NewWithConfig(ctx, config.PostgresPGXPoolDemoConfig())
	if err != nil {
		log.Fatalf("Failed to create pgx pool: %v", err)
	}
	defer pgxPool.Close()

	// Test database connection
	if err := pgxPool.Ping(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Initialize observability (if enabled)
	obsConfig := cfg.NewObservabilityConfig()

	var documentStoreOptions []postgresengine.Option
	if cfg.ObservabilityEnabled {
		if obsConfig.Logger != nil {
			documentStoreOptions = append(documentStoreOptions, postgresengine.WithLogger(obsConfig.Logger))
		}
		if obsConfig.ContextualLogger != nil {
			documentStoreOptions = append(documentStoreOptions, postgresengine.WithContextualLogger(obsConfig.ContextualLogger))
		}
		log.Printf("Observability enabled: metrics=%v, tracing=%v, logging=%v",
			obsConfig.MetricsCollector != nil,
			obsConfig.TracingCollector != nil,
			obsConfig.Logger != nil || obsConfig.ContextualLogger != nil)
	}

	// Initialize DocumentStore
	documentStore, err := postgresengine.NewDocumentStoreFromPGXPool(pgxPool, documentStoreOptions...)
	if err != nil {
		log.Fatalf("Failed to create DocumentStore: %v", err)
	}

	// Initialize the dashboard demo (cache stack observability is configured above)
	demo, err := NewDemo(documentStore, cfg, obsConfig)
	if err != nil {
		log.Fatalf("Failed to create dashboard demo: %v", err)
	}

	// Start traffic simulation in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := demo.Start(ctx); err != nil {
			errChan <- fmt.Errorf("dashboard demo failed: %w", err)
		}
	}()

	log.Printf("Entity Cache Dashboard Demo started")
	log.Printf("Configuration: rate=%d req/s, scenario_weights=%v", cfg.Rate, cfg.ScenarioWeights)
	log.Printf("Press Ctrl+C to stop...")

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	case err := <-errChan:
		log.Printf("Error occurred: %v", err)
		cancel()
	}

	// Give some time for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := demo.Stop(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Printf("Dashboard demo stopped")
}

func parseFlags() Config {
	var (
		rate            = flag.Int("rate", defaultRate, "Requests per second")
		observability   = flag.Bool("observability-enabled", false, "Enable OpenTelemetry observability")
		scenarioWeights = flag.String("scenario-weights", defaultScenarioWeights, "Comma-separated weights for read,mutation scenarios")
	)

	flag.Parse()

	// Parse scenario weights
	weights, err := parseScenarioWeights(*scenarioWeights)
	if err != nil {
		log.Fatalf("Invalid scenario weights '%s': %v", *scenarioWeights, err)
	}

	return Config{
		Rate:                 *rate,
		ObservabilityEnabled: *observability,
		ScenarioWeights:      weights,
	}
}

func parseScenarioWeights(weightsStr string) ([]int, error) {
	parts := strings.Split(weightsStr, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected 2 weights, got %d", len(parts))
	}

	weights := make([]int, 2)
	total := 0
	for i, part := range parts {
		weight, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid weight '%s': %w", part, err)
		}
		if weight < 0 || weight > 100 {
			return nil, fmt.Errorf("weight %d out of range [0, 100]", weight)
		}
		weights[i] = weight
		total += weight
	}

	if total != 100 {
		return nil, fmt.Errorf("weights must sum to 100, got %d", total)
	}

	return weights, nil
}

// ObservabilityConfig holds the observability adapters for the cache stack.
type ObservabilityConfig struct {
	Logger           entitycache.Logger
	ContextualLogger entitycache.ContextualLogger
	MetricsCollector entitycache.MetricsCollector
	TracingCollector entitycache.TracingCollector
}

func (c Config) NewObservabilityConfig() ObservabilityConfig {
	if !c.ObservabilityEnabled {
		return ObservabilityConfig{}
	}

	// Create OpenTelemetry adapters from the globally registered providers
	tracer := otel.Tracer("entitycache-dashboard-demo")
	meter := otel.Meter("entitycache-dashboard-demo")

	metricsCollector := oteladapters.NewMetricsCollector(meter)
	tracingCollector := oteladapters.NewTracingCollector(tracer)
	contextualLogger := oteladapters.NewSlogBridgeLogger("entitycache-dashboard-demo")

	return ObservabilityConfig{
		Logger:           nil, // Using contextual logger instead
		ContextualLogger: contextualLogger,
		MetricsCollector: metricsCollector,
		TracingCollector: tracingCollector,
	}
}
