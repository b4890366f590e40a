package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"github.com/and161185/journeyvault/internal/blob"
	"github.com/and161185/journeyvault/internal/capture"
	"github.com/and161185/journeyvault/internal/config"
	"github.com/and161185/journeyvault/internal/enrich"
	"github.com/and161185/journeyvault/internal/media"
	"github.com/and161185/journeyvault/internal/model"
	"github.com/and161185/journeyvault/internal/repository"
	"github.com/and161185/journeyvault/internal/repository/postgres"
	sbrepo "github.com/and161185/journeyvault/internal/repository/supabase"
	"github.com/and161185/journeyvault/internal/service"
)

const (
	providerTimeout = 10 * time.Second
	tokenTTL        = 30 * 24 * time.Hour
)

// app holds the wired backends for one command.
type app struct {
	journeys service.JourneyService
	accounts service.AccountService // nil unless the backend keeps its own profiles
	orch     *capture.Orchestrator
	enricher *enrich.Enricher
	metrics  *capture.Metrics
	log      *zap.Logger

	metricsFile string
	closers     []func()
}

// Close flushes metrics and releases connections.
func (a *app) Close() error {
	if a.orch != nil {
		a.orch.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if a.metricsFile == "" || a.metrics == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.metricsFile, a.metrics.Registry()); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	var (
		journeys repository.JourneyRepository
		memories repository.MemoryRepository
		ids      repository.IdentityRepository
		blobs    blob.Store
		a        = &app{log: log, metricsFile: cfg.Metrics.File}
	)

	switch cfg.Backend {
	case config.BackendSupabase:
		client, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.Key, supabaseOptions(cfg))
		if err != nil {
			return nil, fmt.Errorf("supabase client: %w", err)
		}
		journeys = sbrepo.NewJourneyRepo(client)
		memories = sbrepo.NewMemoryRepo(client)
		ids = sbrepo.NewIdentityRepo(client)
		blobs = blob.NewSupabaseStore(client.Storage, cfg.Supabase.Bucket, log)

	case config.BackendPostgres:
		db, err := postgres.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		journeys = postgres.NewJourneyRepo(db)
		memories = postgres.NewMemoryRepo(db)
		accounts := postgres.NewIdentityRepo(db)
		ids = accounts
		if cfg.JWTSecret != "" {
			a.accounts = service.NewAccountService(accounts, []byte(cfg.JWTSecret), tokenTTL)
		}
		local, err := blob.NewLocalStore(cfg.Media.Dir, cfg.Media.BaseURL)
		if err != nil {
			return nil, err
		}
		blobs = local

	default:
		return nil, fmt.Errorf("%w %q", config.ErrUnknownBackend, cfg.Backend)
	}

	a.metrics = capture.NewMetrics(cfg.Metrics.Namespace)
	a.journeys = service.NewJourneyService(journeys, memories, ids, blobs, log).
		WithImportLimits(cfg.Capture.MaxImportBytes, cfg.Capture.MaxImportPixels)
	a.orch = capture.NewOrchestrator(journeys, memories, blobs, capture.Options{
		Compress: media.CompressOptions{
			MaxEdge:     cfg.Capture.MaxEdge,
			TargetBytes: cfg.Capture.TargetBytes,
		},
		MaxImportBytes:  cfg.Capture.MaxImportBytes,
		MaxImportPixels: cfg.Capture.MaxImportPixels,
		NoteMax:         cfg.Capture.NoteMax,
	}, log).WithMetrics(a.metrics).WithFeedback(capture.FeedbackFunc(func(t model.MemoryType) {
		log.Debug("saved", zap.String("type", string(t)))
	}))
	a.enricher = newEnricher(cfg, log)
	return a, nil
}

// supabaseOptions makes PostgREST calls on behalf of the signed-in user so
// row level security applies.
func supabaseOptions(cfg *config.Config) *supabase.ClientOptions {
	if cfg.AccessToken == "" {
		return nil
	}
	return &supabase.ClientOptions{Headers: map[string]string{
		"Authorization": "Bearer " + cfg.AccessToken,
	}}
}

func newEnricher(cfg *config.Config, log *zap.Logger) *enrich.Enricher {
	var locator enrich.Locator = enrich.DisabledLocator{}
	if cfg.Location.Enabled {
		locator = enrich.FixedLocator{Position: enrich.Position{Lat: cfg.Location.Lat, Lon: cfg.Location.Lon}}
	}
	client := &http.Client{Timeout: providerTimeout}

	var geocoder enrich.Geocoder
	if cfg.Geocode.URL != "" {
		geocoder = enrich.NewNominatim(cfg.Geocode.URL, cfg.Geocode.UserAgent, client, log)
	}
	var weather enrich.WeatherSource
	if cfg.Weather.URL != "" {
		weather = enrich.NewOpenMeteo(cfg.Weather.URL, client, log)
	}
	return enrich.New(locator, geocoder, weather, log)
}
