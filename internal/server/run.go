package server

import (
	"captioncast/internal/analytics"
	"captioncast/internal/config"
	"captioncast/internal/db"
	"captioncast/internal/logging"
	"captioncast/internal/metrics"
	"captioncast/internal/rooms"
	"captioncast/internal/sessionlog"
	"captioncast/internal/translate"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

// Run loads configuration, wires every component and serves until ctx is
// cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	m := metrics.New()

	srv := &Server{
		Metrics:      m,
		ClientBuffer: cfg.ClientBuffer,
		Log:          log.With().Str("module", "server").Logger(),
	}

	var wg sync.WaitGroup
	bgCtx, stopBackground := context.WithCancel(context.Background())
	// Background work stops before the database closes so the session log
	// writer can flush its last batch.
	defer func() {
		stopBackground()
		wg.Wait()
		if srv.DB != nil {
			srv.DB.Close()
		}
	}()

	storeOpts := rooms.Options{
		Thresholds:  cfg.Queue.Thresholds(),
		AutoAdvance: cfg.AutoAdvance,
		Hooks:       m,
		Logger:      log.With().Str("module", "rooms").Logger(),
	}

	// Optional database connection
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL, log)
		if err != nil {
			log.Warn().Err(err).Msg("database unavailable, running without persistence")
		} else {
			if err := database.Migrate(ctx); err != nil {
				log.Error().Err(err).Msg("migration failed")
			}
			srv.DB = database
			srv.History = analytics.NewQueries(database)

			writer := sessionlog.NewWriter(database, cfg.LogBuffer, log.With().Str("module", "sessionlog").Logger())
			storeOpts.LogSink = writer.Sink()
			wg.Add(1)
			go func() {
				defer wg.Done()
				writer.Run(bgCtx)
			}()
		}
	} else {
		log.Info().Msg("DATABASE_URL not set, running without database")
	}

	srv.Rooms = rooms.NewStore(storeOpts)
	if cfg.DefaultRoom != "" {
		if _, err := srv.Rooms.EnsureDefault(cfg.DefaultRoom, cfg.DefaultRoom); err != nil {
			return fmt.Errorf("default room: %w", err)
		}
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.Rooms.RunSweeper(bgCtx, cfg.RoomIdleTTL)
	}()

	srv.Translation, err = newTranslation(cfg.Translation, log)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msgf("server listening on http://localhost:%s", cfg.Port)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, sum := range srv.Rooms.List() {
		if err := srv.Rooms.Delete(sum.ID); err != nil {
			log.Warn().Err(err).Str("room", sum.ID).Msg("closing room on shutdown")
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func newTranslation(cfg config.TranslationConfig, log zerolog.Logger) (*translate.Service, error) {
	var provider translate.Translator
	if cfg.APIKey != "" {
		p, err := translate.NewOpenAI(cfg.APIKey, translate.WithModel(cfg.Model))
		if err != nil {
			return nil, fmt.Errorf("translation provider: %w", err)
		}
		provider = p
	} else if cfg.Enabled {
		log.Warn().Msg("TRANSLATION_ENABLED is set but OPENAI_API_KEY is empty")
	}
	svc, err := translate.NewService(provider, cfg.Enabled, cfg.Target, cfg.Rate, log)
	if err != nil {
		return nil, fmt.Errorf("translation settings: %w", err)
	}
	return svc, nil
}
