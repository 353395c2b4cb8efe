// Package translate turns spoken-language text into the display language
// before it is routed into a room.
package translate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"
)

var (
	ErrDisabled          = errors.New("translation is disabled")
	ErrNoProvider        = errors.New("no translation provider configured")
	ErrUnsupportedTarget = errors.New("unsupported target language")
	ErrInvalidSource     = errors.New("invalid source language")
	ErrEmptyTranslation  = errors.New("provider returned no translation")
)

// DefaultSource is the language captions are spoken in unless a source says
// otherwise.
var DefaultSource = language.Japanese

var supportedTargets = []language.Tag{language.AmericanEnglish, language.BritishEnglish}

const defaultRatePerSecond = 2

// Translator is a translation provider.
type Translator interface {
	Translate(ctx context.Context, text string, source, target language.Tag) (string, error)
}

type Settings struct {
	Enabled     bool   `json:"enabled"`
	Target      string `json:"targetLanguage"`
	HasProvider bool   `json:"hasProvider"`
}

type Result struct {
	OriginalText   string `json:"originalText"`
	TranslatedText string `json:"translatedText"`
	SourceLang     string `json:"sourceLang"`
	TargetLang     string `json:"targetLang"`
}

// ParseTarget accepts the display languages the service can produce,
// case-insensitively ("EN-us", "en-GB").
func ParseTarget(s string) (language.Tag, error) {
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, fmt.Errorf("%w: %q", ErrUnsupportedTarget, s)
	}
	for _, t := range supportedTargets {
		if t == tag {
			return t, nil
		}
	}
	return language.Und, fmt.Errorf("%w: %q", ErrUnsupportedTarget, s)
}

// Service holds the runtime translation settings, which admins can change
// while rooms are live.
type Service struct {
	mu       sync.RWMutex
	enabled  bool
	target   language.Tag
	provider Translator
	limiter  *rate.Limiter
	log      zerolog.Logger
}

// NewService builds a service. provider may be nil, in which case every
// translation fails with ErrNoProvider.
func NewService(provider Translator, enabled bool, target string, perSecond int, log zerolog.Logger) (*Service, error) {
	tag := language.AmericanEnglish
	if target != "" {
		var err error
		if tag, err = ParseTarget(target); err != nil {
			return nil, err
		}
	}
	if perSecond <= 0 {
		perSecond = defaultRatePerSecond
	}
	return &Service{
		enabled:  enabled,
		target:   tag,
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), perSecond),
		log:      log.With().Str("module", "translate").Logger(),
	}, nil
}

func (s *Service) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Settings{Enabled: s.enabled, Target: s.target.String(), HasProvider: s.provider != nil}
}

// Update changes the enabled flag and, when target is not empty, the
// target language.
func (s *Service) Update(enabled bool, target string) (Settings, error) {
	var tag language.Tag
	if target != "" {
		var err error
		if tag, err = ParseTarget(target); err != nil {
			return Settings{}, err
		}
	}
	s.mu.Lock()
	s.enabled = enabled
	if target != "" {
		s.target = tag
	}
	s.mu.Unlock()

	st := s.Settings()
	s.log.Info().Bool("enabled", st.Enabled).Str("target", st.Target).Msg("translation settings updated")
	return st, nil
}

// Translate waits for the rate limiter and calls the provider. source may be
// empty, meaning Japanese.
func (s *Service) Translate(ctx context.Context, text, source string) (Result, error) {
	s.mu.RLock()
	enabled, target, provider := s.enabled, s.target, s.provider
	s.mu.RUnlock()

	if !enabled {
		return Result{}, ErrDisabled
	}
	if provider == nil {
		return Result{}, ErrNoProvider
	}

	src := DefaultSource
	if source != "" {
		tag, err := language.Parse(source)
		if err != nil {
			return Result{}, fmt.Errorf("%w %q: %v", ErrInvalidSource, source, err)
		}
		src = tag
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("waiting for translation slot: %w", err)
	}
	out, err := provider.Translate(ctx, text, src, target)
	if err != nil {
		s.log.Error().Err(err).Str("target", target.String()).Msg("translation failed")
		return Result{}, fmt.Errorf("translating: %w", err)
	}
	s.log.Debug().Int("chars", len(text)).Str("target", target.String()).Msg("translated")
	return Result{
		OriginalText:   text,
		TranslatedText: out,
		SourceLang:     src.String(),
		TargetLang:     target.String(),
	}, nil
}
