// Package fetch retrieves raw items from the configured ingestion sources.
//
// Sources never store anything; the coordinator decides what to do with the
// items they return. Every source shares the same HTTP discipline: a
// per-source rate limiter, exponential backoff on transient failures, and a
// request bound to the caller's context.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/abelbrown/intelbrief/internal/config"
	"github.com/abelbrown/intelbrief/internal/logging"
	"github.com/abelbrown/intelbrief/internal/model"
)

// Source types understood by NewFromConfig.
const (
	TypeRSS       = "rss"
	TypeACLED     = "acled"
	TypeWorldBank = "worldbank"
)

var (
	// ErrDisabled is returned by NewFromConfig for sources switched off in config.
	ErrDisabled = errors.New("fetch: source disabled")
	// ErrMissingCredentials is returned for API sources configured without a key.
	ErrMissingCredentials = errors.New("fetch: missing credentials")
)

// Source produces raw items from one upstream.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.RawItem, error)
}

// NewFromConfig builds the source described by sc.
func NewFromConfig(sc config.SourceConfig, ing config.IngestionConfig) (Source, error) {
	if sc.Disabled {
		return nil, fmt.Errorf("%s: %w", sc.Name, ErrDisabled)
	}
	tier, err := model.ParseTier(sc.Tier)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sc.Name, err)
	}

	c := newClient(ing)
	switch strings.ToLower(sc.Type) {
	case TypeRSS, "":
		return NewRSS(sc.Name, sc.URL, tier, sc.Language, c), nil
	case TypeACLED:
		if sc.APIKey == "" {
			return nil, fmt.Errorf("%s: %w", sc.Name, ErrMissingCredentials)
		}
		return NewACLED(sc, tier, c), nil
	case TypeWorldBank:
		return NewWorldBank(sc, tier, c), nil
	default:
		return nil, fmt.Errorf("%s: unknown source type %q", sc.Name, sc.Type)
	}
}

// FromConfig builds every enabled source. Disabled sources and API sources
// without credentials are skipped with a log line; any other error is returned.
func FromConfig(scs []config.SourceConfig, ing config.IngestionConfig) ([]Source, error) {
	var (
		out  []Source
		errs []error
	)
	for _, sc := range scs {
		src, err := NewFromConfig(sc, ing)
		switch {
		case errors.Is(err, ErrDisabled):
			logging.Debug("source disabled", "source", sc.Name)
		case errors.Is(err, ErrMissingCredentials):
			logging.Warn("source skipped: no API key configured", "source", sc.Name)
		case err != nil:
			errs = append(errs, err)
		default:
			out = append(out, src)
		}
	}
	return out, errors.Join(errs...)
}

// hashString creates a short hash of a string for use as an ID.
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8]) // 16 character hex string
}
