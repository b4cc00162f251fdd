package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/palermolight/catalog-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_pages_fetched_total",
		Help: "Total number of catalog pages fetched by page walks",
	})

	walksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_page_walks_total",
		Help: "Total number of page walks by outcome",
	}, []string{"outcome"}) // "exhausted", "max_pages", "failed", "cancelled"
)

// Config holds page walk configuration
type Config struct {
	// PageSize is the limit sent with each page request. A shorter page ends the walk.
	PageSize int
	// MaxPages caps the number of page requests
	MaxPages int
	// Delay is the pause between consecutive page requests
	Delay time.Duration

	// Logger receives walk progress. Nil means the global logger; a logger
	// carried by the walk's context takes precedence over both.
	Logger *zerolog.Logger
}

// DefaultConfig returns the storefront defaults: 5 pages of 200 with a 50ms pause
func DefaultConfig() Config {
	return Config{
		PageSize: 200,
		MaxPages: 5,
		Delay:    50 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PageSize <= 0 {
		c.PageSize = def.PageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = def.MaxPages
	}
	if c.Delay < 0 {
		c.Delay = 0
	}
	return c
}

func (c Config) logger(ctx context.Context) zerolog.Logger {
	fallback := logging.NewLogger("pagination")
	if c.Logger != nil {
		fallback = logging.WithComponent(*c.Logger, "pagination")
	}
	return logging.FromContext(ctx, "pagination", fallback)
}

// PageFunc fetches one 1-based page.
type PageFunc[T any] func(ctx context.Context, page int) ([]T, error)

// Result is the outcome of a page walk.
type Result[T any] struct {
	// Items are all records received, in page order.
	Items []T
	// Pages is the number of pages that returned successfully.
	Pages int
	// Exhausted is true when a short page signalled the end of the data.
	Exhausted bool
}

// Walk requests pages 1..MaxPages sequentially and concatenates them.
// On a page failure or context cancellation the partial Result is returned
// together with the error.
func Walk[T any](ctx context.Context, cfg Config, fetch PageFunc[T]) (Result[T], error) {
	cfg = cfg.withDefaults()
	logger := cfg.logger(ctx)
	start := time.Now()

	var res Result[T]
	for page := 1; page <= cfg.MaxPages; page++ {
		if page > 1 && cfg.Delay > 0 {
			timer := time.NewTimer(cfg.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return res, cancelled(ctx, &logger, res, page)
			case <-timer.C:
			}
		}

		if ctx.Err() != nil {
			return res, cancelled(ctx, &logger, res, page)
		}

		items, err := fetch(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return res, cancelled(ctx, &logger, res, page)
			}
			walksTotal.WithLabelValues("failed").Inc()
			logger.Warn().
				Err(err).
				Int("page", page).
				Int("items", len(res.Items)).
				Msg("Page fetch failed - returning partial results")
			return res, fmt.Errorf("fetch page %d: %w", page, err)
		}

		pagesFetchedTotal.Inc()
		res.Pages++
		res.Items = append(res.Items, items...)
		logger.Debug().Int("page", page).Int("items", len(items)).Msg("Page fetched")

		if len(items) < cfg.PageSize {
			res.Exhausted = true
			break
		}
	}

	outcome := "max_pages"
	if res.Exhausted {
		outcome = "exhausted"
	}
	walksTotal.WithLabelValues(outcome).Inc()

	logger.Debug().
		Int("pages", res.Pages).
		Int("items", len(res.Items)).
		Bool("exhausted", res.Exhausted).
		Dur("duration", time.Since(start)).
		Msg("Page walk complete")

	return res, nil
}

func cancelled[T any](ctx context.Context, logger *zerolog.Logger, res Result[T], page int) error {
	walksTotal.WithLabelValues("cancelled").Inc()
	logger.Debug().
		Int("page", page).
		Int("items", len(res.Items)).
		Msg("Page walk stopping (context cancelled)")
	return fmt.Errorf("page walk cancelled before page %d: %w", page, ctx.Err())
}
