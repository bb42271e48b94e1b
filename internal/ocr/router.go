package ocr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docweave/docweave/internal/invoker"
)

// Router chooses between extraction engines. Under the hybrid policy the
// fast engine runs first and its result stands when confidence meets the
// threshold; otherwise the accurate engine's result overrides it. Under the
// fixed policy a single configured engine handles every call.
type Router struct {
	policy    string
	threshold float64
	fast      Engine
	accurate  Engine
	logger    *slog.Logger
}

// NewRouter creates a Router from config.
func NewRouter(cfg *Config, logger *slog.Logger) *Router {
	r := &Router{
		policy:    cfg.Policy,
		threshold: cfg.ConfidenceThreshold,
		fast:      NewEngine(&cfg.Fast),
		logger:    logger.With("system", "ocr"),
	}
	if cfg.Policy == PolicyHybrid {
		r.accurate = NewEngine(&cfg.Accurate)
	}
	return r
}

// NewRouterWithEngines creates a Router over explicit engines.
func NewRouterWithEngines(policy string, threshold float64, fast, accurate Engine, logger *slog.Logger) *Router {
	return &Router{
		policy:    policy,
		threshold: threshold,
		fast:      fast,
		accurate:  accurate,
		logger:    logger.With("system", "ocr"),
	}
}

// Extract runs the configured routing policy against the document bytes.
// A primary engine failure (not merely low confidence) falls back to the
// secondary engine; when both are unavailable the call fails with
// invoker.ErrServiceUnavailable.
func (r *Router) Extract(ctx context.Context, document []byte) (*Result, error) {
	if r.policy == PolicyFixed {
		return r.fast.Extract(ctx, document)
	}

	primary, err := r.fast.Extract(ctx, document)
	if err != nil {
		r.logger.WarnContext(
			ctx, "primary engine failed, falling back",
			"engine", r.fast.Name(),
			"error", err,
		)

		fallback, fbErr := r.accurate.Extract(ctx, document)
		if fbErr != nil {
			return nil, fmt.Errorf("%w: both engines failed: %s: %w", invoker.ErrServiceUnavailable, err, fbErr)
		}
		return fallback, nil
	}

	if primary.Confidence >= r.threshold {
		return primary, nil
	}

	r.logger.InfoContext(
		ctx, "confidence below threshold, escalating",
		"engine", r.fast.Name(),
		"confidence", primary.Confidence,
		"threshold", r.threshold,
	)

	secondary, err := r.accurate.Extract(ctx, document)
	if err != nil {
		// Low confidence is still a usable result; keep it when the
		// accurate engine is unavailable.
		r.logger.WarnContext(
			ctx, "accurate engine failed, keeping low-confidence result",
			"engine", r.accurate.Name(),
			"error", err,
		)
		return primary, nil
	}

	return secondary, nil
}
