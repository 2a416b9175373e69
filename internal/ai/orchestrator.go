package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pathwise/pathwise-backend/internal/httpx"
	"github.com/pathwise/pathwise-backend/internal/logger"
	"github.com/pathwise/pathwise-backend/internal/ratelimit"
)

// ProviderUsage holds in-memory per-process counters per provider key.
// Informational only; the durable record is the ai_call_log table.
type ProviderUsage struct {
	Requests   int64
	Failures   int64
	LastCallAt time.Time
}

type Orchestrator struct {
	providers   []Provider
	gate        *ratelimit.Gate
	callTimeout time.Duration
	log         *logger.Logger

	usageMu sync.Mutex
	usage   map[string]*ProviderUsage
}

func NewOrchestrator(providers []Provider, gate *ratelimit.Gate, callTimeout time.Duration, baseLog *logger.Logger) *Orchestrator {
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}
	return &Orchestrator{
		providers:   providers,
		gate:        gate,
		callTimeout: callTimeout,
		log:         baseLog.With("component", "AIOrchestrator"),
		usage:       map[string]*ProviderUsage{},
	}
}

// Generate walks the provider tiers in order. Per tier: acquire the rate
// gate, make ONE attempt, and on any failure advance to the next tier.
// Zero retries per provider: the primary tier's free quota counts failed
// attempts, so retrying in place burns quota for nothing.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, string, error) {
	if len(o.providers) == 0 {
		return GenerateResult{}, "", ErrAIUnavailable
	}
	var failures []error
	for _, p := range o.providers {
		if err := ctx.Err(); err != nil {
			return GenerateResult{}, "", err
		}
		if err := o.gate.Acquire(ctx, p.Key()); err != nil {
			return GenerateResult{}, "", err
		}
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		res, err := p.Generate(callCtx, req)
		cancel()
		o.record(p.Key(), err == nil)
		if err == nil {
			return res, p.Key(), nil
		}
		reason := "provider_error"
		switch {
		case IsQuota(err):
			reason = "quota_exceeded"
		case httpx.IsRetryableError(err):
			reason = "transport_error"
		}
		o.log.Warn("Provider failed, falling over", "provider", p.Key(), "reason", reason, "error", err)
		failures = append(failures, fmt.Errorf("%s: %w", p.Key(), err))
	}
	return GenerateResult{}, "", errors.Join(ErrAIUnavailable, errors.Join(failures...))
}

func (o *Orchestrator) record(provider string, success bool) {
	o.usageMu.Lock()
	defer o.usageMu.Unlock()
	u, ok := o.usage[provider]
	if !ok {
		u = &ProviderUsage{}
		o.usage[provider] = u
	}
	u.LastCallAt = time.Now()
	if success {
		u.Requests++
	} else {
		u.Failures++
	}
}

// Usage returns a snapshot of the per-provider counters.
func (o *Orchestrator) Usage() map[string]ProviderUsage {
	o.usageMu.Lock()
	defer o.usageMu.Unlock()
	out := make(map[string]ProviderUsage, len(o.usage))
	for k, v := range o.usage {
		out[k] = *v
	}
	return out
}

// ModelFor reports the model configured for a provider key, for the
// ai_model_used column.
func (o *Orchestrator) ModelFor(provider string) string {
	for _, p := range o.providers {
		if p.Key() == provider {
			return p.Model()
		}
	}
	return ""
}
