package authenticate

import (
	"context"
	"fmt"

	"github.com/akuity/npmauth/internal/credentials"
	"github.com/akuity/npmauth/internal/npmrc"
	"github.com/akuity/npmauth/pkg/logging"
)

// Counters are the run counters published as telemetry.
type Counters struct {
	// InternalFeedAuthCount is the number of discovered registries
	// authenticated.
	InternalFeedAuthCount int `json:"InternalFeedAuthCount"`
	// ExternalFeedAuthCount is the number of explicit registries
	// authenticated.
	ExternalFeedAuthCount int `json:"ExternalFeedAuthCount"`
	// FederatedFeedAuthCount is the number of feeds authenticated with a
	// workload identity.
	FederatedFeedAuthCount int `json:"FederatedFeedAuthCount"`
}

// Warner surfaces warnings to the user.
type Warner interface {
	Warning(msg string)
}

// Ledger tracks the registries already authenticated during the build.
type Ledger interface {
	Contains(registryURL string) bool
	Add(registryURL string) bool
}

// Engine merges credential sources into an .npmrc file. All changes are made
// to the in-memory file. Writing it is up to the caller.
type Engine struct {
	warner   Warner
	ledger   Ledger
	counters *Counters
}

// NewEngine returns an *Engine that reports warnings to warner, consults and
// updates ledger and counts authenticated registries in counters.
func NewEngine(warner Warner, ledger Ledger, counters *Counters) *Engine {
	return &Engine{
		warner:   warner,
		ledger:   ledger,
		counters: counters,
	}
}

// MergeStandard authenticates every registry declared in f for which pools
// has a source. For each matched registry, stale credential lines are
// scrubbed. Registries already in the ledger are warned about and not
// authenticated again.
func (e *Engine) MergeStandard(
	ctx context.Context,
	f *npmrc.File,
	pools credentials.Pools,
) error {
	logger := logging.LoggerFromContext(ctx)
	overridden := map[string]struct{}{}

	for _, d := range f.Directives() {
		logger := logger.WithValues("registry", d.URL, "scope", d.Scope)
		src, ok := pools.Match(d.URL)
		if !ok {
			logger.Info("no credentials available; registry left unauthenticated")
			continue
		}
		nerf, err := src.Nerf()
		if err != nil {
			return fmt.Errorf("error normalizing %s: %w", src.URL, err)
		}
		lines := src.Lines()
		logger.Debug("matched credential source", "origin", src.Origin.String())

		if scrubbed := f.Scrub(nerf, lines...); scrubbed > 0 {
			logger.Debug("scrubbed stale credentials", "lines", scrubbed)
			if _, warned := overridden[nerf]; !warned &&
				src.Origin == credentials.OriginExplicit {
				e.warner.Warning(fmt.Sprintf(
					"Checked-in credentials for %s were overridden by the credentials "+
						"of the service connection.",
					npmrc.Host(src.URL),
				))
				overridden[nerf] = struct{}{}
			}
		}

		if e.ledger.Contains(src.URL) {
			e.warner.Warning(duplicateCredentialsMessage(src.URL))
			continue
		}

		e.appendMissing(f, lines)
		e.ledger.Add(src.URL)
		switch src.Origin {
		case credentials.OriginExplicit:
			e.counters.ExternalFeedAuthCount++
		case credentials.OriginDiscovered:
			e.counters.InternalFeedAuthCount++
		}
		logger.Info("added credentials", "origin", src.Origin.String())
	}
	return nil
}

// MergeFederated authenticates the single feed of src. The fresh token always
// replaces whatever credentials the file holds for the feed, even when the
// ledger says the feed was authenticated before. The registries declared in
// the file are not examined.
func (e *Engine) MergeFederated(
	ctx context.Context,
	f *npmrc.File,
	src credentials.Source,
) error {
	logger := logging.LoggerFromContext(ctx).WithValues("feed", src.URL)
	nerf, err := src.Nerf()
	if err != nil {
		return fmt.Errorf("error normalizing %s: %w", src.URL, err)
	}
	if scrubbed := f.Scrub(nerf); scrubbed > 0 {
		logger.Debug("scrubbed stale credentials", "lines", scrubbed)
	}
	f.Append(src.Lines()...)
	e.counters.FederatedFeedAuthCount++
	if !e.ledger.Add(src.URL) {
		e.warner.Warning(duplicateCredentialsMessage(src.URL))
	}
	logger.Info("added federated credentials")
	return nil
}

// appendMissing appends the lines f does not already contain.
func (e *Engine) appendMissing(f *npmrc.File, lines []string) {
	for _, line := range lines {
		if !f.Contains(line) {
			f.Append(line)
		}
	}
}

func duplicateCredentialsMessage(registryURL string) string {
	return fmt.Sprintf(
		"Duplicate credentials: %s was already authenticated earlier in this build.",
		registryURL,
	)
}
