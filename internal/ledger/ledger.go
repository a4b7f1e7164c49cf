package ledger

import (
	"fmt"
	"strings"

	"github.com/akuity/npmauth/internal/npmrc"
	"github.com/akuity/npmauth/internal/pipeline"
)

// Variables is the subset of build variable access the Ledger needs.
type Variables interface {
	Get(name string) string
	Set(name, value string) error
}

// Ledger is the build-wide set of registries that were already authenticated
// by an earlier invocation or earlier in the current one. Entries are the
// registry URLs as they were authenticated. Membership is decided by nerf key,
// so scheme and host case do not matter.
type Ledger struct {
	vars  Variables
	urls  []string
	keys  map[string]struct{}
	dirty bool
}

// Load reads the ledger from the build variables.
func Load(vars Variables) *Ledger {
	l := &Ledger{
		vars: vars,
		keys: map[string]struct{}{},
	}
	for _, u := range strings.Split(vars.Get(pipeline.VarExistingEndpoints), ",") {
		if u = strings.TrimSpace(u); u != "" {
			l.add(u)
		}
	}
	return l
}

// Contains returns true if a registry with the same nerf key as registryURL is
// in the ledger.
func (l *Ledger) Contains(registryURL string) bool {
	_, ok := l.keys[key(registryURL)]
	return ok
}

// Add records registryURL. It returns false if a registry with the same nerf
// key was already recorded.
func (l *Ledger) Add(registryURL string) bool {
	if !l.add(registryURL) {
		return false
	}
	l.dirty = true
	return true
}

// Save publishes the ledger to the build variables if it changed since it was
// loaded or last saved.
func (l *Ledger) Save() error {
	if !l.dirty {
		return nil
	}
	if err := l.vars.Set(pipeline.VarExistingEndpoints, l.String()); err != nil {
		return fmt.Errorf("error publishing authenticated registries: %w", err)
	}
	l.dirty = false
	return nil
}

// URLs returns the registries in the order they were added.
func (l *Ledger) URLs() []string {
	return append([]string(nil), l.urls...)
}

// String returns the serialized, comma-separated form of the ledger.
func (l *Ledger) String() string {
	return strings.Join(l.urls, ",")
}

func (l *Ledger) add(registryURL string) bool {
	k := key(registryURL)
	if _, ok := l.keys[k]; ok {
		return false
	}
	l.keys[k] = struct{}{}
	l.urls = append(l.urls, registryURL)
	return true
}

// key is the nerf key of a URL or, for values that are not URLs, the
// normalized value itself.
func key(registryURL string) string {
	if nerf, err := npmrc.Nerf(registryURL); err == nil {
		return nerf
	}
	return npmrc.NormalizeRegistry(registryURL)
}
