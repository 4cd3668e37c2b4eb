package controlplane

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/aponysus/tableadmin/policy"
)

// Source loads a complete set of method policies.
type Source interface {
	Load(ctx context.Context) (*StaticProvider, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*StaticProvider, error)

func (f SourceFunc) Load(ctx context.Context) (*StaticProvider, error) { return f(ctx) }

// FileSource loads the YAML policy file at Path.
type FileSource struct {
	Path string
}

func (s FileSource) Load(context.Context) (*StaticProvider, error) {
	return LoadFile(s.Path)
}

// ReloadingProvider is a Provider that reloads its Source once the previous
// snapshot is older than the refresh interval. When a reload fails it keeps
// serving the last-known-good snapshot.
type ReloadingProvider struct {
	source  Source
	cache   *snapshotCache
	refresh time.Duration
}

// ReloadingProviderOption configures a ReloadingProvider.
type ReloadingProviderOption func(*ReloadingProvider)

// WithRefreshInterval sets how long a loaded snapshot is served before the
// source is read again. Default is 1 minute.
func WithRefreshInterval(d time.Duration) ReloadingProviderOption {
	return func(p *ReloadingProvider) {
		p.refresh = d
	}
}

func NewReloadingProvider(source Source, opts ...ReloadingProviderOption) *ReloadingProvider {
	p := &ReloadingProvider{
		source:  source,
		cache:   &snapshotCache{},
		refresh: 1 * time.Minute,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CallPolicy returns the policy for method from the current snapshot. If the
// source fails and an older snapshot exists, its policy is returned with
// source PolicySourceLKG alongside an error marked ErrPolicyFetchFailed.
func (p *ReloadingProvider) CallPolicy(ctx context.Context, method string) (policy.CallPolicy, error) {
	if p == nil || p.source == nil {
		return policy.CallPolicy{}, ErrProviderUnavailable
	}

	snap, fresh := p.cache.Get()
	if fresh {
		return snap.CallPolicy(ctx, method)
	}

	loaded, err := p.source.Load(ctx)
	if err != nil || loaded == nil {
		if err == nil {
			err = errors.New("controlplane: source returned no policies")
		}
		err = errors.Mark(err, ErrPolicyFetchFailed)
		if snap == nil {
			return policy.CallPolicy{}, err
		}
		pol, perr := snap.CallPolicy(ctx, method)
		if perr != nil {
			return policy.CallPolicy{}, errors.CombineErrors(perr, err)
		}
		pol.Meta.Source = policy.PolicySourceLKG
		return pol, err
	}

	p.cache.Set(loaded, p.refresh)
	return loaded.CallPolicy(ctx, method)
}

// Invalidate makes the next CallPolicy reload the source.
func (p *ReloadingProvider) Invalidate() {
	if p == nil {
		return
	}
	p.cache.Expire()
}
