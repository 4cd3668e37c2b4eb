// Package controlplane supplies per-method call policies from static maps or
// YAML files.
package controlplane

import (
	"context"

	"github.com/aponysus/tableadmin/policy"
)

// Provider supplies the CallPolicy for an admin method such as "CreateTable".
type Provider interface {
	// CallPolicy returns the policy for method.
	//
	// Providers may return a non-zero policy alongside a non-nil error to
	// communicate that the policy was obtained via a fallback path (for example,
	// last-known-good).
	CallPolicy(ctx context.Context, method string) (policy.CallPolicy, error)
}

// StaticProvider is an in-process Provider backed by a map and an optional
// default. Methods with neither yield ErrPolicyNotFound, leaving the caller's
// own default in effect.
type StaticProvider struct {
	Policies map[string]policy.CallPolicy
	Default  policy.CallPolicy
}

func (p *StaticProvider) CallPolicy(_ context.Context, method string) (policy.CallPolicy, error) {
	if p != nil && p.Policies != nil {
		if pol, ok := p.Policies[method]; ok {
			if pol.Meta.Source == "" || pol.Meta.Source == policy.PolicySourceUnknown {
				pol.Meta.Source = policy.PolicySourceStatic
			}
			return pol.Normalize()
		}
	}

	if p != nil && !p.Default.IsZero() {
		pol := p.Default
		if pol.Meta.Source == "" || pol.Meta.Source == policy.PolicySourceUnknown {
			pol.Meta.Source = policy.PolicySourceStatic
		}
		return pol.Normalize()
	}

	return policy.CallPolicy{}, ErrPolicyNotFound
}
