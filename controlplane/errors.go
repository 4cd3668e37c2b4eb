package controlplane

import "github.com/cockroachdb/errors"

var (
	// ErrProviderUnavailable indicates the provider could not be used at all.
	ErrProviderUnavailable = errors.New("tableadmin: policy provider unavailable")
	// ErrPolicyNotFound indicates the provider has no policy for the method.
	ErrPolicyNotFound = errors.New("tableadmin: policy not found")
	// ErrPolicyFetchFailed indicates the policy source failed to load.
	ErrPolicyFetchFailed = errors.New("tableadmin: policy fetch failed")
)
