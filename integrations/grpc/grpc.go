// Package grpc connects the retry engine to gRPC clients: a unary client
// interceptor, a JSON codec and request metadata helpers.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"

	"github.com/aponysus/tableadmin/classify"
	"github.com/aponysus/tableadmin/controlplane"
	"github.com/aponysus/tableadmin/retry"
)

// MethodName maps a full method to its short name.
// "/google.bigtable.admin.v2.BigtableTableAdmin/GetTable" -> "GetTable"
func MethodName(fullMethod string) string {
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		return fullMethod[i+1:]
	}
	return fullMethod
}

type interceptorConfig struct {
	nameFunc   func(fullMethod string) string
	provider   controlplane.Provider
	idempotent func(name string) bool
}

// InterceptorOption configures UnaryClientInterceptor.
type InterceptorOption func(*interceptorConfig)

// WithNameFunc sets how full methods are named in timelines and policy
// lookups. Defaults to MethodName.
func WithNameFunc(f func(fullMethod string) string) InterceptorOption {
	return func(c *interceptorConfig) {
		if f != nil {
			c.nameFunc = f
		}
	}
}

// WithPolicyProvider looks up a per-method CallPolicy. Methods the provider
// does not know keep the executor's prototypes.
func WithPolicyProvider(p controlplane.Provider) InterceptorOption {
	return func(c *interceptorConfig) { c.provider = p }
}

// WithIdempotency reports whether a method may be retried when its policy
// does not say. Defaults to every method being idempotent.
func WithIdempotency(f func(name string) bool) InterceptorOption {
	return func(c *interceptorConfig) {
		if f != nil {
			c.idempotent = f
		}
	}
}

// UnaryClientInterceptor returns a gRPC interceptor that retries calls using the executor.
func UnaryClientInterceptor(exec *retry.Executor, opts ...InterceptorOption) grpc.UnaryClientInterceptor {
	cfg := interceptorConfig{
		nameFunc:   MethodName,
		idempotent: func(string) bool { return true },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		name := cfg.nameFunc(method)
		op := func(ctx context.Context) error {
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		return exec.Do(ctx, name, op, cfg.callOptions(ctx, name)...)
	}
}

// callOptions picks the per-method prototypes. A provider error that still
// yields a policy (last-known-good) is tolerated.
func (c interceptorConfig) callOptions(ctx context.Context, name string) []retry.CallOption {
	idempotent := c.idempotent(name)
	if c.provider != nil {
		if pol, _ := c.provider.CallPolicy(ctx, name); !pol.IsZero() {
			return []retry.CallOption{
				retry.OverrideRetryPolicy(pol.RetryPolicy(idempotent)),
				retry.OverrideBackoff(pol.BackoffPolicy()),
			}
		}
	}
	if !idempotent {
		return []retry.CallOption{retry.OverrideRetryPolicy(
			retry.NewLimitedAttempts(1, retry.WithClassifier(classify.NotIdempotent{})),
		)}
	}
	return nil
}
