package grpc

import (
	"context"
	"net/url"
	"strings"

	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const (
	// RequestParamsHeader routes a request to the resource it names.
	RequestParamsHeader = "x-goog-request-params"
	// APIClientHeader identifies the client library.
	APIClientHeader = "x-goog-api-client"
)

// Param is one routing parameter, such as parent=projects/p/instances/i.
type Param struct {
	Key   string
	Value string
}

// WithRequestParams attaches the routing header for params to ctx. Values
// are query-escaped.
func WithRequestParams(ctx context.Context, params ...Param) context.Context {
	if len(params) == 0 {
		return ctx
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p.Key+"="+url.QueryEscape(p.Value))
	}
	return metadata.AppendToOutgoingContext(ctx, RequestParamsHeader, strings.Join(parts, "&"))
}

// APIClientValue is the x-goog-api-client value sent by this package.
func APIClientValue() string {
	return gax.XGoogHeader("gl-go", gax.GoVersion, "gax", gax.Version, "grpc", grpc.Version)
}

// WithAPIClient attaches the x-goog-api-client header to ctx.
func WithAPIClient(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, APIClientHeader, APIClientValue())
}
