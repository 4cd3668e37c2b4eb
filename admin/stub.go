package admin

import (
	"context"

	"google.golang.org/grpc"

	integration "github.com/aponysus/tableadmin/integrations/grpc"
)

// ServiceName is the fully qualified name of the table admin service.
const ServiceName = "google.bigtable.admin.v2.BigtableTableAdmin"

// Method names, used for policy lookups and timelines.
const (
	MethodListTables               = "ListTables"
	MethodCreateTable              = "CreateTable"
	MethodGetTable                 = "GetTable"
	MethodDeleteTable              = "DeleteTable"
	MethodModifyColumnFamilies     = "ModifyColumnFamilies"
	MethodDropRowRange             = "DropRowRange"
	MethodGenerateConsistencyToken = "GenerateConsistencyToken"
	MethodCheckConsistency         = "CheckConsistency"
	MethodGetIamPolicy             = "GetIamPolicy"
	MethodSetIamPolicy             = "SetIamPolicy"
	MethodTestIamPermissions       = "TestIamPermissions"
)

// FullMethod returns the gRPC path of method, e.g.
// "/google.bigtable.admin.v2.BigtableTableAdmin/GetTable".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Stub issues single admin RPCs. Errors carry a gRPC status. Implementations
// must be safe for concurrent use and must honor ctx.
type Stub interface {
	ListTables(ctx context.Context, req *ListTablesRequest) (*ListTablesResponse, error)
	CreateTable(ctx context.Context, req *CreateTableRequest) (*Table, error)
	GetTable(ctx context.Context, req *GetTableRequest) (*Table, error)
	DeleteTable(ctx context.Context, req *DeleteTableRequest) (*Empty, error)
	ModifyColumnFamilies(ctx context.Context, req *ModifyColumnFamiliesRequest) (*Table, error)
	DropRowRange(ctx context.Context, req *DropRowRangeRequest) (*Empty, error)
	GenerateConsistencyToken(ctx context.Context, req *GenerateConsistencyTokenRequest) (*GenerateConsistencyTokenResponse, error)
	CheckConsistency(ctx context.Context, req *CheckConsistencyRequest) (*CheckConsistencyResponse, error)
	GetIamPolicy(ctx context.Context, req *GetIamPolicyRequest) (*IamPolicy, error)
	SetIamPolicy(ctx context.Context, req *SetIamPolicyRequest) (*IamPolicy, error)
	TestIamPermissions(ctx context.Context, req *TestIamPermissionsRequest) (*TestIamPermissionsResponse, error)
}

// GRPCStub implements Stub over a gRPC connection using the JSON codec. Every
// call carries the routing and client identification headers.
//
// The stub makes exactly one attempt per call; TableAdmin does the retrying.
type GRPCStub struct {
	cc grpc.ClientConnInterface
}

func NewGRPCStub(cc grpc.ClientConnInterface) *GRPCStub {
	return &GRPCStub{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, route integration.Param, req any) (*Resp, error) {
	ctx = integration.WithRequestParams(ctx, route)
	ctx = integration.WithAPIClient(ctx)
	resp := new(Resp)
	if err := cc.Invoke(ctx, FullMethod(method), req, resp, integration.JSONCallOption()); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *GRPCStub) ListTables(ctx context.Context, req *ListTablesRequest) (*ListTablesResponse, error) {
	return invoke[ListTablesResponse](ctx, s.cc, MethodListTables, integration.Param{Key: "parent", Value: req.Parent}, req)
}

func (s *GRPCStub) CreateTable(ctx context.Context, req *CreateTableRequest) (*Table, error) {
	return invoke[Table](ctx, s.cc, MethodCreateTable, integration.Param{Key: "parent", Value: req.Parent}, req)
}

func (s *GRPCStub) GetTable(ctx context.Context, req *GetTableRequest) (*Table, error) {
	return invoke[Table](ctx, s.cc, MethodGetTable, integration.Param{Key: "name", Value: req.Name}, req)
}

func (s *GRPCStub) DeleteTable(ctx context.Context, req *DeleteTableRequest) (*Empty, error) {
	return invoke[Empty](ctx, s.cc, MethodDeleteTable, integration.Param{Key: "name", Value: req.Name}, req)
}

func (s *GRPCStub) ModifyColumnFamilies(ctx context.Context, req *ModifyColumnFamiliesRequest) (*Table, error) {
	return invoke[Table](ctx, s.cc, MethodModifyColumnFamilies, integration.Param{Key: "name", Value: req.Name}, req)
}

func (s *GRPCStub) DropRowRange(ctx context.Context, req *DropRowRangeRequest) (*Empty, error) {
	return invoke[Empty](ctx, s.cc, MethodDropRowRange, integration.Param{Key: "name", Value: req.Name}, req)
}

func (s *GRPCStub) GenerateConsistencyToken(ctx context.Context, req *GenerateConsistencyTokenRequest) (*GenerateConsistencyTokenResponse, error) {
	return invoke[GenerateConsistencyTokenResponse](ctx, s.cc, MethodGenerateConsistencyToken, integration.Param{Key: "name", Value: req.Name}, req)
}

func (s *GRPCStub) CheckConsistency(ctx context.Context, req *CheckConsistencyRequest) (*CheckConsistencyResponse, error) {
	return invoke[CheckConsistencyResponse](ctx, s.cc, MethodCheckConsistency, integration.Param{Key: "name", Value: req.Name}, req)
}

func (s *GRPCStub) GetIamPolicy(ctx context.Context, req *GetIamPolicyRequest) (*IamPolicy, error) {
	return invoke[IamPolicy](ctx, s.cc, MethodGetIamPolicy, integration.Param{Key: "resource", Value: req.Resource}, req)
}

func (s *GRPCStub) SetIamPolicy(ctx context.Context, req *SetIamPolicyRequest) (*IamPolicy, error) {
	return invoke[IamPolicy](ctx, s.cc, MethodSetIamPolicy, integration.Param{Key: "resource", Value: req.Resource}, req)
}

func (s *GRPCStub) TestIamPermissions(ctx context.Context, req *TestIamPermissionsRequest) (*TestIamPermissionsResponse, error) {
	return invoke[TestIamPermissionsResponse](ctx, s.cc, MethodTestIamPermissions, integration.Param{Key: "resource", Value: req.Resource}, req)
}
