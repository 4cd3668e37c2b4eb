package admin

import (
	"context"

	"github.com/aponysus/tableadmin/future"
	"github.com/aponysus/tableadmin/poll"
)

// startCall runs call as a poll operation that accepts its first successful
// response: an asynchronous retry of a single RPC.
func startCall[T any](ctx context.Context, a *TableAdmin, method string, idempotent bool, call poll.Call[T]) *future.Future[T] {
	return poll.Start(ctx, a.cq, method, call, nil, a.pollOptions(ctx, method, idempotent, a.defaults)...)
}

func discard[T any](call func(context.Context) (T, error)) poll.Call[struct{}] {
	return func(ctx context.Context) (struct{}, error) {
		_, err := call(ctx)
		return struct{}{}, err
	}
}

// AsyncWaitForConsistency polls CheckConsistency until the writes covered by
// token have replicated. Not-yet-consistent responses count against the
// polling policy like transient failures; once it gives up the future
// resolves with an error matching retry.ErrNotConverged.
func (a *TableAdmin) AsyncWaitForConsistency(ctx context.Context, tableID, token string) *future.Future[Consistency] {
	req := &CheckConsistencyRequest{Name: a.TableName(tableID), ConsistencyToken: token}
	call := func(ctx context.Context) (Consistency, error) {
		resp, err := a.stub.CheckConsistency(ctx, req)
		if err != nil {
			return Inconsistent, err
		}
		return consistencyOf(resp), nil
	}
	consistent := func(c Consistency) bool { return c == Consistent }
	return poll.Start(ctx, a.cq, MethodWaitForConsistency, call, consistent,
		a.pollOptions(ctx, MethodWaitForConsistency, true, a.polling)...)
}

func (a *TableAdmin) AsyncCreateTable(ctx context.Context, tableID string, cfg TableConfig) *future.Future[*Table] {
	req := a.createTableRequest(tableID, cfg)
	return startCall(ctx, a, MethodCreateTable, false, func(ctx context.Context) (*Table, error) {
		return a.stub.CreateTable(ctx, req)
	})
}

func (a *TableAdmin) AsyncGetTable(ctx context.Context, tableID string, view View) *future.Future[*Table] {
	req := &GetTableRequest{Name: a.TableName(tableID), View: view}
	return startCall(ctx, a, MethodGetTable, true, func(ctx context.Context) (*Table, error) {
		return a.stub.GetTable(ctx, req)
	})
}

func (a *TableAdmin) AsyncDeleteTable(ctx context.Context, tableID string) *future.Future[struct{}] {
	req := &DeleteTableRequest{Name: a.TableName(tableID)}
	return startCall(ctx, a, MethodDeleteTable, true, discard(func(ctx context.Context) (*Empty, error) {
		return a.stub.DeleteTable(ctx, req)
	}))
}

func (a *TableAdmin) AsyncModifyColumnFamilies(ctx context.Context, tableID string, mods ...ColumnFamilyModification) *future.Future[*Table] {
	req := &ModifyColumnFamiliesRequest{Name: a.TableName(tableID), Modifications: mods}
	return startCall(ctx, a, MethodModifyColumnFamilies, false, func(ctx context.Context) (*Table, error) {
		return a.stub.ModifyColumnFamilies(ctx, req)
	})
}

func (a *TableAdmin) AsyncDropRowsByPrefix(ctx context.Context, tableID, prefix string) *future.Future[struct{}] {
	return a.asyncDropRowRange(ctx, &DropRowRangeRequest{Name: a.TableName(tableID), RowKeyPrefix: prefix})
}

func (a *TableAdmin) AsyncDropAllRows(ctx context.Context, tableID string) *future.Future[struct{}] {
	return a.asyncDropRowRange(ctx, &DropRowRangeRequest{Name: a.TableName(tableID), DeleteAllDataFromTable: true})
}

func (a *TableAdmin) asyncDropRowRange(ctx context.Context, req *DropRowRangeRequest) *future.Future[struct{}] {
	return startCall(ctx, a, MethodDropRowRange, false, discard(func(ctx context.Context) (*Empty, error) {
		return a.stub.DropRowRange(ctx, req)
	}))
}

func (a *TableAdmin) AsyncGenerateConsistencyToken(ctx context.Context, tableID string) *future.Future[string] {
	req := &GenerateConsistencyTokenRequest{Name: a.TableName(tableID)}
	return startCall(ctx, a, MethodGenerateConsistencyToken, true, func(ctx context.Context) (string, error) {
		resp, err := a.stub.GenerateConsistencyToken(ctx, req)
		if err != nil {
			return "", err
		}
		return resp.ConsistencyToken, nil
	})
}

// AsyncCheckConsistency makes one consistency check, retrying only failed
// RPCs.
func (a *TableAdmin) AsyncCheckConsistency(ctx context.Context, tableID, token string) *future.Future[Consistency] {
	req := &CheckConsistencyRequest{Name: a.TableName(tableID), ConsistencyToken: token}
	return startCall(ctx, a, MethodCheckConsistency, true, func(ctx context.Context) (Consistency, error) {
		resp, err := a.stub.CheckConsistency(ctx, req)
		if err != nil {
			return Inconsistent, err
		}
		return consistencyOf(resp), nil
	})
}

func (a *TableAdmin) AsyncGetIamPolicy(ctx context.Context, tableID string) *future.Future[*IamPolicy] {
	req := &GetIamPolicyRequest{Resource: a.TableName(tableID)}
	return startCall(ctx, a, MethodGetIamPolicy, true, func(ctx context.Context) (*IamPolicy, error) {
		return a.stub.GetIamPolicy(ctx, req)
	})
}

func (a *TableAdmin) AsyncSetIamPolicy(ctx context.Context, tableID string, p IamPolicy) *future.Future[*IamPolicy] {
	req := &SetIamPolicyRequest{Resource: a.TableName(tableID), Policy: p}
	return startCall(ctx, a, MethodSetIamPolicy, p.Etag != "", func(ctx context.Context) (*IamPolicy, error) {
		return a.stub.SetIamPolicy(ctx, req)
	})
}
