package admin

import (
	"context"

	"github.com/aponysus/tableadmin/retry"
)

// ListTables returns every table of the instance. Pages are fetched under one
// retry policy, so its limit covers the whole listing; a terminal failure on
// any page returns no tables.
func (a *TableAdmin) ListTables(ctx context.Context, view View) ([]Table, error) {
	fetch := func(ctx context.Context, token string) ([]Table, string, error) {
		resp, err := a.stub.ListTables(ctx, &ListTablesRequest{
			Parent:    a.parent,
			View:      view,
			PageToken: token,
		})
		if err != nil {
			return nil, "", err
		}
		return resp.Tables, resp.NextPageToken, nil
	}
	return retry.Paginate(ctx, a.exec, MethodListTables, fetch, a.callOptions(ctx, MethodListTables, true)...)
}

func (a *TableAdmin) createTableRequest(tableID string, cfg TableConfig) *CreateTableRequest {
	return &CreateTableRequest{
		Parent:        a.parent,
		TableID:       tableID,
		Table:         cfg.table(),
		InitialSplits: cfg.InitialSplits,
	}
}

// CreateTable creates tableID. It is not idempotent and makes one attempt
// unless its policy says otherwise.
func (a *TableAdmin) CreateTable(ctx context.Context, tableID string, cfg TableConfig) (*Table, error) {
	req := a.createTableRequest(tableID, cfg)
	return doCall(ctx, a, MethodCreateTable, false, func(ctx context.Context) (*Table, error) {
		return a.stub.CreateTable(ctx, req)
	})
}

func (a *TableAdmin) GetTable(ctx context.Context, tableID string, view View) (*Table, error) {
	req := &GetTableRequest{Name: a.TableName(tableID), View: view}
	return doCall(ctx, a, MethodGetTable, true, func(ctx context.Context) (*Table, error) {
		return a.stub.GetTable(ctx, req)
	})
}

func (a *TableAdmin) DeleteTable(ctx context.Context, tableID string) error {
	req := &DeleteTableRequest{Name: a.TableName(tableID)}
	_, err := doCall(ctx, a, MethodDeleteTable, true, func(ctx context.Context) (*Empty, error) {
		return a.stub.DeleteTable(ctx, req)
	})
	return err
}

// ModifyColumnFamilies applies mods in order and returns the resulting
// schema. It is not idempotent.
func (a *TableAdmin) ModifyColumnFamilies(ctx context.Context, tableID string, mods ...ColumnFamilyModification) (*Table, error) {
	req := &ModifyColumnFamiliesRequest{Name: a.TableName(tableID), Modifications: mods}
	return doCall(ctx, a, MethodModifyColumnFamilies, false, func(ctx context.Context) (*Table, error) {
		return a.stub.ModifyColumnFamilies(ctx, req)
	})
}

// DropRowsByPrefix deletes the rows whose key starts with prefix. It is not
// idempotent.
func (a *TableAdmin) DropRowsByPrefix(ctx context.Context, tableID, prefix string) error {
	return a.dropRowRange(ctx, &DropRowRangeRequest{Name: a.TableName(tableID), RowKeyPrefix: prefix})
}

// DropAllRows deletes every row of the table. It is not idempotent.
func (a *TableAdmin) DropAllRows(ctx context.Context, tableID string) error {
	return a.dropRowRange(ctx, &DropRowRangeRequest{Name: a.TableName(tableID), DeleteAllDataFromTable: true})
}

func (a *TableAdmin) dropRowRange(ctx context.Context, req *DropRowRangeRequest) error {
	_, err := doCall(ctx, a, MethodDropRowRange, false, func(ctx context.Context) (*Empty, error) {
		return a.stub.DropRowRange(ctx, req)
	})
	return err
}

// GenerateConsistencyToken returns a token covering every write made to the
// table before the call.
func (a *TableAdmin) GenerateConsistencyToken(ctx context.Context, tableID string) (string, error) {
	req := &GenerateConsistencyTokenRequest{Name: a.TableName(tableID)}
	resp, err := doCall(ctx, a, MethodGenerateConsistencyToken, true, func(ctx context.Context) (*GenerateConsistencyTokenResponse, error) {
		return a.stub.GenerateConsistencyToken(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return resp.ConsistencyToken, nil
}

// CheckConsistency reports once whether the writes covered by token have
// replicated. WaitForConsistency polls until they have.
func (a *TableAdmin) CheckConsistency(ctx context.Context, tableID, token string) (Consistency, error) {
	req := &CheckConsistencyRequest{Name: a.TableName(tableID), ConsistencyToken: token}
	resp, err := doCall(ctx, a, MethodCheckConsistency, true, func(ctx context.Context) (*CheckConsistencyResponse, error) {
		return a.stub.CheckConsistency(ctx, req)
	})
	if err != nil {
		return Inconsistent, err
	}
	return consistencyOf(resp), nil
}

func consistencyOf(resp *CheckConsistencyResponse) Consistency {
	if resp != nil && resp.Consistent {
		return Consistent
	}
	return Inconsistent
}

// WaitForConsistency blocks until the writes covered by token have
// replicated, the polling policy gives up, or ctx ends.
func (a *TableAdmin) WaitForConsistency(ctx context.Context, tableID, token string) (Consistency, error) {
	return a.AsyncWaitForConsistency(ctx, tableID, token).Get(ctx)
}
