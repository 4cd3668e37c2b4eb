package admin

import "context"

func (a *TableAdmin) GetIamPolicy(ctx context.Context, tableID string) (*IamPolicy, error) {
	req := &GetIamPolicyRequest{Resource: a.TableName(tableID)}
	return doCall(ctx, a, MethodGetIamPolicy, true, func(ctx context.Context) (*IamPolicy, error) {
		return a.stub.GetIamPolicy(ctx, req)
	})
}

// SetIamPolicy replaces the table's policy. It is retried only when p carries
// an etag, which makes a repeated write fail instead of clobbering a
// concurrent change.
func (a *TableAdmin) SetIamPolicy(ctx context.Context, tableID string, p IamPolicy) (*IamPolicy, error) {
	req := &SetIamPolicyRequest{Resource: a.TableName(tableID), Policy: p}
	return doCall(ctx, a, MethodSetIamPolicy, p.Etag != "", func(ctx context.Context) (*IamPolicy, error) {
		return a.stub.SetIamPolicy(ctx, req)
	})
}

// TestIamPermissions returns the subset of permissions the caller holds on the
// table.
func (a *TableAdmin) TestIamPermissions(ctx context.Context, tableID string, permissions ...string) ([]string, error) {
	req := &TestIamPermissionsRequest{Resource: a.TableName(tableID), Permissions: permissions}
	resp, err := doCall(ctx, a, MethodTestIamPermissions, true, func(ctx context.Context) (*TestIamPermissionsResponse, error) {
		return a.stub.TestIamPermissions(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return resp.Permissions, nil
}
