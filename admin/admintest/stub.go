// Package admintest provides an in-memory admin.Stub for examples and tests.
package admintest

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aponysus/tableadmin/admin"
)

// Stub keeps tables in memory. Every FailEvery-th call fails with Unavailable,
// and a consistency token becomes consistent after ChecksToConverge checks.
type Stub struct {
	FailEvery        int
	ChecksToConverge int
	PageSize         int

	mu     sync.Mutex
	calls  int
	tables map[string]admin.Table
	iam    map[string]admin.IamPolicy
	tokens map[string]int
	next   int
}

func NewStub() *Stub {
	return &Stub{
		ChecksToConverge: 2,
		PageSize:         2,
		tables:           make(map[string]admin.Table),
		iam:              make(map[string]admin.IamPolicy),
		tokens:           make(map[string]int),
	}
}

// Calls returns the number of RPCs received.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// enter counts a call and returns the injected failure, if any. The caller
// holds s.mu.
func (s *Stub) enter(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return status.FromContextError(err).Err()
	}
	s.calls++
	if s.FailEvery > 0 && s.calls%s.FailEvery == 0 {
		return status.Error(codes.Unavailable, "admintest: injected failure")
	}
	return nil
}

func (s *Stub) lookup(name string) (admin.Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return admin.Table{}, status.Errorf(codes.NotFound, "table %q not found", name)
	}
	return t, nil
}

func (s *Stub) ListTables(ctx context.Context, req *admin.ListTablesRequest) (*admin.ListTablesResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	var names []string
	for name := range s.tables {
		if strings.HasPrefix(name, req.Parent+"/tables/") {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	start := 0
	if req.PageToken != "" {
		n, err := strconv.Atoi(req.PageToken)
		if err != nil || n < 0 || n > len(names) {
			return nil, status.Errorf(codes.InvalidArgument, "bad page token %q", req.PageToken)
		}
		start = n
	}
	end := len(names)
	if s.PageSize > 0 && start+s.PageSize < end {
		end = start + s.PageSize
	}
	resp := &admin.ListTablesResponse{}
	for _, name := range names[start:end] {
		resp.Tables = append(resp.Tables, s.tables[name])
	}
	if end < len(names) {
		resp.NextPageToken = strconv.Itoa(end)
	}
	return resp, nil
}

func (s *Stub) CreateTable(ctx context.Context, req *admin.CreateTableRequest) (*admin.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	name := req.Parent + "/tables/" + req.TableID
	if _, ok := s.tables[name]; ok {
		return nil, status.Errorf(codes.AlreadyExists, "table %q exists", name)
	}
	t := req.Table
	t.Name = name
	s.tables[name] = t
	return &t, nil
}

func (s *Stub) GetTable(ctx context.Context, req *admin.GetTableRequest) (*admin.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	t, err := s.lookup(req.Name)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Stub) DeleteTable(ctx context.Context, req *admin.DeleteTableRequest) (*admin.Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	if _, err := s.lookup(req.Name); err != nil {
		return nil, err
	}
	delete(s.tables, req.Name)
	return &admin.Empty{}, nil
}

func (s *Stub) ModifyColumnFamilies(ctx context.Context, req *admin.ModifyColumnFamiliesRequest) (*admin.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	t, err := s.lookup(req.Name)
	if err != nil {
		return nil, err
	}
	families := make(map[string]admin.ColumnFamily, len(t.ColumnFamilies))
	for id, f := range t.ColumnFamilies {
		families[id] = f
	}
	for _, m := range req.Modifications {
		switch {
		case m.Create != nil:
			families[m.ID] = *m.Create
		case m.Update != nil:
			if _, ok := families[m.ID]; !ok {
				return nil, status.Errorf(codes.NotFound, "column family %q not found", m.ID)
			}
			families[m.ID] = *m.Update
		case m.Drop:
			delete(families, m.ID)
		}
	}
	t.ColumnFamilies = families
	s.tables[req.Name] = t
	return &t, nil
}

func (s *Stub) DropRowRange(ctx context.Context, req *admin.DropRowRangeRequest) (*admin.Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	if _, err := s.lookup(req.Name); err != nil {
		return nil, err
	}
	return &admin.Empty{}, nil
}

func (s *Stub) GenerateConsistencyToken(ctx context.Context, req *admin.GenerateConsistencyTokenRequest) (*admin.GenerateConsistencyTokenResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	if _, err := s.lookup(req.Name); err != nil {
		return nil, err
	}
	s.next++
	token := "token-" + strconv.Itoa(s.next)
	s.tokens[token] = 0
	return &admin.GenerateConsistencyTokenResponse{ConsistencyToken: token}, nil
}

func (s *Stub) CheckConsistency(ctx context.Context, req *admin.CheckConsistencyRequest) (*admin.CheckConsistencyResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	checks, ok := s.tokens[req.ConsistencyToken]
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown consistency token %q", req.ConsistencyToken)
	}
	checks++
	s.tokens[req.ConsistencyToken] = checks
	return &admin.CheckConsistencyResponse{Consistent: checks >= s.ChecksToConverge}, nil
}

func (s *Stub) GetIamPolicy(ctx context.Context, req *admin.GetIamPolicyRequest) (*admin.IamPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	p := s.iam[req.Resource]
	if p.Etag == "" {
		p.Etag = "etag-0"
	}
	return &p, nil
}

func (s *Stub) SetIamPolicy(ctx context.Context, req *admin.SetIamPolicyRequest) (*admin.IamPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	current := s.iam[req.Resource]
	if current.Etag == "" {
		current.Etag = "etag-0"
	}
	if req.Policy.Etag != "" && req.Policy.Etag != current.Etag {
		return nil, status.Error(codes.FailedPrecondition, "etag mismatch")
	}
	p := req.Policy
	s.next++
	p.Etag = "etag-" + strconv.Itoa(s.next)
	s.iam[req.Resource] = p
	return &p, nil
}

func (s *Stub) TestIamPermissions(ctx context.Context, req *admin.TestIamPermissionsRequest) (*admin.TestIamPermissionsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	resp := &admin.TestIamPermissionsResponse{}
	for _, perm := range req.Permissions {
		if strings.HasPrefix(perm, "bigtable.tables.") {
			resp.Permissions = append(resp.Permissions, perm)
		}
	}
	return resp, nil
}

var _ admin.Stub = (*Stub)(nil)
