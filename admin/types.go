package admin

import "time"

// View selects how much of a table a read returns.
type View int

const (
	ViewUnspecified View = iota
	NameOnly
	SchemaView
	ReplicationView
	Full
)

func (v View) String() string {
	switch v {
	case NameOnly:
		return "NAME_ONLY"
	case SchemaView:
		return "SCHEMA_VIEW"
	case ReplicationView:
		return "REPLICATION_VIEW"
	case Full:
		return "FULL"
	default:
		return "VIEW_UNSPECIFIED"
	}
}

// Granularity is the timestamp granularity of a table.
type Granularity int

const (
	GranularityUnspecified Granularity = iota
	Millis
)

// GCRule decides which cells of a column family are garbage collected. Exactly
// one field is set; Intersection and Union nest other rules.
type GCRule struct {
	MaxNumVersions int32         `json:"max_num_versions,omitempty"`
	MaxAge         time.Duration `json:"max_age,omitempty"`
	Intersection   []GCRule      `json:"intersection,omitempty"`
	Union          []GCRule      `json:"union,omitempty"`
}

// MaxNumVersions keeps the n most recent versions of a cell.
func MaxNumVersions(n int32) GCRule { return GCRule{MaxNumVersions: n} }

// MaxAge keeps cells younger than d.
func MaxAge(d time.Duration) GCRule { return GCRule{MaxAge: d} }

// Intersection collects cells matched by every rule.
func Intersection(rules ...GCRule) GCRule { return GCRule{Intersection: rules} }

// Union collects cells matched by any rule.
func Union(rules ...GCRule) GCRule { return GCRule{Union: rules} }

type ColumnFamily struct {
	GCRule GCRule `json:"gc_rule"`
}

type Table struct {
	Name           string                  `json:"name"`
	ColumnFamilies map[string]ColumnFamily `json:"column_families,omitempty"`
	Granularity    Granularity             `json:"granularity,omitempty"`
}

// TableConfig describes a table to create.
type TableConfig struct {
	ColumnFamilies map[string]GCRule
	InitialSplits  []string
	Granularity    Granularity
}

func (c TableConfig) table() Table {
	t := Table{Granularity: c.Granularity}
	if len(c.ColumnFamilies) > 0 {
		t.ColumnFamilies = make(map[string]ColumnFamily, len(c.ColumnFamilies))
		for id, rule := range c.ColumnFamilies {
			t.ColumnFamilies[id] = ColumnFamily{GCRule: rule}
		}
	}
	return t
}

// ColumnFamilyModification creates, updates or drops one column family.
type ColumnFamilyModification struct {
	ID     string        `json:"id"`
	Create *ColumnFamily `json:"create,omitempty"`
	Update *ColumnFamily `json:"update,omitempty"`
	Drop   bool          `json:"drop,omitempty"`
}

func CreateFamily(id string, rule GCRule) ColumnFamilyModification {
	return ColumnFamilyModification{ID: id, Create: &ColumnFamily{GCRule: rule}}
}

func UpdateFamily(id string, rule GCRule) ColumnFamilyModification {
	return ColumnFamilyModification{ID: id, Update: &ColumnFamily{GCRule: rule}}
}

func DropFamily(id string) ColumnFamilyModification {
	return ColumnFamilyModification{ID: id, Drop: true}
}

// Consistency is the replication state reported for a consistency token.
type Consistency int

const (
	Inconsistent Consistency = iota
	Consistent
)

func (c Consistency) String() string {
	if c == Consistent {
		return "consistent"
	}
	return "inconsistent"
}

// Binding grants a role to a set of members.
type Binding struct {
	Role    string   `json:"role"`
	Members []string `json:"members,omitempty"`
}

// IamPolicy is an access control policy. Etag guards read-modify-write
// cycles: a SetIamPolicy carrying the etag of the policy it replaces is safe
// to retry.
type IamPolicy struct {
	Version  int32     `json:"version,omitempty"`
	Bindings []Binding `json:"bindings,omitempty"`
	Etag     string    `json:"etag,omitempty"`
}

type ListTablesRequest struct {
	Parent    string `json:"parent"`
	View      View   `json:"view,omitempty"`
	PageSize  int32  `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
}

type ListTablesResponse struct {
	Tables        []Table `json:"tables,omitempty"`
	NextPageToken string  `json:"next_page_token,omitempty"`
}

type CreateTableRequest struct {
	Parent        string   `json:"parent"`
	TableID       string   `json:"table_id"`
	Table         Table    `json:"table"`
	InitialSplits []string `json:"initial_splits,omitempty"`
}

type GetTableRequest struct {
	Name string `json:"name"`
	View View   `json:"view,omitempty"`
}

type DeleteTableRequest struct {
	Name string `json:"name"`
}

type ModifyColumnFamiliesRequest struct {
	Name          string                     `json:"name"`
	Modifications []ColumnFamilyModification `json:"modifications,omitempty"`
}

type DropRowRangeRequest struct {
	Name                   string `json:"name"`
	RowKeyPrefix           string `json:"row_key_prefix,omitempty"`
	DeleteAllDataFromTable bool   `json:"delete_all_data_from_table,omitempty"`
}

type GenerateConsistencyTokenRequest struct {
	Name string `json:"name"`
}

type GenerateConsistencyTokenResponse struct {
	ConsistencyToken string `json:"consistency_token"`
}

type CheckConsistencyRequest struct {
	Name             string `json:"name"`
	ConsistencyToken string `json:"consistency_token"`
}

type CheckConsistencyResponse struct {
	Consistent bool `json:"consistent"`
}

type GetIamPolicyRequest struct {
	Resource string `json:"resource"`
}

type SetIamPolicyRequest struct {
	Resource string    `json:"resource"`
	Policy   IamPolicy `json:"policy"`
}

type TestIamPermissionsRequest struct {
	Resource    string   `json:"resource"`
	Permissions []string `json:"permissions,omitempty"`
}

type TestIamPermissionsResponse struct {
	Permissions []string `json:"permissions,omitempty"`
}

// Empty is the response of RPCs that return nothing.
type Empty struct{}
