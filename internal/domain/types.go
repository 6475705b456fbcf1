package domain

import "time"

// Paging bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageRequest selects a window of a filtered, sorted set.
type PageRequest struct {
	PageNumber int    `json:"pageNumber" form:"pageNumber"`
	PageSize   int    `json:"pageSize" form:"pageSize"`
	SortBy     string `json:"sort,omitempty" form:"sort"`
	Direction  string `json:"order,omitempty" form:"order"` // asc / desc
}

// Normalize clamps the page number to 1 and an out-of-range size to the default.
func (r PageRequest) Normalize() PageRequest {
	if r.PageNumber < 1 {
		r.PageNumber = 1
	}
	if r.PageSize < 1 || r.PageSize > MaxPageSize {
		r.PageSize = DefaultPageSize
	}
	return r
}

// FirstRow is the 1-based row number of the first item on the page.
func (r PageRequest) FirstRow() int {
	return (r.PageNumber-1)*r.PageSize + 1
}

func (r PageRequest) LastRow() int {
	return r.PageNumber * r.PageSize
}

// PageResult is the paged list contract shared by every entity.
type PageResult[T any] struct {
	PageNumber int   `json:"pageNumber"`
	PageSize   int   `json:"pageSize"`
	TotalCount int64 `json:"totalCount"`
	Items      []T   `json:"items"`
}

// Filter expresses a simple filter clause.
type Filter struct {
	Field string `json:"field"`
	Op    string `json:"op"` // eq, prefix
	Value any    `json:"value"`
}

const (
	FilterEq     = "eq"
	FilterPrefix = "prefix"
)

// AuthState is the maker-checker authorization state of a record.
type AuthState int

const (
	Unauthorized AuthState = 0
	Approved     AuthState = 1
	Denied       AuthState = 2
)

func (s AuthState) String() string {
	switch s {
	case Unauthorized:
		return "Unauthorized"
	case Approved:
		return "Approved"
	case Denied:
		return "Denied"
	default:
		return "Unknown"
	}
}

// DeleteState is the soft-delete flag.
type DeleteState int

const (
	Active  DeleteState = 0
	Deleted DeleteState = 1
)

type ActionType string

const (
	ActionInsert ActionType = "Insert"
	ActionUpdate ActionType = "Update"
	ActionDelete ActionType = "Delete"
)

// Decision is a checker's verdict on a pending change.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionDeny
}

// WorkflowRecord is the audit and state envelope carried by every entity row.
type WorkflowRecord struct {
	AuthState           AuthState   `json:"authState"`
	IsDeleted           DeleteState `json:"isDeleted"`
	AuthLevel           int         `json:"authLevel"`
	MakerID             string      `json:"makerId"`
	ActionTimestamp     time.Time   `json:"actionTimestamp"`
	TransactionDate     time.Time   `json:"transactionDate"`
	OriginAddress       string      `json:"originAddress"`
	ActionType          ActionType  `json:"actionType"`
	AuthID              string      `json:"authId,omitempty"`
	AuthTimestamp       *time.Time  `json:"authTimestamp,omitempty"`
	AuthTransactionDate *time.Time  `json:"authTransactionDate,omitempty"`
	Remarks             string      `json:"remarks,omitempty"`
	Version             int64       `json:"version"`
	HasPending          bool        `json:"hasPending"`
}

// AuditEntry is one maker or checker decision on a record.
type AuditEntry struct {
	ID            int64     `json:"id"`
	Entity        string    `json:"entity"`
	EntityKey     string    `json:"entityKey"`
	Action        string    `json:"action"`
	ActorID       string    `json:"actorId"`
	OriginAddress string    `json:"originAddress"`
	Remarks       string    `json:"remarks,omitempty"`
	AuthState     AuthState `json:"authState"`
	CreatedAt     time.Time `json:"createdAt"`
}
