package workflow

import (
	"context"
	"fmt"
	"strings"

	"riskadmin/internal/db"
	"riskadmin/internal/domain"
)

// ListRequest selects a page of active records.
type ListRequest struct {
	Page    domain.PageRequest
	Filters []domain.Filter
	// AuthState restricts the list to one authorization state when set.
	AuthState *domain.AuthState
}

// Get returns the active record for keys.
func (m *Machine) Get(ctx context.Context, e *Entity, keys Values) (Record, error) {
	keys, err := e.normalizeKeys(keys)
	if err != nil {
		return Record{}, err
	}
	rec, found, err := m.load(ctx, m.db.Executor(), e, keys, false)
	if err != nil {
		return Record{}, err
	}
	if !found {
		return Record{}, notFound(e, e.KeyString(keys))
	}
	return rec, nil
}

// List pages through active records. Deleted rows are never returned.
func (m *Machine) List(ctx context.Context, e *Entity, req ListRequest) (domain.PageResult[Record], error) {
	q, err := e.pageQuery(req)
	if err != nil {
		return domain.PageResult[Record]{}, err
	}
	return db.Page(ctx, m.db.Executor(), q, req.Page, e.mapRecord)
}

func (e *Entity) sortColumns() map[string]string {
	cols := map[string]string{
		"authState":       "auth_state",
		"actionTimestamp": "action_timestamp",
		"makerId":         "maker_id",
		"actionType":      "action_type",
	}
	for _, f := range e.Keys {
		cols[f.Name] = f.Column
	}
	for _, f := range e.Fields {
		cols[f.Name] = f.Column
	}
	return cols
}

// likeEscaper quotes LIKE wildcards with '!', which reads the same in MySQL and SQLite.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (e *Entity) pageQuery(req ListRequest) (db.PageQuery, error) {
	conds := []string{"is_deleted = 0"}
	var params db.Params
	for i, flt := range req.Filters {
		f, ok := e.field(flt.Field)
		if !ok {
			return db.PageQuery{}, domain.InvalidArgument(flt.Field, "cannot filter %s by this field", e.Name)
		}
		v, err := normalize(f, flt.Value)
		if err != nil {
			return db.PageQuery{}, domain.InvalidArgument(flt.Field, "%v", err)
		}
		name := fmt.Sprintf("Filter%d", i)
		switch strings.ToLower(flt.Op) {
		case "", domain.FilterEq:
			conds = append(conds, fmt.Sprintf("%s = @%s", f.Column, name))
		case domain.FilterPrefix:
			s, isStr := v.(string)
			if !isStr {
				return db.PageQuery{}, domain.InvalidArgument(flt.Field, "prefix filter needs a text field")
			}
			conds = append(conds, fmt.Sprintf("%s LIKE @%s ESCAPE '!'", f.Column, name))
			v = likeEscaper.Replace(s) + "%"
		default:
			return db.PageQuery{}, domain.InvalidArgument(flt.Field, "unknown filter op %q", flt.Op)
		}
		params = append(params, db.Arg(name, v))
	}
	if req.AuthState != nil {
		conds = append(conds, "auth_state = @AuthStateFilter")
		params = append(params, db.Arg("AuthStateFilter", int64(*req.AuthState)))
	}

	tieBreak := make([]string, 0, len(e.Keys))
	for _, k := range e.Keys {
		tieBreak = append(tieBreak, k.Column)
	}
	defaultSort := e.DefaultSort
	if defaultSort == "" {
		defaultSort = e.Keys[0].Name
	}
	return db.PageQuery{
		Base: fmt.Sprintf("SELECT %s FROM %s WHERE %s",
			strings.Join(e.columns(), ", "), e.Table, strings.Join(conds, " AND ")),
		Params:      params,
		SortColumns: e.sortColumns(),
		DefaultSort: defaultSort,
		TieBreak:    tieBreak,
		Label:       e.Name + ".list",
	}, nil
}

// History pages through the maker and checker decisions recorded for keys,
// newest first by default.
func (m *Machine) History(ctx context.Context, e *Entity, keys Values, page domain.PageRequest) (domain.PageResult[domain.AuditEntry], error) {
	keys, err := e.normalizeKeys(keys)
	if err != nil {
		return domain.PageResult[domain.AuditEntry]{}, err
	}
	if page.SortBy == "" && page.Direction == "" {
		page.SortBy, page.Direction = "id", "desc"
	}
	q := db.PageQuery{
		Base: `SELECT id, entity, entity_key, action, actor_id, origin_address, remarks, auth_state, created_at
FROM workflow_audit WHERE entity = @Entity AND entity_key = @EntityKey`,
		Params:      db.NewParams(db.Arg("Entity", e.Name), db.Arg("EntityKey", e.KeyString(keys))),
		SortColumns: map[string]string{"id": "id", "createdAt": "created_at", "actorId": "actor_id"},
		DefaultSort: "id",
		TieBreak:    []string{"id"},
		Label:       "workflow_audit.list",
	}
	return db.Page(ctx, m.db.Executor(), q, page, mapAuditEntry)
}

func mapAuditEntry(r *db.Row) (domain.AuditEntry, error) {
	entry := domain.AuditEntry{
		ID:            r.Int64("id"),
		Entity:        r.String("entity"),
		EntityKey:     r.String("entity_key"),
		Action:        r.String("action"),
		ActorID:       r.String("actor_id"),
		OriginAddress: r.String("origin_address"),
		Remarks:       r.String("remarks"),
		AuthState:     domain.AuthState(r.Int("auth_state")),
		CreatedAt:     r.Time("created_at"),
	}
	return entry, r.Err()
}
