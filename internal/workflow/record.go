package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"riskadmin/internal/db"
	"riskadmin/internal/domain"
)

// Record is one entity row: its authoritative values, any pending update
// values, and the workflow envelope.
type Record struct {
	Entity  string `json:"entity"`
	Key     string `json:"key"`
	Keys    Values `json:"keys"`
	Fields  Values `json:"fields"`
	Pending Values `json:"pending,omitempty"`
	domain.WorkflowRecord
}

var envelopeColumns = []string{
	"auth_state", "is_deleted", "auth_level", "maker_id", "action_timestamp",
	"transaction_date", "origin_address", "action_type", "auth_id",
	"auth_timestamp", "auth_transaction_date", "remarks", "pending_data", "row_version",
}

func (e *Entity) columns() []string {
	cols := make([]string, 0, len(e.Keys)+len(e.Fields)+len(envelopeColumns))
	for _, f := range e.Keys {
		cols = append(cols, f.Column)
	}
	for _, f := range e.Fields {
		cols = append(cols, f.Column)
	}
	return append(cols, envelopeColumns...)
}

func readField(r *db.Row, f Field) any {
	switch f.Kind {
	case KindInt:
		return r.Int64(f.Column)
	case KindFloat:
		return r.Float64(f.Column)
	case KindBool:
		return r.Bool(f.Column)
	case KindTime:
		return r.Time(f.Column)
	default:
		return r.String(f.Column)
	}
}

func (e *Entity) mapRecord(r *db.Row) (Record, error) {
	rec := Record{
		Entity: e.Name,
		Keys:   make(Values, len(e.Keys)),
		Fields: make(Values, len(e.Fields)),
	}
	for _, f := range e.Keys {
		rec.Keys[f.Name] = readField(r, f)
	}
	for _, f := range e.Fields {
		rec.Fields[f.Name] = readField(r, f)
	}
	rec.Key = e.KeyString(rec.Keys)
	rec.WorkflowRecord = domain.WorkflowRecord{
		AuthState:           domain.AuthState(r.Int("auth_state")),
		IsDeleted:           domain.DeleteState(r.Int("is_deleted")),
		AuthLevel:           r.Int("auth_level"),
		MakerID:             r.String("maker_id"),
		ActionTimestamp:     r.Time("action_timestamp"),
		TransactionDate:     r.Time("transaction_date"),
		OriginAddress:       r.String("origin_address"),
		ActionType:          domain.ActionType(r.String("action_type")),
		AuthID:              r.String("auth_id"),
		AuthTimestamp:       r.TimePtr("auth_timestamp"),
		AuthTransactionDate: r.TimePtr("auth_transaction_date"),
		Remarks:             r.String("remarks"),
		Version:             r.Int64("row_version"),
	}
	if err := r.Err(); err != nil {
		return Record{}, err
	}
	pending, err := e.decodePending(r.String("pending_data"))
	if err != nil {
		return Record{}, err
	}
	rec.Pending = pending
	rec.HasPending = pending != nil
	return rec, nil
}

func (e *Entity) encodePending(v Values) (string, error) {
	out := make(map[string]any, len(v))
	for name, val := range v {
		if t, ok := val.(time.Time); ok {
			val = t.UTC().Format(time.RFC3339Nano)
		}
		out[name] = val
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode pending values: %w", err)
	}
	return string(b), nil
}

func (e *Entity) decodePending(raw string) (Values, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var in map[string]any
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("decode pending values: %w", err)
	}
	out := make(Values, len(e.Fields))
	for _, f := range e.Fields {
		raw, ok := in[f.Name]
		if !ok {
			continue
		}
		v, err := normalize(f, raw)
		if err != nil {
			return nil, fmt.Errorf("decode pending %s: %w", f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

// keyWhere renders "k1 = @Key0 AND k2 = @Key1" plus its parameters.
func (e *Entity) keyWhere(keys Values) (string, []db.Parameter) {
	conds := make([]string, 0, len(e.Keys))
	params := make([]db.Parameter, 0, len(e.Keys))
	for i, k := range e.Keys {
		name := fmt.Sprintf("Key%d", i)
		conds = append(conds, fmt.Sprintf("%s = @%s", k.Column, name))
		params = append(params, db.Arg(name, keys[k.Name]))
	}
	return strings.Join(conds, " AND "), params
}
