package db

import (
	"context"
	"fmt"
	"strings"

	"riskadmin/internal/domain"
)

// Reserved names used by the page wrapper.
const (
	pageFirstRowParam = "PageFirstRow"
	pageLastRowParam  = "PageLastRow"
	pageRowColumn     = "PageRowNumber"
	pageTotalColumn   = "TotalCount"
)

// PageQuery describes a filtered set that can be paged.
type PageQuery struct {
	// Base selects the full filtered set; it may reference Params as @Name.
	Base   string
	Params Params
	// SortColumns maps accepted sort keys to result column names.
	SortColumns map[string]string
	// DefaultSort is the sort key used when the request names none.
	DefaultSort string
	// TieBreak columns are appended ascending so equal sort values page deterministically.
	TieBreak []string
	Label    string
}

func (q PageQuery) orderBy(req domain.PageRequest) (string, error) {
	key := strings.TrimSpace(req.SortBy)
	if key == "" {
		key = q.DefaultSort
	}
	col := ""
	for k, c := range q.SortColumns {
		if strings.EqualFold(k, key) {
			col = c
			break
		}
	}
	if col == "" {
		return "", domain.InvalidArgument("sort", "cannot sort by %q", key)
	}

	dir := "ASC"
	switch strings.ToLower(strings.TrimSpace(req.Direction)) {
	case "", "asc":
	case "desc":
		dir = "DESC"
	default:
		return "", domain.InvalidArgument("order", "direction must be asc or desc, got %q", req.Direction)
	}

	parts := []string{col + " " + dir}
	for _, tb := range q.TieBreak {
		if !strings.EqualFold(tb, col) {
			parts = append(parts, tb+" ASC")
		}
	}
	return strings.Join(parts, ", "), nil
}

// Command renders the one-round-trip page statement. Rows are numbered over
// the filtered set and joined onto its count, so the total arrives even when
// the window is empty.
func (q PageQuery) Command(req domain.PageRequest) (Command, domain.PageRequest, error) {
	req = req.Normalize()
	if strings.TrimSpace(q.Base) == "" {
		return Command{}, req, domain.InvalidArgument("base", "page query has no base statement")
	}
	order, err := q.orderBy(req)
	if err != nil {
		return Command{}, req, err
	}
	text := fmt.Sprintf(`WITH filtered AS (%s),
numbered AS (
  SELECT filtered.*, ROW_NUMBER() OVER (ORDER BY %s) AS %s FROM filtered
)
SELECT totals.%s, numbered.*
FROM (SELECT COUNT(*) AS %s FROM filtered) AS totals
LEFT JOIN numbered ON numbered.%s BETWEEN @%s AND @%s
ORDER BY numbered.%s`,
		q.Base, order, pageRowColumn,
		pageTotalColumn, pageTotalColumn,
		pageRowColumn, pageFirstRowParam, pageLastRowParam,
		pageRowColumn)

	label := q.Label
	if label == "" {
		label = "page"
	}
	params := q.Params.Add(
		Arg(pageFirstRowParam, int64(req.FirstRow())),
		Arg(pageLastRowParam, int64(req.LastRow())),
	)
	return Command{Operation: text, Params: params, Label: label}, req, nil
}

// Page returns one window of q together with the size of the whole filtered set.
func Page[T any](ctx context.Context, e *Executor, q PageQuery, req domain.PageRequest, mapper RowMapper[T]) (domain.PageResult[T], error) {
	cmd, req, err := q.Command(req)
	if err != nil {
		return domain.PageResult[T]{}, err
	}
	out := domain.PageResult[T]{PageNumber: req.PageNumber, PageSize: req.PageSize, Items: []T{}}

	cur, err := QueryMany(ctx, e, cmd, func(r *Row) (*Row, error) { return r, nil })
	if err != nil {
		return domain.PageResult[T]{}, err
	}
	defer cur.Close()

	for row, err := range cur.All() {
		if err != nil {
			return domain.PageResult[T]{}, err
		}
		out.TotalCount = row.Int64(pageTotalColumn)
		if row.IsNull(pageRowColumn) {
			continue
		}
		item, err := mapper(row)
		if err == nil {
			err = row.Err()
		}
		if err != nil {
			return domain.PageResult[T]{}, domain.OperationFailedError{Op: cmd.name(), Err: fmt.Errorf("map row: %w", err)}
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}
