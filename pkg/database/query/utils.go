package query

import (
	"fmt"
	"strings"
)

const (
	defaultPagingLimit = 1000
)

// PaginateQuery appends cursor, ordering and limit clauses for req to a query
// whose filter is fully parenthesized, such as
//
//	SELECT ... FROM accounts WHERE (owner = $1)
//
// Placeholders continue from the existing args, which are returned extended
// with the cursor and limit values. Rows are paged by their id column.
func PaginateQuery(query string, args []interface{}, req *QueryOptions) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(query)

	comparison, order := ">", "ASC"
	if req.SortBy == Descending {
		comparison, order = "<", "DESC"
	}

	if len(req.Cursor) > 0 {
		args = append(args, req.Cursor.ToUint64())
		fmt.Fprintf(&sb, " AND id %s $%d", comparison, len(args))
	}

	fmt.Fprintf(&sb, " ORDER BY id %s", order)

	if req.Limit > 0 {
		args = append(args, req.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	return sb.String(), args
}

// DefaultPaginationHandler applies opts over an ascending, cursorless request
// capped at 1000 results.
func DefaultPaginationHandler(opts ...Option) (*QueryOptions, error) {
	req := &QueryOptions{
		Limit:     defaultPagingLimit,
		SortBy:    Ascending,
		Supported: CanLimitResults | CanSortBy | CanQueryByCursor,
	}
	if err := req.Apply(opts...); err != nil || req.Limit > defaultPagingLimit {
		return nil, ErrQueryNotSupported
	}
	return req, nil
}
