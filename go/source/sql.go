package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/config"
)

// BuildQuery renders the SQL statement that fetches a mapping's rows.
// Sources take precedence in the order select, stream, table. A verbatim
// select is never altered. Stream reads never inject a watermark predicate
// because stream consumption already advances on the warehouse side. Table
// reads append the watermark predicate after any configured filter.
//
// The returned generated flag reports whether the statement was produced
// here, which makes it safe to extend with paging clauses.
func BuildQuery(m *config.Common, watermark string) (stmt string, generated bool, err error) {
	var src = &m.Source
	switch {
	case src.Select != "":
		return src.Select, false, nil

	case src.Stream != "":
		stmt = fmt.Sprintf("SELECT * FROM %s", src.Stream)
		if src.Where != "" {
			stmt += " WHERE " + src.Where
		}
		return stmt, true, nil

	case src.Table != "":
		stmt = fmt.Sprintf("SELECT * FROM %s", src.Table)
		var predicates []string
		if src.Where != "" {
			predicates = append(predicates, src.Where)
		}
		if watermark != "" && m.Delta != nil {
			predicates = append(predicates,
				fmt.Sprintf("%s > '%s'", m.Delta.UpdatedAtColumn, watermark))
		}
		if len(predicates) != 0 {
			stmt += " WHERE " + strings.Join(predicates, " AND ")
		}
		return stmt, true, nil
	}
	return "", false, fmt.Errorf("mapping %q has no warehouse source", m.Name)
}

func pagedStatement(base, orderBy string, limit, offset int) string {
	return fmt.Sprintf("%s ORDER BY %s LIMIT %d OFFSET %d", base, orderBy, limit, offset)
}

// fetchAllPages drains a generated statement page by page, ordering on the
// mapping's update column so offsets are stable across pages. A short or
// empty page ends the scan.
func fetchAllPages(
	ctx context.Context,
	base, orderBy string,
	pageSize int,
	query func(context.Context, string) ([]Row, error),
) ([]Row, error) {
	var out []Row
	for offset := 0; ; offset += pageSize {
		var page, err = query(ctx, pagedStatement(base, orderBy, pageSize, offset))
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
	}
}
