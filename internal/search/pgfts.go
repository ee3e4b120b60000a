package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across amendments, blogs, and documents
// using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultAmendment {
		where := "a.fts @@ " + tsQuery
		if q.FilterGroupID != "" {
			where += fmt.Sprintf(" AND a.group_id = $%d", argN)
			args = append(args, q.FilterGroupID)
			argN++
		}
		if q.PublicOnly {
			where += " AND a.is_public"
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'amendment'::text AS type, a.id,
				ts_headline('english', a.title, %s, 'MaxFragments=1,MaxWords=30') AS title,
				a.code AS snippet, a.code, a.group_id, a.is_public,
				ts_rank(a.fts, %s) AS rank
			FROM amendments a
			WHERE %s`, tsQuery, tsQuery, where))
	}

	if q.FilterType == "" || q.FilterType == ResultBlog {
		where := "b.fts @@ " + tsQuery
		if q.PublicOnly {
			where += " AND b.is_public"
		}
		// Blogs belong to no group; a group filter excludes them.
		if q.FilterGroupID == "" {
			subQueries = append(subQueries, fmt.Sprintf(`
				SELECT 'blog'::text AS type, b.id,
					ts_headline('english', b.title, %s, 'MaxFragments=1,MaxWords=30') AS title,
					''::text AS snippet, ''::text AS code, ''::text AS group_id, b.is_public,
					ts_rank(b.fts, %s) AS rank
				FROM blogs b
				WHERE %s`, tsQuery, tsQuery, where))
		}
	}

	if q.FilterType == "" || q.FilterType == ResultDocument {
		where := "d.fts @@ " + tsQuery + " AND d.id NOT IN (SELECT document_id FROM amendments)"
		if q.FilterGroupID != "" {
			where += fmt.Sprintf(" AND d.group_id = $%d", argN)
			args = append(args, q.FilterGroupID)
			argN++
		}
		if q.PublicOnly {
			where += " AND d.is_public"
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'document'::text AS type, d.id,
				ts_headline('english', d.title, %s, 'MaxFragments=1,MaxWords=30') AS title,
				''::text AS snippet, ''::text AS code, coalesce(d.group_id, '') AS group_id, d.is_public,
				ts_rank(d.fts, %s) AS rank
			FROM documents d
			WHERE %s`, tsQuery, tsQuery, where))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, code, group_id, is_public
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.Code, &r.GroupID, &r.IsPublic); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]AmendmentRecord, []BlogRecord, []DocumentRecord, error) {
	amdRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, code, group_id, status, is_public
		FROM amendments
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load amendments: %w", err)
	}
	defer amdRows.Close()

	amendments := make([]AmendmentRecord, 0)
	for amdRows.Next() {
		var a AmendmentRecord
		if err := amdRows.Scan(&a.ID, &a.Title, &a.Code, &a.GroupID, &a.Status, &a.IsPublic); err != nil {
			return nil, nil, nil, fmt.Errorf("scan amendment: %w", err)
		}
		amendments = append(amendments, a)
	}
	if err := amdRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate amendments: %w", err)
	}

	blogRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, is_public
		FROM blogs
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load blogs: %w", err)
	}
	defer blogRows.Close()

	blogs := make([]BlogRecord, 0)
	for blogRows.Next() {
		var b BlogRecord
		if err := blogRows.Scan(&b.ID, &b.Title, &b.IsPublic); err != nil {
			return nil, nil, nil, fmt.Errorf("scan blog: %w", err)
		}
		blogs = append(blogs, b)
	}
	if err := blogRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate blogs: %w", err)
	}

	docRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, coalesce(group_id, ''), is_public
		FROM documents
		WHERE id NOT IN (SELECT document_id FROM amendments)
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load documents: %w", err)
	}
	defer docRows.Close()

	documents := make([]DocumentRecord, 0)
	for docRows.Next() {
		var d DocumentRecord
		if err := docRows.Scan(&d.ID, &d.Title, &d.GroupID, &d.IsPublic); err != nil {
			return nil, nil, nil, fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, d)
	}
	if err := docRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate documents: %w", err)
	}

	return amendments, blogs, documents, nil
}
