package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/swh-go/provenance/internal/model"
	"github.com/swh-go/provenance/internal/storage"
)

// relationTable names the normalized edge table (or the denormalized
// per-source table) and the column names of its endpoints, grounded on the
// original's postgresql/provenance.sql table names.
type relationTable struct {
	name        string
	srcCol      string
	dstCol      string
	hasPath     bool
	denormJSON  string // denormalized table's JSON edges column
	denormTable string // denormalized table name, if different
}

var relationTables = map[model.RelationKind]relationTable{
	model.CntEarlyInRev: {name: "content_in_revision", srcCol: "blob", dstCol: "rev", hasPath: true, denormJSON: "edges", denormTable: "content_in_revision"},
	model.CntInDir:      {name: "content_in_directory", srcCol: "blob", dstCol: "dir", hasPath: true, denormJSON: "edges", denormTable: "content_in_directory"},
	model.DirInRev:      {name: "directory_in_revision", srcCol: "dir", dstCol: "rev", hasPath: true, denormJSON: "edges", denormTable: "directory_in_revision"},
	model.RevInOrg:      {name: "revision_in_origin", srcCol: "rev", dstCol: "origin", hasPath: false},
	model.RevBeforeRev:  {name: "revision_before_revision", srcCol: "prev", dstCol: "next", hasPath: false},
}

// jsonEdge is the wire shape of one entry in a denormalized edges array.
type jsonEdge struct {
	Dst  string `json:"dst"`
	Path string `json:"path,omitempty"`
}

func (s *Store) RelationAdd(ctx context.Context, kind model.RelationKind, edges storage.RelationEdgeSet) (bool, error) {
	if len(edges) == 0 {
		return true, nil
	}
	t := relationTables[kind]

	if s.flavor.Storage == storage.Denormalized && t.hasPath {
		return s.relationAddDenormalized(ctx, t, edges)
	}
	return s.relationAddNormalized(ctx, t, edges)
}

func (s *Store) relationAddNormalized(ctx context.Context, t relationTable, edges storage.RelationEdgeSet) (bool, error) {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var query string
		if t.hasPath {
			query = fmt.Sprintf(`INSERT IGNORE INTO %s (%s, %s, path) VALUES (?, ?, ?)`, t.name, t.srcCol, t.dstCol)
		} else {
			query = fmt.Sprintf(`INSERT IGNORE INTO %s (%s, %s) VALUES (?, ?)`, t.name, t.srcCol, t.dstCol)
		}
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for src, es := range edges {
			for _, e := range es {
				if t.hasPath {
					if _, err := stmt.ExecContext(ctx, src[:], e.Dst[:], e.Path); err != nil {
						return err
					}
				} else {
					if _, err := stmt.ExecContext(ctx, src[:], e.Dst[:]); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}

// relationAddDenormalized merges new edges into the JSON array of an
// existing row (spec.md §9): read-modify-write under the row's lock, since
// MySQL/Dolt JSON columns have no native set-union operator.
func (s *Store) relationAddDenormalized(ctx context.Context, t relationTable, edges storage.RelationEdgeSet) (bool, error) {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		selectQ := fmt.Sprintf(`SELECT edges FROM %s WHERE %s = ? FOR UPDATE`, t.denormTable, t.srcCol)
		upsertQ := fmt.Sprintf(`
			INSERT INTO %s (%s, edges) VALUES (?, ?)
			ON DUPLICATE KEY UPDATE edges = VALUES(edges)`, t.denormTable, t.srcCol)

		for src, es := range edges {
			var raw []byte
			row := tx.QueryRowContext(ctx, selectQ, src[:])
			err := row.Scan(&raw)
			var current []jsonEdge
			switch {
			case err == sql.ErrNoRows:
				// no existing row; start fresh
			case err != nil:
				return err
			default:
				if err := json.Unmarshal(raw, &current); err != nil {
					return fmt.Errorf("decode edges for %s: %w", src, err)
				}
			}

			seen := make(map[string]bool, len(current))
			for _, c := range current {
				seen[c.Dst+"\x00"+c.Path] = true
			}
			for _, e := range es {
				key := e.Dst.String() + "\x00" + string(e.Path)
				if !seen[key] {
					current = append(current, jsonEdge{Dst: e.Dst.String(), Path: string(e.Path)})
					seen[key] = true
				}
			}

			merged, err := json.Marshal(current)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, upsertQ, src[:], merged); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) RelationGet(ctx context.Context, kind model.RelationKind, ids []model.ID, reverse bool) (storage.RelationEdgeSet, error) {
	t := relationTables[kind]
	out := make(storage.RelationEdgeSet)
	if len(ids) == 0 {
		return out, nil
	}

	if s.flavor.Storage == storage.Denormalized && t.hasPath {
		return s.relationGetDenormalized(ctx, t, ids, reverse)
	}

	srcCol, dstCol := t.srcCol, t.dstCol
	lookupCol := srcCol
	if reverse {
		lookupCol = dstCol
	}

	cols := []string{srcCol, dstCol}
	if t.hasPath {
		cols = append(cols, "path")
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)", strings.Join(cols, ", "), t.name, lookupCol, placeholders(len(ids)))
	rows, err := s.db.QueryContext(ctx, q, idArgs(ids)...)
	if err != nil {
		return nil, wrapDBError("relation_get", err)
	}
	defer rows.Close()
	for rows.Next() {
		var srcRaw, dstRaw []byte
		var path []byte
		var scanErr error
		if t.hasPath {
			scanErr = rows.Scan(&srcRaw, &dstRaw, &path)
		} else {
			scanErr = rows.Scan(&srcRaw, &dstRaw)
		}
		if scanErr != nil {
			return nil, wrapDBError("relation_get", scanErr)
		}
		src, err := idFromBytes(srcRaw)
		if err != nil {
			return nil, err
		}
		dst, err := idFromBytes(dstRaw)
		if err != nil {
			return nil, err
		}
		if !reverse {
			out[src] = append(out[src], model.RelationEdge{Src: src, Dst: dst, Path: path})
		} else {
			// keyed by the matched destination id; edge.Dst carries the
			// original source, mirroring memstore's reverse convention.
			out[dst] = append(out[dst], model.RelationEdge{Src: dst, Dst: src, Path: path})
		}
	}
	return out, rows.Err()
}

func (s *Store) relationGetDenormalized(ctx context.Context, t relationTable, ids []model.ID, reverse bool) (storage.RelationEdgeSet, error) {
	out := make(storage.RelationEdgeSet)
	if !reverse {
		q := fmt.Sprintf("SELECT %s, edges FROM %s WHERE %s IN (%s)", t.srcCol, t.denormTable, t.srcCol, placeholders(len(ids)))
		rows, err := s.db.QueryContext(ctx, q, idArgs(ids)...)
		if err != nil {
			return nil, wrapDBError("relation_get", err)
		}
		defer rows.Close()
		for rows.Next() {
			var srcRaw, raw []byte
			if err := rows.Scan(&srcRaw, &raw); err != nil {
				return nil, wrapDBError("relation_get", err)
			}
			src, err := idFromBytes(srcRaw)
			if err != nil {
				return nil, err
			}
			var edges []jsonEdge
			if err := json.Unmarshal(raw, &edges); err != nil {
				return nil, fmt.Errorf("decode edges for %s: %w", src, err)
			}
			for _, e := range edges {
				dst, err := model.ParseID(e.Dst)
				if err != nil {
					return nil, err
				}
				out[src] = append(out[src], model.RelationEdge{Src: src, Dst: dst, Path: []byte(e.Path)})
			}
		}
		return out, rows.Err()
	}

	// Reverse lookup over a denormalized table requires scanning every row
	// and filtering client-side: there is no destination index.
	want := make(map[model.ID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s, edges FROM %s", t.srcCol, t.denormTable))
	if err != nil {
		return nil, wrapDBError("relation_get_reverse", err)
	}
	defer rows.Close()
	for rows.Next() {
		var srcRaw, raw []byte
		if err := rows.Scan(&srcRaw, &raw); err != nil {
			return nil, wrapDBError("relation_get_reverse", err)
		}
		src, err := idFromBytes(srcRaw)
		if err != nil {
			return nil, err
		}
		var edges []jsonEdge
		if err := json.Unmarshal(raw, &edges); err != nil {
			return nil, fmt.Errorf("decode edges for %s: %w", src, err)
		}
		for _, e := range edges {
			dst, err := model.ParseID(e.Dst)
			if err != nil {
				return nil, err
			}
			if want[dst] {
				out[dst] = append(out[dst], model.RelationEdge{Src: dst, Dst: src, Path: []byte(e.Path)})
			}
		}
	}
	return out, rows.Err()
}

func (s *Store) RelationGetAll(ctx context.Context, kind model.RelationKind) (storage.RelationEdgeSet, error) {
	t := relationTables[kind]
	out := make(storage.RelationEdgeSet)

	if s.flavor.Storage == storage.Denormalized && t.hasPath {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s, edges FROM %s", t.srcCol, t.denormTable))
		if err != nil {
			return nil, wrapDBError("relation_get_all", err)
		}
		defer rows.Close()
		for rows.Next() {
			var srcRaw, raw []byte
			if err := rows.Scan(&srcRaw, &raw); err != nil {
				return nil, wrapDBError("relation_get_all", err)
			}
			src, err := idFromBytes(srcRaw)
			if err != nil {
				return nil, err
			}
			var edges []jsonEdge
			if err := json.Unmarshal(raw, &edges); err != nil {
				return nil, err
			}
			for _, e := range edges {
				dst, err := model.ParseID(e.Dst)
				if err != nil {
					return nil, err
				}
				out[src] = append(out[src], model.RelationEdge{Src: src, Dst: dst, Path: []byte(e.Path)})
			}
		}
		return out, rows.Err()
	}

	cols := []string{t.srcCol, t.dstCol}
	if t.hasPath {
		cols = append(cols, "path")
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), t.name))
	if err != nil {
		return nil, wrapDBError("relation_get_all", err)
	}
	defer rows.Close()
	for rows.Next() {
		var srcRaw, dstRaw, path []byte
		var scanErr error
		if t.hasPath {
			scanErr = rows.Scan(&srcRaw, &dstRaw, &path)
		} else {
			scanErr = rows.Scan(&srcRaw, &dstRaw)
		}
		if scanErr != nil {
			return nil, wrapDBError("relation_get_all", scanErr)
		}
		src, err := idFromBytes(srcRaw)
		if err != nil {
			return nil, err
		}
		dst, err := idFromBytes(dstRaw)
		if err != nil {
			return nil, err
		}
		out[src] = append(out[src], model.RelationEdge{Src: src, Dst: dst, Path: path})
	}
	return out, rows.Err()
}

// ContentFindFirst implements spec.md §4.7: the earliest (date, revision,
// origin, path) tuple reachable from a content blob, across both the direct
// CNT_EARLY_IN_REV edge and the indirect CNT_IN_DIR ⋈ DIR_IN_REV path,
// grounded on the original's postgresql/provenance.py content_find_first
// UNION ALL query.
func (s *Store) ContentFindFirst(ctx context.Context, id model.ID) (*storage.ProvenanceResult, error) {
	results, err := s.findCandidates(ctx, id, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

func (s *Store) ContentFindAll(ctx context.Context, id model.ID, limit int) ([]storage.ProvenanceResult, error) {
	return s.findCandidates(ctx, id, limit)
}

func (s *Store) findCandidates(ctx context.Context, id model.ID, limit int) ([]storage.ProvenanceResult, error) {
	if s.flavor.Storage == storage.Denormalized {
		return s.findCandidatesDenormalized(ctx, id, limit)
	}

	query := `
		SELECT r.date, cr.rev, COALESCE(o.url, ''), cr.path
		FROM content_in_revision cr
		JOIN revision r ON r.id = cr.rev
		LEFT JOIN origin o ON o.id = r.origin
		WHERE cr.blob = ? AND r.date IS NOT NULL

		UNION ALL

		SELECT r.date, dr.rev, COALESCE(o.url, ''),
		       CASE WHEN cd.path = '' OR cd.path = '.' THEN dr.path
		            WHEN dr.path = '' OR dr.path = '.' THEN cd.path
		            ELSE CONCAT(dr.path, '/', cd.path) END
		FROM content_in_directory cd
		JOIN directory_in_revision dr ON dr.dir = cd.dir
		JOIN revision r ON r.id = dr.rev
		LEFT JOIN origin o ON o.id = r.origin
		WHERE cd.blob = ? AND r.date IS NOT NULL

		ORDER BY 1 ASC, 2 ASC, 3 ASC, 4 ASC`
	args := []interface{}{id[:], id[:]}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("content_find", err)
	}
	defer rows.Close()

	var out []storage.ProvenanceResult
	for rows.Next() {
		var date time.Time
		var revRaw []byte
		var origin string
		var path []byte
		if err := rows.Scan(&date, &revRaw, &origin, &path); err != nil {
			return nil, wrapDBError("content_find", err)
		}
		rev, err := idFromBytes(revRaw)
		if err != nil {
			return nil, err
		}
		out = append(out, storage.ProvenanceResult{Content: id, Revision: rev, Date: date, Origin: origin, Path: path})
	}
	return out, rows.Err()
}

// findCandidatesDenormalized re-implements the same union in Go since the
// edge set lives in a JSON column rather than a joinable table.
func (s *Store) findCandidatesDenormalized(ctx context.Context, id model.ID, limit int) ([]storage.ProvenanceResult, error) {
	var out []storage.ProvenanceResult

	direct, err := s.relationGetDenormalized(ctx, relationTables[model.CntEarlyInRev], []model.ID{id}, false)
	if err != nil {
		return nil, err
	}
	for _, e := range direct[id] {
		rev, err := s.RevisionGet(ctx, []model.ID{e.Dst})
		if err != nil {
			return nil, err
		}
		r, ok := rev[e.Dst]
		if !ok || r.Date.IsZero() {
			continue
		}
		origin, _ := s.OriginGet(ctx, []model.ID{r.Origin})
		out = append(out, storage.ProvenanceResult{Content: id, Revision: e.Dst, Date: r.Date, Origin: origin[r.Origin], Path: e.Path})
	}

	viaDirs, err := s.relationGetDenormalized(ctx, relationTables[model.CntInDir], []model.ID{id}, false)
	if err != nil {
		return nil, err
	}
	for _, dirEdge := range viaDirs[id] {
		dirInRev, err := s.relationGetDenormalized(ctx, relationTables[model.DirInRev], []model.ID{dirEdge.Dst}, false)
		if err != nil {
			return nil, err
		}
		for _, re := range dirInRev[dirEdge.Dst] {
			rev, err := s.RevisionGet(ctx, []model.ID{re.Dst})
			if err != nil {
				return nil, err
			}
			r, ok := rev[re.Dst]
			if !ok || r.Date.IsZero() {
				continue
			}
			origin, _ := s.OriginGet(ctx, []model.ID{r.Origin})
			out = append(out, storage.ProvenanceResult{
				Content:  id,
				Revision: re.Dst,
				Date:     r.Date,
				Origin:   origin[r.Origin],
				Path:     model.JoinDirPath(re.Path, dirEdge.Path),
			})
		}
	}

	sortResults(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortResults(out []storage.ProvenanceResult) {
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && resultLess(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
}

func resultLess(a, b storage.ProvenanceResult) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.Revision != b.Revision {
		return a.Revision.String() < b.Revision.String()
	}
	if a.Origin != b.Origin {
		return a.Origin < b.Origin
	}
	return string(a.Path) < string(b.Path)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func splitStatements(ddl string) []string {
	parts := strings.Split(ddl, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	if len(s) > 60 {
		return s[:60]
	}
	return s
}
