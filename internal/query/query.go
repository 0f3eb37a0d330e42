// Package query turns a flat URL query-parameter set into a composable,
// side-effect-free read specification: an AND-combined filter, a sort
// order, a field projection and a pagination window.  Parsing is permissive
// (unknown keys become exact-match conditions); rendering against a
// per-resource column whitelist is the safety boundary that keeps arbitrary
// keys out of the SQL text.
package query

import (
    "fmt"
    "log"
    "net/url"
    "sort"
    "strconv"
    "strings"
)

// Comparator operators accepted in bracketed filter keys, e.g. price[gte]=500.
type Op string

const (
    OpEq  Op = "="
    OpGte Op = ">="
    OpGt  Op = ">"
    OpLte Op = "<="
    OpLt  Op = "<"
)

var bracketOps = map[string]Op{
    "gte": OpGte,
    "gt":  OpGt,
    "lte": OpLte,
    "lt":  OpLt,
}

// Pagination defaults.  A request beyond the last page yields an empty
// window, never an error.
const (
    DefaultLimit = 100
    MaxLimit     = 500
)

// Cond is a single filter condition.  Field holds the client-facing (JSON)
// name; translation to a column happens at render time.
type Cond struct {
    Field string
    Op    Op
    Value string
}

// SortKey is one element of the sort order.
type SortKey struct {
    Field string
    Desc  bool
}

// Spec is the parsed read specification.  It never mutates the underlying
// collection; repositories render it lazily into a SELECT.
type Spec struct {
    Conds  []Cond
    Sort   []SortKey
    Fields []string
    Page   int
    Limit  int
}

// Reserved parameter names that drive the engine itself and never become
// filter conditions.
var reserved = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}

// Parse builds a Spec from raw query parameters.  Plain keys are
// exact-match filters; keys of the form name[op] apply the comparator ops
// gte/gt/lte/lt.  Unknown keys pass through as exact match; the column
// whitelist drops them at render time.  When no sort is given the
// stable fallback is newest-first with id as tiebreaker.
func Parse(values url.Values) Spec {
    s := Spec{Page: 1, Limit: DefaultLimit}

    for key, vals := range values {
        if reserved[key] || len(vals) == 0 {
            continue
        }
        field, op := splitKey(key)
        s.Conds = append(s.Conds, Cond{Field: field, Op: op, Value: vals[0]})
    }
    // url.Values iterates in random order; keep the spec deterministic.
    sort.Slice(s.Conds, func(i, j int) bool {
        if s.Conds[i].Field != s.Conds[j].Field {
            return s.Conds[i].Field < s.Conds[j].Field
        }
        return s.Conds[i].Op < s.Conds[j].Op
    })

    if raw := strings.TrimSpace(values.Get("sort")); raw != "" {
        for _, part := range strings.Split(raw, ",") {
            part = strings.TrimSpace(part)
            if part == "" || part == "-" {
                continue
            }
            if strings.HasPrefix(part, "-") {
                s.Sort = append(s.Sort, SortKey{Field: part[1:], Desc: true})
            } else {
                s.Sort = append(s.Sort, SortKey{Field: part})
            }
        }
    }
    if len(s.Sort) == 0 {
        s.Sort = []SortKey{{Field: "createdAt", Desc: true}, {Field: "id"}}
    }

    if raw := strings.TrimSpace(values.Get("fields")); raw != "" {
        for _, f := range strings.Split(raw, ",") {
            if f = strings.TrimSpace(f); f != "" {
                s.Fields = append(s.Fields, f)
            }
        }
    }

    if n, err := strconv.Atoi(values.Get("page")); err == nil && n >= 1 {
        s.Page = n
    }
    if n, err := strconv.Atoi(values.Get("limit")); err == nil && n >= 1 {
        if n > MaxLimit {
            n = MaxLimit
        }
        s.Limit = n
    }
    return s
}

// splitKey separates an optional bracketed comparator from a filter key.
// "price[gte]" -> ("price", >=).  A bracket suffix naming no known operator
// leaves the key untouched so it falls through the whitelist later.
func splitKey(key string) (string, Op) {
    open := strings.IndexByte(key, '[')
    if open > 0 && strings.HasSuffix(key, "]") {
        if op, ok := bracketOps[key[open+1:len(key)-1]]; ok {
            return key[:open], op
        }
    }
    return key, OpEq
}

// Offset converts the page/limit pair into a row offset.
func (s Spec) Offset() int { return (s.Page - 1) * s.Limit }

// Columns maps client-facing field names to database column names.  It is
// the per-resource whitelist consulted when a Spec is rendered.
type Columns map[string]string

// Scope is a named standing filter a resource always applies to its reads,
// e.g. tours exclude secret tours and user listings exclude deactivated
// accounts.  Making the scope an explicit value keeps the policy visible
// and testable instead of hiding it inside every repository query.
type Scope struct {
    Name  string // rule name, for logs and tests
    Where string // raw SQL fragment, no placeholders
}

// SelectSQL renders the Spec into a full SELECT statement plus its
// arguments.  selectCols is the resource's fixed scan column list; cols is
// its whitelist; scopes are its standing filters.  Conditions naming fields
// outside the whitelist are dropped with a log line; only whitelisted
// column names ever reach the generated SQL.
func (s Spec) SelectSQL(selectCols, table string, cols Columns, scopes ...Scope) (string, []any) {
    var b strings.Builder
    var args []any

    fmt.Fprintf(&b, "SELECT %s FROM %s", selectCols, table)

    where := make([]string, 0, len(scopes)+len(s.Conds))
    for _, sc := range scopes {
        where = append(where, sc.Where)
    }
    for _, c := range s.Conds {
        col, ok := cols[c.Field]
        if !ok {
            log.Printf("query: ignoring unknown filter field %q on %s", c.Field, table)
            continue
        }
        where = append(where, fmt.Sprintf("%s %s ?", col, c.Op))
        args = append(args, c.Value)
    }
    if len(where) > 0 {
        b.WriteString(" WHERE ")
        b.WriteString(strings.Join(where, " AND "))
    }

    order := make([]string, 0, len(s.Sort))
    for _, k := range s.Sort {
        col, ok := cols[k.Field]
        if !ok {
            log.Printf("query: ignoring unknown sort field %q on %s", k.Field, table)
            continue
        }
        dir := "ASC"
        if k.Desc {
            dir = "DESC"
        }
        order = append(order, col+" "+dir)
    }
    if len(order) == 0 {
        order = append(order, "id ASC")
    }
    b.WriteString(" ORDER BY ")
    b.WriteString(strings.Join(order, ", "))

    b.WriteString(" LIMIT ? OFFSET ?")
    args = append(args, s.Limit, s.Offset())

    return b.String(), args
}
