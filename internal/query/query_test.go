package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	s := Parse(url.Values{})

	assert.Empty(t, s.Conds)
	assert.Equal(t, 1, s.Page)
	assert.Equal(t, DefaultLimit, s.Limit)
	assert.Equal(t, []SortKey{{Field: "createdAt", Desc: true}, {Field: "id"}}, s.Sort)
	assert.Empty(t, s.Fields)
}

func TestParseFiltersAndOperators(t *testing.T) {
	v, err := url.ParseQuery("duration=5&price[gte]=500&price[lt]=2000&difficulty=easy")
	require.NoError(t, err)

	s := Parse(v)

	// Conds are sorted by field then operator regardless of map order.
	assert.Equal(t, []Cond{
		{Field: "difficulty", Op: OpEq, Value: "easy"},
		{Field: "duration", Op: OpEq, Value: "5"},
		{Field: "price", Op: OpLt, Value: "2000"},
		{Field: "price", Op: OpGte, Value: "500"},
	}, s.Conds)
}

func TestParseUnknownKeysPassThrough(t *testing.T) {
	v, err := url.ParseQuery("bogus=1&weird[zzz]=2")
	require.NoError(t, err)

	s := Parse(v)

	require.Len(t, s.Conds, 2)
	for _, c := range s.Conds {
		assert.Equal(t, OpEq, c.Op)
	}
	// A bracket naming no known operator stays part of the field name and
	// dies at the whitelist later.
	assert.Equal(t, "weird[zzz]", s.Conds[1].Field)
}

func TestParseSortFieldsPagination(t *testing.T) {
	v, err := url.ParseQuery("sort=-price,name&fields=name,price&page=3&limit=10")
	require.NoError(t, err)

	s := Parse(v)

	assert.Equal(t, []SortKey{{Field: "price", Desc: true}, {Field: "name"}}, s.Sort)
	assert.Equal(t, []string{"name", "price"}, s.Fields)
	assert.Equal(t, 3, s.Page)
	assert.Equal(t, 10, s.Limit)
	assert.Equal(t, 20, s.Offset())
}

func TestParseClampsLimit(t *testing.T) {
	s := Parse(url.Values{"limit": {"99999"}})
	assert.Equal(t, MaxLimit, s.Limit)

	s = Parse(url.Values{"limit": {"-5"}, "page": {"0"}})
	assert.Equal(t, DefaultLimit, s.Limit)
	assert.Equal(t, 1, s.Page)
}

var testCols = Columns{
	"id":        "id",
	"name":      "name",
	"price":     "price",
	"createdAt": "created_at",
}

func TestSelectSQL(t *testing.T) {
	v, err := url.ParseQuery("price[gte]=500&name=trek&sort=-price&page=2&limit=10")
	require.NoError(t, err)
	s := Parse(v)

	sqlText, args := s.SelectSQL("id,name,price", "tours", testCols,
		Scope{Name: "public-only", Where: "secret_tour = 0"})

	assert.Equal(t,
		"SELECT id,name,price FROM tours WHERE secret_tour = 0 AND name = ? AND price >= ? ORDER BY price DESC LIMIT ? OFFSET ?",
		sqlText)
	assert.Equal(t, []any{"trek", "500", 10, 10}, args)
}

func TestSelectSQLDropsUnknownFields(t *testing.T) {
	v, err := url.ParseQuery("bogus=1&price=40&sort=bogus")
	require.NoError(t, err)
	s := Parse(v)

	sqlText, args := s.SelectSQL("id", "tours", testCols)

	// The unknown filter and sort fields vanish; sort falls back to id.
	assert.Equal(t, "SELECT id FROM tours WHERE price = ? ORDER BY id ASC LIMIT ? OFFSET ?", sqlText)
	assert.Equal(t, []any{"40", DefaultLimit, 0}, args)
}

func TestPaginationWindowBeyondLastPage(t *testing.T) {
	// 25 rows at 10 per page: page 3 holds rows 20..24, page 4 is an empty
	// window rather than an error.
	p3 := Parse(url.Values{"page": {"3"}, "limit": {"10"}})
	assert.Equal(t, 20, p3.Offset())

	p4 := Parse(url.Values{"page": {"4"}, "limit": {"10"}})
	assert.Equal(t, 30, p4.Offset())
}
