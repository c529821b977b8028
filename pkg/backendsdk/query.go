package backendsdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// From starts a query against a named backend table.
func (c *Client) From(table string) *Table {
	return &Table{client: c, name: table}
}

// Table is a handle on one backend table. Queries run with the public API
// role unless Authed attaches a session, in which case the backend applies
// that user's row-level permissions.
type Table struct {
	client  *Client
	name    string
	session *Session
}

// Authed runs subsequent queries as the session's user.
func (t *Table) Authed(s *Session) *Table {
	return &Table{client: t.client, name: t.name, session: s}
}

// Select starts a read. columns uses the backend's selector syntax,
// including embedded relations, e.g. "*, venues(id,name,city)".
func (t *Table) Select(columns string) *Query {
	q := newQuery(t, http.MethodGet)
	q.params.Set("select", columns)
	return q
}

// Insert starts a row insertion. The inserted representation is returned
// when Do is given a destination.
func (t *Table) Insert(record any) *Query {
	q := newQuery(t, http.MethodPost)
	q.payload = record
	q.headers["Prefer"] = "return=representation"
	return q
}

// Update starts a partial update of the rows matched by the query's filters.
func (t *Table) Update(values any) *Query {
	q := newQuery(t, http.MethodPatch)
	q.payload = values
	return q
}

// Query accumulates filters and modifiers, then executes with Do.
type Query struct {
	table   *Table
	method  string
	params  url.Values
	headers map[string]string
	payload any
}

func newQuery(t *Table, method string) *Query {
	return &Query{
		table:   t,
		method:  method,
		params:  url.Values{},
		headers: map[string]string{},
	}
}

// Eq filters rows where column equals value.
func (q *Query) Eq(column string, value any) *Query {
	q.params.Add(column, fmt.Sprintf("eq.%v", value))
	return q
}

// In filters rows where column is one of values.
func (q *Query) In(column string, values ...string) *Query {
	list := ""
	for i, v := range values {
		if i > 0 {
			list += ","
		}
		list += v
	}
	q.params.Add(column, "in.("+list+")")
	return q
}

// Order sorts the result by column.
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.params.Set("order", column+"."+dir)
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.params.Set("limit", strconv.Itoa(n))
	return q
}

// Single requests exactly one row, decoded as an object instead of an
// array. The backend answers not-found (see IsNotFound) for zero rows.
func (q *Query) Single() *Query {
	q.headers["Accept"] = "application/vnd.pgrst.object+json"
	return q
}

// Do executes the query, decoding the response into dest. dest may be nil
// for writes where the result is not needed.
func (q *Query) Do(ctx context.Context, dest any) error {
	token := ""
	if q.table.session != nil {
		t, err := q.table.session.Token(ctx)
		if err != nil {
			return err
		}
		token = t
	}

	path := "/rest/v1/" + q.table.name
	if encoded := q.params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	return q.table.client.doJSONWithHeaders(ctx, q.method, path, token, q.payload, dest, q.headers)
}

// IsNotFound reports whether err is the backend's zero-rows answer to a
// Single query.
func IsNotFound(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.StatusCode == http.StatusNotAcceptable
}
