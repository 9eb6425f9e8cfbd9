package resource

import (
	"net/url"
	"strconv"
	"strings"
)

// query is an ordered query string. Only supplied values are added, so the
// backend never sees empty parameters.
type query []param

type param struct{ key, value string }

func (q query) withInt(key string, v int) query {
	if v == 0 {
		return q
	}
	return append(q, param{key, strconv.Itoa(v)})
}

func (q query) withString(key, v string) query {
	if v == "" {
		return q
	}
	return append(q, param{key, v})
}

// String returns "?k=v&..." or "" when empty.
func (q query) String() string {
	if len(q) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range q {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

func pageQuery(page, limit int) query {
	return query{}.withInt("page", page).withInt("limit", limit)
}
