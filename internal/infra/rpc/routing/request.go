package routing

import (
	"net/url"
	"sort"
	"strings"
)

// Kind is the API operation a request performs.
type Kind string

const (
	KindBalance     Kind = "balance"
	KindPrice       Kind = "price"
	KindHistoryPage Kind = "history-page"
)

// secretParams are never written to logs.
var secretParams = map[string]struct{}{"apikey": {}}

// Request is an immutable API call description.
type Request struct {
	kind   Kind
	params url.Values
}

// NewRequest copies params into a new Request.
func NewRequest(kind Kind, params map[string]string) Request {
	v := make(url.Values, len(params))
	for k, val := range params {
		v.Set(k, val)
	}
	return Request{kind: kind, params: v}
}

// Kind returns the operation kind.
func (r Request) Kind() Kind {
	return r.kind
}

// Get returns a single parameter value.
func (r Request) Get(key string) string {
	return r.params.Get(key)
}

// Query returns a copy of the parameters ready to be sent.
func (r Request) Query() url.Values {
	q := make(url.Values, len(r.params))
	for k, vs := range r.params {
		q[k] = append([]string(nil), vs...)
	}
	return q
}

// String renders the parameters with secrets masked.
func (r Request) String() string {
	keys := make([]string, 0, len(r.params))
	for k := range r.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(r.kind))
	for i, k := range keys {
		if i == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		if _, secret := secretParams[k]; secret {
			b.WriteString("***")
			continue
		}
		b.WriteString(r.params.Get(k))
	}
	return b.String()
}
