package cache

import (
	"hash/fnv"
	"sort"
	"strings"

	"github.com/jxskiss/base62"
)

// Key addresses one unit of cached, server-derived data. It is an endpoint
// path plus an ordered parameter set; two keys are equal iff their canonical
// strings are equal. Parameters are sorted at construction so that callers
// building the same key from differently ordered maps address the same entry.
type Key struct {
	path      string
	canonical string
}

// NewKey builds a Key from an endpoint path and its parameters.
func NewKey(path string, params map[string]string) Key {
	if len(params) == 0 {
		return Key{path: path, canonical: path}
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(path)
	for i, name := range names {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(params[name])
	}
	return Key{path: path, canonical: b.String()}
}

// Path returns the endpoint path component of the key.
func (k Key) Path() string {
	return k.path
}

// String returns the canonical form, e.g. "/bots?symbol=BTCUSDT".
func (k Key) String() string {
	return k.canonical
}

// StorageID returns a short base62 tag derived from the canonical form,
// used as the local database key suffix and as a compact log field.
func (k Key) StorageID() string {
	h := fnv.New64a()
	h.Write([]byte(k.canonical))
	return base62.EncodeToString(h.Sum(nil))
}
