package normalize

import (
	"sort"
	"strings"

	"github.com/nes_dashboard/backend/internal/models"
)

// Resolver maps canonical field names onto whatever header spelling a source
// happens to use.
type Resolver struct {
	headers []string
	index   map[string]string
}

func NewResolver(headers []string) *Resolver {
	r := &Resolver{headers: headers, index: make(map[string]string, len(headers))}
	for _, h := range headers {
		key := normalizeHeader(h)
		if _, dup := r.index[key]; dup {
			continue
		}
		r.index[key] = h
	}
	return r
}

// ResolverFor builds a resolver from the keys of the first row.
func ResolverFor(rows []models.RawRow) *Resolver {
	if len(rows) == 0 {
		return NewResolver(nil)
	}
	headers := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		headers = append(headers, k)
	}
	sort.Strings(headers)
	return NewResolver(headers)
}

// Resolve returns the raw header matching the first alias found, comparing
// case-insensitively after trimming. The bool is false when nothing matches.
func (r *Resolver) Resolve(aliases ...string) (string, bool) {
	for _, a := range aliases {
		if h, ok := r.index[normalizeHeader(a)]; ok {
			return h, true
		}
	}
	return "", false
}

// Fields resolves every canonical field in aliases. Unresolved fields are
// left out of the result.
func (r *Resolver) Fields(aliases map[string][]string) map[string]string {
	out := make(map[string]string, len(aliases))
	for field, names := range aliases {
		if h, ok := r.Resolve(names...); ok {
			out[field] = h
		}
	}
	return out
}

func normalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\ufeff", "")
	return strings.ToLower(strings.TrimSpace(h))
}
