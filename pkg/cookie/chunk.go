// Package cookie splits values that exceed the browser cookie limit across
// numbered cookies and reassembles them.
package cookie

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lborres/bantay/core"
)

const (
	AllowedCookieSize       = 4096
	EstimatedEmptyCookieLen = 163
	ChunkSize               = AllowedCookieSize - EstimatedEmptyCookieLen
)

// Split cuts value into pieces of at most size bytes. A value that fits
// yields exactly one piece; an empty value yields one empty piece.
func Split(value string, size int) []string {
	if size <= 0 {
		size = ChunkSize
	}
	if len(value) <= size {
		return []string{value}
	}
	out := make([]string, 0, (len(value)+size-1)/size)
	for len(value) > size {
		out = append(out, value[:size])
		value = value[size:]
	}
	if value != "" {
		out = append(out, value)
	}
	return out
}

// chunkIndex returns n for "name.n", or -1 for the bare name.
func chunkIndex(name, cookieName string) (int, bool) {
	if cookieName == name {
		return -1, true
	}
	rest, ok := strings.CutPrefix(cookieName, name+".")
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Join reassembles the value stored under name. Numbered chunks win over a
// bare cookie of the same name.
func Join(cookies map[string]string, name string) string {
	type part struct {
		idx   int
		value string
	}
	var parts []part
	bare, hasBare := "", false
	for k, v := range cookies {
		idx, ok := chunkIndex(name, k)
		if !ok {
			continue
		}
		if idx < 0 {
			bare, hasBare = v, true
			continue
		}
		parts = append(parts, part{idx, v})
	}
	if len(parts) == 0 {
		if hasBare {
			return bare
		}
		return ""
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].idx < parts[j].idx })
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.value)
	}
	return b.String()
}

// Store tracks the cookies currently holding one logical value so that
// rewriting it can clear leftovers.
type Store struct {
	option   core.CookieOption
	existing map[string]string
	bearer   string
	size     int
}

// NewStore reads the value named by option from req. An Authorization
// bearer token takes precedence over cookies.
func NewStore(option core.CookieOption, req *core.Request) *Store {
	s := &Store{option: option, existing: map[string]string{}, size: ChunkSize}
	if req == nil {
		return s
	}
	for k, v := range req.Cookies {
		if _, ok := chunkIndex(option.Name, k); ok {
			s.existing[k] = v
		}
	}
	s.bearer = req.BearerToken()
	return s
}

// WithChunkSize overrides the chunk size.
func (s *Store) WithChunkSize(n int) *Store {
	if n > 0 {
		s.size = n
	}
	return s
}

func (s *Store) Value() string {
	if s.bearer != "" {
		return s.bearer
	}
	return Join(s.existing, s.option.Name)
}

// FromBearer reports whether Value came from the Authorization header.
func (s *Store) FromBearer() bool { return s.bearer != "" }

// Chunk returns the cookies that store value, followed by deletions for
// every previously present cookie the new layout does not reuse.
func (s *Store) Chunk(value string, expires time.Time) []core.Cookie {
	opts := s.option.Options
	if !expires.IsZero() {
		opts.Expires = expires
		opts.MaxAge = 0
	}

	pieces := Split(value, s.size)
	out := make([]core.Cookie, 0, len(pieces)+len(s.existing))
	written := make(map[string]bool, len(pieces))

	if len(pieces) == 1 {
		out = append(out, core.Cookie{Name: s.option.Name, Value: pieces[0], Options: opts})
		written[s.option.Name] = true
	} else {
		for i, p := range pieces {
			name := s.option.Name + "." + strconv.Itoa(i)
			out = append(out, core.Cookie{Name: name, Value: p, Options: opts})
			written[name] = true
		}
	}

	out = append(out, s.clear(written)...)

	s.existing = make(map[string]string, len(out))
	for _, c := range out {
		if written[c.Name] {
			s.existing[c.Name] = c.Value
		}
	}
	return out
}

// Clean returns deletions for every cookie holding the value.
func (s *Store) Clean() []core.Cookie {
	out := s.clear(nil)
	s.existing = map[string]string{}
	return out
}

func (s *Store) clear(keep map[string]bool) []core.Cookie {
	names := make([]string, 0, len(s.existing))
	for name := range s.existing {
		if !keep[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]core.Cookie, 0, len(names))
	for _, name := range names {
		out = append(out, core.Expired(name, s.option.Options))
	}
	return out
}
