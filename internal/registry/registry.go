// Package registry is the read-only table of translation providers the
// dispatcher can reach, and the resolver that turns a caller's raw
// configuration bag into a typed, defaulted config for one of them.
package registry

import (
	"fmt"
	"strings"

	"github.com/valpere/perekladach/internal/translator"
)

// Kind is the adapter family behind an entry.
type Kind int

const (
	KindChat Kind = iota + 1
	KindClaude
	KindErnie
	KindDeepL
	KindGoogle
	KindAlibaba
	KindGoogleFree
)

func (k Kind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindClaude:
		return "claude"
	case KindErnie:
		return "ernie"
	case KindDeepL:
		return "deepl"
	case KindGoogle:
		return "google"
	case KindAlibaba:
		return "alibaba"
	case KindGoogleFree:
		return "googlefree"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Requirement says which credentials must be present before the adapter is
// called at all.
type Requirement int

const (
	RequiresNone Requirement = iota
	RequiresAPIKey
	RequiresKeyPair
)

type Entry struct {
	Key           string
	Name          string
	Kind          Kind
	Aliases       []string
	Credentials   Requirement
	DefaultAPIURL string
	DefaultModel  string
	Translator    translator.Translator
}

// Streams reports whether the entry's adapter can emit partial output.
func (e Entry) Streams() bool {
	_, ok := e.Translator.(translator.StreamTranslator)
	return ok
}

type Registry struct {
	entries []Entry
	index   map[string]int
	order   []string
}

// normalize folds case and drops the separators people put in provider
// names, so "Google Free", "google_free" and "GOOGLEFREE" are one key.
func normalize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '\t':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(name)))
}

// New builds a registry. Keys and aliases must be unique after
// normalization and every entry needs a translator.
func New(entries []Entry, defaults []string) (*Registry, error) {
	r := &Registry{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int),
	}
	for _, e := range entries {
		if e.Translator == nil {
			return nil, fmt.Errorf("registry entry %q has no translator", e.Key)
		}
		if e.Name == "" {
			e.Name = e.Translator.Name()
		}
		pos := len(r.entries)
		for _, name := range append([]string{e.Key, e.Name}, e.Aliases...) {
			key := normalize(name)
			if key == "" {
				return nil, fmt.Errorf("registry entry %q has an empty name", e.Key)
			}
			if prev, dup := r.index[key]; dup && prev != pos {
				return nil, fmt.Errorf("registry name %q used by both %q and %q", name, r.entries[prev].Key, e.Key)
			}
			r.index[key] = pos
		}
		r.entries = append(r.entries, e)
	}
	for _, name := range defaults {
		if _, ok := r.Lookup(name); !ok {
			return nil, fmt.Errorf("default service %q is not registered", name)
		}
		r.order = append(r.order, name)
	}
	return r, nil
}

// Lookup finds an entry by key, display name or alias.
func (r *Registry) Lookup(name string) (Entry, bool) {
	pos, ok := r.index[normalize(name)]
	if !ok {
		return Entry{}, false
	}
	return r.entries[pos], true
}

// Entries returns the entries in registration order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// DefaultServices is the provider set used when a request names none.
func (r *Registry) DefaultServices() []string {
	return append([]string(nil), r.order...)
}
