package schema

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrUnknownLayout is returned when no descriptors exist for a key.
	ErrUnknownLayout = eris.New("schema: unknown layout")
	// ErrSchemaMismatch is returned when a required column is absent from a header.
	ErrSchemaMismatch = eris.New("schema: required column missing")
)

// Registry holds the descriptors of every known layout. It is immutable
// after construction.
type Registry struct {
	layouts map[Key][]Descriptor
}

// Default returns the registry of all built-in layouts.
func Default() *Registry {
	return &Registry{layouts: defaultLayouts()}
}

// New builds a registry from explicit layouts.
func New(layouts map[Key][]Descriptor) *Registry {
	return &Registry{layouts: layouts}
}

// Lookup returns the ordered descriptors of a layout.
func (r *Registry) Lookup(kind, subKind string) ([]Descriptor, error) {
	descs, ok := r.layouts[Key{Kind: kind, SubKind: subKind}]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownLayout, "%s/%s", kind, subKind)
	}
	return descs, nil
}

// Keys lists the registered layouts.
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, len(r.layouts))
	for k := range r.layouts {
		keys = append(keys, k)
	}
	return keys
}

// Binding ties descriptors to the column positions of one frame header.
type Binding struct {
	Descriptors []Descriptor
	Index       []int    // column per descriptor, -1 when absent
	Source      []string // matched source column per descriptor
	Unknown     []string // header columns no descriptor claims
}

// Column returns the descriptor position of a canonical field, or -1.
func (b *Binding) Column(canonical string) int {
	for i, d := range b.Descriptors {
		if d.Canonical == canonical {
			return i
		}
	}
	return -1
}

// Bind resolves each descriptor's aliases against header. Matching ignores
// case, accents and surrounding whitespace; the first alias found wins.
// A missing required column yields ErrSchemaMismatch naming every absent field.
func (r *Registry) Bind(descs []Descriptor, header []string) (*Binding, error) {
	return Bind(descs, header)
}

// Bind is the registry-independent form of Registry.Bind.
func Bind(descs []Descriptor, header []string) (*Binding, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := Fold(h)
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	b := &Binding{
		Descriptors: descs,
		Index:       make([]int, len(descs)),
		Source:      make([]string, len(descs)),
	}
	claimed := make(map[int]bool, len(descs))
	var missing []string
	for i, d := range descs {
		b.Index[i] = -1
		for _, alias := range d.Aliases {
			if pos, ok := positions[Fold(alias)]; ok {
				b.Index[i] = pos
				b.Source[i] = header[pos]
				claimed[pos] = true
				break
			}
		}
		if b.Index[i] < 0 && d.Required {
			missing = append(missing, d.Canonical)
		}
	}

	for i, h := range header {
		if !claimed[i] {
			b.Unknown = append(b.Unknown, h)
		}
	}

	if len(missing) > 0 {
		return b, eris.Wrapf(ErrSchemaMismatch, "missing %s", strings.Join(missing, ", "))
	}
	return b, nil
}

// Fold lower-cases s, strips accents, a byte order mark and surrounding space.
func Fold(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
