// Package catalog maps regulator report kinds to archive URLs and CSV members.
package catalog

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed kinds.yaml
var embeddedKinds []byte

// ErrUnknownKind is returned for a code absent from the catalog.
var ErrUnknownKind = eris.New("catalog: unknown report kind")

// Kind codes used by the ingestion tasks.
const (
	CAD            = "CAD"
	FCA            = "FCA"
	DFP            = "DFP"
	ITR            = "ITR"
	FRE            = "FRE"
	IPE            = "IPE"
	VLMO           = "VLMO"
	Proventos      = "PROVENTOS"
	CapitalComp    = "COMPOSICAO_CAPITAL"
	CorporateEvent = "EVENTO_CORPORATIVO"
	Issuance       = "EMISSAO"
)

const (
	yearPlaceholder   = "{year}"
	defaultFileFormat = "zip"
)

// Consolidation suffixes of statement members.
const (
	Consolidated = "con"
	Individual   = "ind"
)

// Kind is one report kind and the members it publishes.
type Kind struct {
	Code       string      `yaml:"code"`
	ReportKind string      `yaml:"report_kind"`
	Path       string      `yaml:"path"`
	Format     string      `yaml:"format"`
	Yearly     bool        `yaml:"yearly"`
	Statements *Statements `yaml:"statements,omitempty"`
	SubKinds   []SubKind   `yaml:"sub_kinds"`
}

// Statements expands into one sub-kind per statement type and consolidation.
type Statements struct {
	Prefix string   `yaml:"prefix"`
	Types  []string `yaml:"types"`
}

// SubKind is one CSV member of a kind's archive.
type SubKind struct {
	Name   string `yaml:"name"`
	Member string `yaml:"member"`
	Match  string `yaml:"match,omitempty"` // fallback substring when the exact member is absent
	Layout string `yaml:"layout"`
	Target string `yaml:"target"`

	StatementType string `yaml:"-"`
	Consolidation string `yaml:"-"`
}

// IsStatement reports whether the sub-kind carries financial statement lines.
func (s SubKind) IsStatement() bool { return s.StatementType != "" }

// MemberName renders the member file name for year.
func (s SubKind) MemberName(year int) string {
	return strings.ReplaceAll(s.Member, yearPlaceholder, strconv.Itoa(year))
}

// FindMember picks the archive member for this sub-kind: the rendered name
// first (ignoring case), then the first name containing Match.
func (s SubKind) FindMember(names []string, year int) (string, bool) {
	want := s.MemberName(year)
	for _, n := range names {
		if strings.EqualFold(n, want) {
			return n, true
		}
	}
	if s.Match == "" {
		return "", false
	}
	key := strings.ToLower(s.Match)
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), key) {
			return n, true
		}
	}
	return "", false
}

// IsZip reports whether the kind is published as a ZIP archive.
func (k Kind) IsZip() bool { return k.Format == defaultFileFormat }

// SubKind returns the named sub-kind.
func (k Kind) SubKind(name string) (SubKind, bool) {
	for _, s := range k.SubKinds {
		if s.Name == name {
			return s, true
		}
	}
	return SubKind{}, false
}

// Catalog is the ordered set of report kinds plus the portal base URL.
type Catalog struct {
	baseURL string
	kinds   []Kind
	byCode  map[string]int
}

// Load parses the embedded kind map.
func Load(baseURL string) (*Catalog, error) {
	return Parse(baseURL, embeddedKinds)
}

// LoadFile parses a kind map from disk instead of the embedded one.
func LoadFile(baseURL, path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return Parse(baseURL, data)
}

// Parse builds a catalog from YAML.
func Parse(baseURL string, data []byte) (*Catalog, error) {
	var doc struct {
		Kinds []Kind `yaml:"kinds"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "catalog: parse kinds")
	}

	c := &Catalog{
		baseURL: strings.TrimRight(baseURL, "/"),
		byCode:  make(map[string]int, len(doc.Kinds)),
	}
	for _, k := range doc.Kinds {
		if k.Code == "" || k.Path == "" {
			return nil, eris.Errorf("catalog: kind %q needs code and path", k.Code)
		}
		if _, dup := c.byCode[k.Code]; dup {
			return nil, eris.Errorf("catalog: duplicate kind %s", k.Code)
		}
		if k.Format == "" {
			k.Format = defaultFileFormat
		}
		if k.Yearly != strings.Contains(k.Path, yearPlaceholder) {
			return nil, eris.Errorf("catalog: kind %s yearly=%t does not match path %s", k.Code, k.Yearly, k.Path)
		}
		if k.Statements != nil {
			k.SubKinds = append(expandStatements(*k.Statements), k.SubKinds...)
		}
		if len(k.SubKinds) == 0 {
			return nil, eris.Errorf("catalog: kind %s has no sub-kinds", k.Code)
		}
		c.byCode[k.Code] = len(c.kinds)
		c.kinds = append(c.kinds, k)
	}
	return c, nil
}

func expandStatements(st Statements) []SubKind {
	subs := make([]SubKind, 0, len(st.Types)*2)
	for _, typ := range st.Types {
		for _, cons := range []string{Consolidated, Individual} {
			name := typ + "_" + cons
			subs = append(subs, SubKind{
				Name:          name,
				Member:        st.Prefix + "_" + name + "_" + yearPlaceholder + ".csv",
				Layout:        "statement",
				Target:        "financial_statements",
				StatementType: typ,
				Consolidation: cons,
			})
		}
	}
	return subs
}

// BaseURL returns the portal root without a trailing slash.
func (c *Catalog) BaseURL() string { return c.baseURL }

// Kinds returns every kind in declaration order.
func (c *Catalog) Kinds() []Kind {
	out := make([]Kind, len(c.kinds))
	copy(out, c.kinds)
	return out
}

// Kind returns the kind with the given code.
func (c *Catalog) Kind(code string) (Kind, error) {
	i, ok := c.byCode[strings.ToUpper(code)]
	if !ok {
		return Kind{}, eris.Wrapf(ErrUnknownKind, "code %q", code)
	}
	return c.kinds[i], nil
}

// URL renders the download URL of a kind for year. Year is ignored for
// kinds that are not published yearly.
func (c *Catalog) URL(code string, year int) (string, error) {
	k, err := c.Kind(code)
	if err != nil {
		return "", err
	}
	p := strings.ReplaceAll(k.Path, yearPlaceholder, strconv.Itoa(year))
	return c.baseURL + "/" + p, nil
}
