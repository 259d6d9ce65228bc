// Package sections defines the category vocabulary for corporate minute
// books along with the per-page label model and the transforms that turn
// noisy page labels into contiguous sections.
package sections

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Category identifies one of the canonical minute book sections. The zero
// value Unknown marks pages the oracle could not classify.
type Category int

const (
	Unknown Category = iota
	ArticlesAmendments
	ByLaws
	ShareholderAgreement
	MinutesResolutions
	DirectorsRegister
	OfficersRegister
	ShareholderRegister
	SecuritiesRegister
	ShareCertificates
	UBORegister
)

// NumCategories is the number of known categories, excluding Unknown.
const NumCategories = 10

var categoryNames = [...]string{
	Unknown:              "Unknown",
	ArticlesAmendments:   "Articles & Amendments",
	ByLaws:               "By Laws",
	ShareholderAgreement: "Unanimous Shareholder Agreement",
	MinutesResolutions:   "Minutes & Resolutions",
	DirectorsRegister:    "Directors Register",
	OfficersRegister:     "Officers Register",
	ShareholderRegister:  "Shareholder Register",
	SecuritiesRegister:   "Securities Register",
	ShareCertificates:    "Share Certificates",
	UBORegister:          "Ultimate Beneficial Owner Register",
}

// String returns the canonical display name used in emitted output.
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "Unknown"
	}
	return categoryNames[c]
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c >= ArticlesAmendments && c <= UBORegister
}

// Categories returns the known categories in canonical order.
func Categories() []Category {
	out := make([]Category, 0, NumCategories)
	for c := ArticlesAmendments; c <= UBORegister; c++ {
		out = append(out, c)
	}
	return out
}

// FromID maps a 1-based category id, as used in oracle replies, to a
// Category. The boolean is false for ids outside [1, NumCategories].
func FromID(id int) (Category, bool) {
	if id < 1 || id > NumCategories {
		return Unknown, false
	}
	return Category(id), true
}

// aliases maps normalized spellings seen in oracle replies to categories.
// containmentAliases holds the keys long enough for substring matching
// without false positives, longest first.
var (
	aliases            = make(map[string]Category)
	containmentAliases []string
)

// Registers are bilingual in Quebec filings, so French forms are included.
func init() {
	add := func(c Category, names ...string) {
		for _, n := range names {
			aliases[n] = c
		}
	}
	add(ArticlesAmendments,
		"articles amendments", "articles and amendments", "articles",
		"articles of incorporation", "articles of amendment",
		"certificate of incorporation",
		"statuts", "statuts et modifications", "statuts de constitution")
	add(ByLaws,
		"by laws", "bylaws", "by law",
		"reglements", "reglements administratifs", "reglements interieurs")
	add(ShareholderAgreement,
		"unanimous shareholder agreement", "unanimous shareholders agreement",
		"shareholder agreement", "usa",
		"convention unanime des actionnaires")
	add(MinutesResolutions,
		"minutes resolutions", "minutes and resolutions", "minutes",
		"resolutions",
		"proces verbaux", "resolutions ecrites")
	add(DirectorsRegister,
		"directors register", "register of directors",
		"registre des administrateurs")
	add(OfficersRegister,
		"officers register", "register of officers",
		"registre des dirigeants")
	add(ShareholderRegister,
		"shareholder register", "shareholders register",
		"register of shareholders",
		"registre des actionnaires")
	add(SecuritiesRegister,
		"securities register", "register of securities",
		"registre des valeurs mobilieres")
	add(ShareCertificates,
		"share certificates", "share certificate", "stock certificates",
		"certificats d actions")
	add(UBORegister,
		"ultimate beneficial owner register",
		"ultimate beneficial owners register",
		"ubo register", "ubo",
		"register of individuals with significant control",
		"individuals with significant control",
		"registre des particuliers ayant un controle important")

	for k := range aliases {
		if len(k) >= 8 {
			containmentAliases = append(containmentAliases, k)
		}
	}
	sort.Slice(containmentAliases, func(i, j int) bool {
		if len(containmentAliases[i]) != len(containmentAliases[j]) {
			return len(containmentAliases[i]) > len(containmentAliases[j])
		}
		return containmentAliases[i] < containmentAliases[j]
	})
}

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeName lowercases, strips diacritics and folds punctuation runs to
// single spaces so that oracle spellings compare loosely.
func normalizeName(s string) string {
	if folded, _, err := transform.String(deaccent, s); err == nil {
		s = folded
	}
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// ParseCategory resolves a category name as it appears in an oracle reply.
// Matching is case, accent and punctuation insensitive; known spellings are
// tried exactly, then by containment. Unresolvable names map to Unknown.
func ParseCategory(s string) Category {
	key := normalizeName(s)
	if key == "" {
		return Unknown
	}
	if c, ok := aliases[key]; ok {
		return c
	}
	for _, alias := range containmentAliases {
		if strings.Contains(key, alias) || (len(key) >= 8 && strings.Contains(alias, key)) {
			return aliases[alias]
		}
	}
	return Unknown
}
