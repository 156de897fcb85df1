package registry

import "strings"

// foldTable maps characters that show up in portal exports of Spanish street
// addresses onto the ASCII forms used by registry keys. Ordinal markers
// ("1º", "2ª") fold to plain letters.
var foldTable = strings.NewReplacer(
	"á", "a", "à", "a", "ä", "a", "â", "a",
	"é", "e", "è", "e", "ë", "e", "ê", "e",
	"í", "i", "ì", "i", "ï", "i", "î", "i",
	"ó", "o", "ò", "o", "ö", "o", "ô", "o",
	"ú", "u", "ù", "u", "ü", "u", "û", "u",
	"ñ", "n", "ç", "c",
	"º", "o", "ª", "a",
)

// Normalizer canonicalizes property names so export rows align with registry
// keys. Trimming, case folding and whitespace collapsing are always applied;
// diacritics folding is configurable because the exact normalization boundary
// differs between portals.
type Normalizer struct {
	foldDiacritics bool
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithFoldDiacritics toggles diacritics and ordinal-marker folding.
func WithFoldDiacritics(enabled bool) NormalizerOption {
	return func(n *Normalizer) { n.foldDiacritics = enabled }
}

// NewNormalizer constructs a Normalizer. Diacritics folding defaults to on.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{foldDiacritics: true}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Key returns the canonical form of a property name.
func (n *Normalizer) Key(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if n != nil && n.foldDiacritics {
		key = foldTable.Replace(key)
	}
	return strings.Join(strings.Fields(key), " ")
}
