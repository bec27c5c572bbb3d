// Package entity resolves country and bloc mentions in free text to stable
// entity identifiers.
//
// Matching is whole-word over a fixed alias table plus any extra locations
// supplied by the caller. No NER model is involved.
package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// TypeCountry is the only entity type the resolver produces.
const TypeCountry = "country"

// Entity is one resolved mention.
type Entity struct {
	ID   string // 16 hex chars, stable for a canonical name
	Name string // canonical display name
	Type string
}

// aliases maps lower-case surface forms to canonical names.
var aliases = map[string]string{
	// Major powers
	"united states": "United States", "usa": "United States", "u.s.": "United States", "america": "United States", "american": "United States", "washington": "United States",
	"china": "China", "chinese": "China", "prc": "China", "beijing": "China",
	"russia": "Russia", "russian": "Russia", "moscow": "Russia", "kremlin": "Russia",
	"united kingdom": "United Kingdom", "uk": "United Kingdom", "britain": "United Kingdom", "british": "United Kingdom",
	"germany": "Germany", "german": "Germany", "berlin": "Germany",
	"france": "France", "french": "France", "paris": "France",
	"japan": "Japan", "japanese": "Japan", "tokyo": "Japan",
	"india": "India", "indian": "India", "new delhi": "India",

	// Conflict zones
	"ukraine": "Ukraine", "ukrainian": "Ukraine", "kyiv": "Ukraine", "kiev": "Ukraine",
	"israel": "Israel", "israeli": "Israel", "tel aviv": "Israel",
	"palestine": "Palestine", "palestinian": "Palestine", "gaza": "Palestine", "west bank": "Palestine",
	"iran": "Iran", "iranian": "Iran", "tehran": "Iran",
	"north korea": "North Korea", "dprk": "North Korea", "pyongyang": "North Korea",
	"south korea": "South Korea", "seoul": "South Korea",
	"taiwan": "Taiwan", "taiwanese": "Taiwan", "taipei": "Taiwan",
	"syria": "Syria", "syrian": "Syria", "damascus": "Syria",
	"afghanistan": "Afghanistan", "afghan": "Afghanistan", "kabul": "Afghanistan",
	"iraq": "Iraq", "iraqi": "Iraq", "baghdad": "Iraq",
	"yemen": "Yemen", "yemeni": "Yemen", "sanaa": "Yemen",
	"sudan": "Sudan", "sudanese": "Sudan", "khartoum": "Sudan",
	"myanmar": "Myanmar", "burma": "Myanmar",
	"ethiopia": "Ethiopia", "ethiopian": "Ethiopia", "addis ababa": "Ethiopia",
	"somalia": "Somalia", "somali": "Somalia", "mogadishu": "Somalia",
	"libya": "Libya", "libyan": "Libya", "tripoli": "Libya",
	"mali": "Mali", "bamako": "Mali",
	"niger": "Niger", "niamey": "Niger",
	"haiti": "Haiti", "haitian": "Haiti",

	// Regional powers and economies
	"canada": "Canada", "canadian": "Canada",
	"brazil": "Brazil", "brazilian": "Brazil",
	"mexico": "Mexico", "mexican": "Mexico",
	"turkey": "Turkey", "turkish": "Turkey", "ankara": "Turkey",
	"saudi arabia": "Saudi Arabia", "saudi": "Saudi Arabia", "riyadh": "Saudi Arabia",
	"egypt": "Egypt", "egyptian": "Egypt", "cairo": "Egypt",
	"south africa": "South Africa",
	"nigeria":      "Nigeria", "nigerian": "Nigeria", "abuja": "Nigeria",
	"pakistan": "Pakistan", "pakistani": "Pakistan", "islamabad": "Pakistan",
	"venezuela": "Venezuela", "venezuelan": "Venezuela", "caracas": "Venezuela",
	"colombia": "Colombia", "colombian": "Colombia", "bogota": "Colombia",
	"poland": "Poland", "polish": "Poland", "warsaw": "Poland",
	"belarus": "Belarus", "minsk": "Belarus",

	// Blocs
	"european union": "European Union", "eu": "European Union", "brussels": "European Union",
	"nato":          "NATO",
	"asean":         "ASEAN",
	"opec":          "OPEC",
	"african union": "African Union",
}

// Resolver matches text against the alias table and a set of extra names.
// A Resolver is immutable and safe for concurrent use.
type Resolver struct {
	names map[string]string
}

// NewResolver returns a resolver over the built-in aliases plus locations.
// Each location resolves to itself.
func NewResolver(locations []string) *Resolver {
	names := make(map[string]string, len(aliases)+len(locations))
	for alias, canonical := range aliases {
		names[alias] = canonical
	}
	for _, loc := range locations {
		key := strings.ToLower(strings.TrimSpace(loc))
		if key == "" {
			continue
		}
		if _, ok := names[key]; !ok {
			names[key] = strings.TrimSpace(loc)
		}
	}
	return &Resolver{names: names}
}

// Resolve returns the distinct entities mentioned in text, sorted by ID.
func (r *Resolver) Resolve(text string) []Entity {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var result []Entity

	for alias, canonical := range r.names {
		if !containsWord(lower, alias) {
			continue
		}
		id := ID(canonical)
		if seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, Entity{ID: id, Name: canonical, Type: TypeCountry})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// IDs returns the sorted, distinct entity IDs mentioned in text.
func (r *Resolver) IDs(text string) []string {
	ents := r.Resolve(text)
	if len(ents) == 0 {
		return nil
	}
	out := make([]string, len(ents))
	for i, e := range ents {
		out[i] = e.ID
	}
	return out
}

// ID derives the identifier of a canonical country name.
func ID(canonical string) string {
	h := sha256.Sum256([]byte(TypeCountry + "|" + strings.ToLower(canonical)))
	return hex.EncodeToString(h[:8])
}

// Overlaps reports whether two sorted or unsorted ID lists share an element.
func Overlaps(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// containsWord checks if text contains word as a whole word (not substring)
func containsWord(text, word string) bool {
	idx := strings.Index(text, word)
	if idx < 0 {
		return false
	}

	if idx > 0 && isAlphaNum(text[idx-1]) {
		return containsWord(text[idx+len(word):], word)
	}

	end := idx + len(word)
	if end < len(text) && isAlphaNum(text[end]) {
		return containsWord(text[end:], word)
	}

	return true
}

func isAlphaNum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
