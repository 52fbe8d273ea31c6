// Package fuzzy implements the phonetic and edit-distance comparisons used
// by the signal computer to match names and addresses across records that
// carry OCR noise or formatting drift.
//
// All functions are pure and case-insensitive. Raw values are never logged.
package fuzzy

import (
	"regexp"
	"strings"
)

// NameMatchThreshold is the Jaro-Winkler floor for a standalone name match.
const NameMatchThreshold = 0.92

// soundexTable maps consonants to American Soundex digits.
var soundexTable = map[byte]byte{
	'b': '1', 'f': '1', 'p': '1', 'v': '1',
	'c': '2', 'g': '2', 'j': '2', 'k': '2', 'q': '2', 's': '2', 'x': '2', 'z': '2',
	'd': '3', 't': '3',
	'l': '4',
	'm': '5', 'n': '5',
	'r': '6',
}

var nonAlpha = regexp.MustCompile(`[^a-zA-Z]`)

// Soundex returns the 4-character American Soundex code for name, or "0000"
// for empty or non-alphabetic input.
func Soundex(name string) string {
	letters := nonAlpha.ReplaceAllString(strings.TrimSpace(name), "")
	if letters == "" {
		return "0000"
	}
	letters = strings.ToLower(letters)

	code := []byte{letters[0] - 'a' + 'A'}
	prev := soundexTable[letters[0]]

	for i := 1; i < len(letters) && len(code) < 4; i++ {
		ch := letters[i]
		if strings.IndexByte("aeiouy", ch) >= 0 {
			prev = 0 // vowel acts as separator
			continue
		}
		if ch == 'h' || ch == 'w' {
			continue
		}
		digit := soundexTable[ch]
		if digit != 0 && digit != prev {
			code = append(code, digit)
		}
		prev = digit
	}
	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}

func jaro(s1, s2 string) float64 {
	s1 = strings.ToLower(s1)
	s2 = strings.ToLower(s2)
	if s1 == s2 {
		return 1.0
	}
	len1, len2 := len(s1), len(s2)
	if len1 == 0 || len2 == 0 {
		return 0.0
	}

	matchDist := max(len1, len2)/2 - 1
	if matchDist < 0 {
		matchDist = 0
	}

	m1 := make([]bool, len1)
	m2 := make([]bool, len2)
	matches := 0

	for i := 0; i < len1; i++ {
		lo := max(0, i-matchDist)
		hi := min(i+matchDist+1, len2)
		for j := lo; j < hi; j++ {
			if m2[j] || s1[i] != s2[j] {
				continue
			}
			m1[i] = true
			m2[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0.0
	}

	transpositions := 0
	k := 0
	for i := 0; i < len1; i++ {
		if !m1[i] {
			continue
		}
		for !m2[k] {
			k++
		}
		if s1[i] != s2[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2
	return (m/float64(len1) + m/float64(len2) + (m-t)/m) / 3
}

// JaroWinkler returns the Jaro-Winkler similarity of s1 and s2 in [0, 1],
// using the standard 0.1 prefix scaling factor.
func JaroWinkler(s1, s2 string) float64 {
	j := jaro(s1, s2)

	l1 := strings.ToLower(s1)
	l2 := strings.ToLower(s2)
	prefix := 0
	for prefix < 4 && prefix < len(l1) && prefix < len(l2) && l1[prefix] == l2[prefix] {
		prefix++
	}

	jw := j + float64(prefix)*0.1*(1-j)
	if jw > 1.0 {
		return 1.0
	}
	return jw
}

// NamesMatch reports whether two canonical names refer to the same person.
//
// Exact match (case-insensitive) always matches. Otherwise a Jaro-Winkler
// score >= 0.92 matches, and a shared Soundex code lowers the bar to 0.80
// to tolerate phonetically equivalent OCR variants.
func NamesMatch(name1, name2 string) bool {
	if name1 == "" || name2 == "" {
		return false
	}
	if strings.EqualFold(name1, name2) {
		return true
	}

	jw := JaroWinkler(name1, name2)
	if jw >= NameMatchThreshold {
		return true
	}
	return Soundex(name1) == Soundex(name2) && jw >= 0.80
}

// AddressesMatch reports whether two canonical addresses refer to the same
// location. The postal code gates everything: no zip match, no address
// match. Streets then compare exact or fuzzy (Jaro-Winkler >= 0.85); a
// missing street on either side still matches on zip alone.
func AddressesMatch(a1, a2 *Address) bool {
	if a1 == nil || a2 == nil {
		return false
	}
	if a1.Country != "" && a2.Country != "" && !strings.EqualFold(a1.Country, a2.Country) {
		return false
	}

	z1 := normalizeZip(a1.Zip)
	z2 := normalizeZip(a2.Zip)
	if z1 == "" || z2 == "" || z1 != z2 {
		return false
	}

	if a1.Street == "" || a2.Street == "" {
		return true
	}
	if strings.EqualFold(a1.Street, a2.Street) {
		return true
	}
	return JaroWinkler(a1.Street, a2.Street) >= 0.85
}

// Address carries the fields address comparison needs. Defined locally so
// the package stays free of domain model imports.
type Address struct {
	Street  string
	Zip     string
	Country string
}

func normalizeZip(z string) string {
	return strings.ToUpper(strings.ReplaceAll(z, " ", ""))
}
