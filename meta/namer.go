package meta

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Accessor method recognition and property naming.
//
// A property is named by decapitalizing the Go member name: FirstName ->
// firstName, Email -> email. A leading acronym keeps its casing (URL -> URL,
// IDToken -> IDToken) so that lookups stay unambiguous for types that follow
// Go initialism conventions. Getter methods are GetX or IsX, setters are
// SetX; the same decapitalization applies to the stripped suffix.

const (
	getPrefix = "Get"
	isPrefix  = "Is"
	setPrefix = "Set"
)

// isGetterName reports whether name is a getter-shaped method name. The
// prefix must be followed by an exported-style property name, so Island
// and Getaway are ordinary methods rather than accessors.
// Arity and result checks happen at the call site.
func isGetterName(name string) bool {
	if rest, ok := strings.CutPrefix(name, isPrefix); ok && startsUpper(rest) {
		return true
	}
	rest, ok := strings.CutPrefix(name, getPrefix)
	return ok && startsUpper(rest)
}

// isSetterName reports whether name is a setter-shaped method name.
func isSetterName(name string) bool {
	rest, ok := strings.CutPrefix(name, setPrefix)
	return ok && startsUpper(rest)
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

// methodToProperty strips the accessor prefix and decapitalizes the rest.
// The input must satisfy isGetterName or isSetterName.
func methodToProperty(name string) string {
	switch {
	case strings.HasPrefix(name, isPrefix):
		name = name[len(isPrefix):]
	case strings.HasPrefix(name, getPrefix), strings.HasPrefix(name, setPrefix):
		name = name[3:]
	}
	return decapitalize(name)
}

// decapitalize lowers the first rune unless the second rune is also upper,
// which indicates a leading acronym that should keep its casing.
func decapitalize(name string) string {
	if name == "" {
		return name
	}
	first, size := utf8.DecodeRuneInString(name)
	if !unicode.IsUpper(first) {
		return name
	}
	if rest := name[size:]; rest != "" {
		second, _ := utf8.DecodeRuneInString(rest)
		if unicode.IsUpper(second) {
			return name
		}
	}
	return string(unicode.ToLower(first)) + name[size:]
}

// isValidPropertyName filters out names that cannot act as properties.
// Mirrors the member filtering the rest of the package relies on: empty
// names and underscore-prefixed names never enter the lookup tables.
func isValidPropertyName(name string) bool {
	return name != "" && !strings.HasPrefix(name, "_")
}
