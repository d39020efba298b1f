package meta

import (
	"strings"
	"unicode"

	pluralizer "github.com/gertd/go-pluralize"
)

// Naming utilities for mapping property names onto external surfaces:
// column names, document keys, wire fields, and the default collection
// (table) name for a described type.

// pluralizeClient is a singleton instance for consistent pluralization behavior.
var pluralizeClient = pluralizer.NewClient()

// NamingStrategy converts canonical property and type names into the names
// an external system sees.
type NamingStrategy interface {
	// ExternalName converts a property name to its external form.
	// Must return consistent results for the same input.
	ExternalName(propertyName string) string

	// CollectionName converts a struct type name to the name of the
	// collection (table, document set) holding values of that type.
	CollectionName(typeName string) string
}

// ExternalNamingType represents the supported external naming conventions.
type ExternalNamingType int

const (
	ExternalSnakeCase  ExternalNamingType = iota // user_id, first_name, created_at
	ExternalCamelCase                            // userId, firstName, createdAt
	ExternalPascalCase                           // UserId, FirstName, CreatedAt
)

type conventionStrategy struct {
	naming ExternalNamingType
	plural bool
}

// NewNamingStrategy creates a strategy producing the given convention,
// optionally pluralizing collection names.
func NewNamingStrategy(naming ExternalNamingType, pluralCollections bool) NamingStrategy {
	return &conventionStrategy{naming: naming, plural: pluralCollections}
}

// DefaultNamingStrategy returns snake_case external names with plural
// collection names, the most common database convention.
func DefaultNamingStrategy() NamingStrategy {
	return NewNamingStrategy(ExternalSnakeCase, true)
}

// JSONNamingStrategy returns camelCase external names with plural
// collections, the common shape for JSON APIs.
func JSONNamingStrategy() NamingStrategy {
	return NewNamingStrategy(ExternalCamelCase, true)
}

func (c *conventionStrategy) ExternalName(propertyName string) string {
	switch c.naming {
	case ExternalCamelCase:
		return toCamelCase(propertyName)
	case ExternalPascalCase:
		return toPascalCase(propertyName)
	default:
		return toSnakeCase(propertyName)
	}
}

func (c *conventionStrategy) CollectionName(typeName string) string {
	name := toSnakeCase(typeName)
	if c.naming == ExternalCamelCase {
		name = toCamelCase(typeName)
	} else if c.naming == ExternalPascalCase {
		name = toPascalCase(typeName)
	}
	if c.plural {
		return pluralize(name)
	}
	return name
}

// =========================================================================
// Core Conversion Functions
// =========================================================================

// toSnakeCase converts any naming convention to snake_case.
// Handles acronym runs, digits, and already-converted input.
func toSnakeCase(name string) string {
	if name == "" {
		return ""
	}

	// Common acronym-only names short-circuit for performance.
	switch name {
	case "ID", "id":
		return "id"
	case "UUID":
		return "uuid"
	case "URL":
		return "url"
	case "API":
		return "api"
	case "JSON":
		return "json"
	case "XML":
		return "xml"
	case "SQL":
		return "sql"
	case "HTML":
		return "html"
	}

	// Already snake_case input passes through.
	if strings.Contains(name, "_") && !hasUpperCase(name) {
		return strings.ToLower(name)
	}

	var result strings.Builder
	result.Grow(len(name) + 8)

	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			// Underscore before an uppercase rune when the previous rune
			// is lower/digit (aB -> a_b) or when an acronym run ends
			// (ABc -> a_bc).
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				result.WriteByte('_')
			} else if unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
				result.WriteByte('_')
			}
		}
		result.WriteRune(unicode.ToLower(r))
	}

	return result.String()
}

// toCamelCase converts any naming convention to camelCase.
func toCamelCase(name string) string {
	if name == "" {
		return ""
	}

	snake := toSnakeCase(name)
	if !strings.Contains(snake, "_") {
		return strings.ToLower(snake[:1]) + snake[1:]
	}

	parts := strings.Split(snake, "_")
	var result strings.Builder
	result.Grow(len(name))

	result.WriteString(parts[0])
	for _, part := range parts[1:] {
		if part != "" {
			result.WriteString(strings.ToUpper(part[:1]) + part[1:])
		}
	}
	return result.String()
}

// toPascalCase converts any naming convention to PascalCase.
func toPascalCase(name string) string {
	if name == "" {
		return ""
	}

	snake := toSnakeCase(name)
	parts := strings.Split(snake, "_")
	var result strings.Builder
	result.Grow(len(name))

	for _, part := range parts {
		if part != "" {
			result.WriteString(strings.ToUpper(part[:1]) + part[1:])
		}
	}
	return result.String()
}

// =========================================================================
// Pluralization
// =========================================================================

// pluralize converts a singular noun to its plural form.
func pluralize(name string) string {
	if name == "" {
		return ""
	}

	// Irregular nouns short-circuit the library lookup.
	switch strings.ToLower(name) {
	case "person":
		return "people"
	case "child":
		return "children"
	case "datum":
		return "data"
	case "criterion":
		return "criteria"
	}

	plural := pluralizeClient.Pluralize(name, 2, false)
	return preserveCase(name, plural)
}

// hasUpperCase returns true if the string contains any uppercase letters.
func hasUpperCase(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// preserveCase preserves the case pattern of the original string in the result.
func preserveCase(original, result string) string {
	if original == "" || result == "" {
		return result
	}
	if strings.ToLower(original) == original {
		return strings.ToLower(result)
	}
	if strings.ToUpper(original) == original {
		return strings.ToUpper(result)
	}
	if unicode.IsUpper(rune(original[0])) {
		return strings.ToUpper(result[:1]) + strings.ToLower(result[1:])
	}
	return strings.ToLower(result)
}
