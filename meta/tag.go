package meta

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// ParsedTag is the parsed configuration of one property tag.
// Tags only adjust the external mapping of a property; they never rename
// the property itself, which always derives from the Go member name.
type ParsedTag struct {
	External  string   // External (column/key) name, explicit or derived
	Skip      bool     // Skip this field entirely (`reflector:"-"`)
	ReadOnly  bool     // Expose a getter but no setter
	Aliases   []string // Additional lookup names for FindProperty
	Generator string   // Value generator name (uuid, ulid, snowflake, nanoid)
}

// TagParser parses property tags and caches the results. Parsing the same
// field/tag pair is common when many types share embedded structs, so
// results are cached behind an RWMutex.
//
// Supported tag syntax:
//
//	`reflector:"column_name"`          // external name only
//	`reflector:"name:custom"`          // explicit external name
//	`reflector:"readonly"`             // getter only
//	`reflector:"alias:uid|user_id"`    // extra lookup names
//	`reflector:"gen:uuid"`             // value generator on instantiation
//	`reflector:"-"`                    // skip field entirely
type TagParser struct {
	tagName string
	naming  NamingStrategy
	cache   map[string]*ParsedTag
	cacheMu sync.RWMutex
}

// NewTagParser creates a parser reading the given tag key and deriving
// default external names from the supplied strategy.
func NewTagParser(tagName string, naming NamingStrategy) *TagParser {
	return &TagParser{
		tagName: tagName,
		naming:  naming,
		cache:   make(map[string]*ParsedTag, 64),
	}
}

// Parse parses the property tag of one struct field. fieldName is the Go
// field name; the canonical property name and the default external name are
// derived from it when the tag does not override them.
func (p *TagParser) Parse(fieldName string, tag reflect.StructTag) (*ParsedTag, error) {
	tagValue := tag.Get(p.tagName)

	if tagValue == "" {
		return &ParsedTag{
			External: p.naming.ExternalName(decapitalize(fieldName)),
		}, nil
	}

	cacheKey := fieldName + ":" + tagValue
	p.cacheMu.RLock()
	if cached, exists := p.cache[cacheKey]; exists {
		p.cacheMu.RUnlock()
		return cached, nil
	}
	p.cacheMu.RUnlock()

	parsed, err := p.parseTagValue(fieldName, tagValue)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldName, err)
	}

	p.cacheMu.Lock()
	p.cache[cacheKey] = parsed
	p.cacheMu.Unlock()

	return parsed, nil
}

// parseTagValue parses the tag value string. Format is a semicolon-separated
// list of flags and key:value pairs; a bare value is an external name.
func (p *TagParser) parseTagValue(fieldName, tagValue string) (*ParsedTag, error) {
	if tagValue == "-" {
		return &ParsedTag{Skip: true}, nil
	}

	parsed := &ParsedTag{
		External: p.naming.ExternalName(decapitalize(fieldName)),
	}

	// A single segment is either a known bare flag or an external name.
	if !strings.ContainsAny(tagValue, ";:") {
		switch tagValue {
		case "readonly", "read_only":
			parsed.ReadOnly = true
		default:
			parsed.External = tagValue
		}
		return parsed, nil
	}

	for _, option := range strings.Split(tagValue, ";") {
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}
		if err := p.parseOption(parsed, option); err != nil {
			return nil, err
		}
	}

	return parsed, nil
}

func (p *TagParser) parseOption(tag *ParsedTag, option string) error {
	if colonIdx := strings.IndexByte(option, ':'); colonIdx != -1 {
		key := strings.TrimSpace(option[:colonIdx])
		value := strings.TrimSpace(option[colonIdx+1:])
		return p.parseKeyValue(tag, key, value)
	}

	switch option {
	case "readonly", "read_only":
		tag.ReadOnly = true
	default:
		// Unknown flags are ignored for forward compatibility.
	}
	return nil
}

func (p *TagParser) parseKeyValue(tag *ParsedTag, key, value string) error {
	switch key {
	case "name", "column":
		if value == "" {
			return fmt.Errorf("empty %s value", key)
		}
		tag.External = value

	case "alias":
		for _, a := range strings.Split(value, "|") {
			if a = strings.TrimSpace(a); a != "" {
				tag.Aliases = append(tag.Aliases, a)
			}
		}

	case "gen", "generator":
		if value == "" {
			return fmt.Errorf("empty generator name")
		}
		tag.Generator = value

	default:
		// Unknown keys are ignored for extensibility.
	}
	return nil
}

// ClearCache removes all cached parsed tags.
func (p *TagParser) ClearCache() {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	clear(p.cache)
}

// CacheSize returns the current number of cached parsed tags.
func (p *TagParser) CacheSize() int {
	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()
	return len(p.cache)
}
