package literal

import "strings"

// UnnamedKey is the name under which a single positional value is stored.
const UnnamedKey = ""

// Pairs is an ordered mapping of literal names to their raw value text.
type Pairs struct {
	names  []string
	values map[string]string
}

// Get returns the raw value text stored under name.
func (p *Pairs) Get(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.values[name]
	return v, ok
}

// Names returns the names in the order they first appeared.
func (p *Pairs) Names() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.names...)
}

// Len returns the number of distinct names.
func (p *Pairs) Len() int {
	if p == nil {
		return 0
	}
	return len(p.names)
}

// IsUnnamed reports whether the literal was a single positional value.
func (p *Pairs) IsUnnamed() bool {
	if p.Len() != 1 {
		return false
	}
	_, ok := p.values[UnnamedKey]
	return ok
}

func (p *Pairs) put(name, value string) {
	if _, exists := p.values[name]; !exists {
		p.names = append(p.names, name)
	}
	p.values[name] = value
}

// TryParse splits a key or parameter literal such as FirstName='abc',LastName='def'
// into its name/value pairs. A single bare value ('abc' or 42) is stored under
// UnnamedKey. Commas and equal signs inside single-quoted text do not split, and
// a doubled quote inside quoted text is an escaped quote. Values keep their
// literal form (quotes included); conversion happens later against the EDM type.
//
// It returns false for malformed input: an empty literal or token, a missing name
// or value, an unterminated quote, or a positional value mixed with named ones.
func TryParse(text string) (*Pairs, bool) {
	tokens, ok := splitOutsideQuotes(text, ',')
	if !ok {
		return nil, false
	}

	pairs := &Pairs{values: make(map[string]string, len(tokens))}
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, false
		}

		eq := indexOutsideQuotes(token, '=')
		if eq < 0 {
			if len(tokens) != 1 {
				return nil, false
			}
			pairs.put(UnnamedKey, token)
			continue
		}

		name := strings.TrimSpace(token[:eq])
		value := strings.TrimSpace(token[eq+1:])
		if name == "" || value == "" || strings.ContainsRune(name, '\'') {
			return nil, false
		}
		pairs.put(name, value)
	}

	return pairs, true
}

// splitOutsideQuotes splits text on sep, ignoring separators inside quoted text.
func splitOutsideQuotes(text string, sep byte) ([]string, bool) {
	if text == "" {
		return nil, false
	}

	var tokens []string
	start := 0
	inQuote := false
	for i := 0; i < len(text); i++ {
		switch c := text[i]; {
		case c == '\'':
			if inQuote && i+1 < len(text) && text[i+1] == '\'' {
				i++ // escaped quote
				continue
			}
			inQuote = !inQuote
		case c == sep && !inQuote:
			tokens = append(tokens, text[start:i])
			start = i + 1
		}
	}
	if inQuote {
		return nil, false
	}
	return append(tokens, text[start:]), true
}

// indexOutsideQuotes returns the index of the first c outside quoted text, or -1.
func indexOutsideQuotes(text string, c byte) int {
	inQuote := false
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\'':
			inQuote = !inQuote
		case c:
			if !inQuote {
				return i
			}
		}
	}
	return -1
}
