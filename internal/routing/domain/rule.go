package domain

import (
	"fmt"
	"strings"
)

type MatchKind string

const (
	MatchExact  MatchKind = "exact"
	MatchPrefix MatchKind = "prefix"
)

// RoutingRule asocia un predicado sobre la clave de enrutado con un destino.
type RoutingRule struct {
	Match       MatchKind `json:"match"`
	Value       string    `json:"value"`
	Destination string    `json:"destination"`
}

func (r RoutingRule) Matches(key string) bool {
	switch r.Match {
	case MatchPrefix:
		return strings.HasPrefix(key, r.Value)
	default:
		return key == r.Value
	}
}

// RuleSet es la tabla de reglas en orden de declaración. Es inmutable una vez
// construida: NewRuleSet copia la entrada.
type RuleSet struct {
	rules            []RoutingRule
	errorDestination string
}

func NewRuleSet(rules []RoutingRule, errorDestination string) (*RuleSet, error) {
	if errorDestination == "" {
		return nil, fmt.Errorf("error destination is required")
	}
	copied := make([]RoutingRule, len(rules))
	for i, r := range rules {
		if r.Value == "" || r.Destination == "" {
			return nil, fmt.Errorf("rule %d: value and destination are required", i)
		}
		if r.Match == "" {
			r.Match = MatchExact
		}
		if r.Match != MatchExact && r.Match != MatchPrefix {
			return nil, fmt.Errorf("rule %d: unknown match kind %q", i, r.Match)
		}
		copied[i] = r
	}
	return &RuleSet{rules: copied, errorDestination: errorDestination}, nil
}

// Lookup devuelve el destino de la primera regla que encaja.
func (s *RuleSet) Lookup(key string) (string, bool) {
	for _, r := range s.rules {
		if r.Matches(key) {
			return r.Destination, true
		}
	}
	return "", false
}

func (s *RuleSet) ErrorDestination() string { return s.errorDestination }

// Rules devuelve una copia de la tabla.
func (s *RuleSet) Rules() []RoutingRule {
	out := make([]RoutingRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Destinations lista los destinos distintos, incluido el de error.
func (s *RuleSet) Destinations() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range s.rules {
		if !seen[r.Destination] {
			seen[r.Destination] = true
			out = append(out, r.Destination)
		}
	}
	if !seen[s.errorDestination] {
		out = append(out, s.errorDestination)
	}
	return out
}

// ParseRules interpreta "VALOR=destino;PREFIJO*=destino". El orden se conserva.
func ParseRules(raw string) ([]RoutingRule, error) {
	var rules []RoutingRule
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, dest, ok := strings.Cut(part, "=")
		value, dest = strings.TrimSpace(value), strings.TrimSpace(dest)
		if !ok || value == "" || dest == "" {
			return nil, fmt.Errorf("invalid routing rule %q: want VALUE=destination", part)
		}

		rule := RoutingRule{Match: MatchExact, Value: value, Destination: dest}
		if strings.HasSuffix(value, "*") {
			rule.Match = MatchPrefix
			rule.Value = strings.TrimSuffix(value, "*")
			if rule.Value == "" {
				return nil, fmt.Errorf("invalid routing rule %q: empty prefix", part)
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
