package classify

import (
	"fmt"
	"strings"
)

// Policy is the strictness tier used to decide whether a commit is
// security-relevant. Strong is the narrowest tier, Low the widest.
type Policy string

const (
	PolicyStrong Policy = "strong"
	PolicyMedium Policy = "medium"
	PolicyLow    Policy = "low"
)

// Rank is the minimum pattern rank a message must hit to pass the policy.
// Ranks are explicit so reordering the constants cannot change behavior.
func (p Policy) Rank() int {
	switch p {
	case PolicyStrong:
		return 3
	case PolicyMedium:
		return 2
	case PolicyLow:
		return 1
	default:
		return 0
	}
}

func (p Policy) Valid() bool { return p.Rank() > 0 }

func (p Policy) String() string { return string(p) }

// Policies lists every tier from strictest to widest.
func Policies() []Policy {
	return []Policy{PolicyStrong, PolicyMedium, PolicyLow}
}

// ParsePolicy accepts a tier name in any case.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown classification policy %q (want strong, medium or low)", s)
	}
	return p, nil
}
