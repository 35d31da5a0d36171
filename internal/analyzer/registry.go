package analyzer

import (
	"fmt"
	"strings"
)

const (
	FlawfinderName = "Flawfinder"
	CppcheckName   = "Cppcheck"
	InferName      = "Infer"
)

// Registry defines the canonical analyzer order. Dataset columns follow it.
var Registry = []string{FlawfinderName, CppcheckName, InferName}

// Status is the install view of one analyzer, used by pre-flight checks.
type Status struct {
	Name     string `json:"name"`
	EnvVar   string `json:"env_var"`
	Enabled  bool   `json:"enabled"`
	Location string `json:"location,omitempty"`
}

func (s Status) Installed() bool { return s.Location != "" }

// CanonicalName maps a case-insensitive name to its Registry spelling.
func CanonicalName(name string) (string, error) {
	for _, n := range Registry {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown analyzer %q (known: %s)", name, strings.Join(Registry, ", "))
}

// New constructs the named analyzer.
func New(name string, opts ...Option) (Tool, error) {
	canonical, err := CanonicalName(name)
	if err != nil {
		return nil, err
	}
	switch canonical {
	case FlawfinderName:
		return NewFlawfinder(opts...), nil
	case CppcheckName:
		return NewCppcheck(opts...), nil
	default:
		return NewInfer(opts...), nil
	}
}

// Select builds the enabled analyzers in Registry order. Keys of enabled are
// matched case-insensitively; unknown keys are an error.
func Select(enabled map[string]bool, opts ...Option) ([]Tool, error) {
	on := make(map[string]bool, len(enabled))
	for k, v := range enabled {
		canonical, err := CanonicalName(k)
		if err != nil {
			return nil, err
		}
		on[canonical] = v
	}

	var tools []Tool
	for _, name := range Registry {
		if !on[name] {
			continue
		}
		t, err := New(name, opts...)
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, nil
}

// Statuses reports every registered analyzer, enabled or not.
func Statuses(enabled map[string]bool, opts ...Option) []Status {
	on := make(map[string]bool, len(enabled))
	for k, v := range enabled {
		if canonical, err := CanonicalName(k); err == nil {
			on[canonical] = v
		}
	}

	out := make([]Status, 0, len(Registry))
	for _, name := range Registry {
		t, _ := New(name, opts...)
		st := Status{Name: name, Enabled: on[name]}
		if e, ok := t.(interface{ EnvVar() string }); ok {
			st.EnvVar = e.EnvVar()
		}
		if loc, ok := t.InstallLocation(); ok {
			st.Location = loc
		}
		out = append(out, st)
	}
	return out
}

// Names returns the names of tools in order.
func Names(tools []Tool) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return names
}
