// SPDX-License-Identifier: Apache-2.0

package graph

import "sort"

// Sequence is the ordered list of units belonging to one application,
// totally ordered by name. Names are unique; the sequence is append-only
// under normal authoring.
type Sequence struct {
	App   string
	units map[string]*Unit
	order []string // maintained sorted
}

// NewSequence builds a Sequence from a set of units belonging to one
// application, sorting them lexicographically by name.
func NewSequence(app string, units []*Unit) (*Sequence, error) {
	s := &Sequence{App: app, units: make(map[string]*Unit, len(units))}
	for _, u := range units {
		if err := ValidName(u.Name); err != nil {
			return nil, err
		}
		if _, exists := s.units[u.Name]; exists {
			return nil, BrokenMigrationError{Application: app, UnitName: u.Name, Cause: errDuplicateName}
		}
		s.units[u.Name] = u
		s.order = append(s.order, u.Name)
	}
	sort.Strings(s.order)
	return s, nil
}

var errDuplicateName = errDup{}

type errDup struct{}

func (errDup) Error() string { return "duplicate migration unit name" }

// Len returns the number of units in the sequence.
func (s *Sequence) Len() int { return len(s.order) }

// Names returns the unit names in lexicographic order.
func (s *Sequence) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Unit looks up a unit by exact name.
func (s *Sequence) Unit(name string) (*Unit, bool) {
	u, ok := s.units[name]
	return u, ok
}

// Last returns the lexicographically last unit in the sequence, or nil if
// the sequence is empty.
func (s *Sequence) Last() *Unit {
	if len(s.order) == 0 {
		return nil
	}
	return s.units[s.order[len(s.order)-1]]
}

// Predecessor returns the implicit predecessor of the named unit: its
// lexicographically immediate prior sibling, or nil if it is first.
func (s *Sequence) Predecessor(name string) *Unit {
	idx := sort.SearchStrings(s.order, name)
	if idx <= 0 || idx > len(s.order) {
		return nil
	}
	return s.units[s.order[idx-1]]
}

// ResolvePrefix resolves a non-exact reference to a unit name: an exact
// match is returned as-is (soft=false); otherwise a prefix matching exactly
// one name resolves softly; zero or multiple matches are errors.
func (s *Sequence) ResolvePrefix(ref string) (name string, soft bool, err error) {
	if _, ok := s.units[ref]; ok {
		return ref, false, nil
	}

	var matches []string
	for _, n := range s.order {
		if len(n) >= len(ref) && n[:len(ref)] == ref {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		return "", false, UnknownMigrationError{Application: s.App, Ref: ref}
	case 1:
		return matches[0], true, nil
	default:
		return "", false, MultiplePrefixMatchesError{Application: s.App, Prefix: ref, Matches: matches}
	}
}
