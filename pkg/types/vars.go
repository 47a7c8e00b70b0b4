package types

import (
	"sort"
	"strconv"
	"strings"
)

// VarID identifies a resolved variable within one compiled query. IDs are
// assigned in order of first appearance, so ordering a set by ID orders it by
// first appearance.
type VarID int

// VarSet is an ordered set of variables. The zero value is the empty set.
// Operations never modify their receiver.
type VarSet []VarID

// NewVarSet returns the set of ids.
func NewVarSet(ids ...VarID) VarSet {
	if len(ids) == 0 {
		return nil
	}
	s := append(VarSet(nil), ids...)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	out := s[:1]
	for _, id := range s[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

// Has reports whether id is in the set.
func (s VarSet) Has(id VarID) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= id })
	return i < len(s) && s[i] == id
}

// Empty reports whether the set has no members.
func (s VarSet) Empty() bool { return len(s) == 0 }

// Add returns the set with id added.
func (s VarSet) Add(id VarID) VarSet {
	if s.Has(id) {
		return s
	}
	return s.Union(VarSet{id})
}

// Union returns s ∪ o.
func (s VarSet) Union(o VarSet) VarSet {
	if len(o) == 0 {
		return s
	}
	if len(s) == 0 {
		return o
	}
	out := make(VarSet, 0, len(s)+len(o))
	i, j := 0, 0
	for i < len(s) && j < len(o) {
		switch {
		case s[i] < o[j]:
			out = append(out, s[i])
			i++
		case s[i] > o[j]:
			out = append(out, o[j])
			j++
		default:
			out = append(out, s[i])
			i++
			j++
		}
	}
	out = append(out, s[i:]...)
	return append(out, o[j:]...)
}

// Minus returns s \ o.
func (s VarSet) Minus(o VarSet) VarSet {
	var out VarSet
	for _, id := range s {
		if !o.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// Intersect returns s ∩ o.
func (s VarSet) Intersect(o VarSet) VarSet {
	var out VarSet
	for _, id := range s {
		if o.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// Overlaps reports whether s and o share a member.
func (s VarSet) Overlaps(o VarSet) bool {
	for _, id := range s {
		if o.Has(id) {
			return true
		}
	}
	return false
}

// SubsetOf reports whether every member of s is in o.
func (s VarSet) SubsetOf(o VarSet) bool {
	for _, id := range s {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

// Equal reports whether both sets have the same members.
func (s VarSet) Equal(o VarSet) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Format renders the set using name to print each member.
func (s VarSet) Format(name func(VarID) string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, id := range s {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(name(id))
	}
	b.WriteByte(']')
	return b.String()
}

// String renders the set with numeric ids.
func (s VarSet) String() string {
	return s.Format(func(id VarID) string { return "*" + strconv.Itoa(int(id)) })
}
