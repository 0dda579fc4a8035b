package tracker

import "slices"

// kind selects one of the two synchronized collections.
type kind int

const (
	kindEntries kind = iota
	kindProjects
	numKinds
)

func (k kind) String() string {
	if k == kindProjects {
		return "projects"
	}
	return "time_entries"
}

// pendingSet is an insertion-ordered set of record ids awaiting remote
// confirmation. Each id carries the revision of its latest local change; a
// remote success only clears the id if no newer change happened meanwhile.
type pendingSet struct {
	ids  []string
	revs map[string]uint64
}

func newPendingSet(ids []string, rev func() uint64) pendingSet {
	p := pendingSet{revs: make(map[string]uint64, len(ids))}
	for _, id := range ids {
		p.mark(id, rev())
	}
	return p
}

func (p *pendingSet) mark(id string, rev uint64) {
	if p.revs == nil {
		p.revs = make(map[string]uint64)
	}
	if _, ok := p.revs[id]; !ok {
		p.ids = append(p.ids, id)
	}
	p.revs[id] = rev
}

func (p pendingSet) has(id string) bool {
	_, ok := p.revs[id]
	return ok
}

func (p pendingSet) rev(id string) uint64 {
	return p.revs[id]
}

func (p *pendingSet) remove(id string) bool {
	if _, ok := p.revs[id]; !ok {
		return false
	}
	delete(p.revs, id)
	p.ids = slices.DeleteFunc(p.ids, func(s string) bool { return s == id })
	return true
}

// retain drops ids for which keep returns false and reports how many went.
func (p *pendingSet) retain(keep func(id string) bool) int {
	removed := 0
	p.ids = slices.DeleteFunc(p.ids, func(id string) bool {
		if keep(id) {
			return false
		}
		delete(p.revs, id)
		removed++
		return true
	})
	return removed
}

func (p pendingSet) len() int { return len(p.ids) }

func (p pendingSet) list() []string { return slices.Clone(p.ids) }

func (p pendingSet) clone() pendingSet {
	c := pendingSet{ids: slices.Clone(p.ids), revs: make(map[string]uint64, len(p.revs))}
	for k, v := range p.revs {
		c.revs[k] = v
	}
	return c
}

// idSet is an insertion-ordered set of ids without revisions.
type idSet []string

func (s idSet) has(id string) bool { return slices.Contains(s, id) }

func (s idSet) add(id string) idSet {
	if s.has(id) {
		return s
	}
	return append(slices.Clone(s), id)
}

func (s idSet) without(id string) idSet {
	return slices.DeleteFunc(slices.Clone(s), func(v string) bool { return v == id })
}
