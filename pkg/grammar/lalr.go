package grammar

import (
	"math/bits"
	"sort"

	"github.com/edwingeng/deque"
	"github.com/segmentio/fasthash/fnv1a"
)

// bitset is a set of terminal symbols.
type bitset []uint64

func newBitset(n int) bitset { return make(bitset, (n+63)/64) }

func (b bitset) add(i int) { b[i/64] |= 1 << uint(i%64) }

func (b bitset) has(i int) bool { return b[i/64]&(1<<uint(i%64)) != 0 }

// union adds o to b and reports whether b grew.
func (b bitset) union(o bitset) bool {
	changed := false
	for i := range b {
		if n := b[i] | o[i]; n != b[i] {
			b[i] = n
			changed = true
		}
	}
	return changed
}

func (b bitset) clone() bitset { return append(bitset(nil), b...) }

func (b bitset) each(fn func(int)) {
	for i, w := range b {
		for w != 0 {
			j := bits.TrailingZeros64(w)
			fn(i*64 + j)
			w &^= 1 << uint(j)
		}
	}
}

// computeFirst computes nullable and FIRST for every nonterminal.
func (c *compiler) computeFirst() {
	n := len(c.nonterms)
	tc := c.tokenCount()
	c.nullable = make([]bool, n)
	c.first = make([]bitset, n)
	for i := range c.first {
		c.first[i] = newBitset(tc)
	}

	for changed := true; changed; {
		changed = false
		for _, p := range c.prods[1:] {
			lhs := p.lhs - tc
			first, nullable := c.firstOf(p.items)
			if c.first[lhs].union(first) {
				changed = true
			}
			if nullable && !c.nullable[lhs] {
				c.nullable[lhs] = true
				changed = true
			}
		}
	}
}

// firstOf returns FIRST of a symbol sequence and whether it can derive the
// empty string.
func (c *compiler) firstOf(items []item) (bitset, bool) {
	tc := c.tokenCount()
	out := newBitset(tc)
	for _, it := range items {
		if it.sym < tc {
			out.add(it.sym)
			return out, false
		}
		out.union(c.first[it.sym-tc])
		if !c.nullable[it.sym-tc] {
			return out, false
		}
	}
	return out, true
}

type lrItem struct {
	prod int32
	dot  int32
}

func (a lrItem) less(b lrItem) bool {
	if a.prod != b.prod {
		return a.prod < b.prod
	}
	return a.dot < b.dot
}

// lrState is an LALR(1) state: a kernel of LR(0) items, each with a
// lookahead set.
type lrState struct {
	kernel []lrItem
	la     []bitset
	trans  map[int]int // symbol -> state
	queued bool
}

func coreHash(kernel []lrItem) uint64 {
	h := fnv1a.Init64
	for _, it := range kernel {
		h = fnv1a.AddUint64(h, uint64(it.prod)<<32|uint64(it.dot))
	}
	return h
}

func sameCore(a, b []lrItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// closure expands a state's kernel with LR(1) lookaheads.
func (c *compiler) closure(st *lrState) ([]lrItem, []bitset) {
	tc := c.tokenCount()
	items := append([]lrItem(nil), st.kernel...)
	las := make([]bitset, len(st.la))
	index := make(map[lrItem]int, len(items))
	for i, l := range st.la {
		las[i] = l.clone()
		index[items[i]] = i
	}

	work := deque.NewDeque()
	for i := range items {
		work.PushBack(i)
	}
	for !work.Empty() {
		i := work.PopFront().(int)
		it := items[i]
		p := c.prods[it.prod]
		if int(it.dot) >= len(p.items) || p.items[it.dot].sym < tc {
			continue
		}
		follow, nullable := c.firstOf(p.items[it.dot+1:])
		if nullable {
			follow.union(las[i])
		}
		for _, q := range c.byLHS[p.items[it.dot].sym] {
			next := lrItem{prod: int32(q)}
			if j, ok := index[next]; ok {
				if las[j].union(follow) {
					work.PushBack(j)
				}
				continue
			}
			index[next] = len(items)
			items = append(items, next)
			las = append(las, follow.clone())
			work.PushBack(len(items) - 1)
		}
	}
	return items, las
}

// buildStates constructs the LALR(1) automaton by merging LR(1) states with
// the same core and propagating lookaheads until nothing changes.
func (c *compiler) buildStates() []*lrState {
	tc := c.tokenCount()
	startLA := newBitset(tc)
	startLA.add(0)
	states := []*lrState{{
		kernel: []lrItem{{prod: 0}},
		la:     []bitset{startLA},
		trans:  make(map[int]int),
		queued: true,
	}}
	byCore := map[uint64][]int{coreHash(states[0].kernel): {0}}

	work := deque.NewDeque()
	work.PushBack(0)
	for !work.Empty() {
		id := work.PopFront().(int)
		st := states[id]
		st.queued = false
		items, las := c.closure(st)

		// Group advanced items by the symbol after the dot, in symbol order
		// so state numbering is deterministic.
		next := make(map[int][]int)
		var symbols []int
		for i, it := range items {
			p := c.prods[it.prod]
			if int(it.dot) >= len(p.items) {
				continue
			}
			sym := p.items[it.dot].sym
			if _, ok := next[sym]; !ok {
				symbols = append(symbols, sym)
			}
			next[sym] = append(next[sym], i)
		}
		sort.Ints(symbols)

		for _, sym := range symbols {
			idx := next[sym]
			kernel := make([]lrItem, len(idx))
			la := make([]bitset, len(idx))
			order := make([]int, len(idx))
			for k := range order {
				order[k] = k
			}
			sort.Slice(order, func(a, b int) bool {
				return items[idx[order[a]]].less(items[idx[order[b]]])
			})
			for k, o := range order {
				src := items[idx[o]]
				kernel[k] = lrItem{prod: src.prod, dot: src.dot + 1}
				la[k] = las[idx[o]]
			}

			h := coreHash(kernel)
			target := -1
			for _, cand := range byCore[h] {
				if sameCore(states[cand].kernel, kernel) {
					target = cand
					break
				}
			}
			if target < 0 {
				target = len(states)
				cloned := make([]bitset, len(la))
				for k := range la {
					cloned[k] = la[k].clone()
				}
				states = append(states, &lrState{kernel: kernel, la: cloned, trans: make(map[int]int), queued: true})
				byCore[h] = append(byCore[h], target)
				work.PushBack(target)
			} else {
				grew := false
				for k := range la {
					if states[target].la[k].union(la[k]) {
						grew = true
					}
				}
				if grew && !states[target].queued {
					states[target].queued = true
					work.PushBack(target)
				}
			}
			st.trans[sym] = target
		}
	}
	return states
}
