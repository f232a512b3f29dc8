package sitter

import (
	"bytes"
	"unicode/utf8"
)

// token is a lexed terminal before it becomes a leaf.
type token struct {
	symbol    Symbol
	padding   Length
	size      Length
	lookahead uint32
	mode      int
}

// lexer produces tokens on demand for the parser. It only tries the
// terminals valid in the current parse state, so the same text can lex
// differently in different contexts.
type lexer struct {
	lang *Language
	src  []byte
}

func newLexer(lang *Language, src []byte) *lexer {
	return &lexer{lang: lang, src: src}
}

// match returns the length of the rule's match at off, or -1. seen is how
// far into the input the rule had to look to decide, not counting the one
// byte peeked past it.
func (lx *lexer) match(r *lexRule, off int) (n, seen int) {
	rest := lx.src[off:]
	if r.re == nil {
		if bytes.HasPrefix(rest, []byte(r.literal)) {
			return len(r.literal), len(r.literal)
		}
		return -1, commonPrefix(rest, r.literal)
	}
	loc := r.re.FindIndex(rest)
	if loc == nil || loc[1] == 0 {
		cp := commonPrefix(rest, r.prefix)
		if r.prefix != "" && cp == len(r.prefix) {
			// The rest of the pattern may have scanned anywhere.
			return -1, len(rest)
		}
		return -1, cp
	}
	return loc[1], loc[1]
}

func commonPrefix(b []byte, s string) int {
	n := 0
	for n < len(b) && n < len(s) && b[n] == s[n] {
		n++
	}
	return n
}

// best picks the longest match among rules; literals win ties, then
// declaration order. furthest is how far any rule looked.
func (lx *lexer) best(rules []int, off int) (rule int, n int, furthest int) {
	rule, n = -1, 0
	for _, i := range rules {
		r := &lx.lang.rules[i]
		m, seen := lx.match(r, off)
		if seen > furthest {
			furthest = seen
		}
		if m <= 0 {
			continue
		}
		if m > n || (m == n && r.re == nil && lx.lang.rules[rule].re != nil) {
			rule, n = i, m
		}
	}
	return rule, n, furthest
}

func (lx *lexer) allRules() []int {
	all := make([]int, len(lx.lang.rules))
	for i := range all {
		all[i] = i
	}
	return all
}

// lex scans the next token starting at pos in the given mode. Skipped extras
// become padding. When nothing valid matches, every terminal is tried; if
// that fails too, a run of unrecognizable characters is returned as an error
// token. The token's lookahead covers every byte examined past its end.
func (lx *lexer) lex(pos Length, mode int) token {
	cur := pos
	rules := lx.lang.modes[mode]
	examined := 0 // absolute end of the bytes looked at, peek excluded
	for {
		off := int(cur.Bytes)
		if off >= len(lx.src) {
			return token{symbol: SymbolEnd, padding: lengthSub(cur, pos), mode: mode}
		}

		rule, n, furthest := lx.best(rules, off)
		examined = max(examined, off+furthest)
		if rule < 0 {
			rule, n, furthest = lx.best(lx.allRules(), off)
			examined = max(examined, off+furthest)
		}
		if rule >= 0 && lx.lang.rules[rule].skip {
			cur = lengthAdd(cur, lengthOf(lx.src[off:off+n]))
			continue
		}
		end := off + n
		if rule < 0 {
			end, furthest = lx.skipUnrecognized(off)
			examined = max(examined, furthest)
		}
		tok := token{
			symbol:    SymbolError,
			padding:   lengthSub(cur, pos),
			size:      lengthOf(lx.src[off:end]),
			lookahead: uint32(max(examined-end, 0)) + 1,
			mode:      mode,
		}
		if rule >= 0 {
			tok.symbol = lx.lang.rules[rule].symbol
		}
		return tok
	}
}

// skipUnrecognized advances over characters until some terminal matches.
// examined is the absolute end of the bytes the match attempts looked at.
func (lx *lexer) skipUnrecognized(off int) (end, examined int) {
	all := lx.allRules()
	for {
		_, w := utf8.DecodeRune(lx.src[off:])
		off += w
		if off >= len(lx.src) {
			return len(lx.src), max(examined, len(lx.src))
		}
		rule, _, furthest := lx.best(all, off)
		examined = max(examined, off+furthest)
		if rule >= 0 {
			return off, examined
		}
	}
}
