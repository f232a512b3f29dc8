package grammar

import (
	"regexp"
	"strings"
)

type ruleKind uint8

const (
	kindBlank ruleKind = iota
	kindString
	kindPattern
	kindSymbol
	kindSeq
	kindChoice
	kindRepeat
	kindRepeat1
	kindToken
	kindField
	kindPrec
)

// Assoc is the associativity of a precedence annotation.
type Assoc uint8

const (
	AssocNone Assoc = iota
	AssocLeft
	AssocRight
)

// Rule is a node of the grammar DSL. Build rules with the constructor
// functions below; the zero Rule is Blank.
type Rule struct {
	kind    ruleKind
	value   string // literal, pattern, symbol or field name
	members []Rule
	prec    int
	assoc   Assoc
}

// Str matches the literal s. It produces an anonymous node.
func Str(s string) Rule { return Rule{kind: kindString, value: s} }

// Pat matches the regular expression p (RE2 syntax).
func Pat(p string) Rule { return Rule{kind: kindPattern, value: p} }

// Sym refers to another rule by name.
func Sym(name string) Rule { return Rule{kind: kindSymbol, value: name} }

// Seq matches its members in order.
func Seq(members ...Rule) Rule { return Rule{kind: kindSeq, members: members} }

// Choice matches any one of its members.
func Choice(members ...Rule) Rule { return Rule{kind: kindChoice, members: members} }

// Optional matches r or nothing.
func Optional(r Rule) Rule { return Choice(r, Blank()) }

// Repeat matches r zero or more times.
func Repeat(r Rule) Rule { return Rule{kind: kindRepeat, members: []Rule{r}} }

// Repeat1 matches r one or more times.
func Repeat1(r Rule) Rule { return Rule{kind: kindRepeat1, members: []Rule{r}} }

// Token collapses a lexical rule built from Str, Pat, Seq, Choice and the
// repeats into a single terminal.
func Token(r Rule) Rule { return Rule{kind: kindToken, members: []Rule{r}} }

// Field names the child (or children) matched by r.
func Field(name string, r Rule) Rule { return Rule{kind: kindField, value: name, members: []Rule{r}} }

// Prec gives the productions of r a precedence for conflict resolution.
func Prec(n int, r Rule) Rule { return Rule{kind: kindPrec, prec: n, members: []Rule{r}} }

// PrecLeft is Prec with left associativity.
func PrecLeft(n int, r Rule) Rule {
	return Rule{kind: kindPrec, prec: n, assoc: AssocLeft, members: []Rule{r}}
}

// PrecRight is Prec with right associativity.
func PrecRight(n int, r Rule) Rule {
	return Rule{kind: kindPrec, prec: n, assoc: AssocRight, members: []Rule{r}}
}

// Blank matches the empty string.
func Blank() Rule { return Rule{kind: kindBlank} }

// isLexical reports whether r is a single terminal on its own.
func (r Rule) isLexical() bool {
	switch r.kind {
	case kindString, kindPattern, kindToken:
		return true
	}
	return false
}

// regexpSource renders a lexical rule as a regular expression.
func (r Rule) regexpSource() (string, error) {
	switch r.kind {
	case kindBlank:
		return "", nil
	case kindString:
		return regexp.QuoteMeta(r.value), nil
	case kindPattern:
		return "(?:" + r.value + ")", nil
	case kindPrec, kindToken:
		return r.members[0].regexpSource()
	case kindSeq, kindChoice:
		parts := make([]string, 0, len(r.members))
		for _, m := range r.members {
			s, err := m.regexpSource()
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		if r.kind == kindSeq {
			return strings.Join(parts, ""), nil
		}
		return "(?:" + strings.Join(parts, "|") + ")", nil
	case kindRepeat:
		s, err := r.members[0].regexpSource()
		return "(?:" + s + ")*", err
	case kindRepeat1:
		s, err := r.members[0].regexpSource()
		return "(?:" + s + ")+", err
	default:
		return "", errNotLexical
	}
}
