// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package runtime

import (
	"strconv"
	"strings"
)

// equalFold reports a==b per the named comparator (spec §3, RFC 5228
// §2.7.3). "i;octet" is exact byte comparison; anything else (including
// the default, unset comparator) is the case-insensitive
// "i;ascii-casemap" comparator, the only other one RFC 5228 mandates.
func equalFold(comparator, a, b string) bool {
	if comparator == "i;octet" {
		return a == b
	}
	return strings.EqualFold(a, b)
}

func containsFold(comparator, hay, needle string) bool {
	if comparator == "i;octet" {
		return strings.Contains(hay, needle)
	}
	return strings.Contains(strings.ToLower(hay), strings.ToLower(needle))
}

// wildcardMatch implements the RFC 5228 §2.7.1 ":matches" glob syntax
// ("*" any run, "?" any single character, "\" escapes the next
// character) and reports the substrings each wildcard matched, in
// order, for RFC 5229 match-variable population.
func wildcardMatch(comparator, pattern, s string) (bool, []string) {
	fold := comparator != "i;octet"
	return matchGlob([]rune(pattern), []rune(s), fold)
}

func matchGlob(pat, s []rune, fold bool) (bool, []string) {
	var captures []string
	var rec func(pi, si int) bool
	rec = func(pi, si int) bool {
		for pi < len(pat) {
			switch pat[pi] {
			case '*':
				// try every possible length for this run, shortest first
				// so overlapping "*...*" patterns still terminate.
				for take := 0; si+take <= len(s); take++ {
					mark := len(captures)
					captures = append(captures, string(s[si:si+take]))
					if rec(pi+1, si+take) {
						return true
					}
					captures = captures[:mark]
				}
				return false
			case '?':
				if si >= len(s) {
					return false
				}
				captures = append(captures, string(s[si]))
				pi++
				si++
			case '\\':
				if pi+1 >= len(pat) {
					return false
				}
				if si >= len(s) || !runeEq(pat[pi+1], s[si], fold) {
					return false
				}
				pi += 2
				si++
			default:
				if si >= len(s) || !runeEq(pat[pi], s[si], fold) {
					return false
				}
				pi++
				si++
			}
		}
		return si == len(s)
	}
	ok := rec(0, 0)
	if !ok {
		return false, nil
	}
	return true, captures
}

func runeEq(a, b rune, fold bool) bool {
	if a == b {
		return true
	}
	if !fold {
		return false
	}
	return toLowerRune(a) == toLowerRune(b)
}

func toLowerRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// relOp maps the RFC 5231/5232 relational match-flag spelling (both
// the textual "gt"/"ge"/... and symbolic "> / >= / ..." forms accepted
// by the grammar) to a comparison of a against b.
func relOp(flag string, a, b int) bool {
	switch strings.ToLower(flag) {
	case "gt", ">":
		return a > b
	case "ge", ">=":
		return a >= b
	case "lt", "<":
		return a < b
	case "le", "<=":
		return a <= b
	case "ne", "!=":
		return a != b
	default: // "eq", "="
		return a == b
	}
}

// relOpCompare implements the :value relational match (RFC 5231 §4):
// numeric comparison when the comparator is "i;ascii-numeric",
// otherwise a plain lexical byte comparison.
func relOpCompare(comparator, flag, a, b string) bool {
	if comparator == "i;ascii-numeric" {
		an, _ := strconv.Atoi(a)
		bn, _ := strconv.Atoi(b)
		return relOp(flag, an, bn)
	}
	return relOp(flag, strings.Compare(a, b), 0)
}
