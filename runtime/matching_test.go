// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package runtime

import "testing"

func TestEqualFold(t *testing.T) {
	cases := []struct {
		comparator, a, b string
		want             bool
	}{
		{"", "Hello", "hello", true},
		{"i;ascii-casemap", "Hello", "HELLO", true},
		{"i;octet", "Hello", "hello", false},
		{"i;octet", "Hello", "Hello", true},
		{"", "foo", "bar", false},
	}
	for _, c := range cases {
		if got := equalFold(c.comparator, c.a, c.b); got != c.want {
			t.Errorf("equalFold(%q, %q, %q) = %v, want %v", c.comparator, c.a, c.b, got, c.want)
		}
	}
}

func TestContainsFold(t *testing.T) {
	cases := []struct {
		comparator, hay, needle string
		want                    bool
	}{
		{"", "Hello World", "world", true},
		{"i;octet", "Hello World", "world", false},
		{"i;octet", "Hello World", "World", true},
		{"", "Hello", "xyz", false},
	}
	for _, c := range cases {
		if got := containsFold(c.comparator, c.hay, c.needle); got != c.want {
			t.Errorf("containsFold(%q, %q, %q) = %v, want %v", c.comparator, c.hay, c.needle, got, c.want)
		}
	}
}

func TestWildcardMatch(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
		captures   []string
	}{
		{"*", "anything", true, []string{"anything"}},
		{"*.example.com", "mail.example.com", true, []string{"mail"}},
		{"*.example.com", "example.com", false, nil},
		{"a?c", "abc", true, []string{"b"}},
		{"a?c", "ac", false, nil},
		{"literal", "literal", true, []string{}},
		{"literal", "Literal", true, []string{}}, // case-folded by default
		{`\*foo`, "*foo", true, []string{}},
	}
	for _, c := range cases {
		ok, caps := wildcardMatch("", c.pattern, c.s)
		if ok != c.want {
			t.Errorf("wildcardMatch(%q, %q) ok = %v, want %v", c.pattern, c.s, ok, c.want)
			continue
		}
		if ok && c.captures != nil && len(caps) != len(c.captures) {
			t.Errorf("wildcardMatch(%q, %q) captures = %v, want %v", c.pattern, c.s, caps, c.captures)
		}
	}
}

func TestWildcardMatchOctetCaseSensitive(t *testing.T) {
	ok, _ := wildcardMatch("i;octet", "Literal", "literal")
	if ok {
		t.Errorf("wildcardMatch with i;octet should be case-sensitive, but matched")
	}
}

func TestRelOp(t *testing.T) {
	cases := []struct {
		flag string
		a, b int
		want bool
	}{
		{"gt", 5, 3, true},
		{">", 5, 3, true},
		{"ge", 3, 3, true},
		{"lt", 2, 3, true},
		{"le", 3, 3, true},
		{"ne", 3, 4, true},
		{"eq", 3, 3, true},
		{"", 3, 3, true},
	}
	for _, c := range cases {
		if got := relOp(c.flag, c.a, c.b); got != c.want {
			t.Errorf("relOp(%q, %d, %d) = %v, want %v", c.flag, c.a, c.b, got, c.want)
		}
	}
}

func TestRelOpCompareNumeric(t *testing.T) {
	if !relOpCompare("i;ascii-numeric", "gt", "10", "9") {
		t.Errorf("expected numeric comparator to treat 10 > 9")
	}
	if relOpCompare("", "gt", "10", "9") {
		t.Errorf("expected lexical comparator to treat \"10\" < \"9\"")
	}
}
