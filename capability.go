// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package sieve

import "github.com/intuitivelabs/bytescase"

// Capability is used to hold an extension identifier as a numeric
// constant (spec §3).
type Capability uint8

// Capability constants. Kept < 64 so CapabilitySet can stay a single
// uint64 bitmask.
const (
	CapNone Capability = iota
	CapFileInto
	CapEnvelope
	CapVariables
	CapEditHeader
	CapForEveryPart
	CapMime
	CapEnclose
	CapExtractText
	CapConvert
	CapReject
	CapEReject
	CapVacation
	CapImap4Flags
	CapInclude
	CapIHave
	CapEnotify
	CapBody
	CapRegex
	CapRelational
	CapDate
	CapDuplicate
	CapMailbox
	CapMboxMetadata
	CapServerMetadata
	CapSpamTest
	CapSpamTestPlus
	CapVirusTest
	CapSubaddress
	CapComparatorIOctet
	CapComparatorIAsciiCasemap
	CapComparatorIAsciiNumeric
	capLast
)

var capName = [capLast]string{
	CapNone:                    "",
	CapFileInto:                "fileinto",
	CapEnvelope:                "envelope",
	CapVariables:               "variables",
	CapEditHeader:              "editheader",
	CapForEveryPart:            "foreverypart",
	CapMime:                    "mime",
	CapEnclose:                 "enclose",
	CapExtractText:             "extracttext",
	CapConvert:                 "convert",
	CapReject:                  "reject",
	CapEReject:                 "ereject",
	CapVacation:                "vacation",
	CapImap4Flags:              "imap4flags",
	CapInclude:                 "include",
	CapIHave:                   "ihave",
	CapEnotify:                 "enotify",
	CapBody:                    "body",
	CapRegex:                   "regex",
	CapRelational:              "relational",
	CapDate:                    "date",
	CapDuplicate:               "duplicate",
	CapMailbox:                 "mailbox",
	CapMboxMetadata:            "mboxmetadata",
	CapServerMetadata:          "servermetadata",
	CapSpamTest:                "spamtest",
	CapSpamTestPlus:            "spamtestplus",
	CapVirusTest:               "virustest",
	CapSubaddress:              "subaddress",
	CapComparatorIOctet:        "comparator-i;octet",
	CapComparatorIAsciiCasemap: "comparator-i;ascii-casemap",
	CapComparatorIAsciiNumeric: "comparator-i;ascii-numeric",
}

// String implements fmt.Stringer.
func (c Capability) String() string {
	if int(c) >= len(capName) {
		return "unknown"
	}
	return capName[c]
}

// GetCapability converts the string argument of a require clause to a
// Capability, case-insensitively (RFC extension tokens are compared
// verbatim except for case, per spec §6). It returns CapNone, false if
// name does not identify a known capability.
func GetCapability(name []byte) (Capability, bool) {
	for c := CapFileInto; c < capLast; c++ {
		if bytescase.CmpEq(name, []byte(capName[c])) {
			return c, true
		}
	}
	return CapNone, false
}

// CapabilitySet is a bitmask over Capability, following the teacher's
// HdrFlags bit-flag idiom (parse_headers.go) generalised from "which
// headers have been seen" to "which extensions are in scope".
type CapabilitySet uint64

// Reset clears the set.
func (s *CapabilitySet) Reset() {
	*s = 0
}

// Set adds c to the set.
func (s *CapabilitySet) Set(c Capability) {
	*s |= 1 << uint(c)
}

// Clear removes c from the set.
func (s *CapabilitySet) Clear(c Capability) {
	*s &^= 1 << uint(c)
}

// Test reports whether c is in the set.
func (s CapabilitySet) Test(c Capability) bool {
	return (s & (1 << uint(c))) != 0
}

// Any reports whether at least one of the given capabilities is set.
func (s CapabilitySet) Any(caps ...Capability) bool {
	for _, c := range caps {
		if s&(1<<uint(c)) != 0 {
			return true
		}
	}
	return false
}

// AllSet reports whether all of the given capabilities are set.
func (s CapabilitySet) AllSet(caps ...Capability) bool {
	for _, c := range caps {
		if s&(1<<uint(c)) == 0 {
			return false
		}
	}
	return true
}

// Union returns a new set containing the capabilities of both s and o.
// Used when an ihave branch opens a child block (spec §12).
func (s CapabilitySet) Union(o CapabilitySet) CapabilitySet {
	return s | o
}
