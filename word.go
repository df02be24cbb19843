// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package sieve

import (
	"github.com/intuitivelabs/bytescase"
)

// Word is used to hold a recognised keyword or tag name as a numeric
// constant. Source text is ASCII case-insensitive (spec §6); Word
// values are looked up through a case-folded hash bucket, the same
// shape as the SIP-method lookup this package's lexer is descended
// from.
type Word uint16

const (
	WUnknown Word = iota

	// control structures
	WIf
	WElsIf
	WElse
	WForEveryPart
	WBreak
	WReturn
	WRequire
	WInclude
	WIHave
	WGlobal

	// boolean test combinators
	WAllOf
	WAnyOf
	WNot
	WTrue
	WFalse

	// tests
	WAddress
	WEnvelope
	WExists
	WHeader
	WSize
	WString
	WBody
	WDate
	WCurrentDate
	WDuplicate
	WMailboxExists
	WSpamTest
	WVirusTest
	WValid_ExtList

	// actions
	WStop
	WKeep
	WFileInto
	WRedirect
	WDiscard
	WReject
	WEReject
	WVacation
	WNotify
	WSet
	WAddHeader
	WDeleteHeader
	WReplace
	WEnclose
	WExtractText
	WConvert
	WSetFlag
	WAddFlag
	WRemoveFlag
	WHasFlag
	WError

	// tags
	WName
	WCopy
	WOnce
	WIs
	WContains
	WMatches
	WRegex
	WValue
	WCount
	WOver
	WUnder
	WComparator
	WLocalPart
	WDomain
	WAll
	WDetail
	WUser
	WList
	WImportance
	WSubject
	WFrom
	WHandle
	WDays
	WAddresses
	WMime
	WAnyChild
	WType
	WSubType
	WContentType
	WParam
	WFlags
	WCreate
	WLowerFirst
	WUpperFirst
	WLower
	WUpper
	WQuoteWildcard
	WLength
	WIndex
	WIndexLast
	WOptional
	WLow
	WNormal
	WHigh
	WMessage
	WMethod
	WID
	WPersonal
	WFirst
	WRaw
	WText
	WSeconds
	WUniqueID
	WZone

	wordLast
)

var wordName = [wordLast]string{
	WUnknown:       "",
	WIf:            "if",
	WElsIf:         "elsif",
	WElse:          "else",
	WForEveryPart:  "foreverypart",
	WBreak:         "break",
	WReturn:        "return",
	WRequire:       "require",
	WInclude:       "include",
	WIHave:         "ihave",
	WGlobal:        "global",
	WAllOf:         "allof",
	WAnyOf:         "anyof",
	WNot:           "not",
	WTrue:          "true",
	WFalse:         "false",
	WAddress:       "address",
	WEnvelope:      "envelope",
	WExists:        "exists",
	WHeader:        "header",
	WSize:          "size",
	WString:        "string",
	WBody:          "body",
	WDate:          "date",
	WCurrentDate:   "currentdate",
	WDuplicate:     "duplicate",
	WMailboxExists: "mailboxexists",
	WSpamTest:      "spamtest",
	WVirusTest:     "virustest",
	WValid_ExtList: "valid_ext_list",
	WStop:          "stop",
	WKeep:          "keep",
	WFileInto:      "fileinto",
	WRedirect:      "redirect",
	WDiscard:       "discard",
	WReject:        "reject",
	WEReject:       "ereject",
	WVacation:      "vacation",
	WNotify:        "notify",
	WSet:           "set",
	WAddHeader:     "addheader",
	WDeleteHeader:  "deleteheader",
	WReplace:       "replace",
	WEnclose:       "enclose",
	WExtractText:   "extracttext",
	WConvert:       "convert",
	WSetFlag:       "setflag",
	WAddFlag:       "addflag",
	WRemoveFlag:    "removeflag",
	WHasFlag:       "hasflag",
	WError:         "error",
	WName:          "name",
	WCopy:          "copy",
	WOnce:          "once",
	WIs:            "is",
	WContains:      "contains",
	WMatches:       "matches",
	WRegex:         "regex",
	WValue:         "value",
	WCount:         "count",
	WOver:          "over",
	WUnder:         "under",
	WComparator:    "comparator",
	WLocalPart:     "localpart",
	WDomain:        "domain",
	WAll:           "all",
	WDetail:        "detail",
	WUser:          "user",
	WList:          "list",
	WImportance:    "importance",
	WSubject:       "subject",
	WFrom:          "from",
	WHandle:        "handle",
	WDays:          "days",
	WAddresses:     "addresses",
	WMime:          "mime",
	WAnyChild:      "anychild",
	WType:          "type",
	WSubType:       "subtype",
	WContentType:   "contenttype",
	WParam:         "param",
	WFlags:         "flags",
	WCreate:        "create",
	WLowerFirst:    "lowerfirst",
	WUpperFirst:    "upperfirst",
	WLower:         "lower",
	WUpper:         "upper",
	WQuoteWildcard: "quotewildcard",
	WLength:        "length",
	WIndex:         "index",
	WIndexLast:     "last",
	WOptional:      "optional",
	WLow:           "low",
	WNormal:        "normal",
	WHigh:          "high",
	WMessage:       "message",
	WMethod:        "method",
	WID:            "id",
	WPersonal:      "personal",
	WFirst:         "first",
	WRaw:           "raw",
	WText:          "text",
	WSeconds:       "seconds",
	WUniqueID:      "uniqueid",
	WZone:          "zone",
}

// String implements fmt.Stringer.
func (w Word) String() string {
	if int(w) >= len(wordName) {
		return "?"
	}
	return wordName[w]
}

// IsCommand reports whether w names a top-level command keyword (as
// opposed to a test name or a tag).
func (w Word) IsCommand() bool {
	switch w {
	case WIf, WElsIf, WElse, WForEveryPart, WBreak, WReturn, WRequire,
		WInclude, WGlobal, WStop, WKeep, WFileInto, WRedirect, WDiscard, WReject,
		WEReject, WVacation, WNotify, WSet, WAddHeader, WDeleteHeader,
		WReplace, WEnclose, WExtractText, WConvert, WSetFlag, WAddFlag,
		WRemoveFlag, WError:
		return true
	}
	return false
}

const (
	wordHashLenBits  uint = 2
	wordHashCharBits uint = 4
)

type word2Word struct {
	n []byte
	w Word
}

var wordLookup [1 << (wordHashLenBits + wordHashCharBits)][]word2Word

func hashWordName(n []byte) int {
	const (
		mC = (1 << wordHashCharBits) - 1
		mL = (1 << wordHashLenBits) - 1
	)
	return (int(bytescase.ByteToLower(n[0])) & mC) |
		((len(n) & mL) << wordHashCharBits)
}

func init() {
	for w := WUnknown + 1; w < wordLast; w++ {
		name := wordName[w]
		if name == "" {
			continue
		}
		h := hashWordName([]byte(name))
		wordLookup[h] = append(wordLookup[h], word2Word{[]byte(name), w})
	}
}

// GetWord converts an ASCII identifier or tag name (without the leading
// ':') to the corresponding Word, case-insensitively. It returns
// WUnknown if n names no recognised keyword or tag.
func GetWord(n []byte) Word {
	if len(n) == 0 {
		return WUnknown
	}
	h := hashWordName(n)
	for _, e := range wordLookup[h] {
		if bytescase.CmpEq(n, e.n) {
			return e.w
		}
	}
	return WUnknown
}
