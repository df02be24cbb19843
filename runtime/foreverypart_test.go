// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package runtime

import (
	"testing"

	sievesp "github.com/intuitivelabs/sievesp"
)

func multipartMsg() Message {
	root := &Part{
		ContentType: "multipart",
		SubType:     "mixed",
		Children: []*Part{
			{ContentType: "text", SubType: "plain", Body: []byte("hello")},
			{ContentType: "image", SubType: "png", Body: []byte{0, 1, 2}},
		},
	}
	m := newFakeMessage(nil, "")
	m.root = root
	return m
}

// TestRunForEveryPartVisitsEachPart walks a `foreverypart` loop over a
// three-node MIME tree and records the content-type of every part
// visited via an AddHeader call bound to the part's own variable view.
func TestRunForEveryPartVisitsEachPart(t *testing.T) {
	prog := &sievesp.Sieve{Instructions: []sievesp.Instruction{
		{Op: sievesp.OpForEveryPartPush},                 // 0
		{Op: sievesp.OpForEveryPart, Addr: 4},             // 1
		{Op: sievesp.OpAddHeader, Args: sievesp.ActionArgs{ // 2
			HeaderName: "X-Part-Type",
			HeaderValue: sievesp.VariableValue(sievesp.VariableRef{
				Kind: sievesp.VarPart, Part: "content-type",
			}),
		}},
		{Op: sievesp.OpJmp, Addr: 1},       // 3
		{Op: sievesp.OpForEveryPartPop, PopCount: 1}, // 4
	}}
	host, _, err := runProgram(prog, multipartMsg(), Envelope{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	want := []string{
		"X-Part-Type: multipart",
		"X-Part-Type: text",
		"X-Part-Type: image",
	}
	if len(host.headers) != len(want) {
		t.Fatalf("headers = %v, want %v", host.headers, want)
	}
	for i := range want {
		if host.headers[i] != want[i] {
			t.Errorf("headers[%d] = %q, want %q", i, host.headers[i], want[i])
		}
	}
}
