/*
NAME
  eac3_test.go

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package eac3

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/avsync/frame"
)

// validHeader: strmtyp=0, frmsiz=19 (frame_size=40), fscod=0 (48kHz),
// numblkscod=3 (6 blocks), acmod=2 (L,R), lfeon=0, bsid=16.
var validHeader = []byte{0x0b, 0x77, 0x00, 0x13, 0x34, 0x80, 0x00, 0x00}

// le16Header is validHeader with each of its four 16-bit words
// byte-swapped.
var le16Header = []byte{0x77, 0x0b, 0x13, 0x00, 0x80, 0x34, 0x00, 0x00}

func TestParseHeaderValid(t *testing.T) {
	p := New()
	fi, err := p.ParseHeader(validHeader)
	if err != nil {
		t.Fatalf("ParseHeader error: %v", err)
	}
	want := frame.FrameInfo{
		Spk: frame.SpeakerLayout{
			Format:     formatTag,
			Mask:       0x3,
			Relation:   false,
			SampleRate: 48000,
		},
		FrameSize:  40,
		HeaderSize: headerSize,
		NSamples:   1536,
		Bitstream:  frame.KindBE8,
		SPDIFType:  spdifType,
	}
	if diff := cmp.Diff(want, fi); diff != "" {
		t.Errorf("ParseHeader mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHeaderLE16(t *testing.T) {
	p := New()
	fi, err := p.ParseHeader(le16Header)
	if err != nil {
		t.Fatalf("ParseHeader error: %v", err)
	}
	want := frame.FrameInfo{
		Spk: frame.SpeakerLayout{
			Format:     formatTag,
			Mask:       0x3,
			Relation:   false,
			SampleRate: 48000,
		},
		FrameSize:  40,
		HeaderSize: headerSize,
		NSamples:   1536,
		Bitstream:  frame.KindLE16,
		SPDIFType:  spdifType,
	}
	if diff := cmp.Diff(want, fi); diff != "" {
		t.Errorf("ParseHeader(LE16) mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHeaderRejectsClassicAC3Bsid(t *testing.T) {
	bad := append([]byte(nil), validHeader...)
	bad[5] = 8 << 3 // bsid=8: a plain AC-3 header, not E-AC-3
	p := New()
	if _, err := p.ParseHeader(bad); err != frame.ErrInvalidHeader {
		t.Fatalf("ParseHeader with bsid=8 = %v, want ErrInvalidHeader", err)
	}
}

func TestParseHeaderRejectsOutOfRangeBsid(t *testing.T) {
	bad := append([]byte(nil), validHeader...)
	bad[5] = 17 << 3 // bsid=17, beyond E-AC-3's range
	p := New()
	if _, err := p.ParseHeader(bad); err != frame.ErrInvalidHeader {
		t.Fatalf("ParseHeader with bsid=17 = %v, want ErrInvalidHeader", err)
	}
}

func TestParseHeaderReservedStrmtyp(t *testing.T) {
	bad := append([]byte(nil), validHeader...)
	bad[2] |= 0xc0 // strmtyp = 3, reserved
	p := New()
	if _, err := p.ParseHeader(bad); err != frame.ErrInvalidHeader {
		t.Fatalf("ParseHeader with strmtyp=3 = %v, want ErrInvalidHeader", err)
	}
}

func TestParseHeaderReservedFscod2(t *testing.T) {
	bad := append([]byte(nil), validHeader...)
	bad[4] = 0xc0 | bad[4]&0x3f // fscod = 3, fscod2 = 3 (reserved)
	p := New()
	if _, err := p.ParseHeader(bad); err != frame.ErrInvalidHeader {
		t.Fatalf("ParseHeader with fscod2=3 = %v, want ErrInvalidHeader", err)
	}
}

func TestParseHeaderBadSync(t *testing.T) {
	bad := append([]byte(nil), validHeader...)
	bad[0] = 0x00
	p := New()
	if _, err := p.ParseHeader(bad); err != frame.ErrInvalidHeader {
		t.Fatalf("ParseHeader with bad sync = %v, want ErrInvalidHeader", err)
	}
}

func TestCompareHeadersIgnoresFrmsiz(t *testing.T) {
	h1 := append([]byte(nil), validHeader...)
	h2 := append([]byte(nil), validHeader...)
	h2[3] = 0x7f // different frmsiz, as expected in a VBR stream

	p := New()
	if !p.CompareHeaders(h1, h2) {
		t.Error("CompareHeaders should ignore frmsiz (VBR frame size)")
	}
}

func TestCompareHeadersDifferentAcmod(t *testing.T) {
	h1 := append([]byte(nil), validHeader...)
	h2 := append([]byte(nil), validHeader...)
	h2[4] = 0x30 // acmod = 0 (dual mono)

	p := New()
	if p.CompareHeaders(h1, h2) {
		t.Error("CompareHeaders should reject a different acmod")
	}
}

func TestFirstNextFrameTracksSync(t *testing.T) {
	p := New()
	if p.InSync() {
		t.Fatal("parser should not be in sync before any frame")
	}
	buf := append(append([]byte(nil), validHeader...), make([]byte, 100)...)
	if _, ok, err := p.FirstFrame(buf); err != nil || !ok {
		t.Fatalf("FirstFrame = ok=%v err=%v", ok, err)
	}
	if !p.InSync() {
		t.Fatal("parser should be in sync after FirstFrame")
	}
	p.Reset()
	if p.InSync() {
		t.Fatal("Reset should clear sync state")
	}
}
