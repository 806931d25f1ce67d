/*
NAME
  mpa_test.go

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package mpa

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/avsync/frame"
)

// validHeader is an MPEG-1 Layer III, 128kbps, 44100Hz, stereo header with
// no CRC, no padding: a well known fixture with frame_size=417.
var validHeader = []byte{0xff, 0xfb, 0x90, 0x00}

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
			Relation:   true,
			SampleRate: 44100,
		},
		FrameSize:  417,
		HeaderSize: headerSize,
		NSamples:   1152,
		Bitstream:  frame.KindBE8,
		SPDIFType:  5,
	}
	if diff := cmp.Diff(want, fi); diff != "" {
		t.Errorf("ParseHeader mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHeaderPadding(t *testing.T) {
	padded := append([]byte(nil), validHeader...)
	padded[2] |= 0x2 // padding bit set
	p := New()
	fi, err := p.ParseHeader(padded)
	if err != nil {
		t.Fatalf("ParseHeader error: %v", err)
	}
	if fi.FrameSize != 418 {
		t.Errorf("padded FrameSize = %d, want 418", fi.FrameSize)
	}
}

func TestParseHeaderBadSync(t *testing.T) {
	bad := append([]byte(nil), validHeader...)
	bad[0] = 0xfe
	p := New()
	if _, err := p.ParseHeader(bad); err != frame.ErrInvalidHeader {
		t.Fatalf("ParseHeader with bad sync = %v, want ErrInvalidHeader", err)
	}
}

func TestParseHeaderReservedMpegID(t *testing.T) {
	bad := append([]byte(nil), validHeader...)
	bad[1] = bad[1]&^0x18 | 0x08 // mpegID = 01, reserved
	p := New()
	if _, err := p.ParseHeader(bad); err != frame.ErrInvalidHeader {
		t.Fatalf("ParseHeader with reserved mpegID = %v, want ErrInvalidHeader", err)
	}
}

func TestParseHeaderFreeFormatRejected(t *testing.T) {
	bad := append([]byte(nil), validHeader...)
	bad[2] = bad[2] &^ 0xf0 // bitrateIdx = 0, free format
	p := New()
	if _, err := p.ParseHeader(bad); err != frame.ErrInvalidHeader {
		t.Fatalf("ParseHeader with free-format bitrate = %v, want ErrInvalidHeader", err)
	}
}

func TestCompareHeadersSameFormat(t *testing.T) {
	h1 := append([]byte(nil), validHeader...)
	h2 := append([]byte(nil), validHeader...)

	p := New()
	if !p.CompareHeaders(h1, h2) {
		t.Error("CompareHeaders should accept identical headers")
	}
}

func TestCompareHeadersDifferentFreq(t *testing.T) {
	h1 := append([]byte(nil), validHeader...)
	h2 := append([]byte(nil), validHeader...)
	h2[2] = h2[2]&^0x0c | 0x04 // freqIdx = 1 (48000)

	p := New()
	if p.CompareHeaders(h1, h2) {
		t.Error("CompareHeaders should reject a different sample rate")
	}
}

func TestFirstNextFrameTracksSync(t *testing.T) {
	p := New()
	buf := append(append([]byte(nil), validHeader...), make([]byte, 420)...)
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
