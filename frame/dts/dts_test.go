/*
NAME
  dts_test.go

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package dts

import (
	"testing"

	"github.com/ausocean/avsync/bits"
	"github.com/ausocean/avsync/frame"
)

// buildHeader16BE constructs a minimal valid 16-bit-big-endian DTS core
// header: nblks=7 (256 samples), fsize=1023 (frame_size=1024), amode=1
// (L,R), sfreq=12 (48kHz), lff=0.
func buildHeader16BE() []byte {
	hdr := make([]byte, 18)
	hdr[0], hdr[1], hdr[2], hdr[3] = syncwords[variant16BE][0], syncwords[variant16BE][1], syncwords[variant16BE][2], syncwords[variant16BE][3]

	w := bits.NewWriter(hdr[4:])
	w.WriteBits(0, 1)    // ft
	w.WriteBits(0, 5)    // surplus
	w.WriteBool(false)   // crc present
	w.WriteBits(7, 7)    // nblks
	w.WriteBits(1023, 14) // fsize
	w.WriteBits(1, 6)    // amode
	w.WriteBits(12, 4)   // sfreq
	w.WriteBits(0, 5)    // rate
	w.WriteBool(false)   // fixed
	w.WriteBool(false)   // dynf
	w.WriteBool(false)   // timef
	w.WriteBool(false)   // auxf
	w.WriteBool(false)   // hdcd
	w.WriteBits(0, 3)    // ext audio id
	w.WriteBool(false)   // ext audio
	w.WriteBool(false)   // aspf
	w.WriteBits(0, 2)    // lff
	return hdr
}

func TestParseHeader16BE(t *testing.T) {
	p := New()
	hdr := buildHeader16BE()
	fi, err := p.ParseHeader(hdr)
	if err != nil {
		t.Fatalf("ParseHeader error: %v", err)
	}
	if fi.FrameSize != 0 {
		t.Errorf("FrameSize = %d, want 0 (header-reported size is unreliable)", fi.FrameSize)
	}
	if fi.Spk.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", fi.Spk.SampleRate)
	}
	if fi.Spk.Mask != 0x3 {
		t.Errorf("Mask = %#x, want 0x3", fi.Spk.Mask)
	}
	if fi.NSamples != 256 {
		t.Errorf("NSamples = %d, want 256", fi.NSamples)
	}
	if fi.Bitstream != frame.KindBE16 {
		t.Errorf("Bitstream = %v, want KindBE16", fi.Bitstream)
	}
}

func TestParseHeaderInvalidSfreq(t *testing.T) {
	hdr := buildHeader16BE()
	w := bits.NewWriter(hdr[4:])
	w.WriteBits(0, 1)
	w.WriteBits(0, 5)
	w.WriteBool(false)
	w.WriteBits(7, 7)
	w.WriteBits(1023, 14)
	w.WriteBits(1, 6)
	w.WriteBits(4, 4) // reserved sfreq value

	p := New()
	if _, err := p.ParseHeader(hdr); err != frame.ErrInvalidHeader {
		t.Fatalf("ParseHeader with reserved sfreq = %v, want ErrInvalidHeader", err)
	}
}

func TestParseHeaderRejectsUnknownSync(t *testing.T) {
	hdr := buildHeader16BE()
	hdr[0] = 0x00
	p := New()
	if _, err := p.ParseHeader(hdr); err != frame.ErrInvalidHeader {
		t.Fatalf("ParseHeader with bad sync = %v, want ErrInvalidHeader", err)
	}
}

func TestFirstFrameNoMASubstream(t *testing.T) {
	p := New()
	hdr := buildHeader16BE()
	fi, ok, err := p.FirstFrame(hdr)
	if err != nil || !ok {
		t.Fatalf("FirstFrame = ok=%v err=%v", ok, err)
	}
	if fi.FrameSize != 0 {
		t.Errorf("FrameSize = %d, want 0 (DTS never reports a header-derived size)", fi.FrameSize)
	}
	if p.maPresent {
		t.Error("maPresent should be false when no marker is found")
	}
}

func TestDetectMAReadsShortSubstreamSize(t *testing.T) {
	core := buildHeader16BE()
	buf := make([]byte, 1024+16)
	copy(buf, core)
	// Write the MA marker and a "short" substream header at the core
	// frame's end: not blown-up (bit0=0), nuSubstreamIndex(9 bits)=0,
	// nuBytes-1(14 bits) = 199 (200-byte substream).
	off := 1024
	buf[off], buf[off+1], buf[off+2], buf[off+3] = 0x64, 0x58, 0x20, 0x25
	w := bits.NewWriter(buf[off+4:])
	w.WriteBool(false) // not blown up
	w.WriteBits(0, 9)
	w.WriteBits(199, 14)

	size, found, err := detectMA(buf, 1024)
	if err != nil {
		t.Fatalf("detectMA error: %v", err)
	}
	if !found {
		t.Fatal("detectMA should find the marker")
	}
	if size != 200 {
		t.Errorf("detectMA size = %d, want 200", size)
	}
}

func TestResetClearsSync(t *testing.T) {
	p := New()
	hdr := buildHeader16BE()
	if _, ok, err := p.FirstFrame(hdr); err != nil || !ok {
		t.Fatalf("FirstFrame failed: ok=%v err=%v", ok, err)
	}
	if !p.InSync() {
		t.Fatal("expected InSync after FirstFrame")
	}
	p.Reset()
	if p.InSync() {
		t.Fatal("Reset should clear InSync")
	}
}
