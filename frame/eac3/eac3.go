/*
NAME
  eac3.go

DESCRIPTION
  eac3.go implements frame.FrameParser for Enhanced AC-3 (E-AC-3, aka
  Dolby Digital Plus) bitstreams, grounded on spec.md §4.5.2 and the AC-3
  header layout in original_source/valib/parsers/ac3/ac3_header.cpp, which
  E-AC-3 extends.

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package eac3 parses Enhanced AC-3 (Dolby Digital Plus) frame headers.
package eac3

import (
	"github.com/ausocean/avsync/frame"
	"github.com/ausocean/avsync/syncscan"
)

const (
	headerSize = 8
	formatTag  = 2
	spdifType  = 21 // IEC 61937 Pc type for E-AC-3
)

var sampleRateTbl = [3]int{48000, 44100, 32000}

// numblkscodTbl maps numblkscod (0..3) to the number of 256-sample blocks
// in the frame, per spec.md §4.5.2.
var numblkscodTbl = [4]int{1, 2, 3, 6}

var acmod2mask = [8]uint32{0x3, 0x4, 0x3, 0x7, 0x103, 0x107, 0x33, 0x37}

const lfeMask = 0x8

// Parser implements frame.FrameParser for E-AC-3.
type Parser struct {
	cached frame.FrameInfo
	have   bool
}

// New returns a new E-AC-3 parser.
func New() *Parser { return &Parser{} }

// SyncInfo implements frame.FrameParser. As with AC-3, E-AC-3 is
// recognized both as a plain 8-bit stream (sync 0x0b77) and as
// byte-swapped 16-bit-LE words (sync 0x770b); see eac3_header.cpp's
// sync_trie union of both syncwords.
func (p *Parser) SyncInfo() frame.SyncInfo {
	return frame.SyncInfo{
		Trie: syncscan.New(0x0b77, 16).Or(syncscan.New(0x770b, 16)),
		Min:  8,
		Max:  4096,
	}
}

// HeaderSize implements frame.FrameParser.
func (p *Parser) HeaderSize() int { return headerSize }

// ParseHeader implements frame.FrameParser. Both the BE and LE16
// syncword variants are accepted, the latter reading each field from
// the other byte of its 16-bit word, as in ac3.Parser. bsid gates
// acceptance to (10,16], per spec.md §4.5.2 and eac3_header.cpp's own
// bsid check, which is what stops a classic AC-3 header (bsid<=10) from
// also being accepted here.
func (p *Parser) ParseHeader(hdr []byte) (frame.FrameInfo, error) {
	if len(hdr) < headerSize {
		return frame.FrameInfo{}, frame.ErrBufferTooSmall
	}

	var bsid int
	var b2, b3, b4 byte // strmtyp/frmsiz bytes and the fscod/acmod/lfeon byte
	var bitstream frame.BitstreamKind
	switch {
	case hdr[0] == 0x0b && hdr[1] == 0x77:
		bsid = int(hdr[5] >> 3)
		b2, b3, b4 = hdr[2], hdr[3], hdr[4]
		bitstream = frame.KindBE8
	case hdr[1] == 0x0b && hdr[0] == 0x77:
		bsid = int(hdr[4] >> 3)
		b2, b3, b4 = hdr[3], hdr[2], hdr[5]
		bitstream = frame.KindLE16
	default:
		return frame.FrameInfo{}, frame.ErrInvalidHeader
	}
	if bsid <= 10 || bsid > 16 {
		return frame.FrameInfo{}, frame.ErrInvalidHeader
	}

	strmtyp := b2 >> 6 & 0x3
	if strmtyp == 3 {
		return frame.FrameInfo{}, frame.ErrInvalidHeader
	}
	frmsiz := (int(b2&0x7) << 8) | int(b3)
	frameSize := (frmsiz + 1) * 2

	fscod := b4 >> 6 & 0x3
	var sampleRate, numblks int
	if fscod == 3 {
		fscod2 := b4 >> 4 & 0x3
		if fscod2 == 3 {
			return frame.FrameInfo{}, frame.ErrInvalidHeader
		}
		sampleRate = sampleRateTbl[fscod2] / 2
		numblks = 6
	} else {
		numblkscod := b4 >> 4 & 0x3
		sampleRate = sampleRateTbl[fscod]
		numblks = numblkscodTbl[numblkscod]
	}

	acmod := b4 >> 1 & 0x7
	lfeon := b4&0x1 != 0

	mask := acmod2mask[acmod]
	if lfeon {
		mask |= lfeMask
	}

	return frame.FrameInfo{
		Spk: frame.SpeakerLayout{
			Format:     formatTag,
			Mask:       mask,
			Relation:   acmod == 0,
			SampleRate: sampleRate,
		},
		FrameSize:  frameSize,
		HeaderSize: headerSize,
		NSamples:   numblks * 256,
		Bitstream:  bitstream,
		SPDIFType:  spdifType,
	}, nil
}

// CompareHeaders implements frame.FrameParser.
func (p *Parser) CompareHeaders(hdr1, hdr2 []byte) bool {
	if len(hdr1) < headerSize || len(hdr2) < headerSize {
		return false
	}
	// Same stream type, sample rate fields and acmod/lfeon; frmsiz (which
	// varies frame to frame for VBR) is excluded.
	switch {
	case hdr1[0] == 0x0b && hdr1[1] == 0x77:
		if hdr2[0] != 0x0b || hdr2[1] != 0x77 {
			return false
		}
		return hdr1[2]>>6&0x3 == hdr2[2]>>6&0x3 && hdr1[4] == hdr2[4]
	case hdr1[1] == 0x0b && hdr1[0] == 0x77:
		if hdr2[1] != 0x0b || hdr2[0] != 0x77 {
			return false
		}
		return hdr1[3]>>6&0x3 == hdr2[3]>>6&0x3 && hdr1[5] == hdr2[5]
	default:
		return false
	}
}

// FirstFrame implements frame.FrameParser.
func (p *Parser) FirstFrame(buf []byte) (frame.FrameInfo, bool, error) {
	if len(buf) < headerSize {
		return frame.FrameInfo{}, false, nil
	}
	fi, err := p.ParseHeader(buf)
	if err != nil {
		return frame.FrameInfo{}, false, err
	}
	p.cached, p.have = fi, true
	return fi, true, nil
}

// NextFrame implements frame.FrameParser.
func (p *Parser) NextFrame(buf []byte) (frame.FrameInfo, bool, error) {
	return p.FirstFrame(buf)
}

// Reset implements frame.FrameParser.
func (p *Parser) Reset() { p.have = false }

// InSync implements frame.FrameParser.
func (p *Parser) InSync() bool { return p.have }
