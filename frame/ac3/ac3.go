/*
NAME
  ac3.go

DESCRIPTION
  ac3.go implements frame.FrameParser for ATSC A/52 (AC-3) bitstreams,
  grounded on original_source/valib/parsers/ac3/ac3_header.cpp.

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package ac3 parses ATSC A/52 (AC-3) frame headers.
package ac3

import (
	"github.com/ausocean/avsync/frame"
	"github.com/ausocean/avsync/syncscan"
)

const (
	headerSize = 8
	spdifType  = 1
)

// sample rates indexed by fscod.
var sampleRateTbl = [4]int{48000, 44100, 32000, 0}

// halfrateTbl maps bsid (0..11) directly to a shift applied to the
// bitrate, implementing AC-3's "half rate" extension streams (bsid 9, 10).
var halfrateTbl = [12]uint{0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3}

// lfeBitTbl maps acmod (0..7) to the bitmask, within the header byte whose
// top three bits are acmod, that carries the lfeon flag: cmixlev/surmixlev/
// dsurmod occupy a variable number of bits ahead of it depending on acmod, so its
// position shifts; this mirrors ac3_header.cpp's lfe_mask table rather
// than recomputing the bit offset from acmod's component fields.
var lfeBitTbl = [8]byte{0x10, 0x10, 0x04, 0x04, 0x04, 0x01, 0x04, 0x01}

// bitrateTbl maps frmsizecod>>1 (0..18) to a kbps value.
var bitrateTbl = [19]int{
	32, 40, 48, 56, 64, 80, 96, 112, 128,
	160, 192, 224, 256, 320, 384, 448, 512, 576, 640,
}

// acmod2mask maps acmod (0..7) to a speaker mask. Index 0 is the dual-mono
// (1+1) special case, indices 1..7 are mono through 3/2.
var acmod2mask = [8]uint32{
	0x3, // 1+1 (dual mono), relative
	0x4, // 1/0: center
	0x3, // 2/0: L,R
	0x7, // 3/0: L,C,R
	0x103, // 2/1: L,R,S
	0x107, // 3/1: L,C,R,S
	0x33,  // 2/2: L,R,SL,SR
	0x37,  // 3/2: L,C,R,SL,SR
}

// lfeMask is the additional LFE channel bit, added when the lfe flag is
// set.
const lfeMask = 0x8

// compareMask, indexed by acmod, masks the header byte after the acmod byte
// down to the bits that must match between two headers of the same logical
// stream; the compre/compr bits it leaves out are allowed to vary.
var compareMask = [8]uint32{0x80, 0x80, 0xe0, 0xe0, 0xe0, 0xf8, 0xe0, 0xf8}

// Parser implements frame.FrameParser for AC-3.
type Parser struct {
	cached frame.FrameInfo
	have   bool
}

// New returns a new AC-3 parser.
func New() *Parser { return &Parser{} }

// SyncInfo implements frame.FrameParser. AC-3 is recognized both as a
// plain 8-bit stream (sync 0x0b77) and as byte-swapped 16-bit-LE words
// (sync 0x770b), the latter being how spdifwrap and most SPDIF captures
// carry it; see ac3_header.cpp's sync_trie union of both syncwords.
func (p *Parser) SyncInfo() frame.SyncInfo {
	return frame.SyncInfo{
		Trie: syncscan.New(0x0b77, 16).Or(syncscan.New(0x770b, 16)),
		Min:  64,
		Max:  3840,
	}
}

// HeaderSize implements frame.FrameParser.
func (p *Parser) HeaderSize() int { return headerSize }

// ParseHeader implements frame.FrameParser. Both the 8-bit (BE) and
// 16-bit-LE (LE16) syncword variants are accepted; the LE16 variant is
// the same header byte-swapped word by word, so the fscod/frmsizecod,
// bsid and acmod/lfe fields are read from the other byte of their 16-bit
// word (bsid from byte 4 instead of 5, fscod/frmsizecod from 5 instead of
// 4, acmod/lfe from 7 instead of 6), mirroring
// ac3_header.cpp's two parallel branches.
func (p *Parser) ParseHeader(hdr []byte) (frame.FrameInfo, error) {
	if len(hdr) < headerSize {
		return frame.FrameInfo{}, frame.ErrBufferTooSmall
	}

	var fscod, frmsizecod, bsid, acmod int
	var lfeByte byte
	var bitstream frame.BitstreamKind
	switch {
	case hdr[0] == 0x0b && hdr[1] == 0x77:
		bsid = int(hdr[5] >> 3)
		fscod = int(hdr[4] >> 6 & 0x3)
		frmsizecod = int(hdr[4] & 0x3f)
		acmod = int(hdr[6] >> 5 & 0x7)
		lfeByte = hdr[6]
		bitstream = frame.KindBE8
	case hdr[1] == 0x0b && hdr[0] == 0x77:
		bsid = int(hdr[4] >> 3)
		fscod = int(hdr[5] >> 6 & 0x3)
		frmsizecod = int(hdr[5] & 0x3f)
		acmod = int(hdr[7] >> 5 & 0x7)
		lfeByte = hdr[7]
		bitstream = frame.KindLE16
	default:
		return frame.FrameInfo{}, frame.ErrInvalidHeader
	}

	// bsid is capped at 10 for classic AC-3, rather than the wider range
	// a raw header decode would tolerate, so that a single header can't
	// be accepted by both this parser and eac3.Parser, whose own range
	// starts immediately above it.
	if fscod == 3 || frmsizecod >= 38 || bsid > 10 {
		return frame.FrameInfo{}, frame.ErrInvalidHeader
	}

	lfe := lfeByte&lfeBitTbl[acmod] != 0

	halfrate := halfrateTbl[bsid]
	bitrateKbps := bitrateTbl[frmsizecod>>1]
	bitrate := bitrateKbps >> halfrate

	var frameSize int
	switch fscod {
	case 0: // 48 kHz
		frameSize = 4 * bitrate
	case 1: // 44.1 kHz
		frameSize = 2 * (320*bitrate/147 + frmsizecod&1)
	case 2: // 32 kHz
		frameSize = 6 * bitrate
	}

	mask := acmod2mask[acmod]
	relation := acmod == 0
	if lfe {
		mask |= lfeMask
	}

	return frame.FrameInfo{
		Spk: frame.SpeakerLayout{
			Format:     formatTag,
			Mask:       mask,
			Relation:   relation,
			SampleRate: sampleRateTbl[fscod] >> halfrate,
		},
		FrameSize:  frameSize,
		HeaderSize: headerSize,
		NSamples:   1536,
		Bitstream:  bitstream,
		SPDIFType:  spdifType,
	}, nil
}

// formatTag identifies AC-3 in SpeakerLayout.Format; its only contract is
// uniqueness across this module's parsers.
const formatTag = 1

// CompareHeaders implements frame.FrameParser. Both headers must use the
// same syncword variant (BE or LE16); 'compre'/'compr' (the bits masked
// by compareMask) and the LSB of frmsizecod (which alternates to match
// the average bitrate in 44.1kHz mode) are allowed to differ.
func (p *Parser) CompareHeaders(hdr1, hdr2 []byte) bool {
	if len(hdr1) < headerSize || len(hdr2) < headerSize {
		return false
	}
	switch {
	case hdr1[0] == 0x0b && hdr1[1] == 0x77:
		if hdr2[0] != 0x0b || hdr2[1] != 0x77 {
			return false
		}
		if hdr1[4]&0xfe != hdr2[4]&0xfe || hdr1[5] != hdr2[5] || hdr1[6] != hdr2[6] {
			return false
		}
		mask := byte(compareMask[hdr1[6]>>5&0x7])
		return hdr1[7]&mask == hdr2[7]&mask
	case hdr1[1] == 0x0b && hdr1[0] == 0x77:
		if hdr2[1] != 0x0b || hdr2[0] != 0x77 {
			return false
		}
		if hdr1[5]&0xfe != hdr2[5]&0xfe || hdr1[4] != hdr2[4] || hdr1[7] != hdr2[7] {
			return false
		}
		mask := byte(compareMask[hdr1[7]>>5&0x7])
		return hdr1[6]&mask == hdr2[6]&mask
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
	p.cached = fi
	p.have = true
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
