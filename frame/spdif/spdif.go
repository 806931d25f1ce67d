/*
NAME
  spdif.go

DESCRIPTION
  spdif.go implements frame.FrameParser for IEC 61937 (S/PDIF) outer
  framing, dispatching to the correct inner format parser by Pc burst-info
  type, grounded on
  original_source/valib/parsers/spdif/spdif_header.cpp.

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package spdif parses the outer IEC 61937 burst-preamble framing used to
// carry compressed audio over an S/PDIF link, identifying which inner
// format (AC-3, MPEG audio or DTS) a burst carries. It also recognizes the
// two padded-DTS carrier shapes that use no burst preamble at all, the
// stream being nothing but a DTS core frame padded out to the SPDIF slot
// size.
package spdif

import (
	"github.com/ausocean/avsync/frame"
	"github.com/ausocean/avsync/frame/ac3"
	"github.com/ausocean/avsync/frame/dts"
	"github.com/ausocean/avsync/frame/mpa"
	"github.com/ausocean/avsync/syncscan"
)

// spdifHeaderSize is sizeof(spdif_header_s): 4 zero words, then Pa, Pb, Pc,
// Pd, i.e. the byte offset from the start of a burst to its payload.
const spdifHeaderSize = 16

const formatTag = 6

// Inner identifies which format a burst's Pc type (or, for the two padded
// carrier shapes, the shape itself) selects.
type Inner int

const (
	InnerNone Inner = iota
	InnerAC3
	InnerMPA
	InnerDTS
)

// innerByType mirrors find_parser's dispatch table: {1: ac3, 4/5/8/9: mpa,
// 11/12/13: dts}.
var innerByType = map[int]Inner{
	1:  InnerAC3,
	4:  InnerMPA,
	5:  InnerMPA,
	8:  InnerMPA,
	9:  InnerMPA,
	11: InnerDTS,
	12: InnerDTS,
	13: InnerDTS,
}

// innerParser is the subset of frame.FrameParser spdif.Parser needs from
// whichever format a burst selects.
type innerParser interface {
	HeaderSize() int
	ParseHeader(hdr []byte) (frame.FrameInfo, error)
	CompareHeaders(hdr1, hdr2 []byte) bool
}

var (
	ac3Parser = ac3.New()
	mpaParser = mpa.New()
	dtsParser = dts.New()
)

func parserFor(inner Inner) innerParser {
	switch inner {
	case InnerAC3:
		return ac3Parser
	case InnerMPA:
		return mpaParser
	case InnerDTS:
		return dtsParser
	default:
		return nil
	}
}

// carrier identifies which of the three wire shapes ParseHeader matched.
type carrier int

const (
	carrierNone    carrier = iota
	carrierBurst           // zero run + Pa/Pb/Pc/Pd, inner by Pc type
	carrierDTS16LE         // raw DTS core frame, 16-bit-LE padded, no burst preamble
	carrierDTS14LE         // raw DTS core frame, 14-bit-LE padded, no burst preamble
)

func detectCarrier(hdr []byte) carrier {
	if len(hdr) >= 12 &&
		hdr[0] == 0 && hdr[1] == 0 && hdr[2] == 0 && hdr[3] == 0 &&
		hdr[4] == 0 && hdr[5] == 0 && hdr[6] == 0 && hdr[7] == 0 &&
		hdr[8] == 0x72 && hdr[9] == 0xf8 && hdr[10] == 0x1f && hdr[11] == 0x4e {
		return carrierBurst
	}
	if len(hdr) >= 4 && hdr[0] == 0xfe && hdr[1] == 0x7f && hdr[2] == 0x01 && hdr[3] == 0x80 {
		return carrierDTS16LE
	}
	if len(hdr) >= 6 && hdr[0] == 0xff && hdr[1] == 0x1f && hdr[2] == 0x00 && hdr[3] == 0xe8 &&
		hdr[4]&0xf0 == 0xf0 && hdr[5] == 0x07 {
		return carrierDTS14LE
	}
	return carrierNone
}

// Parser implements frame.FrameParser for the IEC 61937 burst preamble and
// its two padded-DTS carrier shapes.
type Parser struct {
	have bool
}

// New returns a new S/PDIF burst-preamble parser.
func New() *Parser { return &Parser{} }

// SyncInfo implements frame.FrameParser. Shape (a) is 8 zero bytes
// followed by the 4-byte Pa/Pb sync, sent word-wise little-endian as on
// the wire (Pa=0xF872 -> bytes 72,F8; Pb=0x4E1F -> bytes 1F,4E), matching
// spdifer.cpp's spdif_pause[] and the bytes spdifwrap.appendPreamble
// writes. Shapes (b) and (c) have no preamble: the trie matches DTS's own
// 16-bit-LE and 14-bit-LE syncwords directly, mirroring SPDIFTrie's union
// of all three patterns.
func (p *Parser) SyncInfo() frame.SyncInfo {
	zeros := syncscan.New(0, 64) // 8 zero bytes
	burst := syncscan.New(0x72f81f4e, 32)
	dts16LE := syncscan.New(0xfe7f0180, 32)
	dts14LE := syncscan.New(0xff1f00e8, 32)
	return frame.SyncInfo{
		Trie: zeros.Append(burst).Or(dts16LE).Or(dts14LE),
		Min:  768,  // 192 samples * 4 bytes, DTS's minimum SPDIF slot
		Max:  8192, // 2048 samples * 4 bytes, the largest slot SPDIF supports
	}
}

// HeaderSize implements frame.FrameParser. It covers the largest prefix
// ParseHeader ever needs to read: the 16-byte burst header plus the
// largest inner header (DTS's) any carrier shape can delegate to.
func (p *Parser) HeaderSize() int {
	return spdifHeaderSize + dtsParser.HeaderSize()
}

// ParseHeader implements frame.FrameParser. hdr starts wherever SyncInfo's
// trie matched: at the zero run for a burst (shape a), or directly at the
// inner DTS syncword for the padded shapes (b, c). The inner format's own
// header is parsed to obtain its nsamples, since frame_size for every
// carrier shape equals nsamples*4, the fixed SPDIF slot size, regardless
// of the inner frame's actual compressed payload length; see
// spdif_header.cpp's parse_header.
func (p *Parser) ParseHeader(hdr []byte) (frame.FrameInfo, error) {
	c := detectCarrier(hdr)
	if c == carrierNone {
		return frame.FrameInfo{}, frame.ErrInvalidHeader
	}

	var payload []byte
	var inner innerParser
	var spdifType int
	switch c {
	case carrierBurst:
		if len(hdr) < spdifHeaderSize {
			return frame.FrameInfo{}, frame.ErrBufferTooSmall
		}
		pc := int(hdr[12]) | int(hdr[13])<<8
		spdifType = pc & 0x7f
		in, ok := innerByType[spdifType]
		if !ok {
			return frame.FrameInfo{}, frame.ErrUnsupportedFormat
		}
		inner = parserFor(in)
		payload = hdr[spdifHeaderSize:]
	case carrierDTS16LE, carrierDTS14LE:
		inner = dtsParser
		payload = hdr
	}

	if len(payload) < inner.HeaderSize() {
		return frame.FrameInfo{}, frame.ErrBufferTooSmall
	}
	sub, err := inner.ParseHeader(payload)
	if err != nil {
		return frame.FrameInfo{}, err
	}

	frameSize := sub.NSamples * 4

	return frame.FrameInfo{
		Spk: frame.SpeakerLayout{
			Format:     formatTag,
			Mask:       sub.Spk.Mask,
			Relation:   sub.Spk.Relation,
			SampleRate: sub.Spk.SampleRate,
		},
		FrameSize:  frameSize,
		HeaderSize: p.HeaderSize(),
		NSamples:   sub.NSamples,
		Bitstream:  frame.KindLE16,
		SPDIFType:  spdifType,
	}, nil
}

// InnerType reports which inner parser a previously-parsed burst's Pc type
// selects. It only applies to carrierBurst headers; the padded DTS shapes
// have no Pc field and always imply DTS.
func InnerType(spdifType int) Inner {
	return innerByType[spdifType]
}

// CompareHeaders implements frame.FrameParser.
func (p *Parser) CompareHeaders(hdr1, hdr2 []byte) bool {
	c1, c2 := detectCarrier(hdr1), detectCarrier(hdr2)
	if c1 != c2 || c1 == carrierNone {
		return false
	}
	switch c1 {
	case carrierBurst:
		if len(hdr1) < spdifHeaderSize || len(hdr2) < spdifHeaderSize {
			return false
		}
		if hdr1[12]&0x7f != hdr2[12]&0x7f { // same burst-info type
			return false
		}
		in, ok := innerByType[int(hdr1[12])&0x7f]
		if !ok {
			return false
		}
		inner := parserFor(in)
		return inner.CompareHeaders(hdr1[spdifHeaderSize:], hdr2[spdifHeaderSize:])
	default: // carrierDTS16LE, carrierDTS14LE
		return dtsParser.CompareHeaders(hdr1, hdr2)
	}
}

// FirstFrame implements frame.FrameParser. 12 bytes is enough to decide
// which of the three carrier shapes (if any) buf matches; once that's
// known, the full header needed by the matched shape may still require
// more data, which is reported as ok=false rather than an error.
func (p *Parser) FirstFrame(buf []byte) (frame.FrameInfo, bool, error) {
	if len(buf) < 12 {
		return frame.FrameInfo{}, false, nil
	}
	c := detectCarrier(buf)
	if c == carrierNone {
		return frame.FrameInfo{}, false, frame.ErrInvalidHeader
	}
	need := p.HeaderSize()
	if c != carrierBurst {
		need = dtsParser.HeaderSize()
	}
	if len(buf) < need {
		return frame.FrameInfo{}, false, nil
	}
	fi, err := p.ParseHeader(buf)
	if err != nil {
		return frame.FrameInfo{}, false, err
	}
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
