/*
NAME
  adts.go

DESCRIPTION
  adts.go implements frame.FrameParser for AAC-ADTS bitstreams, grounded
  on spec.md §4.5.5 and informed (without being copied) by the deleted
  codec/aac/lex.go ADTSHeader reader this module superseded.

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package adts parses AAC-ADTS (Audio Data Transport Stream) frame
// headers.
package adts

import (
	"github.com/ausocean/avsync/frame"
	"github.com/ausocean/avsync/syncscan"
)

const (
	formatTag  = 5
	headerSize = 7
)

var sampleRateTbl = [16]int{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350, 0, 0, 0,
}

// Parser implements frame.FrameParser for AAC-ADTS.
type Parser struct {
	cached frame.FrameInfo
	have   bool
}

// New returns a new ADTS parser.
func New() *Parser { return &Parser{} }

// SyncInfo implements frame.FrameParser.
func (p *Parser) SyncInfo() frame.SyncInfo {
	return frame.SyncInfo{Trie: syncscan.New(0xfff, 12), Min: headerSize, Max: 8191}
}

// HeaderSize implements frame.FrameParser.
func (p *Parser) HeaderSize() int { return headerSize }

// ParseHeader implements frame.FrameParser.
func (p *Parser) ParseHeader(hdr []byte) (frame.FrameInfo, error) {
	if len(hdr) < headerSize {
		return frame.FrameInfo{}, frame.ErrBufferTooSmall
	}
	if hdr[0] != 0xff || hdr[1]&0xf0 != 0xf0 {
		return frame.FrameInfo{}, frame.ErrInvalidHeader
	}

	profile := hdr[2] >> 6 & 0x3
	sfIdx := hdr[2] >> 2 & 0xf
	channelCfg := (hdr[2]&0x1)<<2 | hdr[3]>>6&0x3

	if sfIdx >= 13 {
		return frame.FrameInfo{}, frame.ErrInvalidHeader
	}

	frameLength := (int(hdr[3]&0x3) << 11) | (int(hdr[4]) << 3) | int(hdr[5]>>5)
	if frameLength < headerSize {
		return frame.FrameInfo{}, frame.ErrInvalidHeader
	}

	_ = profile

	return frame.FrameInfo{
		Spk: frame.SpeakerLayout{
			Format:     formatTag,
			Mask:       channelMask(channelCfg),
			Relation:   false,
			SampleRate: sampleRateTbl[sfIdx],
		},
		FrameSize:  frameLength,
		HeaderSize: headerSize,
		NSamples:   1024,
		Bitstream:  frame.KindBE8,
		SPDIFType:  0, // ADTS has no IEC 61937 burst type of its own
	}, nil
}

func channelMask(cfg byte) uint32 {
	switch cfg {
	case 1:
		return 0x4
	case 2:
		return 0x3
	case 3:
		return 0x107
	case 4:
		return 0x137
	case 5, 6:
		return 0x3f
	case 7:
		return 0x63f
	default:
		return 0
	}
}

// CompareHeaders implements frame.FrameParser. It compares the fixed
// header fields (profile, sample rate index, channel config) as defined
// by adts_fixed_header, excluding the variable fields (buffer fullness,
// frame length, CRC).
func (p *Parser) CompareHeaders(hdr1, hdr2 []byte) bool {
	if len(hdr1) < headerSize || len(hdr2) < headerSize {
		return false
	}
	const mask2 = 0xfd // profile(2)+sfIdx(4)+private(1 excluded via CRC? keep)+channel MSB
	if hdr1[2]&mask2 != hdr2[2]&mask2 {
		return false
	}
	const mask3 = 0xc0 // channel config LSBs in byte 3
	return hdr1[3]&mask3 == hdr2[3]&mask3
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
