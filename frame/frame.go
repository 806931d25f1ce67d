/*
NAME
  frame.go

DESCRIPTION
  frame.go declares the shared vocabulary every format-specific parser in
  avsync speaks: SpeakerLayout describes a channel/rate/format combination,
  FrameInfo describes a single decoded frame header, SyncInfo describes how
  a parser's syncwords can be recognized, and FrameParser is the interface
  streambuf and frame/multi drive.

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package frame defines the common data model and interfaces shared by
// avsync's per-format frame parsers (frame/ac3, frame/eac3, frame/dts,
// frame/mpa, frame/adts, frame/spdif, frame/multi).
package frame

import (
	"errors"
	"fmt"

	"github.com/ausocean/avsync/syncscan"
)

// Sentinel errors. These are the five recoverable error kinds described by
// the error taxonomy; NotEnoughData is deliberately absent here because it
// is never an error value (see streambuf.Buffer.Load, which returns a bool).
var (
	ErrSyncLost          = errors.New("avsync: sync lost")
	ErrInvalidHeader     = errors.New("avsync: invalid header")
	ErrUnsupportedFormat = errors.New("avsync: unsupported format")
	ErrBufferTooSmall    = errors.New("avsync: buffer too small")
	ErrCorruptFrame      = errors.New("avsync: corrupt frame")
)

// BitstreamKind identifies the byte/word packing a compressed frame is
// carried in, independent of its codec. Most formats are carried as plain
// big-endian bytes (BE8); AC-3, E-AC-3 and DTS can also arrive
// byte-swapped (LE16), and DTS additionally as BE16 or bit-packed into
// 14-bit words (BE14/LE14).
type BitstreamKind int

const (
	// KindNone means the bitstream kind is not applicable or not yet known.
	KindNone BitstreamKind = iota
	KindBE8
	KindLE16
	KindBE16
	KindLE14
	KindBE14
	// KindPCM marks raw linear PCM. No FrameParser reports it, and
	// spdifwrap's passthrough fallback does not use it either.
	KindPCM
)

func (k BitstreamKind) String() string {
	switch k {
	case KindBE8:
		return "8"
	case KindLE16:
		return "16le"
	case KindBE16:
		return "16be"
	case KindLE14:
		return "14le"
	case KindBE14:
		return "14be"
	case KindPCM:
		return "pcm"
	default:
		return "none"
	}
}

// SpeakerLayout describes the channel layout, sample rate and format of a
// decoded stream. Mask is a bitmask of logical speaker positions (the exact
// bit assignment is format-defined; frame/ac3 and frame/dts populate it
// from their acmod/amode tables). Relation indicates whether Mask should be
// interpreted as an absolute channel set (false) or, for some downmix
// indicators, a relative one (true) — mirrored from valib's
// RELATION/absolute distinction.
type SpeakerLayout struct {
	Format     int
	Mask       uint32
	Relation   bool
	SampleRate int
}

// IsUnknown reports whether spk carries no information, i.e. is the zero
// value.
func (spk SpeakerLayout) IsUnknown() bool {
	return spk == SpeakerLayout{}
}

// FrameInfo describes a single parsed frame header.
type FrameInfo struct {
	Spk       SpeakerLayout
	FrameSize int // bytes, including header
	HeaderSize int
	NSamples  int // samples per channel in this frame
	Bitstream BitstreamKind
	SPDIFType int // IEC 61937 Pc burst-info type this format maps to, 0 if none
}

// Bitrate returns the frame's bitrate in bits per second, or 0 if NSamples
// or the sample rate is unknown. It implements
// bitrate = frame_size*8*sample_rate/nsamples, the same formula
// HeaderParser::header_info uses to report a diagnostic bitrate.
func (fi FrameInfo) Bitrate() int {
	if fi.NSamples <= 0 || fi.Spk.SampleRate <= 0 {
		return 0
	}
	return fi.FrameSize * 8 * fi.Spk.SampleRate / fi.NSamples
}

// StreamInfo returns a one-line human-readable summary of fi, for logging
// and diagnostics. It is the Go equivalent of HeaderParser::header_info.
func (fi FrameInfo) StreamInfo() string {
	return fmt.Sprintf("rate=%dHz mask=%#x bitstream=%s frame_size=%d nsamples=%d bitrate=%dbps spdif_type=%d",
		fi.Spk.SampleRate, fi.Spk.Mask, fi.Bitstream, fi.FrameSize, fi.NSamples, fi.Bitrate(), fi.SPDIFType)
}

// SyncInfo describes how a parser recognizes the start of a frame, and
// what it already knows about frame sizing before a header is fully
// parsed.
type SyncInfo struct {
	Trie syncscan.Trie
	// Min and Max bound a frame's size in bytes. When a format has a fixed
	// frame size (e.g. most SPDIF-wrapped constant bitrate streams) Min
	// equals Max.
	Min, Max int
}

// Const reports whether s describes a constant frame size.
func (s SyncInfo) Const() bool { return s.Min == s.Max && s.Min > 0 }

// FrameParser is implemented by every format-specific parser
// (frame/ac3.Parser, frame/dts.Parser, ...) and by frame/multi.Parser,
// which composes several of them. StreamBuffer drives a FrameParser
// through FirstFrame/NextFrame as it scans an incoming byte stream.
type FrameParser interface {
	// SyncInfo returns the trie and size bounds this parser recognizes.
	SyncInfo() SyncInfo

	// HeaderSize returns the number of bytes of header this parser needs
	// to see before ParseHeader can succeed.
	HeaderSize() int

	// ParseHeader parses hdr, which is at least HeaderSize() bytes, into
	// fi. It reports ErrInvalidHeader if hdr does not describe a valid
	// frame of this format.
	ParseHeader(hdr []byte) (FrameInfo, error)

	// CompareHeaders reports whether hdr1 and hdr2 describe frames
	// belonging to the same logical stream (same format, rate, channel
	// layout), ignoring fields that are allowed to vary frame to frame
	// (CRC, some compression-mode flags). Both slices are at least
	// HeaderSize() bytes.
	CompareHeaders(hdr1, hdr2 []byte) bool

	// FirstFrame is called with a byte buffer known to start with an
	// accepted syncword; it attempts to establish the frame size of the
	// stream, which may require looking beyond HeaderSize() bytes (DTS
	// Master Audio substream detection is the reason this exists as a
	// distinct method from ParseHeader). It reports ok=false if buf does
	// not contain enough data to decide.
	FirstFrame(buf []byte) (fi FrameInfo, ok bool, err error)

	// NextFrame behaves like FirstFrame but may use state retained from a
	// previous call (e.g. a cached header) to avoid re-parsing.
	NextFrame(buf []byte) (fi FrameInfo, ok bool, err error)

	// Reset clears any state retained between NextFrame calls, forcing
	// the next call to behave like FirstFrame.
	Reset()

	// InSync reports whether the parser currently has a confirmed frame
	// size cached from a previous FirstFrame/NextFrame call.
	InSync() bool
}
