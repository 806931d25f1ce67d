/*
NAME
  spdifwrap.go

DESCRIPTION
  spdifwrap.go implements Wrapper, which packetizes compressed audio
  frames into IEC 61937 (S/PDIF) bursts, and Unwrapper, its inverse.
  Grounded on original_source/valib/parsers/spdif/spdif_wrapper.cpp (mode/
  conversion selection) and valib/filters/spdifer.cpp (packet layout and
  the null-data pause burst).

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package spdifwrap packetizes compressed audio frames into IEC 61937
// (S/PDIF) bursts and unwraps them back into raw frames.
package spdifwrap

import (
	"github.com/ausocean/avsync/bitconv"
	"github.com/ausocean/avsync/frame"
	"github.com/ausocean/avsync/frame/spdif"
	"github.com/ausocean/utils/logging"
)

// DTSMode selects how a DTS frame is packed into a burst, mirroring
// DTS_MODE_AUTO/WRAPPED/PADDED.
type DTSMode int

const (
	DTSModeAuto DTSMode = iota
	DTSModeWrapped
	DTSModePadded
)

// DTSConv selects whether a DTS frame's bitstream is converted before
// wrapping, mirroring DTS_CONV_NONE/16BIT/14BIT.
type DTSConv int

const (
	DTSConvNone DTSConv = iota
	DTSConvTo16
	DTSConvTo14
)

const (
	headerSize        = 8  // Pa(2) Pb(2) Pc(2) Pd(2)
	preambleZeros     = 8  // zero bytes before Pa/Pb
	burstPrefixSize   = preambleZeros + headerSize // full prefix: zero run + Pa/Pb/Pc/Pd
	maxSpdifFrameSize = 8192
)

// PauseBurst is the 24-byte IEC 61937 null-data burst used to keep an
// S/PDIF receiver locked during silence between frames, taken verbatim
// from spdifer.cpp's spdif_pause[] (8 zero preamble bytes, Pa/Pb sync,
// Pc=0 burst-info, Pd=0 length, then 8 bytes of payload padding).
var PauseBurst = []byte{
	0, 0, 0, 0, 0, 0, 0, 0,
	0x72, 0xf8, 0x1f, 0x4e,
	0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
}

// Wrapper packetizes frames into IEC 61937 bursts.
type Wrapper struct {
	log      logging.Logger
	mode     DTSMode
	conv     DTSConv
	spdifSize int // negotiated fixed burst size for the stream, 0 until known
}

// Option configures a Wrapper.
type Option func(*Wrapper)

// WithLogger sets the logger a Wrapper reports passthrough fallbacks to.
func WithLogger(log logging.Logger) Option {
	return func(w *Wrapper) { w.log = log }
}

// WithDTSMode sets how DTS frames are packed.
func WithDTSMode(m DTSMode) Option {
	return func(w *Wrapper) { w.mode = m }
}

// WithDTSConv sets whether/how a DTS frame's bitstream is converted
// before wrapping.
func WithDTSConv(c DTSConv) Option {
	return func(w *Wrapper) { w.conv = c }
}

type noopLogger struct{}

func (noopLogger) SetLevel(int8)                {}
func (noopLogger) Debug(string, ...interface{})   {}
func (noopLogger) Info(string, ...interface{})    {}
func (noopLogger) Warning(string, ...interface{}) {}
func (noopLogger) Error(string, ...interface{})   {}
func (noopLogger) Fatal(string, ...interface{})   {}

// NewWrapper returns a new Wrapper.
func NewWrapper(opts ...Option) *Wrapper {
	w := &Wrapper{log: noopLogger{}}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wrap packetizes one frame (fi describes it, data is its raw bytes) into
// an IEC 61937 burst, appending to dst. It implements
// SPDIFWrapper::process()'s mode/conversion selection:
//
//   - Non-DTS formats (AC-3, E-AC-3, MPEG audio) always use the WRAPPED
//     layout: the whole frame as payload, Pd = frame bit length.
//   - DTS frames choose WRAPPED vs PADDED based on mode and the inequality
//     size*8/7 <= spdif_frame_size-header_size (PADDED fits a 14-bit
//     converted frame in the negotiated burst size; WRAPPED does not need
//     conversion but requires no overrun of spdif_frame_size).
//   - If neither layout fits, Wrap falls back to PCM passthrough: the raw
//     frame bytes are emitted unwrapped, and ok is false, signalling the
//     caller that this frame could not be carried as a compressed burst.
func (w *Wrapper) Wrap(dst []byte, fi frame.FrameInfo, data []byte) (out []byte, ok bool) {
	if fi.SPDIFType == 0 {
		w.log.Warning("no spdif burst type for format, passthrough", "bitstream", fi.Bitstream)
		return append(dst, data...), false
	}

	if !isDTS(fi.SPDIFType) {
		return w.wrapSimple(dst, fi, data), true
	}
	return w.wrapDTS(dst, fi, data)
}

// isDTS reports whether spdifType is one of the IEC 61937 DTS burst types;
// only DTS needs wrap-mode/conversion selection, every other format
// always uses the plain WRAPPED layout. The burst type, not the bitstream
// kind, decides, since AC-3 and E-AC-3 can also arrive as LE16.
func isDTS(spdifType int) bool {
	return spdif.InnerType(spdifType) == spdif.InnerDTS
}

func (w *Wrapper) wrapSimple(dst []byte, fi frame.FrameInfo, data []byte) []byte {
	// SPDIF packets are fixed-size: 4 bytes per sample, independent of the
	// inner frame's actual compressed length, per spdif_header.cpp's
	// frame_size = nsamples*4.
	burstSize := 4 * fi.NSamples
	dst = appendPreamble(dst, fi.SPDIFType, len(data)*8)
	dst = append(dst, data...)
	return padTo(dst, burstSize)
}

// wrapDTS implements the DTS mode/conversion decision tree from
// SPDIFWrapper::process.
func (w *Wrapper) wrapDTS(dst []byte, fi frame.FrameInfo, data []byte) ([]byte, bool) {
	spdifFrameSize := w.spdifSize
	if spdifFrameSize == 0 {
		spdifFrameSize = maxSpdifFrameSize
	}

	wrappedFits := burstPrefixSize+len(data) <= spdifFrameSize
	paddedSize14 := (len(data)*8 + 6) / 7 // size*8/7 rounded up
	paddedFits := burstPrefixSize+paddedSize14 <= spdifFrameSize

	useWrapped := false
	switch w.mode {
	case DTSModeWrapped:
		useWrapped = true
	case DTSModePadded:
		useWrapped = false
	default: // Auto: WRAPPED whenever it fits
		// paddedFits tests the 14-bit-expanded size against the same limit,
		// so it never holds where wrappedFits does not: Auto never selects
		// PADDED, and a frame too large for WRAPPED is passed through.
		useWrapped = wrappedFits || !paddedFits
	}

	if useWrapped {
		if !wrappedFits {
			w.log.Warning("dts frame too large for spdif burst, passthrough", "size", len(data))
			return append(dst, data...), false
		}
		dst = appendPreamble(dst, fi.SPDIFType, len(data)*8)
		dst = append(dst, data...)
		return padTo(dst, spdifFrameSize), true
	}

	if !paddedFits {
		w.log.Warning("dts frame too large even 14-bit converted, passthrough", "size", len(data))
		return append(dst, data...), false
	}

	var converted []byte
	switch w.conv {
	case DTSConvTo14:
		converted = bitconv.Convert(nil, data, bitconv.BE8, bitconv.BE14)
	default:
		converted = bitconv.Convert(nil, data, bitconv.BE8, bitconv.BE16)
	}

	dst = appendPreamble(dst, fi.SPDIFType, len(converted)*8)
	before := len(dst)
	dst = append(dst, converted...)
	if w.conv == DTSConvTo14 && len(dst) > before+2 {
		// Correct the DTS syncword's third byte (offset 2) to the BE14
		// variant's 0xe8 after conversion, so the payload begins with the
		// 14-bit BE syncword 1f ff e8 00.
		dst[before+2] = 0xe8
	}
	return padTo(dst, spdifFrameSize), true
}

// appendPreamble writes the 8 zero bytes and the Pa/Pb/Pc/Pd header.
func appendPreamble(dst []byte, spdifType int, bitLength int) []byte {
	for i := 0; i < preambleZeros; i++ {
		dst = append(dst, 0)
	}
	dst = append(dst, 0x72, 0xf8, 0x1f, 0x4e)
	dst = append(dst, byte(spdifType), byte(spdifType>>8))
	dst = append(dst, byte(bitLength), byte(bitLength>>8))
	return dst
}

func padTo(dst []byte, size int) []byte {
	for len(dst) < size {
		dst = append(dst, 0)
	}
	return dst
}

// SetNegotiatedSize records the fixed burst size the downstream receiver
// has negotiated (e.g. from a prior constant-frame-size stream), used to
// decide whether WRAPPED or PADDED fits. A size of 0 reverts to
// maxSpdifFrameSize.
func (w *Wrapper) SetNegotiatedSize(size int) { w.spdifSize = size }

// Unwrapper reverses Wrapper: it strips the IEC 61937 preamble and returns
// the raw inner frame bytes plus which inner format produced it.
type Unwrapper struct {
	parser *spdif.Parser
}

// NewUnwrapper returns a new Unwrapper.
func NewUnwrapper() *Unwrapper {
	return &Unwrapper{parser: spdif.New()}
}

// Unwrap parses one IEC 61937 burst built by Wrap (the caller is expected
// to have already located its start, e.g. via streambuf using
// frame/spdif.Parser) and returns the inner frame's raw bytes and which
// format they are in. The burst starts at the 8-byte zero run Wrap's
// appendPreamble writes, not at Pa/Pb, matching frame/spdif.Parser's own
// header-offset convention.
func (u *Unwrapper) Unwrap(burst []byte) (inner spdif.Inner, data []byte, err error) {
	fi, err := u.parser.ParseHeader(burst)
	if err != nil {
		return spdif.InnerNone, nil, err
	}
	if fi.FrameSize > len(burst) {
		return spdif.InnerNone, nil, frame.ErrBufferTooSmall
	}
	inner = spdif.InnerType(fi.SPDIFType)
	// Pd holds the payload length in bits; the zero padding after it is
	// not part of the frame.
	end := burstPrefixSize + (int(burst[14])|int(burst[15])<<8+7)/8
	if end > fi.FrameSize {
		end = fi.FrameSize
	}
	payload := burst[burstPrefixSize:end]
	return inner, payload, nil
}
