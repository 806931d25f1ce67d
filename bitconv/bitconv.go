/*
NAME
  bitconv.go

DESCRIPTION
  bitconv.go converts compressed audio bitstreams between the byte/word
  packings used by AC-3/DTS transports: plain bytes (BE8), big-endian
  16-bit words (BE16, the same byte order as BE8), byte-swapped 16-bit
  words (LE16) and bit-packed 14-bit words (LE14/BE14, used by some
  S/PDIF-over-I2S DTS transports that only carry 14 usable bits per
  16-bit slot).

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package bitconv converts compressed audio bitstream data between byte
// and word packings: BE8 (plain bytes), BE16 (the same byte order as BE8,
// just viewed as 16-bit words), LE16 (byte-swapped 16-bit words) and
// BE14/LE14 (14 significant bits per 16-bit word, used to carry DTS over
// links that can only pass 14 clean bits per sample slot).
package bitconv

import "github.com/ausocean/avsync/frame"

// Kind re-exports frame.BitstreamKind so callers need not import frame
// just to name a packing.
type Kind = frame.BitstreamKind

const (
	BE8  = frame.KindBE8
	LE16 = frame.KindLE16
	BE16 = frame.KindBE16
	LE14 = frame.KindLE14
	BE14 = frame.KindBE14
)

// Convert converts src, packed as from, into the to packing, appending the
// result to dst, and returns the extended slice. Convert never mutates
// src. The 7-byte/8-byte relationship between the BE8/16 family and the
// 14-bit family means the converted length is not simply len(src): every
// 7 input bytes of an 8-bit form expand to 8 output bytes of a 14-bit
// form (four 16-bit words of 14 usable bits each) and vice versa, mirroring
// valib's bs_conv_8_14be family.
func Convert(dst []byte, src []byte, from, to Kind) []byte {
	if from == to {
		return append(dst, src...)
	}
	switch from {
	case BE8:
		switch to {
		case BE16:
			return append(dst, src...) // BE16 is BE8's own byte order, just read as 16-bit words
		case LE16:
			return convSwab16(dst, src)
		case BE14:
			return conv8to14(dst, src, true)
		case LE14:
			return conv8to14(dst, src, false)
		}
	case BE16:
		switch to {
		case BE8:
			return append(dst, src...)
		case LE16:
			return convSwab16(dst, src)
		case BE14:
			return conv8to14(dst, src, true)
		case LE14:
			return conv8to14(dst, src, false)
		}
	case LE16:
		switch to {
		case BE8:
			return convSwab16(dst, src)
		case BE16:
			return convSwab16(dst, src)
		case BE14, LE14:
			// Normalize to BE8 first, then to the requested 14-bit form.
			be8 := convSwab16(nil, src)
			return conv8to14(dst, be8, to == BE14)
		}
	case BE14:
		switch to {
		case BE8, BE16:
			return conv14to8(dst, src, true)
		case LE16:
			be8 := conv14to8(nil, src, true)
			return convSwab16(dst, be8)
		case LE14:
			be8 := conv14to8(nil, src, true)
			return conv8to14(dst, be8, false)
		}
	case LE14:
		switch to {
		case BE8, BE16:
			return conv14to8(dst, src, false)
		case LE16:
			be8 := conv14to8(nil, src, false)
			return convSwab16(dst, be8)
		case BE14:
			be8 := conv14to8(nil, src, false)
			return conv8to14(dst, be8, true)
		}
	}
	panic("bitconv: unsupported conversion")
}

// convSwab16 byte-swaps src two bytes at a time, zero-padding a trailing
// odd byte, mirroring bs_conv_swab16.
func convSwab16(dst []byte, src []byte) []byte {
	n := len(src)
	for i := 0; i+1 < n; i += 2 {
		dst = append(dst, src[i+1], src[i])
	}
	if n&1 != 0 {
		dst = append(dst, 0, src[n-1])
	}
	return dst
}

// conv8to14 repacks 7-byte groups of plain 8-bit bytes into 8-byte groups
// of 14-bit words (one 14-bit payload in the low bits of each 16-bit word,
// with be selecting the word's byte order), mirroring
// bs_conv_8_14be/bs_conv_8_14le.
func conv8to14(dst []byte, src []byte, be bool) []byte {
	for len(src) > 0 {
		var in [7]byte
		n := copy(in[:], src)
		src = src[n:]

		// 7 bytes (56 bits) hold exactly four 14-bit words; extract them
		// MSB-first directly from the raw bytes.
		var words [4]uint16
		bitPos := 0
		get14 := func() uint16 {
			var v uint16
			for i := 0; i < 14; i++ {
				byteIdx := bitPos / 8
				var bit byte
				if byteIdx < len(in) {
					shift := 7 - uint(bitPos%8)
					bit = (in[byteIdx] >> shift) & 1
				}
				v = v<<1 | uint16(bit)
				bitPos++
			}
			return v
		}
		words[0] = get14()
		words[1] = get14()
		words[2] = get14()
		words[3] = get14()

		for _, w := range words {
			if be {
				dst = append(dst, byte(w>>8), byte(w))
			} else {
				dst = append(dst, byte(w), byte(w>>8))
			}
		}
	}
	return dst
}

// conv14to8 is the inverse of conv8to14: it packs the low 14 bits of each
// 16-bit word in src, 4 words at a time, back into 7 bytes, mirroring
// bs_conv_14be_8/bs_conv_14le_8.
func conv14to8(dst []byte, src []byte, be bool) []byte {
	for len(src) >= 2 {
		var words [4]uint16
		count := 0
		for count < 4 && len(src) >= 2 {
			var w uint16
			if be {
				w = uint16(src[0])<<8 | uint16(src[1])
			} else {
				w = uint16(src[1])<<8 | uint16(src[0])
			}
			words[count] = w & 0x3fff
			src = src[2:]
			count++
		}

		var out [7]byte
		bitPos := 0
		put14 := func(v uint16) {
			for i := 13; i >= 0; i-- {
				bit := byte(v>>uint(i)) & 1
				byteIdx := bitPos / 8
				if byteIdx >= len(out) {
					break
				}
				shift := 7 - uint(bitPos%8)
				if bit != 0 {
					out[byteIdx] |= 1 << shift
				}
				bitPos++
			}
		}
		for i := 0; i < count; i++ {
			put14(words[i])
		}
		outBytes := (bitPos + 7) / 8
		dst = append(dst, out[:outBytes]...)
	}
	return dst
}
