/*
NAME
  config.go

DESCRIPTION
  config.go declares Config, the runtime configuration for an avsync
  pipeline: which format parsers are active, how DTS frames should be
  wrapped for S/PDIF output, and buffer-size overrides for streambuf.Buffer.
  Modelled on revid/config.Config's plain documented-struct style.

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config declares the runtime configuration for an avsync
// pipeline.
package config

import "github.com/ausocean/avsync/spdifwrap"

// Format identifies which frame parser to include in a frame/multi.Parser.
type Format int

const (
	FormatAC3 Format = iota
	FormatEAC3
	FormatDTS
	FormatMPA
	FormatADTS
	FormatSPDIF
)

// Config holds the settings needed to construct an avsync pipeline:
// which formats to recognize, how to wrap DTS for S/PDIF output, and
// buffer sizing overrides.
type Config struct {
	// Formats lists which format parsers frame/multi.Parser should
	// compose. An empty list is invalid; callers must name at least one
	// format.
	Formats []Format

	// DTSMode selects how DTS frames are packed into IEC 61937 bursts.
	// The zero value, spdifwrap.DTSModeAuto, uses WRAPPED when the frame
	// fits in the negotiated burst size and passes the frame through
	// otherwise; it never selects PADDED.
	DTSMode spdifwrap.DTSMode

	// DTSConv selects whether/how a DTS frame's bitstream is converted
	// before PADDED wrapping. The zero value, spdifwrap.DTSConvNone,
	// leaves the bitstream as 16-bit words.
	DTSConv spdifwrap.DTSConv

	// MaxFrameSize is a frame-size override, in bytes, for
	// streambuf.Buffer. streambuf.New uses its maxFrameSize only to size
	// the buffer's initial capacity: the buffer grows past it and does not
	// reject larger frames. Config applies no default when it is zero.
	MaxFrameSize int

	// LogLevel mirrors revid/config.Config's verbosity knob, holding one of
	// ausocean/utils/logging's level constants. avsync-probe does not read
	// it; it takes its level from its own -log-level flag.
	LogLevel int8
}

// Validate reports whether c is usable: at least one format must be
// configured.
func (c Config) Validate() error {
	if len(c.Formats) == 0 {
		return errNoFormats
	}
	return nil
}

var errNoFormats = configError("config: at least one Format must be set")

type configError string

func (e configError) Error() string { return string(e) }
