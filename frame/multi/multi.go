/*
NAME
  multi.go

DESCRIPTION
  multi.go implements frame.FrameParser as a union/dispatch over a set of
  child parsers, grounded on spec.md §4.6.

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package multi composes several frame.FrameParser implementations into
// one, presenting the union of their syncwords and dispatching header
// parsing to whichever child accepts it.
package multi

import (
	"github.com/ausocean/avsync/frame"
)

// Parser unions several format parsers. Once a child accepts a header,
// that child stays "active" across subsequent NextFrame calls until it
// fails to recognize a frame, at which point that same NextFrame call falls
// back to trying every child again.
type Parser struct {
	children []frame.FrameParser
	active   frame.FrameParser
	syncInfo frame.SyncInfo
}

// New returns a Parser that dispatches to whichever of children first
// accepts an incoming header. children must be non-empty.
func New(children ...frame.FrameParser) *Parser {
	p := &Parser{children: children}
	var si frame.SyncInfo
	minSet := false
	for _, c := range children {
		cs := c.SyncInfo()
		si.Trie = si.Trie.Or(cs.Trie)
		if !minSet || cs.Min < si.Min {
			si.Min = cs.Min
		}
		if cs.Max > si.Max {
			si.Max = cs.Max
		}
		minSet = true
	}
	p.syncInfo = si
	return p
}

// SyncInfo implements frame.FrameParser: the union of every child's trie,
// and the widest [min,max] span across all children.
func (p *Parser) SyncInfo() frame.SyncInfo { return p.syncInfo }

// HeaderSize implements frame.FrameParser: the largest header size any
// child might need, so callers always hand FirstFrame enough data for
// whichever child ends up matching.
func (p *Parser) HeaderSize() int {
	max := 0
	for _, c := range p.children {
		if hs := c.HeaderSize(); hs > max {
			max = hs
		}
	}
	return max
}

// ParseHeader implements frame.FrameParser by trying each child in turn
// and returning the first successful parse.
func (p *Parser) ParseHeader(hdr []byte) (frame.FrameInfo, error) {
	for _, c := range p.children {
		if fi, err := c.ParseHeader(hdr); err == nil {
			return fi, nil
		}
	}
	return frame.FrameInfo{}, frame.ErrInvalidHeader
}

// CompareHeaders implements frame.FrameParser: both headers must be
// accepted and agree according to the same child parser.
func (p *Parser) CompareHeaders(hdr1, hdr2 []byte) bool {
	for _, c := range p.children {
		if _, err := c.ParseHeader(hdr1); err != nil {
			continue
		}
		if _, err := c.ParseHeader(hdr2); err != nil {
			continue
		}
		return c.CompareHeaders(hdr1, hdr2)
	}
	return false
}

// FirstFrame tries the previously active child first (if any), then every
// child in order, and adopts whichever one accepts buf as the new active
// child.
func (p *Parser) FirstFrame(buf []byte) (frame.FrameInfo, bool, error) {
	if p.active != nil {
		if fi, ok, err := p.active.FirstFrame(buf); err == nil && ok {
			return fi, ok, nil
		}
	}
	for _, c := range p.children {
		if c == p.active {
			continue
		}
		c.Reset()
		fi, ok, err := c.FirstFrame(buf)
		if err != nil || !ok {
			continue
		}
		p.active = c
		return fi, true, nil
	}
	return frame.FrameInfo{}, false, nil
}

// NextFrame behaves like FirstFrame but prefers the active child, falling
// back to full dispatch only when the active child loses sync.
func (p *Parser) NextFrame(buf []byte) (frame.FrameInfo, bool, error) {
	if p.active != nil {
		fi, ok, err := p.active.NextFrame(buf)
		if err == nil && ok {
			return fi, true, nil
		}
		p.active.Reset()
		p.active = nil
	}
	return p.FirstFrame(buf)
}

// Reset implements frame.FrameParser: clears the active child and resets
// every child's internal state.
func (p *Parser) Reset() {
	for _, c := range p.children {
		c.Reset()
	}
	p.active = nil
}

// InSync implements frame.FrameParser.
func (p *Parser) InSync() bool { return p.active != nil && p.active.InSync() }

// Active returns the child parser currently locked onto the stream, or
// nil if none.
func (p *Parser) Active() frame.FrameParser { return p.active }
