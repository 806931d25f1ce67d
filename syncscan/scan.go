/*
NAME
  scan.go

DESCRIPTION
  scan.go implements Scanner, a Trie paired with a 65536-entry bit booster
  that lets ScanPos/ScanShift skip most non-matching positions in a byte
  buffer with a single table lookup instead of walking the trie bit by bit.

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package syncscan

// boosterBits is the number of distinct 16-bit prefixes the booster can
// hold a decision for: one bit per possible uint16 value.
const boosterBits = 1 << 16

// Scanner pairs an optimized Trie with a booster table that records, for
// every possible 16-bit prefix, whether some accepted sequence could start
// with it. ScanPos/ScanShift use the booster to skip quickly over
// non-matching positions and fall back to the trie only when the booster
// says a 16-bit prefix might match.
type Scanner struct {
	trie    Trie
	booster [boosterBits / 32]uint32
}

// NewScanner builds a Scanner from t. t is optimized internally; the
// original is left untouched.
func NewScanner(t Trie) *Scanner {
	t = t.Optimize()
	s := &Scanner{trie: t}
	if t.IsEmpty() {
		return s
	}
	s.buildBooster(0, 0, 0)
	return s
}

// set marks the 16-bit prefix word as accepted in the booster.
func (s *Scanner) set(word uint32) {
	s.booster[word>>5] |= 1 << (31 - (word & 0x1f))
}

// buildBooster floods all 16-bit prefixes reachable from trie node n,
// where word holds the depth most-significant bits decided so far.
func (s *Scanner) buildBooster(n int, word uint32, depth uint) {
	if depth == 16 {
		s.set(word)
		return
	}
	l, r := s.trie.nodes[n].children[0], s.trie.nodes[n].children[1]

	switch l {
	case allow:
		s.floodAllow(word<<(16-depth), depth)
	case deny:
	default:
		s.buildBooster(l, word<<1, depth+1)
	}
	switch r {
	case allow:
		s.floodAllow((word<<1|1)<<(16-depth-1), depth+1)
	case deny:
	default:
		s.buildBooster(r, word<<1|1, depth+1)
	}
}

// floodAllow marks every 16-bit prefix that extends the depth known bits in
// word as accepted, because the trie says anything following is a match.
func (s *Scanner) floodAllow(word uint32, depth uint) {
	if depth >= 16 {
		s.set(word & 0xffff)
		return
	}
	n := uint32(1) << (16 - depth)
	base := word & 0xffff
	for i := uint32(0); i < n; i++ {
		s.set(base | i)
	}
}

// boosted reports whether the 16-bit big-endian prefix at buf[0:2] might
// begin an accepted sequence. It never returns a false negative.
func (s *Scanner) boosted(buf []byte) bool {
	word := uint32(buf[0])<<8 | uint32(buf[1])
	return s.booster[word>>5]&(1<<(31-(word&0x1f))) != 0
}

// ScanPos returns the offset of the first position in buf at which the
// scanner's trie matches, or -1 if there is none. buf must be at least
// trie.SyncSize() bytes for a match to be possible at any given position.
func (s *Scanner) ScanPos(buf []byte) int {
	size := s.trie.SyncSize()
	if s.trie.IsEmpty() || len(buf) < size {
		return -1
	}
	limit := len(buf) - size + 1
	if len(buf) >= 2 {
		for pos := 0; pos < limit; pos++ {
			if len(buf)-pos >= 2 {
				if !s.boosted(buf[pos:]) {
					continue
				}
			}
			if s.trie.IsSync(buf[pos:]) {
				return pos
			}
		}
		return -1
	}
	for pos := 0; pos < limit; pos++ {
		if s.trie.IsSync(buf[pos:]) {
			return pos
		}
	}
	return -1
}

// ScanShift scans forward through buf the way ScanPos does, but returns the
// number of leading bytes that can be safely dropped (the shift amount)
// rather than the absolute match offset: len(buf) when no match is found,
// so the caller can discard everything it scanned.
func (s *Scanner) ScanShift(buf []byte) int {
	pos := s.ScanPos(buf)
	if pos < 0 {
		return len(buf)
	}
	return pos
}

// Trie returns the optimized trie the scanner was built from.
func (s *Scanner) Trie() Trie { return s.trie }
