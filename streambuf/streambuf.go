/*
NAME
  streambuf.go

DESCRIPTION
  streambuf.go implements Buffer, a byte-stream synchronizer that
  establishes and maintains synchronization with a compressed audio
  bitstream via a three-syncpoint confirmation algorithm, then loads
  frames out of it in steady state. Grounded on
  original_source/valib/parser.cpp's StreamBuffer::sync/load_frame.

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package streambuf implements Buffer, a byte-stream synchronizer that
// locates and loads frames from a frame.FrameParser's format using a
// three-syncpoint confirmation algorithm. Once synchronized it loads
// frames in a fast steady-state path that trusts the previous frame's
// size until NextFrame or a header comparison says otherwise.
package streambuf

import (
	"github.com/pkg/errors"

	"github.com/ausocean/avsync/frame"
	"github.com/ausocean/utils/logging"
)

// noopLogger discards everything; the zero-value default so Buffer never
// needs a nil check on log.
type noopLogger struct{}

func (noopLogger) SetLevel(int8)                  {}
func (noopLogger) Debug(string, ...interface{})   {}
func (noopLogger) Info(string, ...interface{})    {}
func (noopLogger) Warning(string, ...interface{}) {}
func (noopLogger) Error(string, ...interface{})   {}
func (noopLogger) Fatal(string, ...interface{})   {}

// Option configures a Buffer constructed with New.
type Option func(*Buffer)

// WithLogger sets the logger a Buffer reports sync transitions and debris
// spans to. Without this option a Buffer logs nothing.
func WithLogger(log logging.Logger) Option {
	return func(b *Buffer) { b.log = log }
}

// Buffer holds bytes not yet claimed by a confirmed frame and tracks
// synchronization state against a frame.FrameParser.
type Buffer struct {
	parser frame.FrameParser
	log    logging.Logger

	buf []byte // accumulated, unconsumed bytes

	inSync    bool
	newStream bool
	frameInfo frame.FrameInfo
	frameSize int // confirmed size of the frame currently loaded, 0 if none
}

// New returns a Buffer that synchronizes against parser. maxFrameSize sizes
// the buffer's initial capacity to hold at least two maximal frames plus a
// following header without reallocating, mirroring the sizing rule
// documented in valib/parser.h; the buffer still grows past this if needed.
// It returns ErrShortBuffer if maxFrameSize is too small to ever hold a
// header, since synchronization would then be impossible.
func New(parser frame.FrameParser, maxFrameSize int, opts ...Option) (*Buffer, error) {
	if maxFrameSize < parser.HeaderSize() {
		return nil, ErrShortBuffer
	}
	b := &Buffer{
		parser: parser,
		log:    noopLogger{},
		buf:    make([]byte, 0, maxFrameSize*2+parser.HeaderSize()*2),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// NewStream reports whether the most recently loaded frame is the first
// frame of a newly (re)established sync, i.e. the stream's format may have
// changed.
func (b *Buffer) NewStream() bool { return b.newStream }

// InSync reports whether the buffer currently has a confirmed frame size
// and is loading frames in steady state.
func (b *Buffer) InSync() bool { return b.inSync }

// Push appends data to the buffer's internal store. Callers feed bytes in
// with Push and then call Load repeatedly until it reports false, meaning
// more data is needed.
func (b *Buffer) Push(data []byte) {
	b.buf = append(b.buf, data...)
}

// Load attempts to produce one frame from the buffered data. It reports
// ok=false if not enough data has been pushed yet to make a decision; while
// searching for sync it may already have discarded leading bytes that cannot
// begin a frame. This is the NotEnoughData case from the error taxonomy,
// represented structurally rather than as an error. frameData is a slice
// into the buffer's own storage and is only valid until the next Push or
// Load call.
func (b *Buffer) Load() (fi frame.FrameInfo, frameData []byte, ok bool, err error) {
	if b.inSync {
		fi, frameData, ok, err = b.loadSteady()
		if ok || err != nil || b.inSync {
			return fi, frameData, ok, err
		}
		// loadSteady detected a sync loss and already reset b.inSync.
	}
	return b.sync()
}

// loadSteady implements StreamBuffer::load_frame's steady-state path:
// reuse the cached header to confirm the next frame directly instead of
// rescanning for a syncpoint.
func (b *Buffer) loadSteady() (frame.FrameInfo, []byte, bool, error) {
	hs := b.parser.HeaderSize()
	if len(b.buf) < b.frameSize+hs {
		return frame.FrameInfo{}, nil, false, nil
	}

	next := b.buf[b.frameSize:]
	fi, ok, err := b.parser.NextFrame(next)
	if err != nil || !ok {
		b.log.Debug("stream sync lost", "frame_size", b.frameSize)
		b.inSync = false
		b.parser.Reset()
		return frame.FrameInfo{}, nil, false, nil
	}
	if len(b.buf) >= hs && len(next) >= hs &&
		!b.parser.CompareHeaders(b.buf[:hs], next[:hs]) {
		b.log.Debug("stream format changed")
		b.inSync = false
		b.parser.Reset()
		return frame.FrameInfo{}, nil, false, nil
	}

	out := b.buf[:b.frameSize]
	b.buf = b.buf[b.frameSize:]
	b.frameInfo = fi
	// A FrameSize of 0 means this format doesn't trust its header's own
	// size field (DTS); the interval established when sync was acquired
	// is constant for the rest of the stream and must be kept, not
	// overwritten with 0.
	if fi.FrameSize != 0 {
		b.frameSize = fi.FrameSize
	}
	b.newStream = false
	return b.frameInfo, out, true, nil
}

// sync implements StreamBuffer::sync: a three-point syncpoint
// confirmation scan. It looks for a syncword at p1, checks that a second
// syncword appears exactly frame_size (or within [min,max] if unknown)
// bytes later at p2, and a third syncword a further frame interval beyond
// that at p3, only then committing to the frame found at p1.
func (b *Buffer) sync() (frame.FrameInfo, []byte, bool, error) {
	si := b.parser.SyncInfo()
	scanSize := si.Trie.SyncSize()
	if scanSize == 0 {
		scanSize = 1
	}

	for p1 := 0; p1+scanSize <= len(b.buf); p1++ {
		if !si.Trie.IsSync(b.buf[p1:]) {
			continue
		}

		b.parser.Reset()
		fi1, ok, err := b.parser.FirstFrame(b.buf[p1:])
		if err != nil {
			continue
		}
		if !ok {
			// Not enough data yet to decide this candidate; it may still
			// become a valid syncpoint once more is pushed, so stop here
			// and keep everything from p1 onward rather than discarding it.
			if p1 > 0 {
				b.dropDebris(p1)
			}
			return frame.FrameInfo{}, nil, false, nil
		}

		// A FrameInfo with FrameSize 0 means the format (DTS is the only
		// one here) does not trust its header's own size field; the next
		// syncpoint must instead be searched for across the whole
		// [min_frame_size, max_frame_size] range, exactly as an unknown
		// frame size is handled in StreamBuffer::sync. Otherwise the
		// reported size is trusted and the search window collapses to the
		// single expected position.
		var p2 int
		var fi2 frame.FrameInfo
		var status syncStatus
		if fi1.FrameSize != 0 {
			p2, fi2, status = b.findSyncpoint(p1+fi1.FrameSize, 0, 0, si, fi1)
		} else {
			p2, fi2, status = b.findSyncpoint(p1, si.Min, si.Max, si, fi1)
		}
		if status == pending {
			if p1 > 0 {
				b.dropDebris(p1)
			}
			return frame.FrameInfo{}, nil, false, nil
		}
		if status == rejected {
			continue
		}
		// frameInterval is the gap discovered between the first two
		// confirmed syncpoints; for an unknown frame size it stands in for
		// fi1.FrameSize both below and as the buffer's established
		// steady-state frame size once sync is acquired.
		frameInterval := p2 - p1

		if fi2.FrameSize != 0 {
			_, _, status = b.findSyncpoint(p2+fi2.FrameSize, 0, 0, si, fi2)
		} else {
			_, _, status = b.findSyncpoint(p2, frameInterval, frameInterval, si, fi2)
		}
		if status == pending {
			if p1 > 0 {
				b.dropDebris(p1)
			}
			return frame.FrameInfo{}, nil, false, nil
		}
		if status == rejected {
			continue
		}

		if p1 > 0 {
			b.dropDebris(p1)
		}

		established := fi1.FrameSize
		if established == 0 {
			established = frameInterval
		}

		out := b.buf[:established]
		b.buf = b.buf[established:]
		b.frameInfo = fi1
		b.frameSize = established
		b.inSync = true
		b.newStream = true
		b.log.Debug("stream sync acquired", "info", fi1.StreamInfo())
		return fi1, out, true, nil
	}

	// No syncpoint confirmed anywhere in the buffer; retain at most one
	// scan window's worth of trailing bytes so a syncword split across
	// Push calls is not lost.
	if len(b.buf) > scanSize {
		b.dropDebris(len(b.buf) - scanSize + 1)
	}
	return frame.FrameInfo{}, nil, false, nil
}

// syncStatus distinguishes, for a single candidate position examined by
// findSyncpoint, whether it was confirmed, definitively rejected (try the
// next position), or left undecided because not enough data has been
// pushed yet (stop scanning; the caller must wait for more data rather
// than advance past this candidate).
type syncStatus int

const (
	rejected syncStatus = iota
	pending
	confirmed
)

// findSyncpoint looks, within [pos+min, pos+max], for a position at which
// the parser both recognizes a header and it agrees with prev's speaker
// layout and bitstream kind, the FrameInfo-level equivalent of
// CompareHeaders used because the two candidate headers being compared
// may be arbitrarily far apart in the buffer.
func (b *Buffer) findSyncpoint(pos, min, max int, si frame.SyncInfo, prev frame.FrameInfo) (int, frame.FrameInfo, syncStatus) {
	scanSize := si.Trie.SyncSize()
	if scanSize == 0 {
		scanSize = 1
	}
	lo, hi := pos+min, pos+max
	if lo < 0 {
		lo = 0
	}
	for p := lo; p <= hi; p++ {
		if p+scanSize > len(b.buf) {
			// The candidate window extends past what has been pushed so
			// far; it might still match once more data arrives.
			return 0, frame.FrameInfo{}, pending
		}
		if !si.Trie.IsSync(b.buf[p:]) {
			continue
		}
		fi, ok, err := b.parser.FirstFrame(b.buf[p:])
		if err != nil {
			continue
		}
		if !ok {
			return 0, frame.FrameInfo{}, pending
		}
		if fi.Spk != prev.Spk || fi.Bitstream != prev.Bitstream {
			continue
		}
		return p, fi, confirmed
	}
	return 0, frame.FrameInfo{}, rejected
}

// dropDebris removes n leading bytes from the buffer, logging them as
// discarded debris the way the original logs bytes skipped while
// resynchronizing.
func (b *Buffer) dropDebris(n int) {
	if n <= 0 {
		return
	}
	if n > len(b.buf) {
		n = len(b.buf)
	}
	b.log.Debug("dropping debris", "bytes", n)
	b.buf = b.buf[n:]
}

// Flush forces out whatever frame-sized or partial data remains buffered
// once no more input will arrive, clearing sync state. It reports ok=false
// if nothing remains. Flush cannot always reconstruct a byte-exact final
// SPDIF frame if the stream ended mid debris span; this mirrors a
// documented limitation of the original StreamBuffer for SPDIF sources.
func (b *Buffer) Flush() (data []byte, ok bool) {
	if len(b.buf) == 0 {
		return nil, false
	}
	out := b.buf
	b.buf = nil
	b.inSync = false
	b.frameSize = 0
	b.parser.Reset()
	return out, true
}

// Reset clears all buffered data and sync state, as if New had just been
// called.
func (b *Buffer) Reset() {
	b.buf = nil
	b.inSync = false
	b.newStream = false
	b.frameSize = 0
	b.parser.Reset()
}

// ErrShortBuffer is returned by New when the requested maxFrameSize cannot
// hold at least one header, which would make synchronization impossible.
var ErrShortBuffer = errors.Wrap(frame.ErrBufferTooSmall, "streambuf: capacity too small for max frame + header")
