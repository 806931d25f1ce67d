/*
NAME
  main.go

DESCRIPTION
  avsync-probe is a minimal CLI that feeds a file through streambuf.Buffer
  and reports each frame it locates: sample rate, channel mask, bitstream
  kind, frame size, sample count, bitrate and S/PDIF burst type. Grounded on the teacher's cmd/looper and cmd/speaker, which
  configure a rotating file logger via lumberjack before running their
  main loop.

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ausocean/utils/logging"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/avsync/codec/codecutil"
	"github.com/ausocean/avsync/frame/ac3"
	"github.com/ausocean/avsync/frame/adts"
	"github.com/ausocean/avsync/frame/dts"
	"github.com/ausocean/avsync/frame/eac3"
	"github.com/ausocean/avsync/frame/mpa"
	"github.com/ausocean/avsync/frame/multi"
	"github.com/ausocean/avsync/streambuf"
)

var (
	logLevel  = flag.Int("log-level", int(logging.Info), "logging.Logger verbosity")
	logFile   = flag.String("log-file", "avsync-probe.log", "rotating log file path")
	chunkSize = flag.Int("chunk-size", 4096, "bytes read per scan iteration")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: avsync-probe [flags] <file>")
		os.Exit(2)
	}

	roller := &lumberjack.Logger{Filename: *logFile, MaxSize: 10, MaxBackups: 3}
	defer roller.Close()
	log := logging.New(int8(*logLevel), roller, true)

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatal("could not open input", "error", err)
	}
	defer f.Close()

	parser := multi.New(ac3.New(), eac3.New(), dts.New(), mpa.New(), adts.New())
	buf, err := streambuf.New(parser, parser.SyncInfo().Max, streambuf.WithLogger(log))
	if err != nil {
		log.Fatal("could not construct stream buffer", "error", err)
	}

	scanner := codecutil.NewByteScanner(f, make([]byte, *chunkSize))

	nframes := 0
	var chunk []byte
	for {
		chunk, err = scanner.Drain(chunk[:0])
		if err != nil && err != io.EOF {
			log.Fatal("read failed", "error", err)
		}
		if len(chunk) > 0 {
			buf.Push(chunk)
		}

		for {
			fi, data, ok, loadErr := buf.Load()
			if loadErr != nil {
				log.Error("parse error", "error", loadErr)
				break
			}
			if !ok {
				break
			}
			nframes++
			log.Info("frame", "n", nframes, "info", fi.StreamInfo(), "bytes", len(data))
		}

		if err == io.EOF {
			break
		}
	}

	if data, ok := buf.Flush(); ok {
		log.Info("flushed trailing data", "bytes", len(data))
	}

	fmt.Printf("%d frames decoded\n", nframes)
}
