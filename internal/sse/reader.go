// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// MaxBlockSize is the largest incomplete block the splitter will buffer
// before giving up (1MB).
const MaxBlockSize = 1024 * 1024

// readChunkSize is the size of each read from the underlying stream.
const readChunkSize = 4 * 1024

// ErrBlockTooLarge is returned when a block grows past MaxBlockSize without
// a delimiter.
var ErrBlockTooLarge = errors.New("sse block exceeds maximum size")

// =============================================================================
// SPLITTER
// =============================================================================

// Splitter cuts a byte stream into delimited blocks. The incomplete tail of
// each write is kept until the next one, so a delimiter or a multi-byte rune
// split across two reads is reassembled before parsing.
type Splitter struct {
	buf []byte
}

// Write appends p and returns every block completed by it, in order.
func (s *Splitter) Write(p []byte) ([]string, error) {
	s.buf = append(s.buf, p...)

	var blocks []string
	delim := []byte(Delimiter)
	for {
		i := bytes.Index(s.buf, delim)
		if i < 0 {
			break
		}
		blocks = append(blocks, string(s.buf[:i]))
		s.buf = s.buf[i+len(delim):]
	}

	if n := s.Buffered(); n > MaxBlockSize {
		return blocks, fmt.Errorf("%w (%d bytes)", ErrBlockTooLarge, n)
	}

	// Release the consumed prefix once the buffer has been drained
	if len(s.buf) == 0 {
		s.buf = nil
	}
	return blocks, nil
}

// Flush returns whatever is left in the buffer and resets it.
func (s *Splitter) Flush() string {
	rest := string(s.buf)
	s.buf = nil
	return rest
}

// Buffered returns the number of bytes waiting for a delimiter.
func (s *Splitter) Buffered() int {
	return len(s.buf)
}

// =============================================================================
// READER
// =============================================================================

// Reader pulls parsed events from a stream.
type Reader struct {
	r       io.Reader
	split   Splitter
	pending []string
	chunk   []byte
	eof     bool
}

// NewReader creates a new event reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:     r,
		chunk: make([]byte, readChunkSize),
	}
}

// ReadEvent returns the next event with data. Blocks without data are
// skipped. When the stream ends, a trailing block without a delimiter is
// still parsed; after that io.EOF is returned.
func (r *Reader) ReadEvent() (Event, error) {
	for {
		for len(r.pending) > 0 {
			block := r.pending[0]
			r.pending = r.pending[1:]
			if ev, ok := ParseBlock(block); ok {
				return ev, nil
			}
		}

		if r.eof {
			return Event{}, io.EOF
		}

		n, err := r.r.Read(r.chunk)
		if n > 0 {
			blocks, splitErr := r.split.Write(r.chunk[:n])
			r.pending = append(r.pending, blocks...)
			if splitErr != nil {
				return Event{}, splitErr
			}
		}
		if err != nil {
			if err != io.EOF {
				return Event{}, err
			}
			r.eof = true
			if rest := r.split.Flush(); rest != "" {
				r.pending = append(r.pending, rest)
			}
		}
	}
}
