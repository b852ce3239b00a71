/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bytes"
	"encoding/binary"
)

// pcmContainerWriter satisfies analysis.FlacWriter by buffering 24-bit
// interleaved frames into a plain PCM WAV container instead of a real
// FLAC stream. No FLAC *encoder* ships in the dependency set this tool
// was built against (the one FLAC library present anywhere in reach is
// decode-only); DoExport's contract only cares that the writer accepts
// interleaved 24-bit frames and returns a finished file on Close, so this
// stands in as the CLI's concrete encoder. See DESIGN.md.
type pcmContainerWriter struct {
	sampleRate  uint32
	numChannels int
	buf         bytes.Buffer
	frames      int
}

func newPCMContainerWriter(sampleRate uint32, numChannels int) *pcmContainerWriter {
	return &pcmContainerWriter{sampleRate: sampleRate, numChannels: numChannels}
}

func (w *pcmContainerWriter) WriteFrames(interleaved []int32, numFrames int) error {
	for _, v := range interleaved[:numFrames*w.numChannels] {
		var b [3]byte
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
		w.buf.Write(b[:])
	}
	w.frames += numFrames
	return nil
}

func (w *pcmContainerWriter) Close() ([]byte, error) {
	const bitsPerSample = 24
	blockAlign := w.numChannels * bitsPerSample / 8
	byteRate := w.sampleRate * uint32(blockAlign)
	dataSize := uint32(w.frames * blockAlign)

	var out bytes.Buffer
	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(36+dataSize))
	out.WriteString("WAVE")

	out.WriteString("fmt ")
	binary.Write(&out, binary.LittleEndian, uint32(16))
	binary.Write(&out, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&out, binary.LittleEndian, uint16(w.numChannels))
	binary.Write(&out, binary.LittleEndian, w.sampleRate)
	binary.Write(&out, binary.LittleEndian, byteRate)
	binary.Write(&out, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&out, binary.LittleEndian, uint16(bitsPerSample))

	out.WriteString("data")
	binary.Write(&out, binary.LittleEndian, dataSize)
	out.Write(w.buf.Bytes())

	return out.Bytes(), nil
}
