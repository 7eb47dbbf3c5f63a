package main

import (
	"encoding/binary"
	"math"

	"github.com/cwbudde/algo-fxchain/dsp/core"
	"github.com/cwbudde/algo-fxchain/dsp/effectchain"
	"github.com/cwbudde/algo-fxchain/dsp/signal"
)

const bytesPerSample = 4

// chainStream renders a tone through the effect chain and encodes the
// result as interleaved float32 little-endian frames.
type chainStream struct {
	proc    *effectchain.Processor
	tone    *signal.Tone
	block   core.Block
	encoded []byte
	pending []byte
}

func newChainStream(proc *effectchain.Processor, tone *signal.Tone) (*chainStream, error) {
	spec, err := proc.Spec()
	if err != nil {
		return nil, err
	}
	return &chainStream{
		proc:    proc,
		tone:    tone,
		block:   core.NewBlock(spec.NumChannels, spec.MaxBlockSize),
		encoded: make([]byte, spec.NumChannels*spec.MaxBlockSize*bytesPerSample),
	}, nil
}

// Read fills p with rendered audio. It never returns an error; the stream
// is endless.
func (s *chainStream) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(s.pending) == 0 {
			s.render()
		}
		c := copy(p[n:], s.pending)
		s.pending = s.pending[c:]
		n += c
	}
	return n, nil
}

func (s *chainStream) render() {
	s.tone.Fill(s.block[0])
	for ch := 1; ch < len(s.block); ch++ {
		copy(s.block[ch], s.block[0])
	}
	s.proc.ProcessBlock(s.block)

	channels := len(s.block)
	for i := range s.block[0] {
		for ch := range channels {
			off := (i*channels + ch) * bytesPerSample
			v := float32(core.Clamp(s.block[ch][i], -1, 1))
			binary.LittleEndian.PutUint32(s.encoded[off:], math.Float32bits(v))
		}
	}
	s.pending = s.encoded
}
