package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/pipelined/flow"
)

// BitDepth16 is the bit depth of encoded wav files.
const BitDepth16 = 16

// ErrUnsupportedBitDepth is returned when wav bit depth is not supported.
var ErrUnsupportedBitDepth = errors.New("only 8, 16, 24 and 32 bit depth is supported")

// Wav codec. Audio is decoded into a frame with one row: every channel of
// the file is a frame channel and every sample frame is a column. Samples
// are scaled into [-1, 1] range.
func Wav() Codec {
	return Codec{
		Decode: decodeWav,
		Encode: encodeWav,
	}
}

func decodeWav(r io.ReadSeeker) (flow.Props, []float64, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return flow.Props{}, nil, fmt.Errorf("%w: wav is not valid", flow.ErrFormat)
	}
	switch decoder.BitDepth {
	case 8, 16, 24, 32:
	default:
		return flow.Props{}, nil, fmt.Errorf("%w: %d: %v", flow.ErrFormat, decoder.BitDepth, ErrUnsupportedBitDepth)
	}
	ib, err := decoder.FullPCMBuffer()
	if err != nil {
		return flow.Props{}, nil, fmt.Errorf("%w: %v", flow.ErrFormat, err)
	}
	numChannels := int(decoder.NumChans)
	if numChannels == 0 {
		return flow.Props{}, nil, fmt.Errorf("%w: wav has no channels", flow.ErrFormat)
	}
	props := flow.Props{
		Width:      len(ib.Data) / numChannels,
		Height:     1,
		Channels:   numChannels,
		SampleRate: int(decoder.SampleRate),
	}
	scale := float64(int(1) << (decoder.BitDepth - 1))
	// 8 bit samples are unsigned.
	var offset float64
	if decoder.BitDepth == 8 {
		offset = scale
	}
	samples := make([]float64, props.Size())
	for i := range samples {
		samples[i] = (float64(ib.Data[i]) - offset) / scale
	}
	return props, samples, nil
}

func encodeWav(w io.WriteSeeker, f *flow.Frame) error {
	p := f.Props()
	if p.SampleRate == 0 {
		return fmt.Errorf("%w: frame has no sample rate", flow.ErrFormat)
	}
	scale := float64(int(1)<<(BitDepth16-1) - 1)
	s := f.Samples()
	ib := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: p.Channels,
			SampleRate:  p.SampleRate,
		},
		Data:           make([]int, len(s)),
		SourceBitDepth: BitDepth16,
	}
	for i, v := range s {
		switch {
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		ib.Data[i] = int(v * scale)
	}
	encoder := wav.NewEncoder(w, p.SampleRate, BitDepth16, p.Channels, 1)
	if err := encoder.Write(ib); err != nil {
		return err
	}
	return encoder.Close()
}
