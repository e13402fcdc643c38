package codec

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/pipelined/flow"
)

const maxIntensity = 0xffff

// PNG codec. Grayscale images are decoded into single channel frames,
// everything else into RGBA frames. Samples are in [0, 1] range.
func PNG() Codec {
	return Codec{
		Decode: decodeImage(png.Decode),
		Encode: encodeImage(func(w io.Writer, m image.Image) error {
			return png.Encode(w, m)
		}),
	}
}

// JPEG codec.
func JPEG() Codec {
	return Codec{
		Decode: decodeImage(jpeg.Decode),
		Encode: encodeImage(func(w io.Writer, m image.Image) error {
			return jpeg.Encode(w, m, &jpeg.Options{Quality: 95})
		}),
	}
}

// GIF codec. Only the first image of animation is decoded.
func GIF() Codec {
	return Codec{
		Decode: decodeImage(gif.Decode),
		Encode: encodeImage(func(w io.Writer, m image.Image) error {
			return gif.Encode(w, m, nil)
		}),
	}
}

func decodeImage(decode func(io.Reader) (image.Image, error)) DecodeFunc {
	return func(r io.ReadSeeker) (flow.Props, []float64, error) {
		m, err := decode(r)
		if err != nil {
			return flow.Props{}, nil, fmt.Errorf("%w: %v", flow.ErrFormat, err)
		}
		b := m.Bounds()
		props := flow.Props{
			Width:    b.Dx(),
			Height:   b.Dy(),
			Channels: 4,
		}
		switch m.ColorModel() {
		case color.GrayModel, color.Gray16Model:
			props.Channels = 1
		}
		samples := make([]float64, 0, props.Size())
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := m.At(x, y)
				if props.Channels == 1 {
					g := color.Gray16Model.Convert(c).(color.Gray16)
					samples = append(samples, float64(g.Y)/maxIntensity)
					continue
				}
				n := color.NRGBA64Model.Convert(c).(color.NRGBA64)
				samples = append(samples,
					float64(n.R)/maxIntensity,
					float64(n.G)/maxIntensity,
					float64(n.B)/maxIntensity,
					float64(n.A)/maxIntensity,
				)
			}
		}
		return props, samples, nil
	}
}

func encodeImage(encode func(io.Writer, image.Image) error) EncodeFunc {
	return func(w io.WriteSeeker, f *flow.Frame) error {
		m, err := AsImage(f)
		if err != nil {
			return err
		}
		return encode(w, m)
	}
}

// AsImage converts the frame into an image. Frames with 1 channel become
// grayscale images, 3 and 4 channels become RGB(A) images.
func AsImage(f *flow.Frame) (image.Image, error) {
	p := f.Props()
	rect := image.Rect(0, 0, p.Width, p.Height)
	s := f.Samples()
	switch p.Channels {
	case 1:
		m := image.NewGray16(rect)
		for i, v := range s {
			m.Pix[2*i], m.Pix[2*i+1] = split(intensity(v))
		}
		return m, nil
	case 3, 4:
		m := image.NewNRGBA64(rect)
		for i := 0; i < p.Width*p.Height; i++ {
			px := s[i*p.Channels : (i+1)*p.Channels]
			a := uint16(maxIntensity)
			if p.Channels == 4 {
				a = intensity(px[3])
			}
			m.SetNRGBA64(i%p.Width, i/p.Width, color.NRGBA64{
				R: intensity(px[0]),
				G: intensity(px[1]),
				B: intensity(px[2]),
				A: a,
			})
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: %d channels cannot be encoded as image", flow.ErrFormat, p.Channels)
}

// intensity clamps the sample into [0, 1] range and scales it.
func intensity(v float64) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return maxIntensity
	}
	return uint16(v*maxIntensity + 0.5)
}

func split(v uint16) (uint8, uint8) {
	return uint8(v >> 8), uint8(v)
}
