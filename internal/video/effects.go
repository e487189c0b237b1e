package video

import (
	"image/color"

	"github.com/zsiec/duet/media"
)

// Effect is a color transform applied to every converted picture.
type Effect int32

const (
	EffectNone Effect = iota
	EffectGray
	EffectRed
	EffectGreen
	EffectBlue
	EffectTint
)

// tintCb is the blue-difference chroma forced by EffectTint.
const tintCb = 100

func (e Effect) String() string {
	switch e {
	case EffectGray:
		return "gray"
	case EffectRed:
		return "red"
	case EffectGreen:
		return "green"
	case EffectBlue:
		return "blue"
	case EffectTint:
		return "tint"
	default:
		return "none"
	}
}

// Toggle returns the effect that results from selecting next while e is
// active: selecting the active effect again turns it off.
func (e Effect) Toggle(next Effect) Effect {
	if e == next {
		return EffectNone
	}
	return next
}

// ApplyEffect rewrites pic in place. Alpha is left untouched.
func ApplyEffect(pic *media.Picture, e Effect) {
	if e == EffectNone || pic == nil {
		return
	}
	for y := 0; y < pic.Height; y++ {
		row := pic.Pix[y*pic.Stride : y*pic.Stride+pic.Width*4]
		for i := 0; i < len(row); i += 4 {
			px := row[i : i+3 : i+3]
			switch e {
			case EffectGray:
				avg := byte((int(px[0]) + int(px[1]) + int(px[2])) / 3)
				px[0], px[1], px[2] = avg, avg, avg
			case EffectRed:
				px[1], px[2] = 0, 0
			case EffectGreen:
				px[0], px[2] = 0, 0
			case EffectBlue:
				px[0], px[1] = 0, 0
			case EffectTint:
				yy, _, cr := color.RGBToYCbCr(px[0], px[1], px[2])
				px[0], px[1], px[2] = color.YCbCrToRGB(yy, tintCb, cr)
			}
		}
	}
}
