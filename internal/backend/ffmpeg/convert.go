package ffmpeg

import (
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/media"
)

// converter scales decoded pictures to RGBA at their native size. The
// scale context follows the source geometry and pixel format.
type converter struct {
	ssc        *astiav.SoftwareScaleContext
	dst        *astiav.Frame
	srcW, srcH int
	srcPix     astiav.PixelFormat
}

func (c *converter) ensure(src *astiav.Frame) error {
	w, h, pix := src.Width(), src.Height(), src.PixelFormat()
	if c.ssc != nil && w == c.srcW && h == c.srcH && pix == c.srcPix {
		return nil
	}
	c.Close()

	ssc, err := astiav.CreateSoftwareScaleContext(w, h, pix, w, h, astiav.PixelFormatRgba,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear))
	if err != nil {
		return fmt.Errorf("scale context %dx%d %s: %w", w, h, pix, err)
	}
	dst := astiav.AllocFrame()
	dst.SetWidth(w)
	dst.SetHeight(h)
	dst.SetPixelFormat(astiav.PixelFormatRgba)
	if err := dst.AllocBuffer(1); err != nil {
		dst.Free()
		ssc.Free()
		return fmt.Errorf("%w: rgba frame: %w", backend.ErrAllocFailed, err)
	}

	c.ssc, c.dst = ssc, dst
	c.srcW, c.srcH, c.srcPix = w, h, pix
	return nil
}

// Convert produces a tightly packed RGBA picture. PTS is left for the
// caller to stamp.
func (c *converter) Convert(f *media.RawFrame) (*media.Picture, error) {
	src, ok := f.Native.(*astiav.Frame)
	if !ok || src == nil {
		return nil, fmt.Errorf("%w: not a decoded frame", backend.ErrConversion)
	}
	if err := c.ensure(src); err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrConversion, err)
	}
	if err := c.ssc.ScaleFrame(src, c.dst); err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrConversion, err)
	}

	pic := media.NewPicture(c.srcW, c.srcH)
	if _, err := c.dst.ImageCopyToBuffer(pic.Pix, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrConversion, err)
	}
	return pic, nil
}

// Close frees the scale context.
func (c *converter) Close() error {
	if c.dst != nil {
		c.dst.Free()
		c.dst = nil
	}
	if c.ssc != nil {
		c.ssc.Free()
		c.ssc = nil
	}
	return nil
}
