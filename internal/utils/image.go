package utils

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// BytesPerPixelRGB565 is the size of one RGB565 pixel.
const BytesPerPixelRGB565 = 2

// DecodeImage decodes a JPEG or PNG payload.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// PackRGB565 scales src to width x height and writes little-endian RGB565 pixels into dst.
// dst must hold at least width*height*2 bytes; the number of bytes written is returned.
func PackRGB565(dst []byte, src image.Image, width, height int) (int, error) {
	need := width * height * BytesPerPixelRGB565
	if len(dst) < need {
		return 0, fmt.Errorf("buffer too small: have %d, need %d", len(dst), need)
	}

	rgba, ok := src.(*image.RGBA)
	if !ok || rgba.Bounds().Dx() != width || rgba.Bounds().Dy() != height {
		rgba = image.NewRGBA(image.Rect(0, 0, width, height))
		xdraw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	}

	o := 0
	for y := 0; y < height; y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+width*4]
		for x := 0; x < width*4; x += 4 {
			r, g, b := uint16(row[x]), uint16(row[x+1]), uint16(row[x+2])
			px := (r>>3)<<11 | (g>>2)<<5 | b>>3
			dst[o] = byte(px)
			dst[o+1] = byte(px >> 8)
			o += 2
		}
	}
	return need, nil
}

// UnpackRGB565 converts a little-endian RGB565 buffer back to an RGBA image.
func UnpackRGB565(src []byte, width, height int) (*image.RGBA, error) {
	if len(src) < width*height*BytesPerPixelRGB565 {
		return nil, fmt.Errorf("frame too short: %d bytes for %dx%d", len(src), width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		px := uint16(src[2*i]) | uint16(src[2*i+1])<<8
		r := byte(px>>11) << 3
		g := byte(px>>5&0x3F) << 2
		b := byte(px&0x1F) << 3
		img.Pix[4*i] = r
		img.Pix[4*i+1] = g
		img.Pix[4*i+2] = b
		img.Pix[4*i+3] = 0xFF
	}
	return img, nil
}
