// Copyright 2019 Lanikai Labs. All rights reserved.

// Package color converts between the pixel layouts used by capture devices,
// the RGB frames passed through the pipeline, and the planar Y'CbCr input
// expected by video encoders.
package color

import (
	"image"
	stdcolor "image/color"
	"math"

	"github.com/lanikai/alohacam/internal/media"
)

// ToYCbCr converts one RGB pixel to studio-swing Y'CbCr using the BT.601
// matrix:
//
//	Y  =  16 + ( 65.481 R + 128.553 G +  24.966 B) / 255
//	Cb = 128 + (-37.797 R -  74.203 G + 112.000 B) / 255
//	Cr = 128 + (112.000 R -  93.786 G -  18.214 B) / 255
//
// Each channel is rounded, then clamped to [0, 255].
func ToYCbCr(r, g, b uint8) (y, cb, cr uint8) {
	fr, fg, fb := float32(r), float32(g), float32(b)

	fy := 16 + (65.481*fr+128.553*fg+24.966*fb)/255
	fcb := 128 + (-37.797*fr-74.203*fg+112.000*fb)/255
	fcr := 128 + (112.000*fr-93.786*fg-18.214*fb)/255

	return clamp(fy), clamp(fcb), clamp(fcr)
}

func clamp(v float32) uint8 {
	r := math.Round(float64(v))
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return uint8(r)
}

// FrameToYCbCr fills dst with the Y'CbCr planes of src. dst must have the
// same dimensions as src and a 4:4:4 or 4:2:0 subsample ratio. For 4:2:0,
// each chroma sample is the rounded mean of its 2x2 block.
func FrameToYCbCr(dst *image.YCbCr, src *media.RawFrame) {
	w, h := src.Width, src.Height

	switch dst.SubsampleRatio {
	case image.YCbCrSubsampleRatio444:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride():]
			yi := y * dst.YStride
			ci := y * dst.CStride
			for x := 0; x < w; x++ {
				dst.Y[yi+x], dst.Cb[ci+x], dst.Cr[ci+x] = ToYCbCr(row[3*x], row[3*x+1], row[3*x+2])
			}
		}

	case image.YCbCrSubsampleRatio420:
		cw, ch := (w+1)/2, (h+1)/2
		sumCb := make([]int, cw)
		sumCr := make([]int, cw)
		count := make([]int, cw)
		for cy := 0; cy < ch; cy++ {
			for i := range sumCb {
				sumCb[i], sumCr[i], count[i] = 0, 0, 0
			}
			for y := 2 * cy; y < 2*cy+2 && y < h; y++ {
				row := src.Pix[y*src.Stride():]
				yi := y * dst.YStride
				for x := 0; x < w; x++ {
					yy, cb, cr := ToYCbCr(row[3*x], row[3*x+1], row[3*x+2])
					dst.Y[yi+x] = yy
					sumCb[x/2] += int(cb)
					sumCr[x/2] += int(cr)
					count[x/2]++
				}
			}
			ci := cy * dst.CStride
			for cx := 0; cx < cw; cx++ {
				n := count[cx]
				dst.Cb[ci+cx] = uint8((sumCb[cx] + n/2) / n)
				dst.Cr[ci+cx] = uint8((sumCr[cx] + n/2) / n)
			}
		}

	default:
		panic("color: unsupported subsample ratio " + dst.SubsampleRatio.String())
	}
}

// YUYVToFrame converts packed YUYV 4:2:2 (as delivered by most webcams) to
// RGB. src must hold 2*dst.Width*dst.Height bytes.
func YUYVToFrame(dst *media.RawFrame, src []byte) {
	n := dst.Width * dst.Height
	for i, j := 0, 0; i+1 < n; i, j = i+2, j+4 {
		y0, u, y1, v := src[j], src[j+1], src[j+2], src[j+3]

		r, g, b := studioToRGB(y0, u, v)
		dst.Pix[3*i], dst.Pix[3*i+1], dst.Pix[3*i+2] = r, g, b

		r, g, b = studioToRGB(y1, u, v)
		dst.Pix[3*i+3], dst.Pix[3*i+4], dst.Pix[3*i+5] = r, g, b
	}
}

// studioToRGB inverts the BT.601 studio-swing transform in 16.16 fixed point.
func studioToRGB(y, cb, cr uint8) (uint8, uint8, uint8) {
	yy := (int32(y) - 16) * 76309 // 1.164
	u := int32(cb) - 128
	v := int32(cr) - 128

	r := (yy + 104597*v + 1<<15) >> 16          // 1.596
	g := (yy - 25675*u - 53279*v + 1<<15) >> 16 // 0.391, 0.813
	b := (yy + 132201*u + 1<<15) >> 16          // 2.018
	return clamp32(r), clamp32(g), clamp32(b)
}

func clamp32(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// ImageToFrame copies img into dst, which must have img's dimensions. JPEG
// decoder output (*image.YCbCr, full-range JFIF) takes a fast path.
func ImageToFrame(dst *media.RawFrame, img image.Image) {
	b := img.Bounds()

	switch src := img.(type) {
	case *image.YCbCr:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				yi := src.YOffset(b.Min.X+x, b.Min.Y+y)
				ci := src.COffset(b.Min.X+x, b.Min.Y+y)
				r, g, bb := stdcolor.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				dst.SetRGB(x, y, r, g, bb)
			}
		}

	case *image.RGBA:
		for y := 0; y < b.Dy(); y++ {
			row := src.Pix[y*src.Stride:]
			out := dst.Pix[y*dst.Stride():]
			for x := 0; x < b.Dx(); x++ {
				out[3*x], out[3*x+1], out[3*x+2] = row[4*x], row[4*x+1], row[4*x+2]
			}
		}

	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				c := stdcolor.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(stdcolor.RGBA)
				dst.SetRGB(x, y, c.R, c.G, c.B)
			}
		}
	}
}

// FrameToRGBA copies src into dst, an opaque RGBA image of the same size.
func FrameToRGBA(dst *image.RGBA, src *media.RawFrame) {
	for y := 0; y < src.Height; y++ {
		row := src.Pix[y*src.Stride():]
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < src.Width; x++ {
			out[4*x], out[4*x+1], out[4*x+2], out[4*x+3] = row[3*x], row[3*x+1], row[3*x+2], 0xff
		}
	}
}
