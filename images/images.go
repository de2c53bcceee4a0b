// Package images turns decoded rasters and JPEG files into image XObjects.
package images

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png" // register decoder
	"os"

	"golang.org/x/image/draw"

	"github.com/wudi/pdfstream/writer"
)

// Options controls how a raster is converted.
type Options struct {
	// MaxSize caps the larger dimension in pixels; bigger images are
	// resampled. Zero keeps the original size.
	MaxSize     int
	Interpolate bool
}

// FromImage converts src to 8-bit samples. Gray images stay DeviceGray,
// everything else becomes DeviceRGB. Translucent pixels produce a soft mask.
func FromImage(doc *writer.Document, src image.Image, opts Options) (*writer.ImageXObject, error) {
	src = resample(src, opts.MaxSize)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image")
	}
	desc := writer.ImageDesc{Width: w, Height: h, BitsPerComponent: 8, Interpolate: opts.Interpolate}

	if g, ok := src.(*image.Gray); ok {
		desc.ColorSpace = "DeviceGray"
		desc.Samples = make([]byte, 0, w*h)
		for y := 0; y < h; y++ {
			off := g.PixOffset(b.Min.X, b.Min.Y+y)
			desc.Samples = append(desc.Samples, g.Pix[off:off+w]...)
		}
		return doc.NewImage(desc)
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)
	desc.ColorSpace = "DeviceRGB"
	desc.Samples = make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	translucent := false
	for i := 0; i < w*h; i++ {
		px := nrgba.Pix[i*4 : i*4+4]
		desc.Samples = append(desc.Samples, px[0], px[1], px[2])
		alpha = append(alpha, px[3])
		if px[3] != 0xFF {
			translucent = true
		}
	}
	if translucent {
		desc.Alpha = alpha
	}
	return doc.NewImage(desc)
}

func resample(src image.Image, limit int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if limit <= 0 || (w <= limit && h <= limit) {
		return src
	}
	nw, nh := limit, h*limit/w
	if h > w {
		nw, nh = w*limit/h, limit
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	var dst draw.Image
	if _, ok := src.(*image.Gray); ok {
		dst = image.NewGray(image.Rect(0, 0, nw, nh))
	} else {
		dst = image.NewNRGBA(image.Rect(0, 0, nw, nh))
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// FromJPEG embeds JPEG data without recompressing it.
func FromJPEG(doc *writer.Document, data []byte) (*writer.ImageXObject, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read jpeg header: %w", err)
	}
	cs := "DeviceRGB"
	switch cfg.ColorModel {
	case color.GrayModel:
		cs = "DeviceGray"
	case color.CMYKModel:
		cs = "DeviceCMYK"
	}
	return doc.NewImageJPEG(data, cfg.Width, cfg.Height, cs)
}

func isJPEG(data []byte) bool { return len(data) > 2 && data[0] == 0xFF && data[1] == 0xD8 }

// Decode converts encoded image data. JPEG data small enough for
// opts.MaxSize passes through; other formats are decoded and converted.
func Decode(doc *writer.Document, data []byte, opts Options) (*writer.ImageXObject, error) {
	if isJPEG(data) {
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err == nil && (opts.MaxSize == 0 || max(cfg.Width, cfg.Height) <= opts.MaxSize) {
			return FromJPEG(doc, data)
		}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return FromImage(doc, img, opts)
}

// Load reads and decodes an image file.
func Load(doc *writer.Document, path string, opts Options) (*writer.ImageXObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	im, err := Decode(doc, data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return im, nil
}

// Cache hands out one XObject per distinct image content, so a picture
// used several times is embedded once.
type Cache struct {
	doc  *writer.Document
	opts Options
	seen map[[sha256.Size]byte]*writer.ImageXObject
}

func NewCache(doc *writer.Document, opts Options) *Cache {
	return &Cache{doc: doc, opts: opts, seen: make(map[[sha256.Size]byte]*writer.ImageXObject)}
}

// Load returns the XObject for the file at path, decoding it only when the
// same bytes have not been seen before.
func (c *Cache) Load(path string) (*writer.ImageXObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	if im, ok := c.seen[sum]; ok {
		return im, nil
	}
	im, err := Decode(c.doc, data, c.opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.seen[sum] = im
	return im, nil
}

// Len is the number of distinct images embedded.
func (c *Cache) Len() int { return len(c.seen) }
