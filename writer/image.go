package writer

import (
	"fmt"
	"io"

	"github.com/wudi/pdfstream/filters"
	"github.com/wudi/pdfstream/ir/raw"
)

// ImageXObject is an image resource. Its payload is either raw samples
// encoded by the configured filters or a pass-through JPEG/CCITT stream.
type ImageXObject struct {
	Stream
	// Name is the resource name, e.g. Im1.
	Name             string
	Width            int
	Height           int
	ColorSpace       string
	BitsPerComponent int
	SMask            *ImageXObject
	Interpolate      bool
}

func (im *ImageXObject) WriteTo(w io.Writer) (int64, error) {
	im.Dict.Set("Type", raw.NameLiteral("XObject"))
	im.Dict.Set("Subtype", raw.NameLiteral("Image"))
	im.Dict.Set("Width", raw.Int(im.Width))
	im.Dict.Set("Height", raw.Int(im.Height))
	im.Dict.Set("ColorSpace", raw.NameLiteral(im.ColorSpace))
	im.Dict.Set("BitsPerComponent", raw.Int(im.BitsPerComponent))
	if im.SMask != nil {
		im.Dict.Set("SMask", raw.RefTo(im.SMask.Ref()))
	}
	if im.Interpolate {
		im.Dict.Set("Interpolate", raw.Bool(true))
	}
	return im.Stream.WriteTo(w)
}

// ImageDesc describes decoded samples handed over by an image collaborator.
type ImageDesc struct {
	Width            int
	Height           int
	ColorSpace       string
	BitsPerComponent int
	Samples          []byte
	// Alpha holds one 8-bit coverage sample per pixel, or nil.
	Alpha       []byte
	Interpolate bool
}

func components(cs string) int {
	switch cs {
	case "DeviceGray":
		return 1
	case "DeviceRGB":
		return 3
	case "DeviceCMYK":
		return 4
	}
	return 0
}

func (d *Document) checkImage(w, h int, cs string, bpc int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidImage, w, h)
	}
	if components(cs) == 0 {
		return fmt.Errorf("%w: colour space %q", ErrInvalidImage, cs)
	}
	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("%w: %d bits per component", ErrInvalidImage, bpc)
	}
	return nil
}

func (d *Document) registerImage(im *ImageXObject) error {
	if err := d.UseColorSpaces([]string{im.ColorSpace}, "image"); err != nil {
		return err
	}
	d.AddDocumentOrderObject(im)
	im.Name = d.resourceName("Im")
	d.resources.Add("XObject", im.Name, im.ref)
	return nil
}

// NewImage creates an image XObject from raw samples, with an SMask when
// desc carries alpha.
func (d *Document) NewImage(desc ImageDesc) (*ImageXObject, error) {
	if err := d.fail(); err != nil {
		return nil, err
	}
	if err := d.checkImage(desc.Width, desc.Height, desc.ColorSpace, desc.BitsPerComponent); err != nil {
		return nil, err
	}
	row := (desc.Width*components(desc.ColorSpace)*desc.BitsPerComponent + 7) / 8
	if len(desc.Samples) != row*desc.Height {
		return nil, fmt.Errorf("%w: %d sample bytes, want %d", ErrInvalidImage, len(desc.Samples), row*desc.Height)
	}
	if desc.Alpha != nil && len(desc.Alpha) != desc.Width*desc.Height {
		return nil, fmt.Errorf("%w: %d alpha bytes, want %d", ErrInvalidImage, len(desc.Alpha), desc.Width*desc.Height)
	}
	im := &ImageXObject{
		Width:            desc.Width,
		Height:           desc.Height,
		ColorSpace:       desc.ColorSpace,
		BitsPerComponent: desc.BitsPerComponent,
		Interpolate:      desc.Interpolate,
	}
	if err := d.initStream(&im.Stream, filters.KindImage); err != nil {
		return nil, err
	}
	im.Write(desc.Samples)
	if desc.Alpha != nil {
		if err := d.checker.Transparency("image soft mask", "image"); err != nil {
			return nil, d.setErr(err)
		}
		mask := &ImageXObject{Width: desc.Width, Height: desc.Height, ColorSpace: "DeviceGray", BitsPerComponent: 8}
		if err := d.initStream(&mask.Stream, filters.KindImage); err != nil {
			return nil, err
		}
		mask.Write(desc.Alpha)
		d.AddDocumentOrderObject(mask)
		im.SMask = mask
	}
	if err := d.registerImage(im); err != nil {
		return nil, err
	}
	return im, nil
}

// NewImageJPEG embeds baseline JPEG data unchanged under DCTDecode.
func (d *Document) NewImageJPEG(data []byte, width, height int, cs string) (*ImageXObject, error) {
	if err := d.fail(); err != nil {
		return nil, err
	}
	if err := d.checkImage(width, height, cs, 8); err != nil {
		return nil, err
	}
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, fmt.Errorf("%w: missing JPEG SOI marker", ErrInvalidImage)
	}
	im := &ImageXObject{Width: width, Height: height, ColorSpace: cs, BitsPerComponent: 8}
	im.Dict = raw.Dict()
	im.Kind = filters.KindJPEG
	im.Write(data)
	im.AddAppliedFilter(filters.DCT{})
	encs, err := filters.ForKind(d.cfg.Filters, filters.KindJPEG, d.level())
	if err != nil {
		return nil, err
	}
	im.addFilters(encs)
	if cs == "DeviceCMYK" {
		// Adobe CMYK JPEGs store inverted samples.
		im.Dict.Set("Decode", raw.Numbers(1, 0, 1, 0, 1, 0, 1, 0))
	}
	if err := d.registerImage(im); err != nil {
		return nil, err
	}
	return im, nil
}

// NewImageCCITT embeds bilevel fax data unchanged under CCITTFaxDecode.
func (d *Document) NewImageCCITT(data []byte, p filters.CCITT) (*ImageXObject, error) {
	if err := d.fail(); err != nil {
		return nil, err
	}
	if err := d.checkImage(p.Columns, p.Rows, "DeviceGray", 1); err != nil {
		return nil, err
	}
	im := &ImageXObject{Width: p.Columns, Height: p.Rows, ColorSpace: "DeviceGray", BitsPerComponent: 1}
	im.Dict = raw.Dict()
	im.Kind = filters.KindTIFF
	im.Write(data)
	im.AddAppliedFilter(p)
	encs, err := filters.ForKind(d.cfg.Filters, filters.KindTIFF, d.level())
	if err != nil {
		return nil, err
	}
	im.addFilters(encs)
	if err := d.registerImage(im); err != nil {
		return nil, err
	}
	return im, nil
}

// FormXObject is a reusable content stream drawn with Do.
type FormXObject struct {
	Stream
	Name   string
	BBox   Rect
	Matrix *Matrix
	doc    *Document
}

// NewFormXObject creates a form whose content is written into its stream.
// It shares the document's resource dictionary.
func (d *Document) NewFormXObject(bbox Rect) (*FormXObject, error) {
	if err := d.fail(); err != nil {
		return nil, err
	}
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	f := &FormXObject{BBox: bbox, doc: d}
	if err := d.initStream(&f.Stream, filters.KindContent); err != nil {
		return nil, err
	}
	d.AddDocumentOrderObject(f)
	f.Name = d.resourceName("Fm")
	d.resources.Add("XObject", f.Name, f.ref)
	return f, nil
}

func (f *FormXObject) WriteTo(w io.Writer) (int64, error) {
	f.Dict.Set("Type", raw.NameLiteral("XObject"))
	f.Dict.Set("Subtype", raw.NameLiteral("Form"))
	f.Dict.Set("BBox", f.BBox.Array())
	if f.Matrix != nil {
		f.Dict.Set("Matrix", f.Matrix.Array())
	}
	f.Dict.Set("Resources", raw.RefTo(f.doc.resources.Ref()))
	return f.Stream.WriteTo(w)
}
