package contentstream

import "strings"

// TextRenderMode matches PDF text rendering modes set via Tr operator.
type TextRenderMode int

const (
	TextFill TextRenderMode = iota
	TextStroke
	TextFillStroke
	TextInvisible
	TextFillClip
	TextStrokeClip
	TextFillStrokeClip
	TextClip
)

// LineCap represents the line cap style (J operator).
type LineCap int

const (
	LineCapButt LineCap = iota
	LineCapRound
	LineCapSquare
)

// LineJoin represents the line join style (j operator).
type LineJoin int

const (
	LineJoinMiter LineJoin = iota
	LineJoinRound
	LineJoinBevel
)

// ColorSpace names a device colour space.
type ColorSpace string

const (
	DeviceGray ColorSpace = "DeviceGray"
	DeviceRGB  ColorSpace = "DeviceRGB"
	DeviceCMYK ColorSpace = "DeviceCMYK"
)

// Color is a colour value in a device colour space. Colors are comparable.
type Color struct {
	Space ColorSpace
	C     [4]float64
}

func Gray(g float64) Color          { return Color{Space: DeviceGray, C: [4]float64{g}} }
func RGB(r, g, b float64) Color     { return Color{Space: DeviceRGB, C: [4]float64{r, g, b}} }
func CMYK(c, m, y, k float64) Color { return Color{Space: DeviceCMYK, C: [4]float64{c, m, y, k}} }

// Components returns the colour's component values.
func (c Color) Components() []float64 {
	switch c.Space {
	case DeviceRGB:
		return c.C[:3]
	case DeviceCMYK:
		return c.C[:4]
	}
	return c.C[:1]
}

func (c Color) operator(stroke bool) string {
	op := "g"
	switch c.Space {
	case DeviceRGB:
		op = "rg"
	case DeviceCMYK:
		op = "k"
	}
	if stroke {
		return strings.ToUpper(op)
	}
	return op
}

// Path describes a graphics path made of subpaths.
type Path struct {
	Subpaths []Subpath
}

// Subpath describes a portion of a path.
type Subpath struct {
	Points []PathPoint
	Closed bool
}

// PathPoint identifies a path segment and its coordinates.
type PathPoint struct {
	X, Y                 float64
	Type                 PathPointType
	Control1X, Control1Y float64
	Control2X, Control2Y float64
}

// PathPointType enumerates path segment types.
type PathPointType int

const (
	PathMoveTo PathPointType = iota
	PathLineTo
	PathCurveTo
	PathClose
)
