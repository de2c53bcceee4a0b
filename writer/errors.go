package writer

import (
	"errors"

	"github.com/wudi/pdfstream/filters"
	"github.com/wudi/pdfstream/xref"
)

var (
	ErrInvalidFilter    = filters.ErrInvalidFilter
	ErrUndefinedObject  = xref.ErrUndefinedObject
	ErrUnreservedObject = errors.New("object number was never reserved")
	ErrUnresolvedTarget = errors.New("link target never resolved")
	ErrInvalidRect      = errors.New("invalid rectangle")
	ErrMissingShading   = errors.New("pattern has no shading")
	ErrMissingAction    = errors.New("annotation has no action")
	ErrInvalidImage     = errors.New("invalid image")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrFinished         = errors.New("document already finished")
	ErrHeaderWritten    = errors.New("header already written")
)
