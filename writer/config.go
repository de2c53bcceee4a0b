package writer

import (
	"time"

	"github.com/wudi/pdfstream/compliance"
	"github.com/wudi/pdfstream/observability"
)

type PDFVersion string

const (
	PDF13 PDFVersion = "1.3"
	PDF14 PDFVersion = "1.4"
	PDF15 PDFVersion = "1.5"
	PDF16 PDFVersion = "1.6"
	PDF17 PDFVersion = "1.7"
)

// Info holds the document information dictionary entries.
type Info struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
	Producer string
	// CreationDate defaults to the time the Document is created.
	CreationDate time.Time
}

type Config struct {
	Version PDFVersion
	// Filters maps a stream kind (see filters.Kind*) to encoder names.
	Filters          map[string][]string
	CompressionLevel int
	// Deterministic derives the file identifier and XMP ids from document
	// content only, so equal input gives byte-identical output.
	Deterministic bool
	Profiles      []compliance.Profile
	// Tagged writes /MarkInfo and expects a structure tree.
	Tagged bool
	Lang   string
	// ICCProfile is embedded as the destination profile of the output intent.
	ICCProfile      []byte
	OutputCondition string
	// Metadata forces an XMP stream even when no profile requires one.
	Metadata bool
	// OmitID leaves /ID out of the trailer. PDF/A and PDF/X documents keep it.
	OmitID       bool
	Info         Info
	Logger       observability.Logger
	Tracer       observability.Tracer
	Interceptors []Interceptor
}

// Interceptor observes every indirect object as it is serialized.
type Interceptor interface {
	BeforeWrite(obj Object) error
	AfterWrite(obj Object, bytesWritten int64) error
}

const defaultProducer = "pdfstream"

func (c Config) withDefaults() Config {
	if c.Version == "" {
		c.Version = PDF17
	}
	if c.Logger == nil {
		c.Logger = observability.NopLogger{}
	}
	if c.Tracer == nil {
		c.Tracer = observability.NopTracer()
	}
	if c.Info.Producer == "" {
		c.Info.Producer = defaultProducer
	}
	if c.Info.CreationDate.IsZero() {
		if c.Deterministic {
			c.Info.CreationDate = time.Unix(0, 0).UTC()
		} else {
			c.Info.CreationDate = time.Now()
		}
	}
	return c
}
