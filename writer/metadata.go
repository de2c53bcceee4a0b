package writer

import (
	"bytes"
	"crypto/rand"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/wudi/pdfstream/ir/raw"
)

// idSeed hashes what identifies the document's content.
func (d *Document) idSeed() []byte {
	h, _ := blake2b.New(16, nil)
	in := d.cfg.Info
	for _, s := range []string{string(d.cfg.Version), in.Title, in.Author, in.Subject, in.Keywords, in.Creator, in.Producer} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	h.Write([]byte(in.CreationDate.UTC().Format(time.RFC3339)))
	fmt.Fprintf(h, "|%d|%d", d.pages.Count(), d.next)
	return h.Sum(nil)
}

// fileID returns the /ID pair: both halves equal the content hash when
// deterministic output is requested, otherwise the second is random.
func (d *Document) fileID() [2][]byte {
	seed := d.idSeed()
	if d.cfg.Deterministic {
		return [2][]byte{seed, seed}
	}
	inst := make([]byte, 16)
	if _, err := rand.Read(inst); err != nil {
		inst = seed
	}
	return [2][]byte{seed, inst}
}

func (d *Document) documentUUIDs() (uuid.UUID, uuid.UUID) {
	seed := d.idSeed()
	docID := uuid.NewSHA1(uuid.NameSpaceOID, seed)
	if d.cfg.Deterministic {
		return docID, uuid.NewSHA1(docID, []byte("instance"))
	}
	return docID, uuid.New()
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

// Metadata is the XMP packet stream referenced from the catalog.
type Metadata struct {
	Stream
}

func (d *Document) metadata() *Metadata {
	in := d.cfg.Info
	docID, instID := d.documentUUIDs()
	created := in.CreationDate.Format("2006-01-02T15:04:05-07:00")

	var b bytes.Buffer
	b.WriteString("<?xpacket begin=\"\xEF\xBB\xBF\" id=\"W5M0MpCehiHzreSzNTczkc9d\"?>\n")
	b.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/">` + "\n")
	b.WriteString(`<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` + "\n")
	b.WriteString(`<rdf:Description rdf:about=""` +
		` xmlns:dc="http://purl.org/dc/elements/1.1/"` +
		` xmlns:xmp="http://ns.adobe.com/xap/1.0/"` +
		` xmlns:pdf="http://ns.adobe.com/pdf/1.3/"` +
		` xmlns:xmpMM="http://ns.adobe.com/xap/1.0/mm/"`)
	if _, ok := d.checker.PDFA(); ok {
		b.WriteString(` xmlns:pdfaid="http://www.aiim.org/pdfa/ns/id/"`)
	}
	if d.checker.NeedsTagging() {
		b.WriteString(` xmlns:pdfuaid="http://www.aiim.org/pdfua/ns/id/"`)
	}
	b.WriteString(">\n")
	b.WriteString("<dc:format>application/pdf</dc:format>\n")
	if in.Title != "" {
		fmt.Fprintf(&b, "<dc:title><rdf:Alt><rdf:li xml:lang=\"x-default\">%s</rdf:li></rdf:Alt></dc:title>\n", xmlEscape(in.Title))
	}
	if in.Author != "" {
		fmt.Fprintf(&b, "<dc:creator><rdf:Seq><rdf:li>%s</rdf:li></rdf:Seq></dc:creator>\n", xmlEscape(in.Author))
	}
	if in.Subject != "" {
		fmt.Fprintf(&b, "<dc:description><rdf:Alt><rdf:li xml:lang=\"x-default\">%s</rdf:li></rdf:Alt></dc:description>\n", xmlEscape(in.Subject))
	}
	if in.Keywords != "" {
		fmt.Fprintf(&b, "<pdf:Keywords>%s</pdf:Keywords>\n", xmlEscape(in.Keywords))
	}
	fmt.Fprintf(&b, "<pdf:Producer>%s</pdf:Producer>\n", xmlEscape(in.Producer))
	if in.Creator != "" {
		fmt.Fprintf(&b, "<xmp:CreatorTool>%s</xmp:CreatorTool>\n", xmlEscape(in.Creator))
	}
	fmt.Fprintf(&b, "<xmp:CreateDate>%s</xmp:CreateDate>\n", created)
	fmt.Fprintf(&b, "<xmp:MetadataDate>%s</xmp:MetadataDate>\n", created)
	fmt.Fprintf(&b, "<xmpMM:DocumentID>uuid:%s</xmpMM:DocumentID>\n", docID)
	fmt.Fprintf(&b, "<xmpMM:InstanceID>uuid:%s</xmpMM:InstanceID>\n", instID)
	if p, ok := d.checker.PDFA(); ok {
		fmt.Fprintf(&b, "<pdfaid:part>%d</pdfaid:part>\n<pdfaid:conformance>%s</pdfaid:conformance>\n", p.Part(), p.Conformance())
	}
	if d.checker.NeedsTagging() {
		b.WriteString("<pdfuaid:part>1</pdfuaid:part>\n")
	}
	b.WriteString("</rdf:Description>\n</rdf:RDF>\n</x:xmpmeta>\n")
	b.WriteString("<?xpacket end=\"w\"?>")

	m := &Metadata{Stream: Stream{Dict: raw.Dict(), Kind: "metadata"}}
	m.Write(b.Bytes())
	m.Dict.Set("Type", raw.NameLiteral("Metadata"))
	m.Dict.Set("Subtype", raw.NameLiteral("XML"))
	return m
}
