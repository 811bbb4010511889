package collection

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/couchcryptid/lightning-strike-client/internal/domain"
)

// KMLDocument is a KML file with a single Document. The bytes around the
// Document and each direct child of it are kept verbatim, so an unmodified
// document serializes back to its input.
type KMLDocument struct {
	prefix   []byte // xml declaration and <kml ...> open tag
	open     []byte // <Document ...>
	close    []byte // </Document>
	empty    []byte // original self-contained form when there are no children
	children []kmlNode
	suffix   []byte // </kml> and anything after
}

type kmlNode struct {
	raw       []byte
	placemark bool
}

func (*KMLDocument) Shape() domain.Shape { return domain.ShapeKML }

// Len counts Placemarks.
func (d *KMLDocument) Len() int {
	n := 0
	for _, c := range d.children {
		if c.placemark {
			n++
		}
	}
	return n
}

// Placemarks returns the raw Placemark elements in document order.
func (d *KMLDocument) Placemarks() [][]byte {
	out := make([][]byte, 0, len(d.children))
	for _, c := range d.children {
		if c.placemark {
			out = append(out, c.raw)
		}
	}
	return out
}

func (d *KMLDocument) clone() *KMLDocument {
	cp := *d
	cp.children = append([]kmlNode(nil), d.children...)
	return &cp
}

type kmlCodec struct {
	format domain.Format
}

func (c kmlCodec) Parse(body []byte) (Value, error) {
	d, err := scanKML(body)
	if err != nil {
		return nil, parseErr(c.format, err)
	}
	return d, nil
}

// scanKML walks the token stream, recording byte offsets of the Document
// element and its direct children. Nesting: kml (1) > Document (2) > child (3).
func scanKML(body []byte) (*KMLDocument, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		d          = &KMLDocument{}
		depth      int
		sawRoot    bool
		inDoc      bool
		docDone    bool
		docStart   int64
		openEnd    int64
		childStart int64
		childPM    bool
	)

	for {
		before := dec.InputOffset()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		after := dec.InputOffset()

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case depth == 1:
				if sawRoot || t.Name.Local != "kml" {
					return nil, fmt.Errorf("unexpected root element <%s>", t.Name.Local)
				}
				sawRoot = true
			case depth == 2 && !docDone && !inDoc && t.Name.Local == "Document":
				inDoc = true
				docStart, openEnd = before, after
			case depth == 3 && inDoc:
				childStart = before
				childPM = t.Name.Local == "Placemark"
			}
		case xml.EndElement:
			switch {
			case depth == 3 && inDoc:
				d.children = append(d.children, kmlNode{raw: body[childStart:after], placemark: childPM})
			case depth == 2 && inDoc:
				inDoc, docDone = false, true
				d.prefix = body[:docStart]
				d.suffix = body[after:]
				if after == openEnd {
					// <Document/>
					d.open = selfClosingToOpen(body[docStart:openEnd])
					d.close = closeTag(d.open)
				} else {
					d.open = body[docStart:openEnd]
					d.close = body[before:after]
				}
				if len(d.children) == 0 {
					d.empty = body[docStart:after]
				}
			}
			depth--
		default:
			if depth == 2 && inDoc {
				d.children = append(d.children, kmlNode{raw: body[before:after]})
			}
		}
	}

	if !sawRoot {
		return nil, errors.New("missing <kml> root element")
	}
	if !docDone {
		return nil, errors.New("missing <Document> element")
	}
	return d, nil
}

func selfClosingToOpen(tag []byte) []byte {
	t := bytes.TrimSuffix(tag, []byte("/>"))
	t = bytes.TrimRight(t, " \t\r\n")
	out := make([]byte, 0, len(t)+1)
	out = append(out, t...)
	return append(out, '>')
}

// closeTag builds </name> from an open tag, keeping any namespace prefix.
func closeTag(open []byte) []byte {
	name := bytes.TrimPrefix(open, []byte("<"))
	if i := bytes.IndexAny(name, " \t\r\n/>"); i >= 0 {
		name = name[:i]
	}
	out := make([]byte, 0, len(name)+3)
	out = append(out, "</"...)
	out = append(out, name...)
	return append(out, '>')
}

func (c kmlCodec) Serialize(v Value) ([]byte, error) {
	d, ok := v.(*KMLDocument)
	if !ok {
		return nil, mismatch(c.format, v)
	}
	var buf bytes.Buffer
	buf.Write(d.prefix)
	switch {
	case len(d.children) > 0:
		buf.Write(d.open)
		for _, ch := range d.children {
			buf.Write(ch.raw)
		}
		buf.Write(d.close)
	case d.empty != nil:
		buf.Write(d.empty)
	default:
		buf.Write(bytes.TrimSuffix(d.open, []byte(">")))
		buf.WriteString("/>")
	}
	buf.Write(d.suffix)
	return buf.Bytes(), nil
}

// Merge appends other's Placemarks after base's children. A base with no
// Placemarks takes other's Document body.
func (c kmlCodec) Merge(base, other Value) (Value, error) {
	a, ok := base.(*KMLDocument)
	if !ok {
		return nil, mismatch(c.format, base)
	}
	b, ok := other.(*KMLDocument)
	if !ok {
		return nil, mismatch(c.format, other)
	}

	if b.Len() == 0 {
		return a.clone(), nil
	}
	if a.Len() == 0 {
		out := a.clone()
		out.open, out.close, out.empty = b.open, b.close, nil
		out.children = append([]kmlNode(nil), b.children...)
		return out, nil
	}

	out := a.clone()
	out.empty = nil
	for _, ch := range b.children {
		if ch.placemark {
			out.children = append(out.children, ch)
		}
	}
	return out, nil
}
