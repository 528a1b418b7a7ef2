package output

import (
	"bytes"
	"encoding/xml"
	"regexp"
	"time"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// xmlName matches keyword names that are usable as XML element and
// attribute names.
var xmlName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._-]*$`)

// XMLFormatter renders the document as XML.
//
// In the shallow layout every entry is a single <entry> element carrying
// the path and attributes as XML attributes. In the deep layout every
// attribute becomes a child element, booleans render as
// <ignore enabled="true"/> and list values as repeated <item> children.
// Modes are octal text in both layouts; None values are omitted.
type XMLFormatter struct {
	layout Layout
}

// SetLayout implements LayoutSetter.
func (f *XMLFormatter) SetLayout(l Layout) {
	f.layout = l
}

// Format writes the formatted output to the buffer.
func (f *XMLFormatter) Format(w *bytes.Buffer, d *mtree.Document) error {
	w.WriteString(xml.Header)

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: "mtree"}}
	if f.layout == LayoutDeep {
		root.Attr = append(root.Attr, xmlAttr("layout", string(LayoutDeep)))
	}
	if err := enc.EncodeToken(root); err != nil {
		return err
	}

	if err := f.encodeHeader(enc, d.Header); err != nil {
		return err
	}

	for _, e := range d.Entries() {
		var err error
		if f.layout == LayoutDeep {
			err = encodeDeepEntry(enc, e)
		} else {
			err = encodeShallowEntry(enc, e)
		}
		if err != nil {
			return err
		}
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	w.WriteByte('\n')
	return nil
}

func (f *XMLFormatter) encodeHeader(enc *xml.Encoder, h mtree.Header) error {
	if h.IsZero() {
		return nil
	}
	start := xml.StartElement{Name: xml.Name{Local: "header"}}
	fields := h.Fields()

	if f.layout != LayoutDeep {
		for _, kv := range fields {
			start.Attr = append(start.Attr, xmlAttr(kv[0], kv[1]))
		}
		return encodeEmpty(enc, start)
	}

	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, kv := range fields {
		if err := encodeText(enc, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func encodeShallowEntry(enc *xml.Encoder, e mtree.Entry) error {
	start := xml.StartElement{Name: xml.Name{Local: "entry"}}
	start.Attr = append(start.Attr, xmlAttr("path", e.Path))

	var odd [][2]string
	for _, key := range e.Attrs.Keys() {
		v := e.Attrs[key]
		if mtree.IsNone(v) {
			continue
		}
		text := xmlValueText(v)
		if !xmlName.MatchString(key) || key == "path" {
			odd = append(odd, [2]string{key, text})
			continue
		}
		start.Attr = append(start.Attr, xmlAttr(key, text))
	}

	if len(odd) == 0 {
		return encodeEmpty(enc, start)
	}

	// Keywords that cannot be XML attribute names become child elements.
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, kv := range odd {
		kw := xml.StartElement{
			Name: xml.Name{Local: "keyword"},
			Attr: []xml.Attr{xmlAttr("name", kv[0]), xmlAttr("value", kv[1])},
		}
		if err := encodeEmpty(enc, kw); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func encodeDeepEntry(enc *xml.Encoder, e mtree.Entry) error {
	start := xml.StartElement{Name: xml.Name{Local: "entry"}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := encodeText(enc, "path", e.Path); err != nil {
		return err
	}

	for _, key := range e.Attrs.Keys() {
		v := e.Attrs[key]
		if mtree.IsNone(v) {
			continue
		}

		el := xml.StartElement{Name: xml.Name{Local: key}}
		if !xmlName.MatchString(key) || key == "path" {
			el = xml.StartElement{
				Name: xml.Name{Local: "keyword"},
				Attr: []xml.Attr{xmlAttr("name", key)},
			}
		}

		var err error
		switch val := v.(type) {
		case bool:
			el.Attr = append(el.Attr, xmlAttr("enabled", boolText(val)))
			err = encodeEmpty(enc, el)
		case []string:
			err = encodeList(enc, el, val)
		default:
			err = encodeTextElement(enc, el, xmlValueText(v))
		}
		if err != nil {
			return err
		}
	}

	return enc.EncodeToken(start.End())
}

func encodeList(enc *xml.Encoder, el xml.StartElement, items []string) error {
	if len(items) == 0 {
		return encodeEmpty(enc, el)
	}
	if err := enc.EncodeToken(el); err != nil {
		return err
	}
	for _, item := range items {
		if err := encodeText(enc, "item", item); err != nil {
			return err
		}
	}
	return enc.EncodeToken(el.End())
}

func encodeText(enc *xml.Encoder, name, text string) error {
	return encodeTextElement(enc, xml.StartElement{Name: xml.Name{Local: name}}, text)
}

func encodeTextElement(enc *xml.Encoder, el xml.StartElement, text string) error {
	if err := enc.EncodeToken(el); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(text)); err != nil {
		return err
	}
	return enc.EncodeToken(el.End())
}

// encodeEmpty writes an element with no content.
func encodeEmpty(enc *xml.Encoder, el xml.StartElement) error {
	if err := enc.EncodeToken(el); err != nil {
		return err
	}
	return enc.EncodeToken(el.End())
}

func xmlAttr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// xmlValueText renders values for XML. Times use RFC 3339 with nanoseconds
// rather than mtree's epoch form.
func xmlValueText(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339Nano)
	}
	return attrText(v)
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func init() {
	Register("xml", func() Formatter {
		return &XMLFormatter{layout: LayoutShallow}
	})
}

// Ensure XMLFormatter implements Formatter.
var (
	_ Formatter    = (*XMLFormatter)(nil)
	_ LayoutSetter = (*XMLFormatter)(nil)
)
