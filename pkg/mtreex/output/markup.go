package output

import (
	"bytes"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// YAMLFormatter renders the JSON document structure as YAML.
type YAMLFormatter struct {
	layout Layout
}

// SetLayout implements LayoutSetter.
func (f *YAMLFormatter) SetLayout(l Layout) { f.layout = l }

// Format writes d as a single YAML document with two-space indentation.
func (f *YAMLFormatter) Format(w *bytes.Buffer, d *mtree.Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(buildDocumentView(d, f.layout)); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// TOMLFormatter renders the JSON document structure as TOML. Entries become
// an [[entries]] array of tables, deep entries nest their attributes in an
// [entries.attributes] table.
type TOMLFormatter struct {
	layout Layout
}

// SetLayout implements LayoutSetter.
func (f *TOMLFormatter) SetLayout(l Layout) { f.layout = l }

// Format writes d as TOML.
func (f *TOMLFormatter) Format(w *bytes.Buffer, d *mtree.Document) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(buildDocumentView(d, f.layout))
}

func init() {
	Register("yaml", func() Formatter { return &YAMLFormatter{layout: LayoutShallow} })
	Register("toml", func() Formatter { return &TOMLFormatter{layout: LayoutShallow} })
}

var (
	_ LayoutSetter = (*YAMLFormatter)(nil)
	_ LayoutSetter = (*TOMLFormatter)(nil)
)
