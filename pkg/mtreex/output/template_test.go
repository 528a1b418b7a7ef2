package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateFormatter_Format_BasicOutput(t *testing.T) {
	formatter := NewTemplateFormatter("{{range .Entries}}{{.Path}}\n{{end}}")

	out := format(t, formatter, testDocument(t))
	assert.Equal(t, "/\n/etc\n/etc/passwd\n/etc/shadow\n/etc/sudoers\n/bin\n", out)
}

func TestTemplateFormatter_Default(t *testing.T) {
	f, err := Get("template")
	require.NoError(t, err)

	out := format(t, f, testDocument(t))
	assert.Contains(t, out, "file\t0644\t/etc/passwd\n")
	assert.Contains(t, out, "link\t0777\t/bin\n")
}

func TestTemplateFormatter_Funcs(t *testing.T) {
	formatter := NewTemplateFormatter(
		`{{.Header.User}} {{date .Header.Date "2006-01-02"}} {{.Summary.Entries}}
{{range .Entries}}{{if eq .Path "/etc/passwd"}}{{bytes .Attrs.Size}} {{attr . "uid"}} {{keyword . "sha256"}} {{octal (attr . "mode")}}{{end}}{{end}}`)

	out := format(t, formatter, testDocument(t))
	assert.Equal(t, "root 2024-01-16 6\n1.0 KiB 0 abcd 0644", out)
}

func TestTemplateFormatter_SetTemplate(t *testing.T) {
	formatter := NewTemplateFormatter("a")
	assert.Equal(t, "a", format(t, formatter, testDocument(t)))

	formatter.SetTemplate("{{len .Entries}}")
	assert.Equal(t, "6", format(t, formatter, testDocument(t)))
}

func TestTemplateFormatter_InvalidTemplate(t *testing.T) {
	formatter := NewTemplateFormatter("{{.Nope")
	assert.Error(t, formatter.Format(nil, testDocument(t)))
}

func TestTemplateFormatter_TimeFuncs(t *testing.T) {
	formatter := NewTemplateFormatter(
		`{{strftime "%Y-%m-%d %H:%M" .Header.Date}}|{{range .Entries}}{{with mtime .}}{{strftime "%H:%M:%S" .}}{{end}}{{end}}|{{strftime "%Y" (mtime (index .Entries 0))}}`)

	out := format(t, formatter, testDocument(t))
	assert.Equal(t, "2024-01-16 10:30|10:15:00|", out)
}
