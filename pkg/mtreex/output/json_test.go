package output

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

type decodedDocument struct {
	Header   map[string]string `json:"header" yaml:"header" toml:"header"`
	Entries  []map[string]any  `json:"entries" yaml:"entries" toml:"entries"`
	Summary  Summary           `json:"summary" yaml:"summary" toml:"summary"`
	Warnings []string          `json:"warnings" yaml:"warnings" toml:"warnings"`
}

func TestJSONFormatter_Shallow(t *testing.T) {
	out := format(t, &JSONFormatter{layout: LayoutShallow}, testDocument(t))

	var doc decodedDocument
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	assert.Equal(t, "root", doc.Header["user"])
	assert.Equal(t, "/srv", doc.Header["tree"])
	assert.Equal(t, "2024-01-16T10:30:00Z", doc.Header["date"])
	require.Len(t, doc.Entries, 6)
	assert.Equal(t, 6, doc.Summary.Entries)

	passwd := doc.Entries[2]
	assert.Equal(t, "/etc/passwd", passwd["path"])
	assert.Equal(t, "file", passwd["type"])
	assert.Equal(t, "0644", passwd["mode"])
	assert.Equal(t, float64(1024), passwd["size"])
	assert.Equal(t, "abcd", passwd["sha256"])

	shadow := doc.Entries[3]
	assert.Equal(t, true, shadow["optional"])

	sudoers := doc.Entries[4]
	assert.Equal(t, []any{"uchg", "nodump"}, sudoers["flags"])
}

func TestJSONFormatter_Deep(t *testing.T) {
	out := format(t, &JSONFormatter{layout: LayoutDeep}, testDocument(t))

	var doc decodedDocument
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Entries, 6)

	bin := doc.Entries[5]
	assert.Equal(t, "/bin", bin["path"])
	attrs, ok := bin["attributes"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "link", attrs["type"])
	assert.Equal(t, "usr/bin", attrs["link"])
	assert.Equal(t, "0777", attrs["mode"])
	assert.NotContains(t, attrs, "path")
}

func TestJSONFormatter_NoHeaderAndWarnings(t *testing.T) {
	doc, err := mtree.Parse("f type=file color=blue uname=none\n")
	require.NoError(t, err)

	out := format(t, &JSONFormatter{}, doc)
	assert.NotContains(t, out, `"header"`)
	assert.NotContains(t, out, "uname")

	var decoded decodedDocument
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Warnings, 1)
	assert.Contains(t, decoded.Warnings[0], "color")
	assert.Equal(t, "blue", decoded.Entries[0]["color"])
}

func TestJSONLFormatter(t *testing.T) {
	out := format(t, &JSONLFormatter{layout: LayoutShallow}, testDocument(t))

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	for _, line := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		assert.Contains(t, entry, "path")
	}
	assert.Contains(t, lines[1], `"path":"/etc"`)

	empty := format(t, &JSONLFormatter{}, mtree.NewDocument(mtree.Header{}))
	assert.Empty(t, empty)
}

func TestYAMLFormatter(t *testing.T) {
	out := format(t, &YAMLFormatter{layout: LayoutShallow}, testDocument(t))

	var doc decodedDocument
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))

	assert.Equal(t, "build01", doc.Header["machine"])
	require.Len(t, doc.Entries, 6)
	assert.Equal(t, "/etc/shadow", doc.Entries[3]["path"])
	assert.Equal(t, "0600", doc.Entries[3]["mode"])
	assert.Equal(t, 512, doc.Entries[3]["size"])
	assert.Equal(t, int64(1636), doc.Summary.Bytes)

	deep := format(t, &YAMLFormatter{layout: LayoutDeep}, testDocument(t))
	assert.Contains(t, deep, "attributes:")
}

func TestTOMLFormatter(t *testing.T) {
	out := format(t, &TOMLFormatter{layout: LayoutShallow}, testDocument(t))
	assert.Contains(t, out, "[[entries]]")

	var doc decodedDocument
	require.NoError(t, toml.Unmarshal([]byte(out), &doc))

	assert.Equal(t, "root", doc.Header["user"])
	require.Len(t, doc.Entries, 6)
	assert.Equal(t, "/etc/passwd", doc.Entries[2]["path"])
	assert.Equal(t, int64(1024), doc.Entries[2]["size"])
	assert.Equal(t, []any{"uchg", "nodump"}, doc.Entries[4]["flags"])
	assert.Equal(t, 6, doc.Summary.Entries)

	deep := format(t, &TOMLFormatter{layout: LayoutDeep}, testDocument(t))
	assert.Contains(t, deep, "[entries.attributes]")

	empty := format(t, &TOMLFormatter{}, mtree.NewDocument(mtree.Header{}))
	var none decodedDocument
	require.NoError(t, toml.Unmarshal([]byte(empty), &none))
	assert.Empty(t, none.Entries)
}
