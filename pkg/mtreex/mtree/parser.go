package mtree

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/jamesainslie/mtreex/pkg/mtreex/logging"
)

var (
	headerLine  = regexp.MustCompile(`^#\s*(user|machine|tree|date):\s*(.*?)\s*$`)
	commentLine = regexp.MustCompile(`^\s*(#.*)?$`)
	popLine     = regexp.MustCompile(`^\.\.?/?$`)
)

// headerDateLayouts are tried in order for the "# date:" header.
var headerDateLayouts = []string{time.ANSIC, time.RFC3339, time.RFC3339Nano, time.UnixDate}

// Option configures a Parser.
type Option func(*Parser)

// WithStrict makes two items that resolve to the same path a fatal
// ErrDuplicatePath instead of the later one replacing the earlier.
func WithStrict(strict bool) Option {
	return func(p *Parser) {
		p.strict = strict
	}
}

// WithUnescapeNames decodes \ooo escapes in item names.
func WithUnescapeNames(unescape bool) Option {
	return func(p *Parser) {
		p.unescape = unescape
	}
}

// WithLogger sets the logger unknown keywords and replaced entries are reported to.
func WithLogger(l *logging.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// Parser turns manifest text into a Document. A Parser holds only its
// options and may be shared between goroutines.
type Parser struct {
	strict   bool
	unescape bool
	logger   *logging.Logger
}

// NewParser returns a parser with the given options applied.
func NewParser(opts ...Option) *Parser {
	p := &Parser{logger: logging.Get("parser")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses text with default options.
func Parse(text string) (*Document, error) {
	return NewParser().Parse(text)
}

// line is one logical line with the physical line number it starts on.
type line struct {
	num  int
	text string
}

// splitLines splits text into logical lines, joining any line that ends
// in a backslash (optionally followed by blanks) with the next one.
func splitLines(text string) []line {
	physical := strings.Split(text, "\n")
	lines := make([]line, 0, len(physical))

	var (
		buf   strings.Builder
		start int
		open  bool
	)
	for i, raw := range physical {
		raw = strings.TrimSuffix(raw, "\r")
		if !open {
			start = i + 1
			buf.Reset()
		}
		trimmed := strings.TrimRight(raw, " \t")
		if strings.HasSuffix(trimmed, `\`) && i < len(physical)-1 {
			buf.WriteString(strings.TrimSuffix(trimmed, `\`))
			buf.WriteByte(' ')
			open = true
			continue
		}
		buf.WriteString(raw)
		open = false
		lines = append(lines, line{num: start, text: buf.String()})
	}
	return lines
}

// parseState is the per-call mutable state of one parse.
type parseState struct {
	doc     *Document
	current string
	globals Attributes
	// closed is set when a blank line ended the header block. Only then
	// is a later header line an error.
	closed bool
}

// Parse parses a complete manifest. On error the returned document is nil
// and the error is a *ParseError wrapping one of the package sentinels.
func (p *Parser) Parse(text string) (*Document, error) {
	lines := splitLines(text)

	header, body, err := parseHeader(lines)
	if err != nil {
		return nil, err
	}

	st := &parseState{
		doc:     NewDocument(header),
		current: "/",
		globals: Attributes{},
		closed:  body > 0 && strings.TrimSpace(lines[body-1].text) == "",
	}
	for _, ln := range lines[body:] {
		if err := p.parseLine(st, ln); err != nil {
			return nil, err
		}
	}

	p.logger.Debug("parsed manifest", "entries", st.doc.Len(), "warnings", len(st.doc.warnings))
	return st.doc, nil
}

// parseHeader reads the leading comment block and returns the header and
// the index of the first body line.
func parseHeader(lines []line) (Header, int, error) {
	var h Header
	for i, ln := range lines {
		if strings.TrimSpace(ln.text) == "" {
			return h, i + 1, nil
		}
		m := headerLine.FindStringSubmatch(ln.text)
		if m == nil {
			if commentLine.MatchString(ln.text) {
				continue
			}
			// No header block; the body starts here.
			return h, i, nil
		}
		if err := setHeaderField(&h, m[1], m[2]); err != nil {
			return Header{}, 0, &ParseError{Line: ln.num, Text: ln.text, Err: err}
		}
	}
	return h, len(lines), nil
}

func setHeaderField(h *Header, key, value string) error {
	switch key {
	case "user":
		h.User = value
	case "machine":
		h.Machine = value
	case "tree":
		if value != "" {
			h.Tree = path.Clean(value)
		}
	case "date":
		for _, layout := range headerDateLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				h.Date = t
				return nil
			}
		}
		return fmt.Errorf("%w: unparseable date %q", ErrMalformedHeader, value)
	}
	return nil
}

func (p *Parser) parseLine(st *parseState, ln line) error {
	if st.closed && headerLine.MatchString(ln.text) {
		return &ParseError{Line: ln.num, Text: ln.text, Err: fmt.Errorf("%w: header line after body start", ErrMalformedHeader)}
	}
	if commentLine.MatchString(ln.text) {
		return nil
	}

	trimmed := strings.TrimSpace(ln.text)
	if popLine.MatchString(trimmed) {
		st.current = path.Dir(st.current)
		return nil
	}

	fields := strings.Fields(trimmed)
	switch fields[0] {
	case "/set":
		attrs, err := p.keywords(st, ln, fields[1:])
		if err != nil {
			return err
		}
		st.globals.Merge(attrs)
		return nil

	case "/unset":
		if len(fields) == 2 && fields[1] == "all" {
			st.globals = Attributes{}
			return nil
		}
		for _, name := range fields[1:] {
			delete(st.globals, NormalizeKeyword(name))
		}
		return nil
	}

	return p.parseItem(st, ln, fields)
}

func (p *Parser) parseItem(st *parseState, ln line, fields []string) error {
	name := fields[0]
	if p.unescape {
		name = UnescapeName(name)
	}

	inline, err := p.keywords(st, ln, fields[1:])
	if err != nil {
		return err
	}
	attrs := st.globals.Clone()
	attrs.Merge(inline)

	entryPath := path.Clean(st.current + "/" + name)
	if attrs.Type() == TypeDir {
		st.current = entryPath
	}

	entry := Entry{Path: entryPath, Attrs: attrs, Line: ln.num}
	if _, exists := st.doc.Get(entryPath); exists {
		if p.strict {
			return &ParseError{Line: ln.num, Text: ln.text, Err: fmt.Errorf("%w: %s", ErrDuplicatePath, entryPath)}
		}
		st.doc.warn(fmt.Sprintf("line %d: %s replaces an earlier entry", ln.num, entryPath))
		p.logger.Warn("duplicate path replaced", "path", entryPath, "line", ln.num)
	}
	st.doc.Add(entry)
	return nil
}

// keywords coerces tokens and records any unknown keyword names on the document.
func (p *Parser) keywords(st *parseState, ln line, tokens []string) (Attributes, error) {
	attrs, unknown, err := ParseKeywords(tokens)
	if err != nil {
		return nil, &ParseError{Line: ln.num, Text: ln.text, Err: err}
	}
	for _, name := range unknown {
		if st.doc.noteUnknown(name) {
			st.doc.warn(fmt.Sprintf("line %d: unknown keyword %q", ln.num, name))
			p.logger.Warn("unknown keyword", "keyword", name, "line", ln.num)
		}
	}
	return attrs, nil
}
