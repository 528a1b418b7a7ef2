package mtree

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Keyword names.
const (
	KeywordCksum    = "cksum"
	KeywordDevice   = "device"
	KeywordFlags    = "flags"
	KeywordGid      = "gid"
	KeywordGname    = "gname"
	KeywordIgnore   = "ignore"
	KeywordLink     = "link"
	KeywordMD5      = "md5"
	KeywordMode     = "mode"
	KeywordNlink    = "nlink"
	KeywordNochange = "nochange"
	KeywordOptional = "optional"
	KeywordRMD160   = "rmd160"
	KeywordSHA1     = "sha1"
	KeywordSHA256   = "sha256"
	KeywordSHA384   = "sha384"
	KeywordSHA512   = "sha512"
	KeywordSize     = "size"
	KeywordTags     = "tags"
	KeywordTime     = "time"
	KeywordType     = "type"
	KeywordUid      = "uid"
	KeywordUname    = "uname"
)

// DigestKeywords lists the hash keywords in their normalized form.
var DigestKeywords = []string{KeywordMD5, KeywordRMD160, KeywordSHA1, KeywordSHA256, KeywordSHA384, KeywordSHA512}

// keywordKind selects how a keyword value is coerced.
type keywordKind int

const (
	kindString keywordKind = iota
	kindType
	kindOctal
	kindDecimal
	kindPresence
	kindList
	kindTime
	kindDevice
	kindDigest
)

var keywordKinds = map[string]keywordKind{
	KeywordCksum:    kindDecimal,
	KeywordDevice:   kindDevice,
	KeywordFlags:    kindList,
	KeywordGid:      kindDecimal,
	KeywordGname:    kindString,
	KeywordIgnore:   kindPresence,
	KeywordLink:     kindString,
	KeywordMD5:      kindDigest,
	KeywordMode:     kindOctal,
	KeywordNlink:    kindDecimal,
	KeywordNochange: kindPresence,
	KeywordOptional: kindPresence,
	KeywordRMD160:   kindDigest,
	KeywordSHA1:     kindDigest,
	KeywordSHA256:   kindDigest,
	KeywordSHA384:   kindDigest,
	KeywordSHA512:   kindDigest,
	KeywordSize:     kindDecimal,
	KeywordTags:     kindList,
	KeywordTime:     kindTime,
	KeywordType:     kindType,
	KeywordUid:      kindDecimal,
	KeywordUname:    kindString,
}

var (
	digestSynonym = regexp.MustCompile(`^(md5|rmd160|sha1|sha256|sha384|sha512)(digest)?$`)
	allDigits     = regexp.MustCompile(`^[0-9]+$`)
	epochSeconds  = regexp.MustCompile(`^([+-]?)([0-9]+)(?:\.([0-9]*))?$`)
)

// NormalizeKeyword maps keyword synonyms onto their canonical name:
// sha256digest becomes sha256, ripemd160digest becomes rmd160.
// Other names are returned unchanged.
func NormalizeKeyword(name string) string {
	if name == "ripemd160digest" {
		return KeywordRMD160
	}
	if m := digestSynonym.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}

// IsKnownKeyword reports whether name (after normalization) is a keyword
// the parser coerces.
func IsKnownKeyword(name string) bool {
	_, ok := keywordKinds[NormalizeKeyword(name)]
	return ok
}

// ParseKeywords coerces "key=value" and bare "key" tokens into attributes.
//
// It is a pure function. Unrecognized keywords are kept as raw strings (bare
// ones as true) and their names are returned in unknown so the caller can
// report them.
func ParseKeywords(tokens []string) (attrs Attributes, unknown []string, err error) {
	attrs = make(Attributes, len(tokens))
	for _, tok := range tokens {
		name, value, hasValue := strings.Cut(tok, "=")
		key := NormalizeKeyword(name)

		kind, known := keywordKinds[key]
		if !known {
			unknown = append(unknown, key)
			if hasValue {
				attrs[key] = value
			} else {
				attrs[key] = true
			}
			continue
		}

		v, err := coerce(key, kind, value, hasValue)
		if err != nil {
			return nil, unknown, err
		}
		attrs[key] = v
	}
	return attrs, unknown, nil
}

// coerce converts a single keyword value to its typed form.
func coerce(key string, kind keywordKind, value string, hasValue bool) (any, error) {
	if kind == kindPresence {
		if !hasValue {
			return true, nil
		}
		if value == "none" {
			return None, nil
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidKeywordValue, key, value)
		}
		return b, nil
	}

	if !hasValue {
		return nil, fmt.Errorf("%w: %s requires a value", ErrInvalidKeywordValue, key)
	}
	if value == "none" {
		return None, nil
	}

	switch kind {
	case kindType:
		return ParseEntryType(value)

	case kindOctal:
		if !allDigits.MatchString(value) {
			return nil, fmt.Errorf("%w: %s=%q is not octal", ErrInvalidKeywordValue, key, value)
		}
		n, err := strconv.ParseUint(value, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q is not octal", ErrInvalidKeywordValue, key, value)
		}
		return Mode(n), nil

	case kindDecimal:
		if !allDigits.MatchString(value) {
			return nil, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidKeywordValue, key, value)
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q: %v", ErrInvalidKeywordValue, key, value, err)
		}
		return n, nil

	case kindList:
		return splitList(value), nil

	case kindTime:
		t, err := parseEpoch(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidKeywordValue, key, value)
		}
		return t, nil

	case kindDevice:
		d, err := ParseDevice(value)
		if err != nil {
			// Device parsing is best effort; keep the raw text.
			return value, nil
		}
		return d, nil

	default:
		return value, nil
	}
}

// splitList splits a comma-separated value, trimming and dropping empty items.
func splitList(value string) []string {
	out := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseEpoch parses Unix epoch seconds. Plain "[-]seconds[.fraction]"
// is read without going through float64 so nanoseconds survive exactly;
// other float forms such as "1e9" go through strconv.ParseFloat.
func parseEpoch(value string) (time.Time, error) {
	m := epochSeconds.FindStringSubmatch(value)
	if m == nil {
		return parseFloatEpoch(value)
	}
	sec, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	frac := m[3]
	if len(frac) > 9 {
		frac = frac[:9]
	}
	var nsec int64
	if frac != "" {
		frac += strings.Repeat("0", 9-len(frac))
		nsec, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
	}
	if m[1] == "-" {
		sec = -sec
		if nsec > 0 {
			sec--
			nsec = int64(time.Second) - nsec
		}
	}
	return time.Unix(sec, nsec).UTC(), nil
}

func parseFloatEpoch(value string) (time.Time, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64/2 {
		return time.Time{}, fmt.Errorf("epoch out of range %q", value)
	}
	sec := math.Floor(f)
	nsec := math.Round((f - sec) * float64(time.Second))
	return time.Unix(int64(sec), int64(nsec)).UTC(), nil
}

// formatEpoch renders t as seconds with nine fraction digits. Times before
// 1970 with a fraction borrow from the seconds so the text reads as one
// negative number.
func formatEpoch(t time.Time) string {
	sec, nsec := t.Unix(), int64(t.Nanosecond())
	if sec < 0 && nsec > 0 {
		return fmt.Sprintf("-%d.%09d", -(sec + 1), int64(time.Second)-nsec)
	}
	return fmt.Sprintf("%d.%09d", sec, nsec)
}

// FormatValue renders a typed value back into mtree keyword syntax.
// It returns false for None and for values that have no text form.
func FormatValue(v any) (string, bool) {
	switch val := v.(type) {
	case noneValue:
		return "", false
	case EntryType:
		return string(val), true
	case Mode:
		return val.String(), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	case []string:
		return strings.Join(val, ","), true
	case time.Time:
		return formatEpoch(val), true
	case Device:
		return val.String(), true
	case string:
		return val, true
	default:
		return "", false
	}
}

// FormatKeyword renders key=value for a manifest line. Presence keywords
// that are true render bare; false presence keywords and None render nothing.
func FormatKeyword(key string, v any) (string, bool) {
	if b, ok := v.(bool); ok {
		if !b {
			return "", false
		}
		return key, true
	}
	text, ok := FormatValue(v)
	if !ok {
		return "", false
	}
	return key + "=" + text, true
}
