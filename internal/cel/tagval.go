package cel

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/robert-malhotra/go-affy/internal/decode"
)

// TagValue is one entry of a tag/value block.
type TagValue struct {
	Tag   string
	Value string
}

// TagValues is an ordered tag/value block as stored in version 4 headers.
type TagValues []TagValue

// Get returns the value for tag.
func (tv TagValues) Get(tag string) (string, bool) {
	for _, e := range tv {
		if e.Tag == tag {
			return e.Value, true
		}
	}
	return "", false
}

var errNoDelimiter = errors.New("line has no delimiter")

// tagValueStrategy parses decoded text into tag/value pairs.
type tagValueStrategy func(text string) (TagValues, error)

// Version 4 files use either "tag=value" lines (the header) or a single
// ";"-joined run of "tag:value" pairs (algorithm parameters). The
// strategies are tried in order.
var tagValueStrategies = []tagValueStrategy{
	func(text string) (TagValues, error) { return parseTagLines(text, '=') },
	func(text string) (TagValues, error) {
		return parseTagLines(strings.ReplaceAll(text, ";", "\n"), ':')
	},
}

// ParseTagValues decodes an ISO-8859-1 tag/value block.
func ParseTagValues(raw []byte) (TagValues, error) {
	b, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, decode.Formatf("decoding tag/value block", "%w: %v", decode.ErrMalformedField, err)
	}
	text := string(b)

	var errs []error
	for _, parse := range tagValueStrategies {
		tv, err := parse(text)
		if err == nil {
			return tv, nil
		}
		errs = append(errs, err)
	}
	return nil, decode.Formatf("decoding tag/value block", "%w: %v", decode.ErrMalformedField, errors.Join(errs...))
}

// parseTagLines splits text into lines of "tag<delim>value". Blank lines
// and lines starting with '#' or ';' are ignored; indented lines continue
// the previous value. Duplicate tags are rejected.
func parseTagLines(text string, delim byte) (TagValues, error) {
	var tv TagValues
	seen := make(map[string]struct{})
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed[0] == '#' || trimmed[0] == ';' {
			continue
		}
		if len(tv) > 0 && (line[0] == ' ' || line[0] == '\t') {
			tv[len(tv)-1].Value += "\n" + trimmed
			continue
		}
		i := strings.IndexByte(line, delim)
		if i < 0 {
			return nil, fmt.Errorf("line %d: %w %q: %q", n+1, errNoDelimiter, delim, trimmed)
		}
		tag := strings.TrimSpace(line[:i])
		if tag == "" {
			return nil, fmt.Errorf("line %d: empty tag", n+1)
		}
		if _, dup := seen[tag]; dup {
			return nil, fmt.Errorf("line %d: %w: tag %q", n+1, decode.ErrDuplicate, tag)
		}
		seen[tag] = struct{}{}
		tv = append(tv, TagValue{Tag: tag, Value: strings.TrimSpace(line[i+1:])})
	}
	return tv, nil
}
