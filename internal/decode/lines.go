package decode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrLineEnding is returned when a line does not end in the configured
// number of line-terminator bytes.
var ErrLineEnding = errors.New("unexpected line terminator")

// LineReader yields lines with their terminators removed and counts them
// for error messages.
//
// With width 0 a trailing "\n" or "\r\n" is stripped. With width 1 or 2
// exactly that many trailing bytes are removed from every terminated line,
// and they must all be CR or LF.
type LineReader struct {
	r       *bufio.Reader
	width   int
	line    int
	subject string
}

// NewLineReader reads lines from r. Subject names the input in errors
// ("layout", "intensities"). A *bufio.Reader is used as is.
func NewLineReader(r io.Reader, width int, subject string) *LineReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 256*1024)
	}
	return &LineReader{r: br, width: width, subject: subject}
}

// Line returns the number of the line last returned.
func (lr *LineReader) Line() int {
	return lr.line
}

// Next returns the next line. It returns io.EOF once the input is exhausted.
func (lr *LineReader) Next() (string, error) {
	s, err := lr.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", Resource("reading "+lr.subject, err)
		}
		if s == "" {
			return "", io.EOF
		}
		// Final line without terminator.
		lr.line++
		return strings.TrimSuffix(s, "\r"), nil
	}
	lr.line++
	if lr.width == 0 {
		s = strings.TrimSuffix(s, "\n")
		return strings.TrimSuffix(s, "\r"), nil
	}
	if len(s) < lr.width {
		return "", Formatf("reading "+lr.subject, "line %d: %w", lr.line, ErrLineEnding)
	}
	tail := s[len(s)-lr.width:]
	if strings.Trim(tail, "\r\n") != "" {
		return "", Formatf("reading "+lr.subject, "line %d: %w: %q", lr.line, ErrLineEnding, tail)
	}
	return s[:len(s)-lr.width], nil
}

// NextNonBlank skips empty lines.
func (lr *LineReader) NextNonBlank() (string, error) {
	for {
		s, err := lr.Next()
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(s) != "" {
			return s, nil
		}
	}
}

// Truncated converts io.EOF into a FormatError naming what was expected.
func (lr *LineReader) Truncated(err error, what string) error {
	if errors.Is(err, io.EOF) {
		return Formatf("reading "+lr.subject, "line %d: %w while looking for %s", lr.line, ErrTruncated, what)
	}
	return err
}

// Fail reports a grammar violation on the current line.
func (lr *LineReader) Fail(sentinel error, format string, args ...any) error {
	return Formatf("parsing "+lr.subject, "line %d: %w: %s", lr.line, sentinel, fmt.Sprintf(format, args...))
}
