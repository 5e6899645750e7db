// Package terminal handles line input, slash commands and the busy
// spinner of the plain chat mode.
package terminal

import (
	"bufio"
	"io"
	"strings"
)

// InputReader reads user lines from a stream.
type InputReader struct {
	reader *bufio.Reader
}

// NewInputReader wraps r.
func NewInputReader(r io.Reader) *InputReader {
	return &InputReader{reader: bufio.NewReader(r)}
}

// ReadUserInput reads a line of input from the user. A final line without a
// newline is returned before io.EOF.
func (in *InputReader) ReadUserInput() (string, error) {
	input, err := in.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && input != "" {
			return strings.TrimSpace(input), nil
		}
		return "", err
	}

	// Trim whitespace and newline
	return strings.TrimSpace(input), nil
}
