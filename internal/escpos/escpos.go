// Package escpos encodes receipt text into the ESC/POS command stream
// understood by network thermal printers.
package escpos

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/korean"
)

var (
	cmdInit        = []byte{0x1B, 0x40}
	cmdAlignLeft   = []byte{0x1B, 0x61, 0x00}
	cmdAlignCenter = []byte{0x1B, 0x61, 0x01}
	cmdBoldOn      = []byte{0x1B, 0x45, 0x01}
	cmdBoldOff     = []byte{0x1B, 0x45, 0x00}
	cmdSizeNormal  = []byte{0x1D, 0x21, 0x00}
	cmdSizeDouble  = []byte{0x1D, 0x21, 0x11}
	cmdFeed        = []byte{0x0A}
	cmdCut         = []byte{0x1D, 0x56, 0x00}
)

const trailingFeeds = 3

type LineKind int

const (
	Body LineKind = iota
	Header
	Total
)

// Encoder turns receipt text into printer bytes. Lines containing
// BusinessName or "Table:" are printed centered, bold and double size.
type Encoder struct {
	BusinessName string
}

func (e Encoder) Classify(line string) LineKind {
	if (e.BusinessName != "" && strings.Contains(line, e.BusinessName)) || strings.Contains(line, "Table:") {
		return Header
	}
	if strings.HasPrefix(line, "TOTAL") || strings.HasPrefix(line, "Subtotal") {
		return Total
	}
	return Body
}

// Encode splits text on "\n" and emits each line with its style prefix and a
// line feed, then feeds and cuts. A trailing newline yields one empty line.
func (e Encoder) Encode(text string) []byte {
	var buf bytes.Buffer
	buf.Write(cmdInit)
	buf.Write(cmdSizeNormal)

	for _, line := range strings.Split(text, "\n") {
		switch e.Classify(line) {
		case Header:
			buf.Write(cmdAlignCenter)
			buf.Write(cmdBoldOn)
			buf.Write(cmdSizeDouble)
			line = strings.TrimSpace(line)
		case Total:
			buf.Write(cmdAlignLeft)
			buf.Write(cmdBoldOn)
			buf.Write(cmdSizeNormal)
		default:
			buf.Write(cmdAlignLeft)
			buf.Write(cmdBoldOff)
			buf.Write(cmdSizeNormal)
		}
		buf.Write(EncodeText(line))
		buf.Write(cmdFeed)
	}

	for i := 0; i < trailingFeeds; i++ {
		buf.Write(cmdFeed)
	}
	buf.Write(cmdCut)
	return buf.Bytes()
}

// EncodeText converts s to EUC-KR. Runes the charset lacks become a single
// substitute byte.
func EncodeText(s string) []byte {
	out, err := encoding.ReplaceUnsupported(korean.EUCKR.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}

// Width is the number of bytes s occupies on the printer.
func Width(s string) int {
	return len(EncodeText(s))
}
