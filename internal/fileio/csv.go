package fileio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// detectEncoding returns nil for UTF-8 input. Anything that is not UTF-8 and
// not recognised falls back to Shift_JIS, the usual export encoding of
// Japanese office software.
func detectEncoding(sample []byte) encoding.Encoding {
	if utf8.Valid(trimPartialRune(sample)) {
		return nil
	}
	cs := ""
	if det, err := chardet.NewTextDetector().DetectBest(sample); err == nil && det != nil {
		cs = strings.ToLower(det.Charset)
	}
	switch cs {
	case "euc-jp":
		return japanese.EUCJP
	case "iso-2022-jp":
		return japanese.ISO2022JP
	case "windows-1251", "cp1251":
		return charmap.Windows1251
	default:
		return japanese.ShiftJIS
	}
}

// trimPartialRune drops a multi-byte sequence cut by the end of the sample.
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		r, size := utf8.DecodeLastRune(b)
		if r != utf8.RuneError || size != 1 {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}

func sniffDelimiter(sample []byte) rune {
	line := sample
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		line = sample[:i]
	}
	if bytes.Count(line, []byte{'\t'}) > bytes.Count(line, []byte{','}) {
		return '\t'
	}
	return ','
}

// readCSV decodes the input to UTF-8 and reads it as comma or tab separated
// values.
func readCSV(r io.Reader, headerRow int) ([]map[string]string, error) {
	br := bufio.NewReaderSize(r, 8192)
	if bom, _ := br.Peek(3); bytes.Equal(bom, utf8BOM) {
		_, _ = br.Discard(3)
	}
	peek, _ := br.Peek(4096)

	var dec io.Reader = br
	if enc := detectEncoding(peek); enc != nil {
		dec = transform.NewReader(br, enc.NewDecoder())
	}

	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.Comma = sniffDelimiter(peek)

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowsToMaps(rows, pickHeader(rows, headerRow), headerRow), nil
}
