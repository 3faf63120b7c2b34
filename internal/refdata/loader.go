package refdata

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	minFields      = 8
	codeField      = 0
	descField      = 1
	categoryField  = 6
	maxLineBytes   = 1 << 20
	initialLineBuf = 64 * 1024
)

// Load reads the reference table at path. A missing or unreadable file yields
// an empty table with LoadErr set; Load never fails outright.
func Load(path string) *Table {
	f, err := os.Open(path)
	if err != nil {
		t := newTable(path)
		t.loadErr = fmt.Errorf("open reference table: %w", err)
		return t
	}
	defer f.Close()

	t := Parse(f)
	t.source = path
	return t
}

// Parse reads a reference table from r. Lines end at \n, \r\n or a lone \r.
// The first line is a header and is discarded. Rows with fewer than eight
// fields or a blank code or description are skipped. If reading fails part
// way through the result is empty.
func Parse(r io.Reader) *Table {
	t := newTable("")

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, initialLineBuf), maxLineBytes)
	sc.Split(scanLines)

	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		if e, ok := parseRow(strings.TrimSpace(sc.Text())); ok {
			t.put(e)
		}
	}
	if err := sc.Err(); err != nil {
		empty := newTable("")
		empty.loadErr = fmt.Errorf("read reference table: %w", err)
		return empty
	}
	return t
}

// scanLines is bufio.ScanLines that also ends a line at a lone \r.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		switch {
		case data[i] == '\n':
			return i + 1, data[:i], nil
		case i+1 < len(data) && data[i+1] == '\n':
			return i + 2, data[:i], nil
		case i+1 < len(data) || atEOF:
			return i + 1, data[:i], nil
		}
		// \r at the end of the buffer: wait to see whether \n follows.
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func parseRow(line string) (Entry, bool) {
	fields := splitRecord(line)
	if len(fields) < minFields || fields[codeField] == "" || fields[descField] == "" {
		return Entry{}, false
	}
	return Entry{
		Code:        fields[codeField],
		Description: fields[descField],
		Weight:      WeightForCategory(fields[categoryField]),
	}, true
}

type scanState int

const (
	outsideQuotes scanState = iota
	insideQuotes
)

// splitRecord splits a comma separated line. A double quote toggles between
// the two scan states and is dropped; commas only separate fields outside
// quotes. There is no escaped-quote syntax. Fields are whitespace-trimmed.
func splitRecord(line string) []string {
	var (
		fields []string
		field  strings.Builder
		state  = outsideQuotes
	)
	for _, r := range line {
		switch {
		case r == '"':
			if state == outsideQuotes {
				state = insideQuotes
			} else {
				state = outsideQuotes
			}
		case r == ',' && state == outsideQuotes:
			fields = append(fields, strings.TrimSpace(field.String()))
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}
	return append(fields, strings.TrimSpace(field.String()))
}
