package scan

import "bytes"

// minRecordLen is the shortest byte string that can hold a JSON object.
const minRecordLen = 2

// ExtractRecord turns one physical line of a line-per-record JSON array into
// a clean JSON record. line must not include its '\n' terminator.
//
// It strips a trailing '\r', trailing blanks, the record separator ',' and a
// closing ']' (which marks the final line), plus a leading '[' when the array
// opens on the same line as its first record. Blank lines and lines that only
// open an array (ending with '[') yield no record. final is true when the
// scan must stop after this line.
func ExtractRecord(line []byte) (rec []byte, final bool) {
	line = bytes.TrimRight(line, " \t\r")
	if len(line) == 0 {
		return nil, false
	}

	switch line[len(line)-1] {
	case ',':
		line = line[:len(line)-1]
	case ']':
		line = line[:len(line)-1]
		final = true
	case '[':
		return nil, false
	}

	line = bytes.TrimSpace(line)
	if len(line) > 0 && line[0] == '[' {
		line = bytes.TrimLeft(line[1:], " \t")
	}
	if len(line) < minRecordLen || line[0] != '{' {
		return nil, final
	}
	return line, final
}
