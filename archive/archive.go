// Package archive reads static libraries in the ar format, with System V/GNU and BSD member
// names.
package archive

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	headerSize = 60
	magic      = "!<arch>\n"
	thinMagic  = "!<thin>\n"
)

var (
	// ErrNotArchive occurs when data does not start with the ar magic.
	ErrNotArchive = errors.New("not an ar archive")
	// ErrThinArchive occurs on GNU thin archives, whose members live in other files.
	ErrThinArchive = errors.New("thin archives are not supported")
)

// Member is one file of an archive. Data aliases the archive buffer.
type Member struct {
	Name string
	Mode uint32
	Data []byte
}

// IsArchive reports whether data starts like an ar archive.
func IsArchive(data []byte) bool {
	return bytes.HasPrefix(data, []byte(magic))
}

// Members parses every regular member of data, skipping symbol indices and name tables.
func Members(data []byte) ([]Member, error) {
	if bytes.HasPrefix(data, []byte(thinMagic)) {
		return nil, ErrThinArchive
	}
	if !IsArchive(data) {
		return nil, ErrNotArchive
	}
	var (
		members []Member
		names   []byte // GNU long name table
	)
	for off := len(magic); off < len(data); {
		if data[off] == '\n' {
			// some writers pad with an extra newline
			off++
			continue
		}
		if off+headerSize > len(data) {
			return nil, errors.Errorf("truncated member header at %d", off)
		}
		hdr := data[off : off+headerSize]
		if hdr[58] != '`' || hdr[59] != '\n' {
			return nil, errors.Errorf("bad member header magic at %d", off)
		}
		size, err := field(hdr[48:58], 10)
		if err != nil {
			return nil, errors.Wrapf(err, "member size at %d", off)
		}
		start := off + headerSize
		if start+int(size) > len(data) {
			return nil, errors.Errorf("member at %d overruns archive (%d bytes)", off, size)
		}
		body := data[start : start+int(size)]
		off = start + int(size) + int(size&1)

		name := strings.TrimRight(string(hdr[0:16]), " ")
		switch {
		case name == "/" || name == "/SYM64/" || strings.HasPrefix(name, "__.SYMDEF"):
			continue
		case name == "//":
			names = body
			continue
		case strings.HasPrefix(name, "#1/"):
			n, err := strconv.Atoi(name[3:])
			if err != nil || n > len(body) {
				return nil, errors.Errorf("bad BSD member name %q", name)
			}
			name = strings.TrimRight(string(body[:n]), "\x00")
			body = body[n:]
			if strings.HasPrefix(name, "__.SYMDEF") {
				continue
			}
		case len(name) > 1 && name[0] == '/':
			n, err := strconv.Atoi(name[1:])
			if err != nil || n >= len(names) {
				return nil, errors.Errorf("bad GNU member name reference %q", name)
			}
			end := bytes.IndexByte(names[n:], '\n')
			if end < 0 {
				end = len(names) - n
			}
			name = strings.TrimSuffix(string(names[n:n+end]), "/")
		default:
			name = strings.TrimSuffix(name, "/")
		}
		mode, err := field(hdr[40:48], 8)
		if err != nil {
			return nil, errors.Wrapf(err, "mode of %s", name)
		}
		members = append(members, Member{Name: name, Mode: uint32(mode), Data: body})
	}
	return members, nil
}

func field(b []byte, base int) (int64, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, base, 64)
}
