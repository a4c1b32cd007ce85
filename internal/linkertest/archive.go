package linkertest

import (
	"bytes"
	"fmt"

	"github.com/ZenLiuCN/linker/archive"
)

// Archive writes an ar archive. Names go into the headers as they are, so GNU and BSD naming
// is up to the caller.
func Archive(members ...archive.Member) []byte {
	var b bytes.Buffer
	b.WriteString("!<arch>\n")
	for _, m := range members {
		fmt.Fprintf(&b, "%-16s%-12d%-6d%-6d%-8o%-10d`\n", m.Name, 0, 0, 0, m.Mode, len(m.Data))
		b.Write(m.Data)
		if len(m.Data)%2 == 1 {
			b.WriteByte('\n')
		}
	}
	return b.Bytes()
}
