package archive_test

import (
	"testing"

	"github.com/ZenLiuCN/linker/archive"
	"github.com/ZenLiuCN/linker/internal/linkertest"
	"github.com/stretchr/testify/require"
)

func names(members []archive.Member) (v []string) {
	for _, m := range members {
		v = append(v, m.Name)
	}
	return
}

func TestGNU(t *testing.T) {
	table := "a_rather_long_member.o/\nanother_long_member.o/\n"
	data := linkertest.Archive(
		archive.Member{Name: "/", Data: []byte{0, 0, 0, 0}},
		archive.Member{Name: "//", Data: []byte(table)},
		archive.Member{Name: "/0", Mode: 0o644, Data: []byte("odd")},
		archive.Member{Name: "/24", Mode: 0o644, Data: []byte("even")},
		archive.Member{Name: "short.o/", Mode: 0o600, Data: []byte("x")},
	)
	require.True(t, archive.IsArchive(data))
	members, err := archive.Members(data)
	require.NoError(t, err)
	require.Equal(t, []string{"a_rather_long_member.o", "another_long_member.o", "short.o"}, names(members))
	require.Equal(t, "odd", string(members[0].Data))
	require.Equal(t, "even", string(members[1].Data))
	require.Equal(t, "x", string(members[2].Data))
	require.Equal(t, uint32(0o644), members[0].Mode)
	require.Equal(t, uint32(0o600), members[2].Mode)
}

func TestBSD(t *testing.T) {
	data := linkertest.Archive(
		archive.Member{Name: "#1/20", Data: []byte("__.SYMDEF SORTED\x00\x00\x00\x00")},
		archive.Member{Name: "#1/16", Mode: 0o644, Data: []byte("long_bsd_name.o\x00body")},
		archive.Member{Name: "plain.o", Data: []byte("p")},
	)
	members, err := archive.Members(data)
	require.NoError(t, err)
	require.Equal(t, []string{"long_bsd_name.o", "plain.o"}, names(members))
	require.Equal(t, "body", string(members[0].Data))
}

func TestMalformed(t *testing.T) {
	_, err := archive.Members([]byte("\x7fELF"))
	require.ErrorIs(t, err, archive.ErrNotArchive)
	_, err = archive.Members([]byte("!<thin>\n"))
	require.ErrorIs(t, err, archive.ErrThinArchive)

	data := linkertest.Archive(archive.Member{Name: "a.o", Data: []byte("0123456789")})
	_, err = archive.Members(data[:len(data)-4])
	require.Error(t, err)
	_, err = archive.Members(data[:20])
	require.Error(t, err)

	bad := append([]byte(nil), data...)
	bad[8+58] = 'x'
	_, err = archive.Members(bad)
	require.Error(t, err)

	_, err = archive.Members(linkertest.Archive(archive.Member{Name: "/7", Data: []byte("a")}))
	require.Error(t, err)
}

func TestEmpty(t *testing.T) {
	members, err := archive.Members([]byte("!<arch>\n"))
	require.NoError(t, err)
	require.Empty(t, members)
}
