// Package goobj inspects Go object files and archives produced by the gc toolchain, which
// carry their own object format next to the native ones the linker loads.
package goobj

import (
	"bytes"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/pkujhd/goloader"
	"github.com/pkujhd/goloader/obj"
	"golang.org/x/mod/module"
)

// magic of a Go object file, followed by the format version.
var magic = []byte("\x00go1")

// IsGoObject reports whether data is a Go object file rather than a native one.
func IsGoObject(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

// Inspect lists the symbols inside a Go object file or archive.
func Inspect(file, pkg string) ([]string, error) {
	if pkg == "" {
		pkg = "main"
	}
	syms, err := goloader.Parse(file, pkg)
	if err != nil {
		return nil, errors.Wrapf(err, "inspect %s", file)
	}
	return syms, nil
}

// Info lists the packages one Go object imports, sorted by path. Versions are filled in for
// packages compiled from the module cache.
type Info struct {
	File    string
	PkgPath string
	Imports []module.Version
}

func (i *Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", i.File, i.PkgPath)
	for _, m := range i.Imports {
		fmt.Fprintf(&b, "\t%s\n", m)
	}
	return b.String()
}

type Infos []*Info

func (s Infos) String() string {
	var b strings.Builder
	for _, i := range s {
		b.WriteString(i.String())
	}
	return b.String()
}

// Imports reads the imports of every file as package pkgPath, main when empty. It returns the
// files read so far with the first error.
func Imports(pkgPath string, files ...string) (Infos, error) {
	if pkgPath == "" {
		pkgPath = "main"
	}
	infos := make(Infos, 0, len(files))
	for _, file := range files {
		p := &obj.Pkg{Syms: make(map[string]*obj.ObjSymbol), File: file, PkgPath: pkgPath}
		if err := p.Symbols(); err != nil {
			return infos, errors.Wrapf(err, "read %s", file)
		}
		infos = append(infos, &Info{File: file, PkgPath: pkgPath, Imports: resolve(p.ImportPkgs, p.CUFiles)})
	}
	return infos, nil
}

// resolve pairs each package with the version of the module cache directory one of the
// compilation unit sources came from.
func resolve(pkgs, sources []string) []module.Version {
	sources = slices.DeleteFunc(slices.Clone(sources), func(s string) bool {
		return strings.HasPrefix(strings.TrimPrefix(s, "gofile.."), "$GOROOT")
	})
	v := make([]module.Version, 0, len(pkgs))
	for _, pkg := range pkgs {
		m := module.Version{Path: pkg}
		for _, src := range sources {
			if ver, ok := versionIn(src, pkg); ok {
				m.Version = ver
				break
			}
		}
		v = append(v, m)
	}
	slices.SortFunc(v, func(a, b module.Version) int { return strings.Compare(a.Path, b.Path) })
	return slices.CompactFunc(v, func(a, b module.Version) bool { return a.Path == b.Path })
}

// versionIn finds the module holding pkg inside a module cache path such as
// .../mod/github.com/!foo/bar@v1.2.3/sub/x.go and returns its version.
func versionIn(src, pkg string) (string, bool) {
	escaped, err := module.EscapePath(pkg)
	if err != nil {
		return "", false
	}
	for mod := escaped; mod != "." && mod != "/"; mod = path.Dir(mod) {
		x := strings.Index(src, "/"+mod+"@")
		if x < 0 {
			continue
		}
		ver, dir, _ := strings.Cut(src[x+len(mod)+2:], "/")
		if !strings.HasPrefix("/"+dir, escaped[len(mod):]+"/") {
			continue
		}
		if ver, err = module.UnescapeVersion(ver); err != nil {
			return "", false
		}
		return ver, true
	}
	return "", false
}
