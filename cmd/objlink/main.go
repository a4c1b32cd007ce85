package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ZenLiuCN/linker"
	"github.com/ZenLiuCN/linker/elfobj"
	"github.com/ZenLiuCN/linker/goobj"
	"github.com/davecgh/go-spew/spew"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/urfave/cli/v2"
)

var logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))

func main() {
	app := cli.NewApp()
	app.Usage = "runtime object linker"
	app.Name = "objlink"
	app.Description = "load relocatable objects into a process and inspect the result"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}},
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "yaml linker config"},
	}
	app.Commands = []*cli.Command{
		{Name: "load",
			Action: load,
			Usage:  "load objects or archives and dump the linker",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "host", Usage: "register symbols of the running binary"},
				&cli.StringSliceFlag{Name: "so", Usage: "register symbols of a shared library"},
				&cli.BoolFlag{Name: "spew", Usage: "dump objects with spew"},
				&cli.StringSliceFlag{Name: "resolve", Usage: "describe a code address"},
			},
			Args: true,
		},
		{Name: "symbols",
			Action: symbols,
			Usage:  "list the symbol table after loading",
			Args:   true,
		},
		{Name: "format",
			Action: format,
			Usage:  "detect the object format of files",
			Args:   true,
		},
		{Name: "inspect",
			Action: inspect,
			Usage:  "list symbols of a go objfile",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "pkg", Aliases: []string{"p"}, Usage: "package path or default main"},
			},
			Args: true,
		},
		{Name: "imports",
			Action: imports,
			Usage:  "display imports of a go objfile",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "pkg", Aliases: []string{"p"}, Usage: "package path or default main"},
			},
			Args: true,
		},
	}
	if err := app.Run(os.Args); err != nil {
		_ = level.Error(logger).Log("msg", "failure", "err", err)
		os.Exit(1)
	}
}

func newLinker(ctx *cli.Context) (*linker.Linker, error) {
	cfg := linker.DefaultConfig()
	if path := ctx.String("config"); path != "" {
		var err error
		if cfg, err = linker.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if ctx.Bool("debug") {
		cfg.Debug = true
	}
	return linker.New(cfg, linker.WithLogger(logger), linker.WithFormats(elfobj.New()))
}

// loadAll loads every argument, archives member by member.
func loadAll(ctx *cli.Context, l *linker.Linker) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("missing objects")
	}
	for _, s := range ctx.Args().Slice() {
		img, err := linker.ReadImage(s)
		if err != nil {
			return err
		}
		archive := linker.IsArchive(img.Data)
		l.Discard(img)
		if archive {
			_, err = l.LoadArchive(s)
		} else {
			_, err = l.LoadFile(s)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func load(ctx *cli.Context) (err error) {
	l, err := newLinker(ctx)
	if err != nil {
		return
	}
	defer func() {
		if cerr := l.Close(); err == nil {
			err = cerr
		}
	}()
	if ctx.Bool("host") {
		if _, err = l.RegisterHostSymbols(); err != nil {
			return
		}
	}
	for _, so := range ctx.StringSlice("so") {
		if _, err = l.RegisterSharedObjectSymbols(so); err != nil {
			return
		}
	}
	if err = loadAll(ctx, l); err != nil {
		return
	}
	if ctx.Bool("spew") {
		sp := spew.NewDefaultConfig()
		sp.MaxDepth = 3
		sp.Fdump(os.Stdout, l.Objects())
	} else if err = l.Dump(os.Stdout); err != nil {
		return
	}
	for _, s := range ctx.StringSlice("resolve") {
		addr, perr := strconv.ParseUint(s, 0, 64)
		if perr != nil {
			return perr
		}
		if r, ok := l.ResolveAddr(uintptr(addr)); ok {
			fmt.Printf("%#x\t%s\t%s\n", addr, r, r.Object.Name())
		} else {
			fmt.Printf("%#x\t?\n", addr)
		}
	}
	return
}

func symbols(ctx *cli.Context) (err error) {
	l, err := newLinker(ctx)
	if err != nil {
		return
	}
	defer func() {
		if cerr := l.Close(); err == nil {
			err = cerr
		}
	}()
	if err = loadAll(ctx, l); err != nil {
		return
	}
	for _, name := range l.Symbols() {
		if info, ok := l.LookupInfo(name); ok {
			owner := "<host>"
			if info.Owner != nil {
				owner = info.Owner.Name()
			}
			fmt.Printf("%#016x\t%-6s\t%s\t%s\n", info.Addr, info.Strength, name, owner)
		}
	}
	return
}

func format(ctx *cli.Context) error {
	for _, s := range ctx.Args().Slice() {
		img, err := linker.ReadImage(s)
		if err != nil {
			return err
		}
		tag := linker.DetectFormat(img.Data)
		switch {
		case linker.IsArchive(img.Data):
			fmt.Printf("%s\tarchive\n", s)
		case goobj.IsGoObject(img.Data):
			fmt.Printf("%s\tgo object\n", s)
		default:
			fmt.Printf("%s\t%s\n", s, tag)
		}
		if err = img.Free(); err != nil {
			return err
		}
	}
	return nil
}

func inspect(ctx *cli.Context) (err error) {
	for _, s := range ctx.Args().Slice() {
		var syms []string
		if syms, err = goobj.Inspect(s, ctx.String("pkg")); err != nil {
			return
		}
		for _, sym := range syms {
			fmt.Println(sym)
		}
	}
	return
}

func imports(ctx *cli.Context) error {
	infos, err := goobj.Imports(ctx.String("pkg"), ctx.Args().Slice()...)
	fmt.Print(infos.String())
	return err
}
