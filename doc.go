/*
Package linker is a runtime linker for native relocatable objects (.o files and .a archives).

# License

Source codes are under Apache License Version 2.0.

# Underwater

 1. Objects are parsed by a [Format] (see package elfobj), their sections packed into page aligned segments
    one per protection, their symbols published into a global table and their relocations applied.
 2. Relocations may only write inside proddable blocks, the allocated sections and the jump island table of
    the object being linked. Any other write is a fatal error raised before memory is touched.
 3. Segments are protected once, after relocation. Nothing writes to a ready object again.
 4. Symbols resolve by strength: strong over normal over weak. Unloading an object puts back what it displaced.
 5. Unload withdraws symbols, Free reclaims memory once no loaded object depends on the object anymore.
    BeginMark, MarkReachable and Sweep (or Collect) unload everything unreachable from a set of roots.
 6. Branches out of reach go through jump islands, whose target word doubles as a GOT entry.

# Notes

 1. Only ELF64 little endian objects for amd64 and arm64 are handled by this module. Objects must be built
    with -fno-common.
 2. Sym must directly fetch and use in code, should not reuse the cast result or the Sym itself.
 3. Go objects compiled by gc are not native objects, package goobj inspects them.

# Command

	go install github.com/ZenLiuCN/linker/cmd/objlink@latest

loads objects into a scratch process and dumps the result, see

	objlink -h

# Samples

See tests of this package and of elfobj.
*/
package linker
