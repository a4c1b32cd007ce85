package linker

import (
	"fmt"
	"io"
)

// Dump prints every known object with its sections and segments.
func (l *Linker) Dump(w io.Writer) error {
	for _, o := range l.Objects() {
		if _, err := fmt.Fprintf(w, "%d\t%s\n", o.id, o); err != nil {
			return err
		}
		for i := range o.segments {
			s := &o.segments[i]
			fmt.Fprintf(w, "\tsegment %d\t%#x\t%d\t%s\tfrozen=%t\n", i, s.Start, s.Size, s.Prot, s.Frozen)
		}
		for i := range o.sections {
			s := &o.sections[i]
			fmt.Fprintf(w, "\tsection %d\t%-20s\t%#x\t%d\t%s\t%s\n", i, s.Name, s.Start, s.Size, s.Kind, s.Alloc)
		}
		for _, e := range o.extras {
			fmt.Fprintf(w, "\tisland\t%-20s\t%#x\t-> %#x\n", e.Name, e.Slot, e.Target)
		}
		for _, d := range o.Dependencies() {
			fmt.Fprintf(w, "\tneeds\t%s\n", d.Name())
		}
	}
	return nil
}
