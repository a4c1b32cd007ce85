package linker

import (
	"fmt"

	"github.com/ZenLiuCN/linker/archive"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// LoadArchive loads every member of a static library a registered format recognises, each as
// its own object named like lib.a(member.o). Members that fail are reported in the error, the
// others stay loaded.
func (l *Linker) LoadArchive(path string) ([]*Object, error) {
	img, err := ReadImage(path)
	if err != nil {
		return nil, &LoadError{Object: path, Stage: StageValidate, Err: err}
	}
	defer l.Discard(img)
	members, err := archive.Members(img.Data)
	if err != nil {
		return nil, &LoadError{Object: path, Stage: StageValidate, Err: errors.Wrap(err, "read archive")}
	}
	var (
		objects []*Object
		result  error
		seen    = make(map[string]int, len(members))
	)
	for _, m := range members {
		if !l.recognised(m.Data) {
			l.debug("skip archive member", "archive", path, "member", m.Name)
			continue
		}
		name := m.Name
		if n := seen[m.Name]; n > 0 {
			name = fmt.Sprintf("%s#%d", m.Name, n)
		}
		seen[m.Name]++
		o, err := l.Load(NewImage(path, name, m.Data))
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		objects = append(objects, o)
	}
	return objects, result
}

func (l *Linker) recognised(data []byte) bool {
	for _, f := range l.formats {
		if f.Match(data) {
			return true
		}
	}
	return false
}
