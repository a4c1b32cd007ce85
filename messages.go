package linker

import (
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Messages holds the diagnostic sinks of a Linker. Each one can be replaced on its own.
//
// Fatal must not return; if it does the linker panics with a *FatalError instead.
type Messages struct {
	Fatal    func(msg string)
	Error    func(msg string, keyvals ...any)
	SysError func(msg string, err error, keyvals ...any)
	Debug    func(msg string, keyvals ...any)
}

// NewMessages routes every sink to logger. Fatal messages exit the process.
func NewMessages(logger log.Logger) *Messages {
	return &Messages{
		Fatal: func(msg string) {
			_ = level.Error(logger).Log("category", "fatal", "msg", msg)
			os.Exit(1)
		},
		Error: func(msg string, keyvals ...any) {
			_ = level.Error(logger).Log(append([]any{"category", "user", "msg", msg}, keyvals...)...)
		},
		SysError: func(msg string, err error, keyvals ...any) {
			_ = level.Error(logger).Log(append([]any{"category", "system", "msg", msg, "err", err}, keyvals...)...)
		},
		Debug: func(msg string, keyvals ...any) {
			_ = level.Debug(logger).Log(append([]any{"msg", msg}, keyvals...)...)
		},
	}
}

// barf reports a fatal internal error and never returns.
func (l *Linker) barf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.msg.Fatal(msg)
	panic(&FatalError{Msg: msg})
}

func (l *Linker) debug(msg string, keyvals ...any) {
	l.msg.Debug(msg, keyvals...)
}

// report sends a failed request to the user or the system sink.
func (l *Linker) report(msg string, err error, keyvals ...any) {
	if isSystem(err) {
		l.msg.SysError(msg, err, keyvals...)
		return
	}
	l.msg.Error(msg, append(keyvals, "err", err)...)
}
