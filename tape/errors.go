package tape

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrCursorUnderflow is raised by pop when the cursor is already at the
// base subtape: pop and the destructor of a push Handle are the only
// legal ways to move the cursor down, and neither may go below base.
var ErrCursorUnderflow = errors.New("tape: cursor underflow")

// ErrEmptySubtape is raised when a Push is attempted on a subtape with no
// clauses, which should never happen since every Tape has at least one
// clause (the root).
var ErrEmptySubtape = errors.New("tape: subtape has no clauses")

// errMsg returns an error carrying the caller's function name and line
// number, for tape-construction diagnostics raised outside of pure
// invariant violations.
func errMsg(msg string) error {
	pc, _, line, ok := runtime.Caller(1)
	if !ok {
		return fmt.Errorf("?: %s", msg)
	}
	fn := runtime.FuncForPC(pc)
	return fmt.Errorf("%s line %d: %s", fn.Name(), line, msg)
}
