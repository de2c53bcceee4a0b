// Package scripting validates JavaScript embedded in document actions.
package scripting

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// ErrEmptyScript is returned for a script with no statements.
var ErrEmptyScript = errors.New("empty script")

// SyntaxError wraps a compile failure with the name of the action it came from.
type SyntaxError struct {
	Name string
	Err  error
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("javascript %s: %v", e.Name, e.Err) }
func (e *SyntaxError) Unwrap() error { return e.Err }

// Check compiles src without running it. Viewer objects such as app or this
// are resolved at run time, so only syntax is checked.
func Check(name, src string) error {
	if strings.TrimSpace(src) == "" {
		return ErrEmptyScript
	}
	if _, err := goja.Compile(name, src, false); err != nil {
		return &SyntaxError{Name: name, Err: err}
	}
	return nil
}
