package model

import (
	"github.com/wippyai/protogen/errors"
)

// Context is the compilation-wide type registry. It is owned by the caller;
// separate contexts never share state, so several protocol sources can be
// compiled in one process.
type Context struct {
	types map[string]Type
	order []Type
	// AllowDuplicateIDs downgrades colliding message or channel ids from a
	// resolve error to a logged warning.
	AllowDuplicateIDs bool
}

// NewContext returns a registry preloaded with the builtin integer types.
func NewContext() *Context {
	c := &Context{types: make(map[string]Type)}
	for _, bits := range []int{8, 16, 32, 64} {
		for _, signed := range []bool{true, false} {
			t := &Integer{Bits: bits, Signed: signed}
			c.types[t.TypeName()] = t
		}
	}
	return c
}

// Register adds a named type. Registering a name twice fails.
func (c *Context) Register(name string, t Type, line int) error {
	if _, exists := c.types[name]; exists {
		return errors.DuplicateType(line, name)
	}
	c.types[name] = t
	c.order = append(c.order, t)
	return nil
}

// Lookup returns a registered type.
func (c *Context) Lookup(name string) (Type, bool) {
	t, ok := c.types[name]
	return t, ok
}

// Types returns the user-declared named types in declaration order.
func (c *Context) Types() []Type {
	return append([]Type(nil), c.order...)
}
