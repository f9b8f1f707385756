package codec

import (
	"sync"

	"github.com/wippyai/protogen/layout"
)

const (
	// Pool limits to prevent memory bloat
	poolMaxBindings = 256 // max bound names per environment
)

// size environment pool for validation
var envPool = sync.Pool{
	New: func() any {
		return layout.NewEnv(0)
	},
}

func getEnv(minor int) *layout.Env {
	env := envPool.Get().(*layout.Env)
	env.Minor = minor
	return env
}

func putEnv(env *layout.Env) {
	if env == nil || len(env.Fields)+len(env.Terms) > poolMaxBindings {
		return // reject oversized
	}
	clear(env.Fields)
	clear(env.Terms)
	envPool.Put(env)
}
