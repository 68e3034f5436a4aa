package core

import (
	"math/rand/v2"

	"pkt.systems/pslog"
)

// EngineDeps captures the collaborators of the engine.
type EngineDeps struct {
	Tabs      TabService
	EventSink EventSink
	Logger    pslog.Logger
	// Rand picks group colours. Nil uses the global source.
	Rand *rand.Rand
}
