// Package personality defines the personality descriptors a bot instance can
// run with. A descriptor shapes how a worker presents itself; the adaptive
// descriptor evolves its self-description as the instance learns facts.
package personality

import (
	"fmt"
	"strings"
)

// Descriptor describes one selectable personality.
type Descriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// CatchPhrase is prepended to status-style utterances.
	CatchPhrase string `json:"catch_phrase,omitempty"`

	// Adaptive descriptors evolve per server instead of using a fixed voice.
	Adaptive bool `json:"adaptive"`
}

// Engine resolves personality IDs to descriptors.
type Engine interface {
	// Resolve returns the descriptor for id. An empty id resolves to the
	// adaptive descriptor.
	Resolve(id string) (Descriptor, error)

	// List returns all known descriptors.
	List() []Descriptor
}

type builtinEngine struct {
	byID  map[string]Descriptor
	order []string
}

// NewEngine returns the engine with the built-in descriptor set.
func NewEngine() Engine {
	descriptors := []Descriptor{
		{
			ID:          "grug",
			Name:        "Grug",
			Description: "Caveman who think in simple words and like rock",
			CatchPhrase: "grug think",
		},
		{
			ID:          "big_rob",
			Name:        "Big Rob",
			Description: "norf FC lad, loves footy and a cold pint",
			CatchPhrase: "simple as",
		},
		{
			ID:          "adaptive",
			Name:        "Adaptive",
			Description: "Starts neutral and evolves a voice per server",
			Adaptive:    true,
		},
	}

	byID := make(map[string]Descriptor, len(descriptors))
	order := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		byID[d.ID] = d
		order = append(order, d.ID)
	}
	return &builtinEngine{byID: byID, order: order}
}

func (e *builtinEngine) Resolve(id string) (Descriptor, error) {
	if strings.TrimSpace(id) == "" {
		id = "adaptive"
	}
	d, ok := e.byID[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("unknown personality %q", id)
	}
	return d, nil
}

func (e *builtinEngine) List() []Descriptor {
	out := make([]Descriptor, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.byID[id])
	}
	return out
}
