package core

import "github.com/google/uuid"

// IDGenerator issues element and slide identifiers.
type IDGenerator interface {
	NewID(prefix string) string
}

// RandomIDs issues random 128-bit identifiers, so rapid creation never
// collides and a deleted element's id is never issued again.
type RandomIDs struct{}

func (RandomIDs) NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
