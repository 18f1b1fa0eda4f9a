package core

import "github.com/google/uuid"

// EntityID identifies a renderable entity. Material instances are keyed by it.
type EntityID uuid.UUID

var NilEntityID = EntityID(uuid.Nil)

func NewEntityID() EntityID {
	return EntityID(uuid.New())
}

func (id EntityID) String() string {
	return uuid.UUID(id).String()
}

func (id EntityID) IsNil() bool {
	return id == NilEntityID
}
