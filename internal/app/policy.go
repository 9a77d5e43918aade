package app

import "github.com/devkiraa/Hang/internal/core"

type DeliveryAction int

const (
	NoAction DeliveryAction = iota
	Disconnect
)

// Policy decides what happens to a member whose outbox refused a frame.
type Policy interface {
	OnDeliveryFailed(room core.RoomService, sid core.SessionID) DeliveryAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnDeliveryFailed(room core.RoomService, sid core.SessionID) DeliveryAction {
	return Disconnect
}
