package client

import "errors"

var (
	ErrNoFileLoaded     = errors.New("no file loaded")
	ErrRoomNotFound     = errors.New("room not found")
	ErrFileHashMismatch = errors.New("your file does not match the room's file")
	ErrRoomFull         = errors.New("room is full")
	ErrInvalidPasscode  = errors.New("invalid passcode")
	ErrServer           = errors.New("server error")
	ErrDisconnected     = errors.New("disconnected")
	ErrRequestInFlight  = errors.New("another room request is in progress")
)
