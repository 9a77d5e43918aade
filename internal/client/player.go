package client

//go:generate mockgen -source=player.go -destination=mock_player_test.go -package=client

// Player is the media player the engine drives. Calls are fire-and-forget
// and must be no-ops when no media is loaded. Positions are in seconds.
type Player interface {
	Play()
	Pause()
	Stop()
	Seek(pos float64)
	SetRate(rate float64)
	Position() float64
	Duration() float64
	Rate() float64
}
