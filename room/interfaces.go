package room

// Member is a delivery endpoint for room broadcasts. Rooms hold members only
// to route messages; a member's lifecycle is owned by the connection layer.
type Member interface {
	GetID() string
	Send(event string, data []byte) error
}
