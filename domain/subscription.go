package domain

// Subscription is a stream of messages for a set of topics on one connection.
type Subscription[T any] struct {
	Stream      <-chan T
	Unsubscribe func() error
	Topics      []string
}
