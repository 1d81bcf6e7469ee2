package realtime

import "context"

// Handler receives events delivered on a subscribed channel. It must not block.
type Handler func(Event)

type Publisher interface {
	Publish(ctx context.Context, channel string, event Event) error
}

type Subscriber interface {
	// Subscribe registers h on channel until the returned func is called.
	Subscribe(ctx context.Context, channel string, h Handler) (unsubscribe func(), err error)
}

type Broker interface {
	Publisher
	Subscriber
	Close() error
}
