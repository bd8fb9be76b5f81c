package qcollide

const (
	COLLISION_ENTER EventType = iota
	COLLISION_STAY
	COLLISION_EXIT
)

// EventType tells collision transitions apart.
type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// CollisionEnterEvent is sent the first Evaluate a pair collides.
type CollisionEnterEvent struct {
	Pair PairID
}

func (e CollisionEnterEvent) Type() EventType { return COLLISION_ENTER }

// CollisionStayEvent is sent while a pair keeps colliding.
type CollisionStayEvent struct {
	Pair PairID
}

func (e CollisionStayEvent) Type() EventType { return COLLISION_STAY }

// CollisionExitEvent is sent once a pair stops colliding or is released.
type CollisionExitEvent struct {
	Pair PairID
}

func (e CollisionExitEvent) Type() EventType { return COLLISION_EXIT }

// EventListener - callback for events
type EventListener func(event Event)

// Events derives enter, stay and exit transitions from the colliding set
// seen at the end of each Evaluate. Pairs are reported normalized.
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event

	previousActivePairs map[PairID]bool
	currentActivePairs  map[PairID]bool
}

func NewEvents() Events {
	return Events{
		listeners:           make(map[EventType][]EventListener),
		buffer:              make([]Event, 0, 64),
		previousActivePairs: make(map[PairID]bool),
		currentActivePairs:  make(map[PairID]bool),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

func (e *Events) recordCollisions(pairs []PairID) {
	for _, pair := range pairs {
		e.currentActivePairs[pair] = true
	}
}

// processCollisionEvents compares current and previous pairs. Events come
// out in ascending pair order.
func (e *Events) processCollisionEvents(current []PairID) {
	for _, pair := range current {
		if e.previousActivePairs[pair] {
			e.buffer = append(e.buffer, CollisionStayEvent{Pair: pair})
		} else {
			e.buffer = append(e.buffer, CollisionEnterEvent{Pair: pair})
		}
	}

	exits := make([]PairID, 0)
	for pair := range e.previousActivePairs {
		if !e.currentActivePairs[pair] {
			exits = append(exits, pair)
		}
	}
	sortPairs(exits)
	for _, pair := range exits {
		e.buffer = append(e.buffer, CollisionExitEvent{Pair: pair})
	}

	// Swap for next frame and clear current
	e.previousActivePairs, e.currentActivePairs = e.currentActivePairs, e.previousActivePairs
	clear(e.currentActivePairs)
}

// flush records the colliding set, sends all buffered events and clears
// the buffer
func (e *Events) flush(colliding []PairID) {
	e.recordCollisions(colliding)
	e.processCollisionEvents(colliding)

	for _, event := range e.buffer {
		for _, listener := range e.listeners[event.Type()] {
			listener(event)
		}
	}
	e.buffer = e.buffer[:0]
}
