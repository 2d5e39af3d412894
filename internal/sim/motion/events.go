package motion

// EventBuffer collects the physical events of one decision window. It is
// owned by the episode controller, cleared once when a window starts, and
// each field has exactly one writer.
type EventBuffer struct {
	LandedArc        bool // Tracker.Sample
	TriggerClearance bool // Tracker.HandleContact, trigger
	TriggerCollision bool // Tracker.HandleContact, trigger
	SolidCollision   bool // Tracker.HandleContact, solid
}

func (b *EventBuffer) Clear() { *b = EventBuffer{} }

// JumpEvent is the read-only view of a window's events.
type JumpEvent struct {
	IsJumpingOverObstacle bool
	CollidedWithObstacle  bool
	IsJumping             bool
	JumpStartHeight       float64
	MaxHeightReached      float64
}

func (e JumpEvent) CurrentJumpHeight() float64 {
	return e.MaxHeightReached - e.JumpStartHeight
}
