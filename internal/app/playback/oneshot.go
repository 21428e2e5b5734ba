package playback

// oneShot is a deferred action that can fire at most once per mount.
// Once taken or disarmed it cannot be armed again.
// Callers serialize access with the controller lock.
type oneShot struct {
	armed bool
	spent bool
}

func (o *oneShot) arm() {
	if o.spent {
		return
	}
	o.armed = true
}

// take reports whether the action was armed and consumes it.
func (o *oneShot) take() bool {
	if !o.armed {
		return false
	}
	o.armed = false
	o.spent = true
	return true
}

func (o *oneShot) disarm() {
	o.armed = false
	o.spent = true
}

func (o *oneShot) isArmed() bool {
	return o.armed
}
