package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScope_ReleaseOrder(t *testing.T) {
	var order []int
	var s scope
	s.add(func() { order = append(order, 1) })
	s.add(nil)
	s.add(func() { order = append(order, 2) })
	assert.Equal(t, 2, s.size())

	s.release()
	assert.Equal(t, []int{2, 1}, order)
	assert.Equal(t, 0, s.size())

	s.release()
	assert.Equal(t, []int{2, 1}, order, "second release is a no-op")
}

func TestOneShot(t *testing.T) {
	tests := []struct {
		name      string
		run       func(o *oneShot) bool
		wantTaken bool
	}{
		{name: "never armed", run: func(o *oneShot) bool { return o.take() }, wantTaken: false},
		{name: "armed once", run: func(o *oneShot) bool { o.arm(); return o.take() }, wantTaken: true},
		{name: "taken twice", run: func(o *oneShot) bool { o.arm(); o.take(); return o.take() }, wantTaken: false},
		{name: "rearmed after take", run: func(o *oneShot) bool { o.arm(); o.take(); o.arm(); return o.take() }, wantTaken: false},
		{name: "disarmed", run: func(o *oneShot) bool { o.arm(); o.disarm(); return o.take() }, wantTaken: false},
		{name: "armed after disarm", run: func(o *oneShot) bool { o.disarm(); o.arm(); return o.take() }, wantTaken: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &oneShot{}
			assert.Equal(t, tt.wantTaken, tt.run(o))
			assert.False(t, o.isArmed())
		})
	}
}
