package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitDispatchesInRegistrationOrder(t *testing.T) {
	e := NewEmitter()
	var got []int
	e.On("tick", func(any) { got = append(got, 1) })
	e.On("tick", func(any) { got = append(got, 2) })

	e.Emit("tick", nil)
	assert.Equal(t, []int{1, 2}, got)
}

func TestEmitUnknownEventIsNoop(t *testing.T) {
	e := NewEmitter()
	assert.NotPanics(t, func() { e.Emit("nothing", "payload") })
}

func TestEmitPassesPayload(t *testing.T) {
	e := NewEmitter()
	var got any
	e.On("message", func(p any) { got = p })
	e.Emit("message", 42)
	assert.Equal(t, 42, got)
}

func TestRemoveAll(t *testing.T) {
	e := NewEmitter()
	e.On("tick", func(any) { t.Fatal("handler survived RemoveAll") })
	e.RemoveAll()
	assert.Zero(t, e.ListenerCount("tick"))
	e.Emit("tick", nil)
}
