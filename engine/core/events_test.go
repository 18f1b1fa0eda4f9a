package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventSystem(t *testing.T) {
	es := NewEventSystem()

	var got []uint32
	listener := &struct{}{}
	ok := es.Register(EVENT_CODE_RESIZED, listener, func(code SystemEventCode, sender, l interface{}, data EventContext) bool {
		got = append(got, data.Data.U32[0], data.Data.U32[1])
		return true
	})
	assert.True(t, ok)
	assert.False(t, es.Register(EVENT_CODE_RESIZED, listener, func(SystemEventCode, interface{}, interface{}, EventContext) bool { return false }))

	ctx := EventContext{}
	ctx.Data.U32[0] = 800
	ctx.Data.U32[1] = 600
	assert.True(t, es.Fire(EVENT_CODE_RESIZED, nil, ctx))
	assert.Equal(t, []uint32{800, 600}, got)

	assert.False(t, es.Fire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}))

	assert.True(t, es.Unregister(EVENT_CODE_RESIZED, listener))
	assert.False(t, es.Unregister(EVENT_CODE_RESIZED, listener))
	assert.False(t, es.Fire(EVENT_CODE_RESIZED, nil, ctx))
}

func TestMetricsAverages(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.016)
	}
	assert.InDelta(t, 16.0, m.FrameTime(), 0.0001)
	assert.Equal(t, uint64(AVG_COUNT), m.TotalFrames)
}
