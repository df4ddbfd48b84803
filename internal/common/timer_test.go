package common

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimer(t *testing.T) {
	timer := NewTimer("decode")
	assert.Equal(t, "decode", timer.Name())

	time.Sleep(5 * time.Millisecond)

	d := timer.Stop()
	assert.GreaterOrEqual(t, d, 5*time.Millisecond)
	assert.Equal(t, d, timer.Duration())
	assert.Contains(t, timer.String(), "decode")
}

func TestStageTimings(t *testing.T) {
	var st StageTimings

	err := st.Track("inference", func() error {
		time.Sleep(2 * time.Millisecond)
		return errors.New("failed")
	})
	assert.EqualError(t, err, "failed")

	st.Record("postprocess", 3*time.Millisecond)
	st.Record("postprocess", 2*time.Millisecond)

	assert.GreaterOrEqual(t, st.Get("inference"), 2*time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, st.Get("postprocess"))
	assert.Zero(t, st.Get("missing"))
	assert.Equal(t, st.Get("inference")+st.Get("postprocess"), st.Total())
	assert.Regexp(t, `^inference=.* postprocess=5ms$`, st.String())
	assert.Equal(t, []string{"inference", "postprocess"}, st.Stages())
}
