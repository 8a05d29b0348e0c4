package console

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/pulse-sync/internal/controller"
	"github.com/sweeney/pulse-sync/internal/logic"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"E", Command{Op: OpEnable}},
		{"D", Command{Op: OpDisable}},
		{"q", Command{Op: OpQuit}},
		{"Q", Command{Op: OpQuit}},
		{"h", Command{Op: OpHelp}},
		{"Help", Command{Op: OpHelp}},
		{"s", Command{Op: OpStatus}},
		{"r15", Command{Op: OpRate, Rate: 15}},
		{"r 30.5", Command{Op: OpRate, Rate: 30.5}},
		{"  e30  ", Command{Op: OpExposure, Value: 30}},
		{"d35", Command{Op: OpDelay, Value: 35}},
		{"d10", Command{Op: OpDelay, Value: 10}},
		{"e-5", Command{Op: OpExposure, Value: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, line := range []string{"r", "rfast", "e3.5", "d", "dx"} {
		_, err := Parse(line)
		assert.ErrorIs(t, err, ErrParse, "line %q", line)
	}
	for _, line := range []string{"", "x", "R15", "?"} {
		_, err := Parse(line)
		assert.ErrorIs(t, err, ErrUnknown, "line %q", line)
	}
}

func newController(t *testing.T) *controller.Controller {
	t.Helper()
	c, err := controller.New(controller.DefaultConfig(), controller.Outputs{}, nil)
	require.NoError(t, err)
	return c
}

func register(t *testing.T, c *controller.Controller, id logic.ChannelID) int {
	t.Helper()
	ch, ok := c.Snapshot().Channel(id)
	require.True(t, ok)
	return ch.Register
}

func TestLineCommands(t *testing.T) {
	c := newController(t)
	var out bytes.Buffer

	assert.False(t, Line(&out, c, "E"))
	assert.True(t, c.Snapshot().Enabled())

	assert.False(t, Line(&out, c, "r15"))
	assert.Equal(t, 66664, register(t, c, logic.Heartbeat))
	assert.Contains(t, out.String(), "rate: 14.9999 hz")

	assert.False(t, Line(&out, c, "e30"))
	assert.Equal(t, 27, register(t, c, logic.Window))

	assert.False(t, Line(&out, c, "d35"))
	assert.Equal(t, 134, register(t, c, logic.Emitter1))
	assert.Equal(t, 135, c.Snapshot().Params.DelayUs[1])

	assert.False(t, Line(&out, c, "D"))
	assert.False(t, c.Snapshot().Enabled())
}

func TestLineRejectsWithoutMutation(t *testing.T) {
	c := newController(t)
	c.Enable()
	before := c.Snapshot()

	for _, line := range []string{"d10", "r0", "r1000000", "e3", "rabc", "x"} {
		var out bytes.Buffer
		assert.False(t, Line(&out, c, line), "line %q", line)
		assert.NotEmpty(t, out.String(), "line %q printed nothing", line)
	}

	after := c.Snapshot()
	assert.Equal(t, before.Params, after.Params)
	for i := range before.Channels {
		assert.Equal(t, before.Channels[i].Register, after.Channels[i].Register)
		assert.True(t, after.Channels[i].Active)
	}
}

func TestLineDelayBelowMinimumMessage(t *testing.T) {
	c := newController(t)
	var out bytes.Buffer
	Line(&out, c, "d10")
	assert.Equal(t, "invalid delay: cannot be <35\n", out.String())
}

func TestLineEmptyIgnored(t *testing.T) {
	c := newController(t)
	var out bytes.Buffer
	assert.False(t, Line(&out, c, "   "))
	assert.Empty(t, out.String())
}

func TestLineQuitDisables(t *testing.T) {
	c := newController(t)
	c.Enable()
	var out bytes.Buffer
	assert.True(t, Line(&out, c, "q"))
	assert.False(t, c.Snapshot().Enabled())
}

func TestHelpAndStatus(t *testing.T) {
	c := newController(t)
	c.Enable()
	c.Advance(300)

	var out bytes.Buffer
	Line(&out, c, "h")
	assert.Contains(t, out.String(), "r<hz>")
	assert.Contains(t, out.String(), "min 35")

	out.Reset()
	Line(&out, c, "s")
	s := out.String()
	assert.Contains(t, s, "state:    enabled")
	assert.Contains(t, s, "heartbeat register 66664")
	assert.Contains(t, s, "counters: 1 cycles, 1 captures, 1 exposures")
}
