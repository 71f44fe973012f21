package completion

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recorder counts handler invocations
type recorder struct {
	calls []int
}

func (r *recorder) handle(minutes int) { r.calls = append(r.calls, minutes) }

func TestInitialStateIsClosed(t *testing.T) {
	c := New(nil)
	assert.False(t, c.IsOpen())
	assert.Empty(t, c.Input())
	assert.Empty(t, c.ResourceID())
	assert.Empty(t, c.Validation())
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	inputs := []string{"", "   ", "abc", "12abc", "1.5", "0", "-5", "99999999999999999999999"}

	for _, in := range inputs {
		t.Run(strconv.Quote(in), func(t *testing.T) {
			var rec recorder
			c := New(nil)
			c.Open(Command{ResourceID: "r1", OnConfirm: rec.handle})
			c.SetInput(in)

			err := c.Submit()
			require.ErrorIs(t, err, ErrInvalidTime)
			assert.True(t, c.IsOpen())
			assert.Equal(t, in, c.Input())
			assert.Equal(t, ValidationMessage, c.Validation())
			assert.Empty(t, rec.calls)
		})
	}
}

func TestSubmitValidInput(t *testing.T) {
	for _, n := range []int{1, 15, 60, 600} {
		var rec recorder
		c := New(nil)
		c.Open(Command{ResourceID: "r1", OnConfirm: rec.handle})
		c.SetInput(strconv.Itoa(n))

		require.NoError(t, c.Submit())
		assert.False(t, c.IsOpen())
		assert.Empty(t, c.Input())
		assert.Empty(t, c.ResourceID())
		assert.Equal(t, []int{n}, rec.calls)
	}
}

func TestSubmitTrimsWhitespace(t *testing.T) {
	var rec recorder
	c := New(nil)
	c.Open(Command{ResourceID: "r1", OnConfirm: rec.handle})
	c.SetInput(" 45\n")

	require.NoError(t, c.Submit())
	assert.Equal(t, []int{45}, rec.calls)
}

func TestRetryAfterValidationError(t *testing.T) {
	var rec recorder
	c := New(nil)
	c.Open(Command{ResourceID: "r1", OnConfirm: rec.handle})

	c.SetInput("abc")
	require.Error(t, c.Submit())
	c.SetInput("30")
	require.NoError(t, c.Submit())

	assert.Equal(t, []int{30}, rec.calls)
	assert.Empty(t, c.Validation())
}

func TestHandlerSeesClosedCoordinator(t *testing.T) {
	c := New(nil)
	var openDuringHandler bool
	c.Open(Command{ResourceID: "r1", OnConfirm: func(int) {
		openDuringHandler = c.IsOpen()
	}})
	c.SetInput("10")

	require.NoError(t, c.Submit())
	assert.False(t, openDuringHandler)
}

func TestHandlerMayReopen(t *testing.T) {
	c := New(nil)
	c.Open(Command{ResourceID: "r1", OnConfirm: func(int) {
		c.Open(Command{ResourceID: "r2"})
	}})
	c.SetInput("10")

	require.NoError(t, c.Submit())
	assert.True(t, c.IsOpen())
	assert.Equal(t, "r2", c.ResourceID())
}

func TestCloseDiscardsRequest(t *testing.T) {
	var rec recorder
	c := New(nil)
	c.Open(Command{ResourceID: "r1", OnConfirm: rec.handle})
	c.SetInput("60")

	c.Close()
	assert.False(t, c.IsOpen())
	assert.Empty(t, c.Input())
	assert.Empty(t, rec.calls)

	// next open starts from an empty entry
	c.Open(Command{ResourceID: "r1", OnConfirm: rec.handle})
	assert.Empty(t, c.Input())
}

func TestCloseIsIdempotent(t *testing.T) {
	var rec recorder
	c := New(nil)
	c.Close()
	c.Close()
	assert.False(t, c.IsOpen())

	c.Open(Command{ResourceID: "r1", OnConfirm: rec.handle})
	c.Close()
	c.Close()
	assert.Empty(t, rec.calls)
}

func TestSubmitWhenClosedFiresNothing(t *testing.T) {
	var rec recorder
	c := New(nil)
	c.Open(Command{ResourceID: "r1", OnConfirm: rec.handle})
	c.SetInput("60")
	c.Close()

	c.SetInput("60")
	assert.ErrorIs(t, c.Submit(), ErrNotOpen)
	assert.Empty(t, rec.calls)
}

func TestSubmitAfterSubmitFiresOnce(t *testing.T) {
	var rec recorder
	c := New(nil)
	c.Open(Command{ResourceID: "r1", OnConfirm: rec.handle})
	c.SetInput("20")
	require.NoError(t, c.Submit())

	c.SetInput("20")
	assert.ErrorIs(t, c.Submit(), ErrNotOpen)
	assert.Equal(t, []int{20}, rec.calls)
}

func TestLastOpenWins(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	var first, second recorder
	c := New(zap.New(core))

	c.Open(Command{ResourceID: "r1", OnConfirm: first.handle})
	c.Open(Command{ResourceID: "r2", OnConfirm: second.handle})
	assert.Equal(t, "r2", c.ResourceID())

	c.SetInput("25")
	require.NoError(t, c.Submit())

	assert.Empty(t, first.calls)
	assert.Equal(t, []int{25}, second.calls)

	entries := logs.FilterMessage("completion request replaced").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "r1", entries[0].ContextMap()["previous"])
}

func TestOpenClearsPreviousInput(t *testing.T) {
	c := New(nil)
	c.Open(Command{ResourceID: "r1"})
	c.SetInput("abc")
	require.Error(t, c.Submit())

	c.Open(Command{ResourceID: "r2"})
	assert.Empty(t, c.Input())
	assert.Empty(t, c.Validation())
}

func TestNilHandlerIsNoop(t *testing.T) {
	c := New(nil)
	c.Open(Command{ResourceID: "r1"})
	c.SetInput("5")
	assert.NotPanics(t, func() { require.NoError(t, c.Submit()) })
	assert.False(t, c.IsOpen())
}

func TestParseMinutes(t *testing.T) {
	n, err := ParseMinutes("90")
	require.NoError(t, err)
	assert.Equal(t, 90, n)

	_, err = ParseMinutes("ninety")
	assert.ErrorIs(t, err, ErrInvalidTime)
}
