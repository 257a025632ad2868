package chatsphere

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatcherFiresRegisteredCallbacks(t *testing.T) {
	var d Dispatcher
	var got Message
	var errGot error
	d.SetOnMessageCreated(func(m Message) { got = m })
	d.SetOnError(func(err error) { errGot = err })

	d.fireMessageCreated(Message{ID: "m1", Content: "hi"})
	require.Equal(t, "m1", got.ID)

	d.fireError(NewError(ErrorMalformedEvent, "bad frame"))
	require.True(t, IsMalformedEvent(errGot))
}

func TestDispatcherNilCallbacksAreSafe(t *testing.T) {
	var d Dispatcher
	d.fireSnapshot(nil)
	d.fireMessageCreated(Message{})
	d.fireMessageEdited(Message{})
	d.fireMessageDeleted("x")
	d.fireTypingChanged(nil)
	d.fireReceipt("m", "u")
	d.fireState(StateEvent{Old: StateIdle, New: StateLoading})
	d.fireError(nil)
}

func TestErrorCodeRoundTrip(t *testing.T) {
	err := WrapError(ErrorFetchFailed, "history for R1", NewError(ErrorUnknown, "boom"))
	require.True(t, IsFetchError(err))
	require.False(t, IsConnectionError(err))
	require.Contains(t, err.Error(), "fetch_failed")
	require.Contains(t, err.Error(), "history for R1")
}

func TestSessionStateStrings(t *testing.T) {
	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "loading", StateLoading.String())
	require.Equal(t, "live", StateLive.String())
	require.Equal(t, "closed", StateClosed.String())
}
