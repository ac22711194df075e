package msgr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateMachineHappyPathNoSign(t *testing.T) {
	m := NewStateMachine(AuthMethodNone)
	require.NoError(t, m.OnBannerReceived())
	require.Equal(t, StateHelloConnecting, m.State())

	require.NoError(t, m.OnHello(TagHello))
	require.Equal(t, StateAuthConnecting, m.State())

	outcome, err := m.OnAuthFrame(TagAuthDone)
	require.NoError(t, err)
	require.Equal(t, authOutcomeDoneNoSign, outcome)
	require.Equal(t, StateSessionConnecting, m.State())

	so, _, err := m.OnSessionFrame(TagServerIdent)
	require.NoError(t, err)
	require.Equal(t, sessionOutcomeReadyDirect, so)
	require.Equal(t, StateReady, m.State())

	require.NoError(t, m.OnReadyFrame(TagMessage))
}

func TestStateMachineHappyPathWithSignAndCompression(t *testing.T) {
	m := NewStateMachine(AuthMethodCephX)
	require.NoError(t, m.OnBannerReceived())
	require.NoError(t, m.OnHello(TagHello))

	outcome, err := m.OnAuthFrame(TagAuthDone)
	require.NoError(t, err)
	require.Equal(t, authOutcomeDoneNeedSign, outcome)
	require.Equal(t, StateAuthConnectingSign, m.State())

	require.NoError(t, m.OnAuthSignature(TagAuthSignature, true))
	require.Equal(t, StateCompressionConnecting, m.State())

	require.NoError(t, m.OnCompressionDone(TagCompressionDone))
	require.Equal(t, StateSessionConnecting, m.State())

	so, seq, err := m.OnSessionFrame(TagSessionReconnectOK)
	require.NoError(t, err)
	require.Equal(t, sessionOutcomeReadyReplay, so)
	require.EqualValues(t, 0, seq)
	require.Equal(t, StateReady, m.State())
}

func TestStateMachineAuthBadMethodRenegotiatesUpToLimit(t *testing.T) {
	m := NewStateMachine(AuthMethodCephX)
	require.NoError(t, m.OnBannerReceived())
	require.NoError(t, m.OnHello(TagHello))

	for i := 0; i < maxAuthRetries; i++ {
		outcome, err := m.OnAuthFrame(TagAuthBadMethod)
		require.NoError(t, err)
		require.Equal(t, authOutcomeRenegotiate, outcome)
		require.Equal(t, StateAuthConnecting, m.State())
	}

	_, err := m.OnAuthFrame(TagAuthBadMethod)
	require.Error(t, err)
}

func TestStateMachineAuthReplyMoreLoop(t *testing.T) {
	m := NewStateMachine(AuthMethodCephX)
	require.NoError(t, m.OnBannerReceived())
	require.NoError(t, m.OnHello(TagHello))

	outcome, err := m.OnAuthFrame(TagAuthReplyMore)
	require.NoError(t, err)
	require.Equal(t, authOutcomeRequestMore, outcome)
	require.Equal(t, StateAuthConnecting, m.State())
}

func TestStateMachineSessionRetryBumpsConnectSeq(t *testing.T) {
	m := NewStateMachine(AuthMethodNone)
	require.NoError(t, m.OnBannerReceived())
	require.NoError(t, m.OnHello(TagHello))
	_, err := m.OnAuthFrame(TagAuthDone)
	require.NoError(t, err)

	so, _, err := m.OnSessionFrame(TagSessionRetry)
	require.NoError(t, err)
	require.Equal(t, sessionOutcomeBumpConnectSeq, so)
	require.EqualValues(t, 1, m.ConnectSeq)
	require.Equal(t, StateSessionConnecting, m.State())
}

func TestStateMachineSessionResetZeroesServerCookie(t *testing.T) {
	m := NewStateMachine(AuthMethodNone)
	m.ServerCookie = 42
	require.NoError(t, m.OnBannerReceived())
	require.NoError(t, m.OnHello(TagHello))
	_, err := m.OnAuthFrame(TagAuthDone)
	require.NoError(t, err)

	so, _, err := m.OnSessionFrame(TagSessionReset)
	require.NoError(t, err)
	require.Equal(t, sessionOutcomeResetPartial, so)
	require.EqualValues(t, 0, m.ServerCookie)
}

func TestStateMachineFullResetZeroesSequences(t *testing.T) {
	m := NewStateMachine(AuthMethodNone)
	m.ServerCookie, m.GlobalSeq, m.ConnectSeq, m.InSeq = 1, 2, 3, 4
	m.ApplyFullReset()
	require.Zero(t, m.ServerCookie)
	require.Zero(t, m.GlobalSeq)
	require.Zero(t, m.ConnectSeq)
	require.Zero(t, m.InSeq)
}

func TestStateMachineWrongTagIsFatal(t *testing.T) {
	m := NewStateMachine(AuthMethodNone)
	require.Error(t, m.OnHello(TagAuthRequest))
}

func TestStateMachineReadyRejectsHandshakeTags(t *testing.T) {
	m := NewStateMachine(AuthMethodNone)
	require.NoError(t, m.OnBannerReceived())
	require.NoError(t, m.OnHello(TagHello))
	_, err := m.OnAuthFrame(TagAuthDone)
	require.NoError(t, err)
	_, _, err = m.OnSessionFrame(TagServerIdent)
	require.NoError(t, err)

	require.Error(t, m.OnReadyFrame(TagHello))
}

func TestStateMachinePrepareReconnectPreservesCookiesBumpsConnectSeq(t *testing.T) {
	m := NewStateMachine(AuthMethodNone)
	m.ClientCookie, m.ServerCookie, m.GlobalSeq, m.ConnectSeq = 10, 20, 30, 1
	m.PrepareReconnect()

	require.Equal(t, StateBannerConnecting, m.State())
	require.EqualValues(t, 10, m.ClientCookie)
	require.EqualValues(t, 20, m.ServerCookie)
	require.EqualValues(t, 30, m.GlobalSeq)
	require.EqualValues(t, 2, m.ConnectSeq)
}
