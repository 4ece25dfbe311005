package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStateIdleByDefault(t *testing.T) {
	state := NewState()
	require.False(t, state.IsRecording())
	require.False(t, state.IsUploading())

	select {
	case <-state.UploadsDone():
	default:
		t.Fatal("idle state must report uploads done immediately")
	}
}

func TestUploadsDoneTracksPendingCount(t *testing.T) {
	state := NewState()

	releaseFirst := state.beginUpload()
	releaseSecond := state.beginUpload()
	require.True(t, state.IsUploading())

	done := state.UploadsDone()
	releaseFirst()
	select {
	case <-done:
		t.Fatal("uploads reported done with one still pending")
	default:
	}

	releaseSecond()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("uploads never reported done")
	}
	require.False(t, state.IsUploading())
}

func TestReleaseIsIdempotent(t *testing.T) {
	state := NewState()
	release := state.beginUpload()
	state.beginUpload()

	release()
	release()
	require.True(t, state.IsUploading(), "a double release must not drain another upload's slot")
}

func TestResetClearsEverything(t *testing.T) {
	state := NewState()
	state.setRecording(true)
	state.beginUpload()
	done := state.UploadsDone()

	state.Reset()

	require.False(t, state.IsRecording())
	require.False(t, state.IsUploading())
	select {
	case <-done:
	default:
		t.Fatal("reset must release waiters on pending uploads")
	}
}

func TestStaleReleaseAfterResetIsIgnored(t *testing.T) {
	state := NewState()
	stale := state.beginUpload()
	state.Reset()

	fresh := state.beginUpload()
	stale()
	require.True(t, state.IsUploading(), "a release from before the reset must not touch the new count")
	select {
	case <-state.UploadsDone():
		t.Fatal("stale release closed the new idle channel")
	default:
	}

	fresh()
	require.False(t, state.IsUploading())
}
