package world

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"buildcraft.ai/internal/protocol"
)

func TestRunServesRequestsAndFrames(t *testing.T) {
	defer goleak.VerifyNone(t)

	tune := testTuning()
	tune.FrameEveryTicks = 1
	w := newTestWorld(t, tune, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	resp := make(chan Result, 1)
	w.Inbox() <- Request{Kind: ReqPlace, TypeID: "WALL", Cell: cellPtr(4, 4), Resp: resp}
	select {
	case res := <-resp:
		require.NoError(t, res.Err)
		require.NotZero(t, res.Ghost)
	case <-time.After(2 * time.Second):
		t.Fatal("no result from the world loop")
	}

	out := make(chan []byte, 1)
	w.ObserverJoin() <- ObserverJoinRequest{SessionID: "obs-1", Out: out}
	select {
	case b := <-out:
		var f protocol.FrameMsg
		require.NoError(t, json.Unmarshal(b, &f))
		require.Equal(t, protocol.TypeFrame, f.Type)
		require.Len(t, f.Ghosts, 1)
		require.Equal(t, "WALL", f.Ghosts[0].TypeID)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}

	w.ObserverLeave() <- "obs-1"
	cancel()
	select {
	case err := <-done:
		require.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestStopEndsRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := newTestWorld(t, testTuning(), nil)
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	w.Stop()
	w.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestSubmitTuningDropsWhenFull(t *testing.T) {
	w := newTestWorld(t, testTuning(), nil)
	require.True(t, w.SubmitTuning(testTuning()))
	require.False(t, w.SubmitTuning(testTuning()))
}

func TestDoneClosesWhenRunReturns(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := newTestWorld(t, testTuning(), nil)
	select {
	case <-w.Done():
		t.Fatal("Done closed before Run started")
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{})
	go func() {
		defer close(ran)
		_ = w.Run(ctx)
	}()
	cancel()
	<-ran
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Run returned")
	}
}
