package netadapter_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	irc "github.com/rirc-go/rirc"
	"github.com/rirc-go/rirc/internal/netadapter"
	"github.com/rirc-go/rirc/internal/state"
	"github.com/rirc-go/rirc/irctest"
)

func TestRunDispatchesIncomingLinesToState(t *testing.T) {
	mock := irctest.NewServer()
	defer mock.Close()

	client := &irc.Client{
		DialFn: func() (io.ReadWriteCloser, error) {
			return mock, nil
		},
	}

	srv := state.NewServer("irc.example.org", "6667", "", "guest", "Guest", []string{"nick"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- netadapter.Run(ctx, client, srv)
	}()

	mock.WriteString(":irc.example.org 001 nick :Welcome")
	mock.WriteString(":alice!a@b PRIVMSG nick :hi there")

	require.Eventually(t, func() bool {
		return srv.Registered
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return srv.Channel("alice") != nil
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "nick", srv.Nick)

	cancel()
	mock.Close()
	<-done
}
