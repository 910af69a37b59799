//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInterruptContext_FirstSignalCancels(t *testing.T) {
	// Keeps the test process alive once interruptContext stops capturing.
	seen := make(chan os.Signal, 2)
	signal.Notify(seen, syscall.SIGUSR1)
	defer signal.Stop(seen)

	ctx, stop := interruptContext(context.Background(), syscall.SIGUSR1)
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled by the first signal")
	}

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	for i := 0; i < 2; i++ {
		select {
		case <-seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("signal %d not delivered", i+1)
		}
	}
}

func TestInterruptContext_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := interruptContext(parent, syscall.SIGUSR2)
	defer stop()

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context outlived its parent")
	}
}
