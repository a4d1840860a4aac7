package meta

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitForFlagAlreadySet(t *testing.T) {
	err := waitForFlag(context.Background(), func() bool { return true }, time.Millisecond, 1)
	if err != nil {
		t.Fatalf("expected immediate success, got %v", err)
	}
}

func TestWaitForFlagBecomesSet(t *testing.T) {
	var flag atomic.Bool
	go func() {
		time.Sleep(5 * time.Millisecond)
		flag.Store(true)
	}()
	err := waitForFlag(context.Background(), flag.Load, time.Millisecond, 50)
	if err != nil {
		t.Fatalf("expected success once flag set, got %v", err)
	}
}

func TestWaitForFlagTimesOut(t *testing.T) {
	err := waitForFlag(context.Background(), func() bool { return false }, time.Millisecond, 5)
	if err != ErrSDKTimeout {
		t.Fatalf("expected ErrSDKTimeout, got %v", err)
	}
}

func TestWaitForFlagHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := waitForFlag(ctx, func() bool { return false }, time.Millisecond, 50)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
