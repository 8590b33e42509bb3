package schedule

import (
	"context"
	"testing"
	"time"
)

func TestNext(t *testing.T) {
	t.Run("hourly in UTC", func(t *testing.T) {
		from := time.Date(2023, 6, 1, 10, 30, 0, 0, time.UTC)
		got, err := Next("0 * * * *", time.UTC, from)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		want := time.Date(2023, 6, 1, 11, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("Next = %s; want %s", got, want)
		}
	})

	t.Run("timezone shifts the schedule", func(t *testing.T) {
		east := time.FixedZone("UTC+2", 2*60*60)
		from := time.Date(2023, 6, 1, 10, 30, 0, 0, time.UTC) // 12:30 in UTC+2
		got, err := Next("0 13 * * *", east, from)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		want := time.Date(2023, 6, 1, 13, 0, 0, 0, east)
		if !got.Equal(want) {
			t.Errorf("Next = %s; want %s", got, want)
		}
	})

	t.Run("invalid expression", func(t *testing.T) {
		if _, err := Next("not a cron", time.UTC, time.Now()); err == nil {
			t.Fatalf("Next succeeded; want error")
		}
	})
}

func TestRun(t *testing.T) {
	t.Run("invalid expression fails before scheduling", func(t *testing.T) {
		err := Run(context.Background(), "61 * * * *", time.UTC, func() {})
		if err == nil {
			t.Fatalf("Run succeeded; want error")
		}
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- Run(ctx, "0 0 1 1 *", time.UTC, func() {})
		}()
		cancel()
		select {
		case err := <-done:
			if err != context.Canceled {
				t.Errorf("Run = %v; want context.Canceled", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("Run did not return after cancellation")
		}
	})
}
