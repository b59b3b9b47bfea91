package trigger

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"arksched/pkg/logx"
)

func TestStartDisabled(t *testing.T) {
	s := New(Config{Enabled: false}, Hooks{}, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(Config{Enabled: true, RebuildSpec: "not a spec"}, Hooks{
		Rebuild: func(ctx context.Context) error { return nil },
	}, logx.Nop())
	err := s.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "rebuild spec") {
		t.Fatalf("err = %v", err)
	}

	s = New(Config{Enabled: true, Retention: Retention{Enabled: true, Spec: "nope"}}, Hooks{
		Retain: func(ctx context.Context, cutoff time.Time) (int64, error) { return 0, nil },
	}, logx.Nop())
	err = s.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "retention spec") {
		t.Fatalf("err = %v", err)
	}
}

func TestRebuildFires(t *testing.T) {
	fired := make(chan struct{}, 1)
	s := New(Config{Enabled: true, RebuildSpec: "* * * * * *"}, Hooks{
		Rebuild: func(ctx context.Context) error {
			select {
			case fired <- struct{}{}:
			default:
			}
			return nil
		},
	}, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatalf("rebuild never fired")
	}
}

func TestApplyRestartsCron(t *testing.T) {
	fired := make(chan struct{}, 1)
	s := New(Config{Enabled: false}, Hooks{
		Rebuild: func(ctx context.Context) error {
			select {
			case fired <- struct{}{}:
			default:
			}
			return nil
		},
	}, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	if err := s.Apply(Config{Enabled: true, RebuildSpec: "* * * * * *"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatalf("rebuild never fired after apply")
	}
}

func TestRebuildOverlapSkipped(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	s := New(Config{}, Hooks{
		Rebuild: func(ctx context.Context) error {
			calls.Add(1)
			close(started)
			<-release
			return nil
		},
	}, logx.Nop())

	go func() {
		s.fireRebuild(context.Background())
		close(done)
	}()
	<-started

	// Second fire while the first is still going must be dropped.
	s.fireRebuild(context.Background())
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	close(release)
	<-done
}

func TestRetentionCutoff(t *testing.T) {
	var got time.Time
	s := New(Config{Retention: Retention{Enabled: true, MaxAge: 48 * time.Hour}}, Hooks{
		Retain: func(ctx context.Context, cutoff time.Time) (int64, error) {
			got = cutoff
			return 3, nil
		},
	}, logx.Nop())

	s.fireRetention(context.Background())
	want := time.Now().Add(-48 * time.Hour)
	if d := got.Sub(want); d < -time.Minute || d > time.Minute {
		t.Fatalf("cutoff = %v, want about %v", got, want)
	}
}

func TestRetentionDefaultAge(t *testing.T) {
	s := New(Config{}, Hooks{}, logx.Nop())
	if got := s.maxAge(); got != DefaultRetentionAge {
		t.Fatalf("maxAge = %v", got)
	}
	s.cfg.Retention.MaxAge = time.Hour
	if got := s.maxAge(); got != time.Hour {
		t.Fatalf("maxAge = %v", got)
	}
}
