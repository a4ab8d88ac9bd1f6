package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestDispatcherKeepsPerKeyOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4, QueueSize: 128})

	var mu sync.Mutex
	got := make(map[string][]int)
	for i := 0; i < 50; i++ {
		for _, key := range []string{"chat-1", "chat-2", "chat-3"} {
			key, i := key, i
			err := d.Enqueue(context.Background(), key, "send.text", "sendMessage", func() error {
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}
	}
	d.Close()

	for key, seq := range got {
		if len(seq) != 50 {
			t.Fatalf("%s: ran %d jobs, want 50", key, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("%s: position %d ran job %d", key, i, v)
			}
		}
	}
}

func TestDispatcherQueueFullAndClosed(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	gate := make(chan struct{})
	started := make(chan struct{})

	if err := d.Enqueue(context.Background(), "k", "a", "", func() error {
		close(started)
		<-gate
		return nil
	}); err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	<-started
	if err := d.Enqueue(context.Background(), "k", "b", "", func() error { return nil }); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}
	if err := d.Enqueue(context.Background(), "k", "c", "", func() error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	close(gate)
	d.Close()

	if err := d.Enqueue(context.Background(), "k", "d", "", func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
	d.Close()
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls int
	done := make(chan struct{})
	err := d.Enqueue(context.Background(), "k", "send.text", "sendMessage", func() error {
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	<-done
	d.Close()
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("errors = %d, want 0", d.ErrorCount())
	}
}

func TestDispatcherCountsPermanentFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2, MaxRetries: 3, RetryBackoff: time.Millisecond})
	for i := 0; i < 3; i++ {
		_ = d.Enqueue(context.Background(), fmt.Sprint(i), "send.text", "", func() error {
			return errors.New("bad request (400)")
		})
	}
	d.Close()
	if d.ErrorCount() != 3 {
		t.Fatalf("errors = %d, want 3", d.ErrorCount())
	}
}

func TestClassifyAndSanitize(t *testing.T) {
	if got := classifyError(context.DeadlineExceeded); got != "timeout" {
		t.Fatalf("classify deadline = %s", got)
	}
	if got := classifyError(errors.New("telegram: Bad Request (400)")); got != "http_4xx" {
		t.Fatalf("classify 400 = %s", got)
	}
	msg := sanitizeErrorMessage(errors.New("post https://api.telegram.org/bot123:ABC-def/sendMessage failed"))
	if msg != "post https://api.telegram.org/bot<redacted>/sendMessage failed" {
		t.Fatalf("sanitize = %s", msg)
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		attempt   int
		wantWait  time.Duration
		wantRetry bool
	}{
		{name: "flood", err: tele.FloodError{RetryAfter: 3}, attempt: 1, wantWait: 3 * time.Second, wantRetry: true},
		{name: "flood without hint", err: tele.FloodError{}, attempt: 2, wantWait: time.Second, wantRetry: true},
		{name: "dial", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, attempt: 2, wantWait: 2 * time.Second, wantRetry: true},
		{name: "server error", err: errors.New("telegram: Internal Server Error (500)"), attempt: 1, wantWait: time.Second, wantRetry: true},
		{name: "bad request", err: errors.New("telegram: Bad Request (400)"), attempt: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wait, retry := retryDelay(tc.err, time.Second, tc.attempt)
			if wait != tc.wantWait || retry != tc.wantRetry {
				t.Fatalf("retryDelay = %v, %v; want %v, %v", wait, retry, tc.wantWait, tc.wantRetry)
			}
		})
	}
}

func TestDispatcherStats(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 1, RetryBackoff: time.Millisecond})
	calls := 0
	_ = d.Enqueue(context.Background(), "k", "send.text", "", func() error {
		calls++
		if calls == 1 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	})
	_ = d.Enqueue(context.Background(), "k", "send.text", "", func() error {
		return errors.New("telegram: Forbidden (403)")
	})
	d.Close()

	st := d.Stats()
	if st.Sent != 1 || st.Failed != 1 || st.Retried != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestDispatcherEnqueueWaitKeepsOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	gate := make(chan struct{})
	started := make(chan struct{})

	var mu sync.Mutex
	var order []string
	record := func(name string) func() error {
		return func() error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	if err := d.Enqueue(context.Background(), "k", "a", "", func() error {
		close(started)
		<-gate
		return record("a")()
	}); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	<-started
	if err := d.Enqueue(context.Background(), "k", "b", "", record("b")); err != nil {
		t.Fatalf("enqueue b: %v", err)
	}

	waited := make(chan error, 1)
	go func() {
		waited <- d.EnqueueWait(context.Background(), "k", "c", "", record("c"))
	}()
	select {
	case err := <-waited:
		t.Fatalf("EnqueueWait returned %v before the queue had room", err)
	case <-time.After(20 * time.Millisecond):
	}
	close(gate)
	if err := <-waited; err != nil {
		t.Fatalf("EnqueueWait: %v", err)
	}
	d.Close()

	if got := fmt.Sprint(order); got != "[a b c]" {
		t.Fatalf("order = %s, want [a b c]", got)
	}
}

func TestDispatcherEnqueueWaitGivesUp(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	gate := make(chan struct{})
	started := make(chan struct{})
	_ = d.Enqueue(context.Background(), "k", "a", "", func() error { close(started); <-gate; return nil })
	<-started
	_ = d.Enqueue(context.Background(), "k", "b", "", func() error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := d.EnqueueWait(ctx, "k", "c", "", func() error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	waited := make(chan error, 1)
	go func() {
		waited <- d.EnqueueWait(context.Background(), "k", "d", "", func() error { return nil })
	}()
	time.Sleep(10 * time.Millisecond)
	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()
	if err := <-waited; !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
	close(gate)
	<-closed
}
