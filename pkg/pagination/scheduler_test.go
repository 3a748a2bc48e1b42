package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/rally-wsapi-client/pkg/client"
	"github.com/Sternrassler/rally-wsapi-client/pkg/envelope"
)

// fakeConn answers every request with a one-item QueryResult naming the
// requested start offset.
type fakeConn struct {
	workers int
	delay   func(start int) time.Duration
	fail    map[int]error

	mu       sync.Mutex
	calls    []int
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (c *fakeConn) Workers() int { return c.workers }

func (c *fakeConn) Send(ctx context.Context, req client.Request) (*envelope.Document, error) {
	start, _ := strconv.Atoi(req.Params[ParamStart])

	c.mu.Lock()
	c.calls = append(c.calls, start)
	c.mu.Unlock()

	cur := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.peak.Load()
		if cur <= peak || c.peak.CompareAndSwap(peak, cur) {
			break
		}
	}

	if c.delay != nil {
		select {
		case <-time.After(c.delay(start)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := c.fail[start]; ok {
		return nil, err
	}

	body := fmt.Sprintf(`{"QueryResult": {"Errors": [], "Warnings": [], "TotalResultCount": 0, "Results": [{"start": %d}]}}`, start)
	return envelope.Decode([]byte(body))
}

func (c *fakeConn) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func makeTasks(n int) []PageTask {
	tasks := make([]PageTask, 0, n)
	for i := 0; i < n; i++ {
		seq := i + 2
		start := (seq-1)*10 + 1
		tasks = append(tasks, PageTask{
			Seq:     seq,
			Start:   start,
			Request: client.NewRequest("http://wsapi.test/defect", map[string]string{ParamStart: strconv.Itoa(start)}),
		})
	}
	return tasks
}

func TestPartition(t *testing.T) {
	tasks := makeTasks(7) // Seq 2..8

	buckets := Partition(tasks, 3)
	if len(buckets) != 3 {
		t.Fatalf("len(buckets) = %d, want 3", len(buckets))
	}

	want := [][]int{
		{3, 6},
		{4, 7},
		{2, 5, 8},
	}
	for i, bucket := range buckets {
		var got []int
		for _, task := range bucket {
			got = append(got, task.Seq)
		}
		if fmt.Sprint(got) != fmt.Sprint(want[i]) {
			t.Errorf("bucket %d = %v, want %v", i, got, want[i])
		}
	}
}

func TestPartition_NonPositiveWorkers(t *testing.T) {
	buckets := Partition(makeTasks(3), 0)
	if len(buckets) != 1 || len(buckets[0]) != 3 {
		t.Errorf("Partition(tasks, 0) = %d buckets, want one bucket with all tasks", len(buckets))
	}
}

func TestRunAll_Empty(t *testing.T) {
	conn := &fakeConn{workers: 4}
	results, err := NewFetcher(conn).RunAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
	if conn.callCount() != 0 {
		t.Errorf("calls = %d, want 0", conn.callCount())
	}
}

func TestRunAll_SortedDespiteLatency(t *testing.T) {
	// Earlier pages are slower, so completion order is reversed.
	conn := &fakeConn{
		workers: 4,
		delay: func(start int) time.Duration {
			return time.Duration(100-start) * time.Millisecond
		},
	}
	tasks := makeTasks(8)

	results, err := NewFetcher(conn).RunAll(context.Background(), tasks)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if len(results) != len(tasks) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(tasks))
	}
	for i, result := range results {
		if result.Seq != tasks[i].Seq {
			t.Errorf("results[%d].Seq = %d, want %d", i, result.Seq, tasks[i].Seq)
		}
		var items []struct {
			Start int `json:"start"`
		}
		raw, _ := json.Marshal(result.Document.Envelope.Results)
		if err := json.Unmarshal(raw, &items); err != nil || len(items) != 1 {
			t.Fatalf("results[%d] items = %s", i, raw)
		}
		if items[0].Start != tasks[i].Start {
			t.Errorf("results[%d] start = %d, want %d", i, items[0].Start, tasks[i].Start)
		}
	}
}

func TestRunAll_ConcurrencyBoundedByWorkers(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    int32
	}{
		{"single worker", 1, 1},
		{"two workers", 2, 2},
		{"clamped to four", 9, 4},
		{"clamped to one", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{
				workers: tt.workers,
				delay:   func(int) time.Duration { return 20 * time.Millisecond },
			}
			if _, err := NewFetcher(conn).RunAll(context.Background(), makeTasks(12)); err != nil {
				t.Fatalf("RunAll() error = %v", err)
			}
			if peak := conn.peak.Load(); peak > tt.want {
				t.Errorf("peak concurrency = %d, want <= %d", peak, tt.want)
			}
			if conn.callCount() != 12 {
				t.Errorf("calls = %d, want 12", conn.callCount())
			}
		})
	}
}

func TestRunAll_FirstErrorAborts(t *testing.T) {
	pageErr := &client.HTTPStatusError{StatusCode: 500, URL: "http://wsapi.test/defect", Body: "boom"}

	tasks := makeTasks(12)
	conn := &fakeConn{
		workers: 2,
		delay:   func(int) time.Duration { return 10 * time.Millisecond },
		fail:    map[int]error{tasks[0].Start: pageErr},
	}

	results, err := NewFetcher(conn).RunAll(context.Background(), tasks)
	if err == nil {
		t.Fatal("RunAll() error = nil, want page error")
	}
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}

	var statusErr *client.HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr != pageErr {
		t.Errorf("error = %v, want the page error unchanged", err)
	}
	if conn.callCount() >= len(tasks) {
		t.Errorf("calls = %d, want fewer than %d after abort", conn.callCount(), len(tasks))
	}
}

func TestRunAll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn := &fakeConn{workers: 4}
	_, err := NewFetcher(conn).RunAll(ctx, makeTasks(4))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if conn.callCount() != 0 {
		t.Errorf("calls = %d, want 0", conn.callCount())
	}
}
