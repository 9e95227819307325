package keylock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func exerciseMutualExclusion(t *testing.T, l Locker) {
	t.Helper()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), 7)
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxInside)
	}
}

func TestLocalMutualExclusion(t *testing.T) {
	l := NewLocal()
	exerciseMutualExclusion(t, l)
	if l.Len() != 0 {
		t.Fatalf("expected entries released, got %d", l.Len())
	}
}

func TestLocalKeysIndependent(t *testing.T) {
	l := NewLocal()
	unlock, _ := l.Lock(context.Background(), 1)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	other, err := l.Lock(ctx, 2)
	if err != nil {
		t.Fatalf("expected different key to lock immediately, got %v", err)
	}
	other()
}

func TestLocalContextCancel(t *testing.T) {
	l := NewLocal()
	unlock, _ := l.Lock(context.Background(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, 1); err == nil {
		t.Fatalf("expected timeout while key is held")
	}

	unlock()
	unlock() // second call is a no-op
	if l.Len() != 0 {
		t.Fatalf("expected entries released, got %d", l.Len())
	}
}

func TestRedisMutualExclusion(t *testing.T) {
	addr := os.Getenv("ARCADE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ARCADE_TEST_REDIS_ADDR not set")
	}
	cli := redis.NewClient(&redis.Options{Addr: addr})
	defer cli.Close()
	if err := cli.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	exerciseMutualExclusion(t, NewRedis(cli, "arcade-test-lock"))
}
