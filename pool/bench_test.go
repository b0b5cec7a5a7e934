package pool

import (
	"context"
	"testing"
	"time"
)

func BenchmarkPool_AcquireRelease(b *testing.B) {
	p, err := New[*mockConn](&mockFactory{}, DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = p.Close(context.Background()) }()
	ctx := context.Background()

	for b.Loop() {
		h, err := p.Acquire(ctx)
		if err != nil {
			b.Fatal(err)
		}
		h.Release()
	}
}

func BenchmarkPool_Contended(b *testing.B) {
	p, err := New[*mockConn](&mockFactory{}, Config{MaxSize: 4, AcquireTimeout: time.Minute, IdleTimeout: time.Minute})
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = p.Close(context.Background()) }()

	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			h, err := p.Acquire(ctx)
			if err != nil {
				b.Error(err)
				return
			}
			h.Release()
		}
	})
}

func BenchmarkPool_Stats(b *testing.B) {
	p, _ := New[*mockConn](&mockFactory{}, DefaultConfig())
	defer func() { _ = p.Close(context.Background()) }()

	for b.Loop() {
		_ = p.Stats()
	}
}
