package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/Somerville-Events/somerville.events-sub000/internal/dedup"
)

// BenchmarkInsertWithDedup measures insert cost when many events share a slot,
// which is the worst case for the similarity pass.
func BenchmarkInsertWithDedup(b *testing.B) {
	repo := NewEventRepository(setupTestDB(b), dedup.NewMatcher(0, 0))
	ctx := context.Background()
	start := time.Date(2025, 5, 3, 14, 0, 0, 0, time.UTC)

	// seed one crowded slot
	for i := 0; i < 200; i++ {
		_, _, _ = repo.Insert(ctx, newEvent(fmt.Sprintf("Porchfest: Band %03d", i), "Live music.", "123 Summer St", start))
	}

	r := rand.New(rand.NewSource(1))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n := r.Intn(400)
		_, _, _ = repo.Insert(ctx, newEvent(fmt.Sprintf("Porchfest: Band %03d", n), "Live music.", "123 Summer St", start))
	}
}

func BenchmarkListPage(b *testing.B) {
	repo := NewEventRepository(setupTestDB(b), nil)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2000; i++ {
		_, _, _ = repo.Insert(ctx, newEvent(fmt.Sprintf("Event %d", i), "", "", base.Add(time.Duration(i)*time.Minute)))
	}

	b.ResetTimer()
	b.Run("FirstPage", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = repo.ListPage(ctx, 0, 100)
		}
	})
	b.Run("DeepPage", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = repo.ListPage(ctx, 1900, 100)
		}
	})
}
