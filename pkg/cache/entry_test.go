package cache

import (
	"testing"
	"time"
)

func TestEntry_IsFresh(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		fetchedAt time.Time
		ttl       time.Duration
		want      bool
	}{
		{
			name:      "just fetched",
			fetchedAt: now,
			ttl:       DefaultTTL,
			want:      true,
		},
		{
			name:      "one millisecond before expiry",
			fetchedAt: now.Add(-DefaultTTL + time.Millisecond),
			ttl:       DefaultTTL,
			want:      true,
		},
		{
			name:      "exactly at ttl is stale",
			fetchedAt: now.Add(-DefaultTTL),
			ttl:       DefaultTTL,
			want:      false,
		},
		{
			name:      "long expired",
			fetchedAt: now.Add(-1 * time.Hour),
			ttl:       DefaultTTL,
			want:      false,
		},
		{
			name:      "zero ttl never fresh",
			fetchedAt: now,
			ttl:       0,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{FetchedAt: tt.fetchedAt}
			if got := entry.IsFresh(now, tt.ttl); got != tt.want {
				t.Errorf("IsFresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_IsFresh_Nil(t *testing.T) {
	var entry *Entry
	if entry.IsFresh(time.Now(), DefaultTTL) {
		t.Error("nil entry should never be fresh")
	}
}

func TestEntry_Age(t *testing.T) {
	now := time.Now()
	entry := &Entry{FetchedAt: now.Add(-90 * time.Second)}
	if got := entry.Age(now); got != 90*time.Second {
		t.Errorf("Age() = %v, want 90s", got)
	}
}
