package domain

import (
	"testing"
	"time"
)

func TestShareIsValid(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	limit := int64(3)

	tests := []struct {
		name  string
		share Share
		want  bool
	}{
		{"no constraints", Share{IsActive: true}, true},
		{"deactivated", Share{IsActive: false}, false},
		{"expires later", Share{IsActive: true, ExpiresAt: timePtr(now.Add(time.Hour))}, true},
		// The expiry instant itself still grants access.
		{"expires exactly now", Share{IsActive: true, ExpiresAt: timePtr(now)}, true},
		{"expired", Share{IsActive: true, ExpiresAt: timePtr(now.Add(-time.Second))}, false},
		{"downloads left", Share{IsActive: true, MaxDownloads: &limit, CurrentDownloads: 2}, true},
		{"downloads exhausted", Share{IsActive: true, MaxDownloads: &limit, CurrentDownloads: 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.share.IsValid(now); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
