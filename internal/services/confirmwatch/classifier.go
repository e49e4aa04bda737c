package confirmwatch

import (
	"time"

	"github.com/cargaviva/freightcore/internal/services/pendingconfirm"
)

// Urgency tiers a pending confirmation walks through as the 72h window
// drains. The worker reminds the producer once per tier crossing.
const (
	TierPending = iota
	TierUrgent
	TierCritical
	TierExpired
)

var tierNames = [...]string{"pending", "urgent", "critical", "expired"}

func TierName(tier int) string {
	if tier < 0 || tier >= len(tierNames) {
		return "pending"
	}
	return tierNames[tier]
}

// TierFor classifies how much of the confirmation window is left.
func TierFor(deadline, now time.Time) int {
	left := deadline.Sub(now)
	switch {
	case left <= 0:
		return TierExpired
	case left < 6*time.Hour:
		return TierCritical
	case left < 24*time.Hour:
		return TierUrgent
	default:
		return TierPending
	}
}

// NextCheckDelay schedules the next look: at the next tier boundary, or far
// out once the window expired (the item only leaves the queue through
// confirmation or settlement).
func NextCheckDelay(deadline, now time.Time) time.Duration {
	left := deadline.Sub(now)
	switch {
	case left <= 0:
		return 30 * 24 * time.Hour
	case left < 6*time.Hour:
		return left
	case left < 24*time.Hour:
		return left - 6*time.Hour
	default:
		return left - 24*time.Hour
	}
}

// Remaining mirrors the reconciler's deadline math for the reminder payload.
func Remaining(deadline, now time.Time) int {
	return pendingconfirm.HoursRemaining(deadline, now)
}
