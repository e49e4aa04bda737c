package pendingconfirm

import (
	"fmt"
	"time"
)

// The producer has 72 hours from the delivery report to confirm receipt.
const (
	confirmationWindow = 72 * time.Hour
	urgentUnderHours   = 24
	criticalUnderHours = 6
)

// Deadline is when the confirmation window closes for a delivery reported at
// reportedAt.
func Deadline(reportedAt time.Time) time.Time {
	return reportedAt.Add(confirmationWindow)
}

// HoursRemaining floors the time left to whole hours, clamped at zero once
// the window expired.
func HoursRemaining(deadline, now time.Time) int {
	left := deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Hour)
}

// Expired is true once the deadline passed; distinct from HoursRemaining==0,
// which also covers the final partial hour.
func Expired(deadline, now time.Time) bool {
	return !now.Before(deadline)
}

// DeadlineLabel renders the human countdown shown to the producer.
func DeadlineLabel(deadline, now time.Time) string {
	if Expired(deadline, now) {
		return "PRAZO EXPIRADO"
	}
	h := HoursRemaining(deadline, now)
	if h >= 24 {
		return fmt.Sprintf("%dd %dh restantes", h/24, h%24)
	}
	return fmt.Sprintf("%dh restantes", h)
}
