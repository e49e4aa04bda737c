package pendingconfirm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeadlineMath(t *testing.T) {
	reported := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	deadline := Deadline(reported)
	require.Equal(t, reported.Add(72*time.Hour), deadline)

	require.Equal(t, 2, HoursRemaining(deadline, reported.Add(70*time.Hour)))
	require.Equal(t, 5, HoursRemaining(deadline, reported.Add(67*time.Hour)))
	require.Equal(t, 71, HoursRemaining(deadline, reported.Add(1*time.Hour)))
	require.Equal(t, 0, HoursRemaining(deadline, reported.Add(73*time.Hour)))

	// partial hours floor
	require.Equal(t, 1, HoursRemaining(deadline, reported.Add(70*time.Hour+30*time.Minute)))
}

func TestExpired(t *testing.T) {
	reported := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	deadline := Deadline(reported)

	require.False(t, Expired(deadline, reported.Add(71*time.Hour+59*time.Minute)))
	require.True(t, Expired(deadline, reported.Add(72*time.Hour)))
	require.True(t, Expired(deadline, reported.Add(73*time.Hour)))
}

func TestDeadlineLabel(t *testing.T) {
	reported := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	deadline := Deadline(reported)

	require.Equal(t, "2d 23h restantes", DeadlineLabel(deadline, reported.Add(1*time.Hour)))
	require.Equal(t, "1d 0h restantes", DeadlineLabel(deadline, reported.Add(48*time.Hour)))
	require.Equal(t, "5h restantes", DeadlineLabel(deadline, reported.Add(67*time.Hour)))
	require.Equal(t, "PRAZO EXPIRADO", DeadlineLabel(deadline, reported.Add(73*time.Hour)))
}
