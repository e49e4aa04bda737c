package directory

import (
	"context"

	"github.com/pkg/errors"
)

// Profile is the slice of a participant's identity this core is allowed to
// see. Management of the profiles themselves lives elsewhere.
type Profile struct {
	DriverID    uint64
	Name        string
	Phone       *string
	CompanyName *string
}

// ErrHidden means row-level policy withheld the profile on the standard
// path. Callers holding a freight context may retry through
// GetFreightScopedProfile.
var ErrHidden = errors.New("profile hidden by access policy")

type Client interface {
	// GetProfile is the standard directory lookup, subject to row-level
	// visibility policy.
	GetProfile(ctx context.Context, driverID uint64) (Profile, error)

	// GetFreightScopedProfile is the secured fallback: the directory side
	// re-verifies that caller and driver are both participants of the
	// freight before disclosing anything.
	GetFreightScopedProfile(ctx context.Context, freightID, callerID, driverID uint64) (Profile, error)
}
