package fake

import (
	"context"
	"fmt"

	"github.com/cargaviva/freightcore/internal/integrations/directory"
)

// FakeClient serves deterministic profiles for local boot and tests.
// Driver IDs listed in hidden are withheld on the standard path, which
// forces callers down the freight-scoped fallback.
type FakeClient struct {
	hidden map[uint64]struct{}
}

func New(hiddenDrivers ...uint64) *FakeClient {
	h := make(map[uint64]struct{}, len(hiddenDrivers))
	for _, id := range hiddenDrivers {
		h[id] = struct{}{}
	}
	return &FakeClient{hidden: h}
}

func (f *FakeClient) GetProfile(ctx context.Context, driverID uint64) (directory.Profile, error) {
	if _, ok := f.hidden[driverID]; ok {
		return directory.Profile{}, directory.ErrHidden
	}
	return f.profile(driverID), nil
}

func (f *FakeClient) GetFreightScopedProfile(ctx context.Context, freightID, callerID, driverID uint64) (directory.Profile, error) {
	// the fake treats every caller as a verified participant
	return f.profile(driverID), nil
}

func (f *FakeClient) profile(driverID uint64) directory.Profile {
	var company *string
	if driverID%2 == 0 {
		c := fmt.Sprintf("Transportadora %d", driverID/2)
		company = &c
	}
	return directory.Profile{
		DriverID:    driverID,
		Name:        fmt.Sprintf("Motorista %d", driverID),
		CompanyName: company,
	}
}
