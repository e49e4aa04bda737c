package transitions

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/cargaviva/freightcore/internal/models"
	"github.com/cargaviva/freightcore/internal/notify"
	"github.com/cargaviva/freightcore/internal/storage/pgfreight"
)

type fakeRepo struct {
	freight     *models.Freight
	progress    map[uint64]*models.DriverTripProgress
	recentDup   bool
	assignments []*models.FreightAssignment

	applied     []pgfreight.TransitionUpdate
	applyErr    error
	applyBlock  chan struct{} // when set, ApplyTransition waits on it
	finalStatus string
}

func (f *fakeRepo) GetFreight(ctx context.Context, id uint64) (*models.Freight, error) {
	return f.freight, nil
}
func (f *fakeRepo) GetProgress(ctx context.Context, freightID, driverID uint64) (*models.DriverTripProgress, error) {
	if p, ok := f.progress[driverID]; ok {
		return p, nil
	}
	return nil, models.ErrNotFound
}
func (f *fakeRepo) HasRecentHistory(ctx context.Context, freightID, driverID uint64, status string, window time.Duration) (bool, error) {
	return f.recentDup, nil
}
func (f *fakeRepo) ApplyTransition(ctx context.Context, upd pgfreight.TransitionUpdate) error {
	if f.applyBlock != nil {
		<-f.applyBlock
	}
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, upd)
	return nil
}
func (f *fakeRepo) ListAssignmentsByFreight(ctx context.Context, freightID uint64) ([]*models.FreightAssignment, error) {
	return f.assignments, nil
}
func (f *fakeRepo) SetFreightStatus(ctx context.Context, freightID uint64, status string) error {
	f.finalStatus = status
	return nil
}

type fakeResolver struct {
	effective string
	primed    map[string]string
}

func (r *fakeResolver) Resolve(ctx context.Context, freightID uint64, viewer models.Viewer) (string, error) {
	return r.effective, nil
}
func (r *fakeResolver) Prime(ctx context.Context, freightID uint64, viewer models.Viewer, status string) {
	if r.primed == nil {
		r.primed = map[string]string{}
	}
	key := "producer"
	if viewer.Kind == models.ViewerDriver {
		key = "driver"
	}
	r.primed[key] = status
}
func (r *fakeResolver) Invalidate(ctx context.Context, freightID uint64) {}

type fakeGuard struct {
	allow bool
	calls int
}

func (g *fakeGuard) Acquire(ctx context.Context, freightID, driverID uint64, status string, window time.Duration) (bool, error) {
	g.calls++
	return g.allow, nil
}

type fakeLocator struct {
	point models.GeoPoint
	err   error
}

func (l *fakeLocator) Locate(ctx context.Context, driverID uint64) (models.GeoPoint, error) {
	return l.point, l.err
}

type fakePublisher struct {
	topics []string
	values [][]byte
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.topics = append(p.topics, topic)
	p.values = append(p.values, value)
	return nil
}

func newTestService(repo *fakeRepo, res *fakeResolver, guard *fakeGuard, loc Locator, pub *fakePublisher) (*Service, *notify.Notifier) {
	n := notify.New()
	return New(repo, res, guard, loc, pub, n, "freight.status.changed"), n
}

func baseRepo() *fakeRepo {
	return &fakeRepo{
		freight: &models.Freight{
			ID: 1, ProducerID: 100, ServiceType: models.ServiceTypeDefault,
			Status: models.StatusInNegotiation, RequiredTrucks: 1,
		},
		progress: map[uint64]*models.DriverTripProgress{},
	}
}

func TestRequestTransition_FinalStateLocked(t *testing.T) {
	repo := baseRepo()
	repo.freight.Status = models.StatusDelivered
	res := &fakeResolver{effective: models.StatusDelivered}
	svc, _ := newTestService(repo, res, &fakeGuard{allow: true}, nil, &fakePublisher{})

	err := svc.RequestTransition(context.Background(), TransitionRequest{
		FreightID: 1, DriverID: 7, Target: models.StatusAccepted,
	})
	require.ErrorIs(t, err, models.ErrFinalStateLocked)
	require.Empty(t, repo.applied)
}

func TestRequestTransition_OtherLaneDeliveryDoesNotLock(t *testing.T) {
	// 3-truck freight: one lane already confirmed delivered, another still on
	// the road. The delivered lane ranks terminal in the producer view, but
	// the in-transit lane must still be able to report its own delivery.
	repo := baseRepo()
	repo.freight.RequiredTrucks = 3
	repo.assignments = []*models.FreightAssignment{
		{FreightID: 1, DriverID: 6, Status: models.StatusDelivered},
		{FreightID: 1, DriverID: 7, Status: models.StatusInTransit},
		{FreightID: 1, DriverID: 8, Status: models.StatusAccepted},
	}
	repo.progress[7] = &models.DriverTripProgress{
		FreightID: 1, DriverID: 7, CurrentStatus: models.StatusInTransit,
	}
	res := &fakeResolver{effective: models.StatusDelivered}
	svc, _ := newTestService(repo, res, &fakeGuard{allow: true}, nil, &fakePublisher{})

	err := svc.RequestTransition(context.Background(), TransitionRequest{
		FreightID: 1, DriverID: 7, Target: models.StatusDeliveredPendingConf,
	})
	require.NoError(t, err)
	require.Len(t, repo.applied, 1)
	require.Equal(t, models.StatusDeliveredPendingConf, repo.applied[0].Status)
}

func TestRequestTransition_DuplicateSuppressedByHistory(t *testing.T) {
	repo := baseRepo()
	repo.recentDup = true
	res := &fakeResolver{effective: models.StatusInNegotiation}
	svc, _ := newTestService(repo, res, &fakeGuard{allow: true}, nil, &fakePublisher{})

	err := svc.RequestTransition(context.Background(), TransitionRequest{
		FreightID: 1, DriverID: 7, Target: models.StatusAccepted,
	})
	require.ErrorIs(t, err, models.ErrDuplicateSuppressed)
	require.Empty(t, repo.applied)
}

func TestRequestTransition_DuplicateSuppressedByGuard(t *testing.T) {
	repo := baseRepo()
	res := &fakeResolver{effective: models.StatusInNegotiation}
	guard := &fakeGuard{allow: false}
	svc, _ := newTestService(repo, res, guard, nil, &fakePublisher{})

	err := svc.RequestTransition(context.Background(), TransitionRequest{
		FreightID: 1, DriverID: 7, Target: models.StatusAccepted,
	})
	require.ErrorIs(t, err, models.ErrDuplicateSuppressed)
	require.Equal(t, 1, guard.calls)
	require.Empty(t, repo.applied)
}

func TestRequestTransition_OutOfOrder(t *testing.T) {
	repo := baseRepo()
	repo.progress[7] = &models.DriverTripProgress{FreightID: 1, DriverID: 7, CurrentStatus: models.StatusAccepted}
	res := &fakeResolver{effective: models.StatusAccepted}
	svc, _ := newTestService(repo, res, &fakeGuard{allow: true}, nil, &fakePublisher{})

	// skipping LOADING entirely
	err := svc.RequestTransition(context.Background(), TransitionRequest{
		FreightID: 1, DriverID: 7, Target: models.StatusInTransit,
	})
	require.ErrorIs(t, err, models.ErrOutOfOrderTransition)
	require.Empty(t, repo.applied)
}

func TestRequestTransition_UrbanFlowSkipsLoaded(t *testing.T) {
	repo := baseRepo()
	repo.freight.ServiceType = models.ServiceTypeUrban
	repo.progress[7] = &models.DriverTripProgress{FreightID: 1, DriverID: 7, CurrentStatus: models.StatusLoading}
	res := &fakeResolver{effective: models.StatusLoading}
	svc, _ := newTestService(repo, res, &fakeGuard{allow: true}, nil, &fakePublisher{})

	err := svc.RequestTransition(context.Background(), TransitionRequest{
		FreightID: 1, DriverID: 7, Target: models.StatusInTransit,
	})
	require.NoError(t, err)
	require.Len(t, repo.applied, 1)
	require.Equal(t, models.StatusInTransit, repo.applied[0].Status)
}

func TestRequestTransition_AppliesAndFansOut(t *testing.T) {
	repo := baseRepo()
	res := &fakeResolver{effective: models.StatusInNegotiation}
	pub := &fakePublisher{}
	loc := &fakeLocator{point: models.GeoPoint{Lat: -23.55, Lng: -46.63}}
	svc, n := newTestService(repo, res, &fakeGuard{allow: true}, loc, pub)

	ch, release := n.SubscribeProducer(100)
	defer release()

	err := svc.RequestTransition(context.Background(), TransitionRequest{
		FreightID: 1, DriverID: 7, Target: models.StatusAccepted,
	})
	require.NoError(t, err)

	require.Len(t, repo.applied, 1)
	upd := repo.applied[0]
	require.Equal(t, models.StatusAccepted, upd.Status)
	require.NotNil(t, upd.Lat)
	require.InDelta(t, -23.55, *upd.Lat, 0.001)

	// read-your-writes projection primed for the acting driver
	require.Equal(t, models.StatusAccepted, res.primed["driver"])

	// producer-scoped change signal
	select {
	case ev := <-ch:
		require.Equal(t, uint64(1), ev.FreightID)
		require.Equal(t, models.StatusAccepted, ev.Status)
	default:
		t.Fatal("expected a notifier signal")
	}

	require.Equal(t, []string{"freight.status.changed"}, pub.topics)
}

func TestRequestTransition_LocationFailureIsNonFatal(t *testing.T) {
	repo := baseRepo()
	res := &fakeResolver{effective: models.StatusInNegotiation}
	loc := &fakeLocator{err: errors.New("gps offline")}
	svc, _ := newTestService(repo, res, &fakeGuard{allow: true}, loc, &fakePublisher{})

	err := svc.RequestTransition(context.Background(), TransitionRequest{
		FreightID: 1, DriverID: 7, Target: models.StatusAccepted,
	})
	require.NoError(t, err)
	require.Len(t, repo.applied, 1)
	require.Nil(t, repo.applied[0].Lat)
	require.Nil(t, repo.applied[0].Lng)
}

func TestRequestTransition_CallerReleasedOnCancel(t *testing.T) {
	repo := baseRepo()
	repo.applyBlock = make(chan struct{})
	res := &fakeResolver{effective: models.StatusInNegotiation}
	svc, _ := newTestService(repo, res, &fakeGuard{allow: true}, nil, &fakePublisher{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := svc.RequestTransition(ctx, TransitionRequest{
		FreightID: 1, DriverID: 7, Target: models.StatusAccepted,
	})
	require.ErrorIs(t, err, models.ErrOperationTimedOut)

	// the detached write is still free to finish
	close(repo.applyBlock)
}

func TestConfirmReceipt_FlowAndFinalize(t *testing.T) {
	repo := baseRepo()
	repo.progress[7] = &models.DriverTripProgress{
		FreightID: 1, DriverID: 7, CurrentStatus: models.StatusDeliveredPendingConf,
	}
	repo.assignments = []*models.FreightAssignment{
		{FreightID: 1, DriverID: 7, Status: models.StatusDelivered},
	}
	res := &fakeResolver{effective: models.StatusDeliveredPendingConf}
	svc, _ := newTestService(repo, res, &fakeGuard{allow: true}, nil, &fakePublisher{})

	// wrong producer
	err := svc.ConfirmReceipt(context.Background(), 1, 7, 999)
	require.ErrorIs(t, err, models.ErrNotParticipant)

	err = svc.ConfirmReceipt(context.Background(), 1, 7, 100)
	require.NoError(t, err)

	require.Len(t, repo.applied, 1)
	require.Equal(t, models.StatusDelivered, repo.applied[0].Status)
	require.Equal(t, uint64(100), repo.applied[0].ChangedBy)

	// sole lane delivered: freight row finalized
	require.Equal(t, models.StatusDelivered, repo.finalStatus)
}

func TestConfirmReceipt_NotPendingIsRejected(t *testing.T) {
	repo := baseRepo()
	repo.progress[7] = &models.DriverTripProgress{
		FreightID: 1, DriverID: 7, CurrentStatus: models.StatusInTransit,
	}
	res := &fakeResolver{effective: models.StatusInTransit}
	svc, _ := newTestService(repo, res, &fakeGuard{allow: true}, nil, &fakePublisher{})

	err := svc.ConfirmReceipt(context.Background(), 1, 7, 100)
	require.ErrorIs(t, err, models.ErrOutOfOrderTransition)
	require.Empty(t, repo.applied)
}
