package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusRank_UnknownRanksZero(t *testing.T) {
	require.Equal(t, 0, StatusRank(StatusPending))
	require.Equal(t, 0, StatusRank(StatusCancelled))
	require.Equal(t, 0, StatusRank(StatusRejected))
	require.Equal(t, 0, StatusRank("whatever"))

	require.Greater(t, StatusRank(StatusDelivered), StatusRank(StatusInTransit))
	require.Greater(t, StatusRank(StatusCompleted), StatusRank(StatusDelivered))
}

func TestMaxStatus(t *testing.T) {
	require.Equal(t, StatusInTransit, MaxStatus(StatusAccepted, StatusInTransit))
	require.Equal(t, StatusInTransit, MaxStatus(StatusInTransit, StatusAccepted))
	// ties keep the first argument (the freight's own status)
	require.Equal(t, StatusLoading, MaxStatus(StatusLoading, StatusLoading))
	require.Equal(t, StatusOpen, MaxStatus(StatusOpen, StatusPending))
}

func TestNextInFlow_DefaultFlow(t *testing.T) {
	flow := FlowFor(ServiceTypeDefault)

	require.Equal(t, StatusAccepted, NextInFlow(flow, ""))
	require.Equal(t, StatusLoading, NextInFlow(flow, StatusAccepted))
	require.Equal(t, StatusLoaded, NextInFlow(flow, StatusLoading))
	require.Equal(t, StatusInTransit, NextInFlow(flow, StatusLoaded))
	require.Equal(t, StatusDeliveredPendingConf, NextInFlow(flow, StatusInTransit))
	require.Equal(t, "", NextInFlow(flow, StatusDeliveredPendingConf))
}

func TestNextInFlow_UrbanFlowSkipsLoaded(t *testing.T) {
	flow := FlowFor(ServiceTypeUrban)

	require.Equal(t, StatusInTransit, NextInFlow(flow, StatusLoading))
	require.NotContains(t, flow, StatusLoaded)
}

func TestSettlementActedOn(t *testing.T) {
	require.True(t, SettlementActedOn(SettlementPaidByProducer))
	require.True(t, SettlementActedOn(SettlementConfirmed))
	require.True(t, SettlementActedOn(SettlementAccepted))

	// proposed is created automatically on delivery report; no producer decision yet
	require.False(t, SettlementActedOn(SettlementProposed))
	require.False(t, SettlementActedOn(SettlementRejected))
}

func TestIsTerminalStatus(t *testing.T) {
	for _, s := range []string{StatusDelivered, StatusCompleted, StatusCancelled, StatusRejected} {
		require.True(t, IsTerminalStatus(s), s)
	}
	require.False(t, IsTerminalStatus(StatusDeliveredPendingConf))
	require.False(t, IsTerminalStatus(StatusInTransit))
}
