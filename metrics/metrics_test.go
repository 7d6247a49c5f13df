package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/raddi-network/raddi/db"
	"github.com/raddi-network/raddi/validator"
)

func TestObserveOutcomeIncrementsLabeledCounter(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveOutcome(validator.OutcomeInserted)
	m.ObserveOutcome(validator.OutcomeRejected)
	m.ObserveOutcome(validator.OutcomeRejected)

	require.InDelta(t, 1, testutil.ToFloat64(m.EntriesProcessed.WithLabelValues("inserted")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.EntriesProcessed.WithLabelValues("rejected")), 0)
}

func TestSetConnectionsLabelsByLevel(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetConnections(db.LevelCore, 3)

	require.InDelta(t, 3, testutil.ToFloat64(m.ConnectionsByLvl.WithLabelValues("core")), 0)
}
