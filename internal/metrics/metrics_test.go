package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestApprovalActionLabelsUnknownActionsAsOther(t *testing.T) {
	before := testutil.ToFloat64(approvalActionsTotal.WithLabelValues("other", ResultInvalid))
	ObserveApprovalAction("maybe", ResultInvalid)
	after := testutil.ToFloat64(approvalActionsTotal.WithLabelValues("other", ResultInvalid))
	require.Equal(t, before+1, after)
}

func TestObservePipelineCountsOutcome(t *testing.T) {
	before := testutil.ToFloat64(pipelineRunsTotal.WithLabelValues("chat", OutcomeAnswer))
	ObservePipeline("chat", -time.Second, OutcomeAnswer)
	require.Equal(t, before+1, testutil.ToFloat64(pipelineRunsTotal.WithLabelValues("chat", OutcomeAnswer)))
}
