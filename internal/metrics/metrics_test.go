package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("list_namespaces", "ok"))

	ObserveAPIRequest("list_namespaces", "ok", 20*time.Millisecond)
	ObserveAPIRequest("list_namespaces", "ok", 30*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("list_namespaces", "ok"))
	assert.Equal(t, before+2, after)
}

func TestRecordAction(t *testing.T) {
	ok := testutil.ToFloat64(WorkflowActionsTotal.WithLabelValues("verify", "success"))
	failed := testutil.ToFloat64(WorkflowActionsTotal.WithLabelValues("verify", "failure"))

	RecordAction("verify", nil)
	RecordAction("verify", errors.New("boom"))
	RecordAction("verify", errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(WorkflowActionsTotal.WithLabelValues("verify", "success")))
	assert.Equal(t, failed+2, testutil.ToFloat64(WorkflowActionsTotal.WithLabelValues("verify", "failure")))
}

func TestObserveHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "<no-route>", "404"))

	ObserveHTTPRequest("GET", "", 404, time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "<no-route>", "404")))
}
