package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestFeedFetches_Increments(t *testing.T) {
	before := testutil.ToFloat64(FeedFetches.WithLabelValues("atom", "ok"))
	FeedFetches.WithLabelValues("atom", "ok").Inc()
	after := testutil.ToFloat64(FeedFetches.WithLabelValues("atom", "ok"))

	assert.Equal(t, before+1, after)
}

func TestHandler_ExposesCollectors(t *testing.T) {
	BranchDegraded.WithLabelValues("source", "fetch").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "feedmix_aggregation_branch_degraded_total"))
}
