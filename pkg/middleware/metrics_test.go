package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordsRequestAndClearsInFlight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Metrics("dispatch"))
	router.GET("/rides/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(requestCount.WithLabelValues("dispatch", http.MethodGet, "/rides/:id", "200"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rides/abc", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	after := testutil.ToFloat64(requestCount.WithLabelValues("dispatch", http.MethodGet, "/rides/:id", "200"))
	assert.Equal(t, before+1, after)
	assert.Zero(t, testutil.ToFloat64(requestsInFlight))
}

func TestMetrics_UnroutedRequestsCollapseToUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Metrics("dispatch"))

	before := testutil.ToFloat64(requestCount.WithLabelValues("dispatch", http.MethodGet, "unmatched", "404"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/no/such/route", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	after := testutil.ToFloat64(requestCount.WithLabelValues("dispatch", http.MethodGet, "unmatched", "404"))
	assert.Equal(t, before+1, after)
}
