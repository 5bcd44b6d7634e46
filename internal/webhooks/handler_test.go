package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myanride/dispatch/pkg/models"
)

type recordedPresence struct {
	driverID uuid.UUID
	online   bool
	loc      models.Location
	heading  float64
}

type fakePresenceSink struct {
	updates []recordedPresence
}

func (f *fakePresenceSink) UpdateDriverLocation(ctx context.Context, driverID uuid.UUID, loc models.Location, heading float64) error {
	f.updates = append(f.updates, recordedPresence{driverID: driverID, online: true, loc: loc, heading: heading})
	return nil
}

func (f *fakePresenceSink) SetDriverOffline(ctx context.Context, driverID uuid.UUID) error {
	f.updates = append(f.updates, recordedPresence{driverID: driverID, online: false})
	return nil
}

const testSecret = "webhook-test-secret"

func newWebhookRouter(sink *fakePresenceSink) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(testSecret, sink).RegisterRoutes(router.Group(""))
	return router
}

func postEvent(t *testing.T, router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func presenceBody(t *testing.T, driverID uuid.UUID, online bool) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"type": eventDriverPresence,
		"data": map[string]interface{}{
			"driver_id": driverID,
			"online":    online,
			"location":  map[string]float64{"latitude": 16.8, "longitude": 96.15},
			"heading":   270,
		},
	})
	require.NoError(t, err)
	return body
}

func TestHandleEvent_ValidSignatureAppliesPresence(t *testing.T) {
	sink := &fakePresenceSink{}
	router := newWebhookRouter(sink)

	driverID := uuid.New()
	body := presenceBody(t, driverID, true)

	w := postEvent(t, router, body, Sign([]byte(testSecret), body))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sink.updates, 1)
	assert.Equal(t, driverID, sink.updates[0].driverID)
	assert.True(t, sink.updates[0].online)
	assert.Equal(t, 16.8, sink.updates[0].loc.Latitude)
	assert.Equal(t, float64(270), sink.updates[0].heading)
}

func TestHandleEvent_OfflineEventRemovesDriver(t *testing.T) {
	sink := &fakePresenceSink{}
	router := newWebhookRouter(sink)

	driverID := uuid.New()
	body, err := json.Marshal(map[string]interface{}{
		"type": eventDriverPresence,
		"data": map[string]interface{}{"driver_id": driverID, "online": false},
	})
	require.NoError(t, err)

	w := postEvent(t, router, body, Sign([]byte(testSecret), body))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sink.updates, 1)
	assert.False(t, sink.updates[0].online)
}

func TestHandleEvent_MissingSignatureRejected(t *testing.T) {
	sink := &fakePresenceSink{}
	router := newWebhookRouter(sink)

	w := postEvent(t, router, presenceBody(t, uuid.New(), true), "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, sink.updates)
}

func TestHandleEvent_WrongSignatureRejected(t *testing.T) {
	sink := &fakePresenceSink{}
	router := newWebhookRouter(sink)

	body := presenceBody(t, uuid.New(), true)
	w := postEvent(t, router, body, Sign([]byte("another-secret"), body))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, sink.updates)
}

func TestHandleEvent_TamperedBodyRejected(t *testing.T) {
	sink := &fakePresenceSink{}
	router := newWebhookRouter(sink)

	body := presenceBody(t, uuid.New(), true)
	signature := Sign([]byte(testSecret), body)
	tampered := bytes.Replace(body, []byte(`"heading":270`), []byte(`"heading":90`), 1)

	w := postEvent(t, router, tampered, signature)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, sink.updates)
}

func TestHandleEvent_UnknownTypeAcknowledged(t *testing.T) {
	sink := &fakePresenceSink{}
	router := newWebhookRouter(sink)

	body := []byte(`{"type":"driver.vehicle_changed","data":{}}`)
	w := postEvent(t, router, body, Sign([]byte(testSecret), body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sink.updates)
}

func TestRegisterRoutes_EmptySecretDisablesIngress(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler("", &fakePresenceSink{}).RegisterRoutes(router.Group(""))

	body := presenceBody(t, uuid.New(), true)
	w := postEvent(t, router, body, Sign([]byte(""), body))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerify_RejectsNonHexSignature(t *testing.T) {
	assert.False(t, Verify([]byte(testSecret), []byte("body"), "not-hex"))
}
