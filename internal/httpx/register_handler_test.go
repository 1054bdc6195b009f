package httpx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRegisterRouter(reg *fakeRegistry) http.Handler {
	r := NewRouter()
	h := &RegisterHandler{Registry: reg, Log: zap.NewNop().Sugar()}
	h.Register(r)
	return r
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func patchJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPatch, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func validRegistration(websiteID string) map[string]any {
	return map[string]any{
		"website_restaurant_id": websiteID,
		"restaurant_name":       "Pasta Place",
		"restaurant_phone":      "+1-555-0101",
		"restaurant_email":      "owner@pastaplace.example",
		"restaurant_address":    "12 Main St",
		"callback_url":          "https://orders.pastaplace.example/hooks",
	}
}

func TestRegisterMissingFieldNamesIt(t *testing.T) {
	h := newRegisterRouter(newFakeRegistry())

	body := validRegistration("165")
	delete(body, "restaurant_phone")

	w := postJSON(t, h, "/register", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "restaurant_phone", resp["field"])
}

func TestRegisterRejectsRelativeCallbackURL(t *testing.T) {
	h := newRegisterRouter(newFakeRegistry())

	body := validRegistration("165")
	body["callback_url"] = "/hooks/orders"

	w := postJSON(t, h, "/register", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "callback_url")
}

func TestRegisterIssuesUID(t *testing.T) {
	reg := newFakeRegistry()
	h := newRegisterRouter(reg)

	w := postJSON(t, h, "/register", validRegistration("165"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	uid, _ := resp["app_restaurant_uid"].(string)
	require.NotEmpty(t, uid)
	assert.Equal(t, "165", resp["website_restaurant_id"])

	rest, err := reg.Restaurant(nil, uid)
	require.NoError(t, err)
	assert.True(t, rest.IsActive)
}

func TestRegisterUIDsNeverRepeat(t *testing.T) {
	reg := newFakeRegistry()
	h := newRegisterRouter(reg)

	seen := map[string]bool{}
	for i := 0; i < 25; i++ {
		w := postJSON(t, h, "/register", validRegistration(fmt.Sprintf("site-%d", i)))
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		uid := resp["app_restaurant_uid"].(string)
		assert.False(t, seen[uid], "uid %s issued twice", uid)
		seen[uid] = true
	}
}

func TestReRegistrationSupersedesMapping(t *testing.T) {
	reg := newFakeRegistry()
	h := newRegisterRouter(reg)

	w1 := postJSON(t, h, "/register", validRegistration("165"))
	require.Equal(t, http.StatusOK, w1.Code)
	w2 := postJSON(t, h, "/register", validRegistration("165"))
	require.Equal(t, http.StatusOK, w2.Code)

	var r2 map[string]any
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &r2))

	m, err := reg.ActiveMapping(nil, "165")
	require.NoError(t, err)
	assert.Equal(t, r2["app_restaurant_uid"], m.RestaurantUID, "newest registration owns the active mapping")

	active := 0
	for _, mm := range reg.mappings {
		if mm.WebsiteRestaurantID == "165" && mm.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}
