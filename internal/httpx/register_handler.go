package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kitchenhub/order-relay/internal/relay"
	"go.uber.org/zap"
)

type RegisterHandler struct {
	Registry RegistryStore
	Log      *zap.SugaredLogger
}

type registerReq struct {
	WebsiteRestaurantID string `json:"website_restaurant_id"`
	RestaurantName      string `json:"restaurant_name"`
	RestaurantPhone     string `json:"restaurant_phone"`
	RestaurantEmail     string `json:"restaurant_email"`
	RestaurantAddress   string `json:"restaurant_address"`
	CallbackURL         string `json:"callback_url"`
}

func (h *RegisterHandler) Register(r *chi.Mux) {
	r.Post("/register", h.register)
}

func (h *RegisterHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	for field, v := range map[string]string{
		"website_restaurant_id": req.WebsiteRestaurantID,
		"restaurant_name":       req.RestaurantName,
		"restaurant_phone":      req.RestaurantPhone,
		"restaurant_email":      req.RestaurantEmail,
		"restaurant_address":    req.RestaurantAddress,
	} {
		if v == "" {
			writeError(w, &relay.ValidationError{Field: field})
			return
		}
	}
	if _, err := parseAbsoluteURL("callback_url", req.CallbackURL); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rest, err := h.Registry.Register(ctx, relay.RegistrationInput{
		WebsiteRestaurantID: req.WebsiteRestaurantID,
		Name:                req.RestaurantName,
		Phone:               req.RestaurantPhone,
		Email:               req.RestaurantEmail,
		Address:             req.RestaurantAddress,
		CallbackURL:         req.CallbackURL,
	})
	if err != nil {
		h.Log.Errorw("registration failed", "website_restaurant_id", req.WebsiteRestaurantID, "error", err)
		writeError(w, err)
		return
	}

	h.Log.Infow("restaurant registered",
		"app_restaurant_uid", rest.UID,
		"website_restaurant_id", rest.WebsiteRestaurantID)
	writeJSON(w, http.StatusOK, rest)
}
