package api

import (
	"encoding/json"
	"net/http"

	"github.com/abdul-hamid-achik/clip.cheap/internal/apperror"
	"github.com/abdul-hamid-achik/clip.cheap/internal/billing"
)

type checkoutRequest struct {
	Tier string `json:"tier"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

func (h *handlers) getSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		apperror.WriteJSON(w, r, apperror.ErrUnauthorized)
		return
	}

	info, err := h.billing.GetSubscription(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	apperror.WriteData(w, http.StatusOK, info)
}

func (h *handlers) createCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		apperror.WriteJSON(w, r, apperror.ErrUnauthorized)
		return
	}

	var req checkoutRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperror.WriteJSON(w, r, apperror.Validation("invalid request body"))
		return
	}

	tier, ok := billing.ParseTier(req.Tier)
	if !ok {
		apperror.WriteJSON(w, r, apperror.Validation("unknown tier %q", req.Tier))
		return
	}

	url, err := h.billing.CreateCheckoutSession(r.Context(), userID, tier)
	if err != nil {
		writeError(w, r, err)
		return
	}

	apperror.WriteData(w, http.StatusOK, checkoutResponse{URL: url})
}
