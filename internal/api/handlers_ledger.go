package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"token-market/internal/observability"
)

type irrigateRequest struct {
	TokenID        string `json:"tokenId"`
	TotalAmount    int64  `json:"totalAmount"`
	Source         string `json:"source"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type irrigateResponse struct {
	TransactionID    string `json:"transactionId"`
	HoldersProcessed int    `json:"holdersProcessed"`
	TotalDistributed int64  `json:"totalDistributed"`
	DustSats         int64  `json:"dustSats"`
}

// handleIrrigate records one revenue distribution across holders.
func (s *Server) handleIrrigate(w http.ResponseWriter, r *http.Request) {
	var req irrigateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.distributor.Irrigate(r.Context(), req.TokenID, req.TotalAmount, req.Source, req.Currency, req.IdempotencyKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	observability.RecordDistribution(result.HoldersProcessed, result.TotalDistributed, result.DustSats)

	writeJSON(w, http.StatusCreated, irrigateResponse{
		TransactionID:    result.DistributionID,
		HoldersProcessed: result.HoldersProcessed,
		TotalDistributed: result.TotalDistributed,
		DustSats:         result.DustSats,
	})
}

// handleGetDistribution returns one distribution with its claims.
func (s *Server) handleGetDistribution(w http.ResponseWriter, r *http.Request) {
	distributionID := chi.URLParam(r, "distributionID")
	dist, err := s.distributions.GetByID(r.Context(), distributionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	claims, err := s.distributions.GetClaims(r.Context(), distributionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	claimViews := make([]claimView, 0, len(claims))
	for _, c := range claims {
		claimViews = append(claimViews, toClaimView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"distribution": map[string]any{
			"distribution_id":             dist.DistributionID,
			"token_id":                    dist.TokenID,
			"total_amount_sats":           dist.TotalAmountSats,
			"per_unit_sats":               dist.PerUnitSats,
			"circulating_supply_snapshot": dist.CirculatingSupplySnapshot,
			"dust_sats":                   dist.DustSats,
			"source":                      dist.Source,
			"currency":                    dist.Currency,
			"distributed_at":              dist.DistributedAt,
		},
		"claims": claimViews,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
