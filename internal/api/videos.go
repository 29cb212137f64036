package api

import (
	"net/http"

	"streamprime-wallet-go/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

const watchHistoryLimit = 50

type catalogResponse struct {
	Videos []models.ContentItem `json:"videos"`
}

type accessResponse struct {
	Grants []models.AccessGrant `json:"active_access"`
}

type watchHistoryResponse struct {
	History []models.WatchRecord `json:"history"`
}

func (s *WalletService) handleCatalog(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListContent(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	active := make([]models.ContentItem, 0, len(items))
	for _, item := range items {
		if item.Active {
			active = append(active, item)
		}
	}
	render.JSON(w, r, catalogResponse{Videos: active})
}

func (s *WalletService) handleWatch(w http.ResponseWriter, r *http.Request) {
	grant, err := s.access.PurchaseOrReuse(r.Context(), accountIdFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, grant)
}

func (s *WalletService) handleAccess(w http.ResponseWriter, r *http.Request) {
	grants, err := s.access.ActiveGrants(r.Context(), accountIdFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if grants == nil {
		grants = []models.AccessGrant{}
	}
	render.JSON(w, r, accessResponse{Grants: grants})
}

func (s *WalletService) handleWatchHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.store.GetWatchHistory(r.Context(), accountIdFrom(r), watchHistoryLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if history == nil {
		history = []models.WatchRecord{}
	}
	render.JSON(w, r, watchHistoryResponse{History: history})
}
