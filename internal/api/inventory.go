package api

import "net/http"

// Read-only inventory views for the admin UI. Writes happen in the admin
// workflow, not here; these answer from the in-memory snapshot the serving
// path uses, so an admin sees exactly what the resolver sees.

// ListCampaignsHandler handles GET /api/campaigns.
func (s *Server) ListCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.AdDataStore.GetAllCampaigns())
}

// ListCreativesHandler handles GET /api/creatives.
func (s *Server) ListCreativesHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.AdDataStore.GetAllCreatives())
}

// ListPlacementsHandler handles GET /api/placements.
func (s *Server) ListPlacementsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.AdDataStore.GetAllPlacements())
}
