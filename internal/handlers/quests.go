package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/quest-engine/pkg/quest"
)

type QuestListResponse struct {
	Quests []quest.Quest `json:"quests"`
}

// QuestsHandler serves the read-only catalog
type QuestsHandler struct {
	catalog *quest.Catalog
	logger  *slog.Logger
}

func NewQuestsHandler(catalog *quest.Catalog, logger *slog.Logger) *QuestsHandler {
	return &QuestsHandler{catalog: catalog, logger: logger}
}

// ServeHTTP handles catalog requests
// Routes:
// GET /v1/quests             - List quests, optionally ?tier=novice
// GET /v1/quests/{id}        - Read one quest
func (h *QuestsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger, r, http.MethodGet)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/quests"), "/")
	if id == "" {
		h.handleList(w, r)
		return
	}

	q, ok := h.catalog.Quest(id)
	if !ok {
		writeError(w, h.logger, http.StatusNotFound, "Quest not found")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, q)
}

func (h *QuestsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	quests := h.catalog.Quests()

	if raw := r.URL.Query().Get("tier"); raw != "" {
		tier, err := quest.ParseTier(raw)
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		filtered := make([]quest.Quest, 0, len(quests))
		for _, q := range quests {
			if q.Tier == tier {
				filtered = append(filtered, q)
			}
		}
		quests = filtered
	}

	writeJSON(w, h.logger, http.StatusOK, QuestListResponse{Quests: quests})
}
