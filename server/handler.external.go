package server

import (
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/ststudios/whitelist/types"
)

var startTime = time.Now()

// HandleRobloxWhitelist is the game-server lookup: given a Discord user id
// it reports whether that player is whitelisted. Protected by a static
// shared-secret header instead of session auth.
func (svc *Service) HandleRobloxWhitelist() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != viper.GetString("robloxApiKey") {
			writeError(w, http.StatusForbidden, "Unauthorized")
			return
		}

		userID := r.URL.Query().Get("userId")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "userId é obrigatório")
			return
		}

		app, err := svc.workflow.GetByApplicantID(r.Context(), userID)
		if err != nil {
			if isNotFound(err) {
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"userId":      userID,
					"whitelisted": false,
				})
				return
			}
			svc.writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"userId":      userID,
			"whitelisted": app.Status == types.StatusApproved,
			"status":      app.Status,
			"roblox":      app.GameHandle,
		})
	}
}

// HandleSystemStatus reports uptime and a quick total for monitoring
func (svc *Service) HandleSystemStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"online":    true,
			"uptime":    time.Since(startTime).Seconds(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   "1.0.0",
			"system":    "Cidade Alta RP - St Studios",
		}
		if stats, err := svc.workflow.Stats(r.Context()); err == nil {
			var total int64
			for _, row := range stats {
				total += row.Count
			}
			body["totalForms"] = total
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// HandleHealth is the liveness probe
func (svc *Service) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "online",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
