package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ststudios/whitelist/types"
	"github.com/ststudios/whitelist/whitelist"
)

const defaultListLimit = 50

// HandleListForms lists applications filtered by status, most recent first.
// ?status=all lists every status; the default is pending only.
func (svc *Service) HandleListForms() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := types.Status(r.URL.Query().Get("status"))
		if status == "" {
			status = types.StatusPending
		} else if status == "all" {
			status = ""
		}

		limit := int64(defaultListLimit)
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "Parâmetro limit inválido")
				return
			}
			limit = parsed
		}

		apps, err := svc.workflow.List(r.Context(), status, limit)
		if err != nil {
			svc.writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, apps)
	}
}

type actionPayload struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Reason string `json:"motivo"`
}

// HandleAdminAction applies an approve/reject decision to one application
func (svc *Service) HandleAdminAction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := svc.logger
		session := sessionFrom(r)

		var payload actionPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "Ação inválida")
			return
		}

		decision, err := svc.workflow.Decide(r.Context(), payload.ID, whitelist.Action(payload.Action), payload.Reason)
		if err != nil {
			svc.writeWorkflowError(w, err)
			return
		}

		app := decision.Application
		kind := types.EventApproved
		message := "Formulário aprovado com sucesso"
		if app.Status == types.StatusRejected {
			kind = types.EventRejected
			message = "Formulário reprovado com sucesso"
		}
		if svc.broker != nil {
			svc.broker.PublishLogged(types.ApplicationEvent{Kind: kind, Application: *app})
		}
		log.WithFields(logrus.Fields{
			"id":     app.ID,
			"status": app.Status,
			"admin":  session.UserID,
		}).Info("Formulário decidido")

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":        true,
			"message":   message,
			"delivered": decision.Delivered,
			"updated":   app,
		})
	}
}

// HandleStats returns the per-status application counts, served from the
// cache when one is wired.
func (svc *Service) HandleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc.cache != nil {
			stats, err := svc.cache.GetStats(r.Context())
			if err == nil {
				writeJSON(w, http.StatusOK, stats)
				return
			}
			svc.logger.WithFields(logrus.Fields{
				"err": err.Error(),
			}).Error("Unable to get stats from cache, falling back to store")
		}
		stats, err := svc.workflow.Stats(r.Context())
		if err != nil {
			svc.writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// HandleGetForm fetches one application by id
func (svc *Service) HandleGetForm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app, err := svc.workflow.GetByID(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			svc.writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}
