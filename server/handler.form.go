package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ststudios/whitelist/types"
	"github.com/ststudios/whitelist/whitelist"
)

type submitPayload struct {
	GameHandle string `json:"roblox"`
	Age        int64  `json:"idade"`
	Experience string `json:"experiencia"`
}

// HandleSubmitForm submits or resubmits the logged-in user's application
func (svc *Service) HandleSubmitForm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := svc.logger
		session := sessionFrom(r)

		var payload submitPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "Preencha todos os campos")
			return
		}

		log.WithFields(logrus.Fields{
			"user": session.Username,
			"id":   session.UserID,
		}).Info("Tentativa de formulário")

		app, err := svc.workflow.Submit(r.Context(), whitelist.SubmitInput{
			ApplicantID:     session.UserID,
			ApplicantName:   session.Username,
			ApplicantAvatar: session.Avatar,
			GameHandle:      payload.GameHandle,
			Age:             payload.Age,
			Experience:      payload.Experience,
		})
		if err != nil {
			svc.writeWorkflowError(w, err)
			return
		}

		resubmission := app.UpdatedAt.After(app.CreatedAt)
		message := "Formulário enviado com sucesso! Aguarde a análise."
		kind := types.EventSubmitted
		if resubmission {
			message = "Formulário reenviado com sucesso! Aguarde a nova análise."
			kind = types.EventResubmitted
		}
		if svc.broker != nil {
			svc.broker.PublishLogged(types.ApplicationEvent{Kind: kind, Application: *app})
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"message": message,
			"formId":  app.ID,
		})
	}
}

// HandleFormData returns the full form of the logged-in user
func (svc *Service) HandleFormData() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFrom(r)

		app, err := svc.workflow.GetByApplicantID(r.Context(), session.UserID)
		if err != nil {
			if isNotFound(err) {
				writeJSON(w, http.StatusOK, map[string]interface{}{"hasForm": false})
				return
			}
			svc.writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"hasForm": true,
			"form":    app,
		})
	}
}

func isNotFound(err error) bool {
	var nfErr *whitelist.NotFoundError
	return errors.As(err, &nfErr)
}
