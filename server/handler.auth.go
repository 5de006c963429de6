package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ststudios/whitelist/config"
	"github.com/ststudios/whitelist/server/sessions"
)

const stateCookieName = "oauth_state"

// HandleLogin redirects the browser to the Discord authorization page
func (svc *Service) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := uuid.New().String()
		http.SetCookie(w, &http.Cookie{
			Name:     stateCookieName,
			Value:    state,
			Path:     "/",
			MaxAge:   300,
			HttpOnly: true,
		})
		http.Redirect(w, r, svc.oauth.AuthCodeURL(state), http.StatusTemporaryRedirect)
	}
}

// HandleCallback exchanges the authorization code, resolves the Discord
// identity and establishes the session cookie.
func (svc *Service) HandleCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := svc.logger

		stateCookie, err := r.Cookie(stateCookieName)
		if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
			http.Redirect(w, r, "/?error=login_failed", http.StatusTemporaryRedirect)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: "/", MaxAge: -1})

		code := r.URL.Query().Get("code")
		token, err := svc.oauth.Exchange(r.Context(), code)
		if err != nil {
			log.WithFields(logrus.Fields{
				"err": err.Error(),
			}).Error("Unable to exchange authorization code")
			http.Redirect(w, r, "/?error=login_failed", http.StatusTemporaryRedirect)
			return
		}

		user, err := svc.discord.UserFromToken(r.Context(), token.AccessToken)
		if err != nil {
			log.WithFields(logrus.Fields{
				"err": err.Error(),
			}).Error("Unable to fetch Discord identity")
			http.Redirect(w, r, "/?error=login_failed", http.StatusTemporaryRedirect)
			return
		}

		sessionID, err := svc.sessions.Create(sessions.Session{
			UserID:   user.ID,
			Username: user.Username,
			Avatar:   user.Avatar,
			IsAdmin:  config.IsAdmin(user.ID),
		})
		if err != nil {
			log.WithFields(logrus.Fields{
				"err": err.Error(),
			}).Error("Unable to create session")
			writeError(w, http.StatusInternalServerError, "Erro no servidor")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     sessions.CookieName,
			Value:    sessionID,
			Path:     "/",
			Expires:  time.Now().Add(sessions.TTL),
			HttpOnly: true,
		})
		log.WithFields(logrus.Fields{
			"user": user.Username,
			"id":   user.ID,
		}).Info("Login realizado")
		http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
	}
}

// HandleLogout drops the session
func (svc *Service) HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:   sessions.CookieName,
			Path:   "/",
			MaxAge: -1,
		})
		cookie, err := r.Cookie(sessions.CookieName)
		if err == nil && cookie.Value != "" {
			if err := svc.sessions.Delete(cookie.Value); err != nil {
				svc.logger.WithFields(logrus.Fields{
					"err": err.Error(),
				}).Error("Unable to delete session")
				writeError(w, http.StatusInternalServerError, "Erro ao fazer logout")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
	}
}

// HandleMe returns the logged-in identity plus a summary of their form
func (svc *Service) HandleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFrom(r)
		userData := map[string]interface{}{
			"id":         session.UserID,
			"username":   session.Username,
			"avatar":     session.Avatar,
			"isAdmin":    session.IsAdmin,
			"hasForm":    false,
			"formStatus": nil,
			"robloxName": nil,
			"formId":     nil,
		}

		app, err := svc.workflow.GetByApplicantID(r.Context(), session.UserID)
		if err == nil {
			userData["hasForm"] = true
			userData["formStatus"] = app.Status
			userData["robloxName"] = app.GameHandle
			userData["formId"] = app.ID
		} else if !isNotFound(err) {
			svc.writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, userData)
	}
}
