// Package notifier delivers decision notifications to applicants over
// Discord direct messages. Delivery is best-effort by contract: a blocked DM
// or an API failure degrades to "not delivered" and never propagates as an
// error to the deciding workflow.
package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ststudios/whitelist/discord"
	"github.com/ststudios/whitelist/types"
)

const (
	colorApproved = 0x10B981
	colorRejected = 0xEF4444

	footerText = "Cidade Alta RP • St Studios"
)

// DiscordSink sends decision DMs through the Discord REST API
type DiscordSink struct {
	client *discord.Client
	logger *logrus.Entry
}

// NewDiscordSink creates a sink on top of an authenticated Discord client
func NewDiscordSink(client *discord.Client, logger *logrus.Entry) *DiscordSink {
	return &DiscordSink{client: client, logger: logger}
}

// Notify DMs the decision outcome to the applicant and reports whether the
// message was delivered.
func (s *DiscordSink) Notify(ctx context.Context, app types.Application) bool {
	channelID, err := s.client.CreateDMChannel(ctx, app.ApplicantID)
	if err != nil {
		s.logFailure(app, err)
		return false
	}

	err = s.client.SendMessage(ctx, channelID, discord.Message{
		Embeds: []discord.Embed{decisionEmbed(app)},
	})
	if err != nil {
		s.logFailure(app, err)
		return false
	}

	s.logger.WithFields(logrus.Fields{
		"applicant": app.ApplicantID,
		"status":    app.Status,
	}).Info("Decision DM sent")
	return true
}

func (s *DiscordSink) logFailure(app types.Application, err error) {
	var apiErr *discord.APIError
	if errors.As(err, &apiErr) && apiErr.Code == discord.CodeCannotSendToUser {
		s.logger.WithFields(logrus.Fields{
			"applicant": app.ApplicantID,
		}).Warn("Applicant has DMs blocked, decision DM not delivered")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"applicant": app.ApplicantID,
		"err":       err.Error(),
	}).Error("Failed to send decision DM")
}

func decisionEmbed(app types.Application) discord.Embed {
	handle := app.GameHandle
	if handle == "" {
		handle = "Não informado"
	}
	timestamp := time.Now().UTC().Format(time.RFC3339)

	if app.Status == types.StatusApproved {
		return discord.Embed{
			Title: "✅ WHITELIST APROVADA!",
			Description: "**Parabéns " + app.ApplicantName + "!**\n\n" +
				"Seu formulário para o servidor **Cidade Alta RP** foi **APROVADO**! 🎉\n\n" +
				"Agora você pode acessar o servidor e começar sua jornada no roleplay.",
			Color: colorApproved,
			Fields: []discord.EmbedField{
				{Name: "🎮 Seu Nick Roblox", Value: handle, Inline: true},
				{Name: "📅 Data da Aprovação", Value: time.Now().Format("02/01/2006"), Inline: true},
				{Name: "🔑 Próximo Passo", Value: "Entre no servidor do Discord para receber as instruções de acesso ao servidor Roblox."},
			},
			Footer:    &discord.EmbedFooter{Text: footerText},
			Timestamp: timestamp,
		}
	}

	return discord.Embed{
		Title: "❌ WHITELIST REPROVADA",
		Description: "Olá " + app.ApplicantName + ",\n\n" +
			"Seu formulário para o servidor **Cidade Alta RP** foi **REPROVADO**.\n\n" +
			"**Por favor, leia atentamente o motivo abaixo e corrija os pontos mencionados antes de enviar novamente.**",
		Color: colorRejected,
		Fields: []discord.EmbedField{
			{Name: "📋 Motivo da reprovação", Value: app.RejectionReason},
			{Name: "🎮 Seu Nick Roblox", Value: handle, Inline: true},
			{Name: "🔄 O que fazer agora?", Value: "Corrija os pontos mencionados acima e envie um **novo formulário** no site. Você pode fazer isso agora mesmo."},
			{Name: "💡 Dica", Value: "Seja mais detalhado em sua experiência e garanta que atende todos os requisitos."},
		},
		Footer:    &discord.EmbedFooter{Text: footerText},
		Timestamp: timestamp,
	}
}
