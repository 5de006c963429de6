// Package bot is the Discord gateway: an interactions webhook serving the
// /whitelist slash command tree, the review buttons and the rejection
// modal. Like the HTTP gateway it authenticates the caller (admin
// allowlist) and delegates every decision and query to the workflow.
package bot

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ststudios/whitelist/broker"
	"github.com/ststudios/whitelist/config"
	"github.com/ststudios/whitelist/discord"
	"github.com/ststudios/whitelist/types"
	"github.com/ststudios/whitelist/whitelist"
)

const (
	modalPrefix      = "reprovar_modal_"
	pendingListLimit = 10
)

// Bot handles Discord interaction webhooks
type Bot struct {
	workflow  *whitelist.Workflow
	client    *discord.Client
	broker    *broker.Service
	publicKey ed25519.PublicKey
	logger    *logrus.Entry
}

// New creates the bot. publicKeyHex is the application's interaction
// verification key from the Discord developer portal.
func New(workflow *whitelist.Workflow, client *discord.Client, brokerSvc *broker.Service, publicKeyHex string, logger *logrus.Entry) (*Bot, error) {
	key, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return nil, errors.New("invalid discord public key")
	}
	return &Bot{
		workflow:  workflow,
		client:    client,
		broker:    brokerSvc,
		publicKey: ed25519.PublicKey(key),
		logger:    logger,
	}, nil
}

// ServeHTTP verifies the webhook signature and dispatches the interaction
func (b *Bot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := b.logger
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Unable to read request body", http.StatusBadRequest)
		return
	}
	if !b.verifySignature(r, body) {
		http.Error(w, "invalid request signature", http.StatusUnauthorized)
		return
	}

	var interaction discord.Interaction
	if err := json.Unmarshal(body, &interaction); err != nil {
		http.Error(w, "Unable to unmarshal interaction", http.StatusBadRequest)
		return
	}

	if interaction.Type == discord.InteractionPing {
		respond(w, discord.InteractionResponse{Type: discord.ResponsePong})
		return
	}

	invoker := interaction.Invoker()
	if invoker == nil {
		http.Error(w, "missing interaction user", http.StatusBadRequest)
		return
	}
	if !config.IsAdmin(invoker.ID) {
		log.WithFields(logrus.Fields{
			"user": invoker.ID,
		}).Warn("Non-admin tried to use the whitelist bot")
		respondEphemeral(w, "❌ Apenas administradores podem usar este comando.")
		return
	}

	switch interaction.Type {
	case discord.InteractionApplicationCommand:
		b.handleCommand(w, r.Context(), interaction)
	case discord.InteractionMessageComponent:
		b.handleComponent(w, r.Context(), interaction)
	case discord.InteractionModalSubmit:
		b.handleModalSubmit(w, r.Context(), interaction)
	default:
		http.Error(w, "unsupported interaction type", http.StatusBadRequest)
	}
}

// Discord signs interactions with the raw body prefixed by the timestamp
// header; both headers are hex-encoded ed25519 material.
func (b *Bot) verifySignature(r *http.Request, body []byte) bool {
	sig, err := hex.DecodeString(r.Header.Get("X-Signature-Ed25519"))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	timestamp := r.Header.Get("X-Signature-Timestamp")
	if timestamp == "" {
		return false
	}
	message := append([]byte(timestamp), body...)
	return ed25519.Verify(b.publicKey, message, sig)
}

func (b *Bot) handleCommand(w http.ResponseWriter, ctx context.Context, interaction discord.Interaction) {
	if interaction.Data.Name != commandName {
		respondEphemeral(w, "❌ Comando desconhecido.")
		return
	}
	switch interaction.Data.Subcommand() {
	case "pendentes":
		b.handlePendentes(w, ctx, interaction)
	case "stats":
		b.handleStats(w, ctx)
	case "buscar":
		b.handleBuscar(w, ctx, interaction)
	case "revisar":
		b.handleRevisar(w, ctx, interaction)
	case "aprovar":
		b.handleDecideCommand(w, ctx, interaction, whitelist.ActionApprove)
	case "reprovar":
		b.handleDecideCommand(w, ctx, interaction, whitelist.ActionReject)
	case "help":
		respond(w, discord.InteractionResponse{
			Type: discord.ResponseChannelMessage,
			Data: &discord.ResponseData{
				Embeds: []discord.Embed{helpEmbed()},
				Flags:  discord.FlagEphemeral,
			},
		})
	default:
		respondEphemeral(w, "❌ Subcomando desconhecido.")
	}
}

func (b *Bot) handlePendentes(w http.ResponseWriter, ctx context.Context, interaction discord.Interaction) {
	apps, err := b.workflow.List(ctx, types.StatusPending, pendingListLimit)
	if err != nil {
		b.replyWorkflowError(w, err)
		return
	}
	if len(apps) == 0 {
		respond(w, discord.InteractionResponse{
			Type: discord.ResponseChannelMessage,
			Data: &discord.ResponseData{Content: "✅ Nenhum formulário pendente no momento."},
		})
		return
	}
	respond(w, discord.InteractionResponse{
		Type: discord.ResponseChannelMessage,
		Data: &discord.ResponseData{
			Content: fmt.Sprintf("📋 **%d formulário(s) pendente(s):**", len(apps)),
		},
	})
	// One followup per form so each carries its own review buttons
	go b.sendFormFollowups(interaction, apps, true)
}

func (b *Bot) handleStats(w http.ResponseWriter, ctx context.Context) {
	stats, err := b.workflow.Stats(ctx)
	if err != nil {
		b.replyWorkflowError(w, err)
		return
	}
	respond(w, discord.InteractionResponse{
		Type: discord.ResponseChannelMessage,
		Data: &discord.ResponseData{Embeds: []discord.Embed{statsEmbed(stats)}},
	})
}

func (b *Bot) handleBuscar(w http.ResponseWriter, ctx context.Context, interaction discord.Interaction) {
	query := strings.TrimSpace(interaction.Data.StringOption("query"))
	if query == "" {
		respondEphemeral(w, "❌ Informe um ID, Discord ID ou Nick Roblox.")
		return
	}
	apps, err := b.workflow.Search(ctx, query, 10)
	if err != nil {
		b.replyWorkflowError(w, err)
		return
	}
	if len(apps) == 0 {
		respondEphemeral(w, "❌ Nenhum formulário encontrado.")
		return
	}
	respond(w, discord.InteractionResponse{
		Type: discord.ResponseChannelMessage,
		Data: &discord.ResponseData{
			Content: fmt.Sprintf("🔍 **%d resultado(s) encontrado(s):**", len(apps)),
		},
	})
	go b.sendFormFollowups(interaction, apps, false)
}

func (b *Bot) handleRevisar(w http.ResponseWriter, ctx context.Context, interaction discord.Interaction) {
	id := strings.TrimSpace(interaction.Data.StringOption("id"))
	app, err := b.workflow.GetByID(ctx, id)
	if err != nil {
		b.replyWorkflowError(w, err)
		return
	}
	data := &discord.ResponseData{Embeds: []discord.Embed{formEmbed(*app, false)}}
	if app.Status == types.StatusPending {
		data.Components = []discord.Component{reviewButtons(app.ID)}
	}
	respond(w, discord.InteractionResponse{Type: discord.ResponseChannelMessage, Data: data})
}

func (b *Bot) handleDecideCommand(w http.ResponseWriter, ctx context.Context, interaction discord.Interaction, action whitelist.Action) {
	id := strings.TrimSpace(interaction.Data.StringOption("id"))
	reason := interaction.Data.StringOption("motivo")

	decision, err := b.workflow.Decide(ctx, id, action, reason)
	if err != nil {
		b.replyWorkflowError(w, err)
		return
	}
	b.publishDecision(decision)

	invoker := interaction.Invoker()
	b.logger.WithFields(logrus.Fields{
		"id":     decision.Application.ID,
		"status": decision.Application.Status,
		"admin":  invoker.ID,
	}).Info("Formulário decidido via comando")

	respondEphemeral(w, decisionSummary(decision))
}

func (b *Bot) handleComponent(w http.ResponseWriter, ctx context.Context, interaction discord.Interaction) {
	customID := interaction.Data.CustomID
	parts := strings.SplitN(customID, "_", 2)
	if len(parts) != 2 {
		respondEphemeral(w, "❌ Interação inválida.")
		return
	}
	action, id := parts[0], parts[1]

	switch action {
	case "ver":
		app, err := b.workflow.GetByID(ctx, id)
		if err != nil {
			b.replyWorkflowError(w, err)
			return
		}
		respond(w, discord.InteractionResponse{
			Type: discord.ResponseChannelMessage,
			Data: &discord.ResponseData{
				Embeds: []discord.Embed{experienceEmbed(*app)},
				Flags:  discord.FlagEphemeral,
			},
		})
	case "aprovar":
		decision, err := b.workflow.Decide(ctx, id, whitelist.ActionApprove, "")
		if err != nil {
			b.replyWorkflowError(w, err)
			return
		}
		b.publishDecision(decision)
		// Replace the original review message with the decided state
		respond(w, discord.InteractionResponse{
			Type: discord.ResponseUpdateMessage,
			Data: &discord.ResponseData{
				Content:    decisionSummary(decision),
				Embeds:     []discord.Embed{formEmbed(*decision.Application, true)},
				Components: []discord.Component{},
			},
		})
	case "reprovar":
		respond(w, discord.InteractionResponse{
			Type: discord.ResponseModal,
			Data: &discord.ResponseData{
				CustomID:   modalPrefix + id,
				Title:      "Reprovar Whitelist",
				Components: []discord.Component{rejectionModalInput()},
			},
		})
	default:
		respondEphemeral(w, "❌ Interação inválida.")
	}
}

func (b *Bot) handleModalSubmit(w http.ResponseWriter, ctx context.Context, interaction discord.Interaction) {
	customID := interaction.Data.CustomID
	if !strings.HasPrefix(customID, modalPrefix) {
		respondEphemeral(w, "❌ Interação inválida.")
		return
	}
	id := strings.TrimPrefix(customID, modalPrefix)
	reason := interaction.Data.TextInputValue("motivo")

	decision, err := b.workflow.Decide(ctx, id, whitelist.ActionReject, reason)
	if err != nil {
		b.replyWorkflowError(w, err)
		return
	}
	b.publishDecision(decision)
	respondEphemeral(w, decisionSummary(decision))
}

func (b *Bot) sendFormFollowups(interaction discord.Interaction, apps []types.Application, withButtons bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, app := range apps {
		msg := discord.Message{Embeds: []discord.Embed{formEmbed(app, true)}}
		if withButtons && app.Status == types.StatusPending {
			msg.Components = []discord.Component{reviewButtons(app.ID)}
		}
		if err := b.client.CreateFollowupMessage(ctx, interaction.ApplicationID, interaction.Token, msg); err != nil {
			b.logger.WithFields(logrus.Fields{
				"err": err.Error(),
				"id":  app.ID,
			}).Error("Unable to send form followup")
			return
		}
	}
}

func (b *Bot) publishDecision(decision *whitelist.Decision) {
	if b.broker == nil {
		return
	}
	kind := types.EventApproved
	if decision.Application.Status == types.StatusRejected {
		kind = types.EventRejected
	}
	b.broker.PublishLogged(types.ApplicationEvent{Kind: kind, Application: *decision.Application})
}

func (b *Bot) replyWorkflowError(w http.ResponseWriter, err error) {
	var vErr *whitelist.ValidationError
	if errors.As(err, &vErr) {
		respondEphemeral(w, "❌ "+vErr.Message)
		return
	}
	var nfErr *whitelist.NotFoundError
	if errors.As(err, &nfErr) {
		respondEphemeral(w, "❌ Formulário não encontrado.")
		return
	}
	b.logger.WithFields(logrus.Fields{
		"err": err.Error(),
	}).Error("Workflow call failed")
	respondEphemeral(w, "❌ Erro no servidor. Tente novamente.")
}

func decisionSummary(decision *whitelist.Decision) string {
	app := decision.Application
	dm := "DM enviada para o jogador."
	if !decision.Delivered {
		dm = "Não foi possível enviar DM (usuário bloqueou mensagens)."
	}
	if app.Status == types.StatusApproved {
		return fmt.Sprintf("✅ Formulário #%s aprovado com sucesso! %s", app.ID, dm)
	}
	return fmt.Sprintf("❌ Formulário #%s reprovado com sucesso! %s", app.ID, dm)
}

func respond(w http.ResponseWriter, response discord.InteractionResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func respondEphemeral(w http.ResponseWriter, content string) {
	respond(w, discord.InteractionResponse{
		Type: discord.ResponseChannelMessage,
		Data: &discord.ResponseData{
			Content: content,
			Flags:   discord.FlagEphemeral,
		},
	})
}
