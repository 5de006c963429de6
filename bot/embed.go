package bot

import (
	"fmt"
	"time"

	"github.com/ststudios/whitelist/discord"
	"github.com/ststudios/whitelist/types"
)

// Embed accent colors per form status
const (
	colorPending  = 0xF59E0B
	colorApproved = 0x10B981
	colorRejected = 0xEF4444
)

const embedFooterText = "Cidade Alta RP • St Studios"

const experiencePreviewLength = 300

func statusColor(status types.Status) int {
	switch status {
	case types.StatusApproved:
		return colorApproved
	case types.StatusRejected:
		return colorRejected
	default:
		return colorPending
	}
}

func statusLabel(status types.Status) string {
	switch status {
	case types.StatusApproved:
		return "✅ Aprovado"
	case types.StatusRejected:
		return "❌ Reprovado"
	default:
		return "⏳ Pendente"
	}
}

// formEmbed renders one application. preview truncates the experience text so
// list followups stay readable.
func formEmbed(app types.Application, preview bool) discord.Embed {
	experience := app.Experience
	if preview {
		if runes := []rune(experience); len(runes) > experiencePreviewLength {
			experience = string(runes[:experiencePreviewLength]) + "..."
		}
	}
	embed := discord.Embed{
		Title: fmt.Sprintf("📋 Formulário de %s", app.ApplicantName),
		Color: statusColor(app.Status),
		Fields: []discord.EmbedField{
			{Name: "🎮 Nick Roblox", Value: app.GameHandle, Inline: true},
			{Name: "🎂 Idade", Value: fmt.Sprintf("%d anos", app.Age), Inline: true},
			{Name: "📊 Status", Value: statusLabel(app.Status), Inline: true},
			{Name: "💬 Discord", Value: fmt.Sprintf("<@%s>", app.ApplicantID), Inline: true},
			{Name: "📅 Enviado em", Value: app.CreatedAt.Format("02/01/2006 15:04"), Inline: true},
			{Name: "📝 Experiência em RP", Value: experience},
		},
		Footer:    &discord.EmbedFooter{Text: fmt.Sprintf("%s • ID: %s", embedFooterText, app.ID)},
		Timestamp: app.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if app.Status == types.StatusRejected && app.RejectionReason != "" {
		embed.Fields = append(embed.Fields, discord.EmbedField{
			Name:  "📋 Motivo da reprovação",
			Value: app.RejectionReason,
		})
	}
	return embed
}

// experienceEmbed shows the full experience text for the "ver" button
func experienceEmbed(app types.Application) discord.Embed {
	return discord.Embed{
		Title:       fmt.Sprintf("📝 Experiência completa de %s", app.ApplicantName),
		Description: app.Experience,
		Color:       statusColor(app.Status),
		Footer:      &discord.EmbedFooter{Text: fmt.Sprintf("%s • ID: %s", embedFooterText, app.ID)},
	}
}

func statsEmbed(stats []types.StatusCount) discord.Embed {
	var total int64
	fields := make([]discord.EmbedField, 0, len(stats)+1)
	for _, s := range stats {
		total += s.Count
		fields = append(fields, discord.EmbedField{
			Name:   statusLabel(s.Status),
			Value:  fmt.Sprintf("%d", s.Count),
			Inline: true,
		})
	}
	fields = append(fields, discord.EmbedField{
		Name:  "📊 Total",
		Value: fmt.Sprintf("%d", total),
	})
	return discord.Embed{
		Title:     "📊 Estatísticas da Whitelist",
		Color:     colorPending,
		Fields:    fields,
		Footer:    &discord.EmbedFooter{Text: embedFooterText},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func helpEmbed() discord.Embed {
	return discord.Embed{
		Title: "ℹ️ Comandos da Whitelist",
		Color: colorPending,
		Fields: []discord.EmbedField{
			{Name: "/whitelist pendentes", Value: "Lista os formulários aguardando revisão"},
			{Name: "/whitelist stats", Value: "Mostra as estatísticas da whitelist"},
			{Name: "/whitelist buscar query:<texto>", Value: "Busca formulários por ID, Discord ID ou Nick Roblox"},
			{Name: "/whitelist revisar id:<id>", Value: "Mostra um formulário específico para revisão"},
			{Name: "/whitelist aprovar id:<id>", Value: "Aprova um formulário"},
			{Name: "/whitelist reprovar id:<id> motivo:<texto>", Value: "Reprova um formulário com motivo"},
		},
		Footer: &discord.EmbedFooter{Text: embedFooterText},
	}
}

// reviewButtons is the action row attached to pending forms
func reviewButtons(id string) discord.Component {
	return discord.Component{
		Type: discord.ComponentActionRow,
		Components: []discord.Component{
			{
				Type:     discord.ComponentButton,
				Style:    discord.ButtonSuccess,
				Label:    "✅ Aprovar",
				CustomID: "aprovar_" + id,
			},
			{
				Type:     discord.ComponentButton,
				Style:    discord.ButtonDanger,
				Label:    "❌ Reprovar",
				CustomID: "reprovar_" + id,
			},
			{
				Type:     discord.ComponentButton,
				Style:    discord.ButtonSecondary,
				Label:    "👁️ Ver experiência",
				CustomID: "ver_" + id,
			},
		},
	}
}

// rejectionModalInput is the single text input of the rejection modal. The
// modal enforces a stricter minimum than the workflow so admins write an
// actually useful reason.
func rejectionModalInput() discord.Component {
	return discord.Component{
		Type: discord.ComponentActionRow,
		Components: []discord.Component{
			{
				Type:        discord.ComponentTextInput,
				Style:       discord.TextInputParagraph,
				CustomID:    "motivo",
				Label:       "Motivo da reprovação",
				Placeholder: "Explique ao jogador por que o formulário foi reprovado",
				MinLength:   10,
				MaxLength:   1000,
				Required:    true,
			},
		},
	}
}
