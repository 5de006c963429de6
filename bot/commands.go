package bot

import "github.com/ststudios/whitelist/discord"

const commandName = "whitelist"

// Commands returns the slash command tree registered with Discord at startup
func Commands() []discord.ApplicationCommand {
	return []discord.ApplicationCommand{
		{
			Name:        commandName,
			Description: "Gerenciar formulários de whitelist",
			Options: []discord.CommandOption{
				{
					Type:        discord.OptionSubcommand,
					Name:        "pendentes",
					Description: "Lista os formulários pendentes de revisão",
				},
				{
					Type:        discord.OptionSubcommand,
					Name:        "stats",
					Description: "Mostra as estatísticas da whitelist",
				},
				{
					Type:        discord.OptionSubcommand,
					Name:        "buscar",
					Description: "Busca formulários por ID, Discord ID ou Nick Roblox",
					Options: []discord.CommandOption{
						{
							Type:        discord.OptionString,
							Name:        "query",
							Description: "ID, Discord ID ou Nick Roblox",
							Required:    true,
						},
					},
				},
				{
					Type:        discord.OptionSubcommand,
					Name:        "revisar",
					Description: "Mostra um formulário específico para revisão",
					Options: []discord.CommandOption{
						{
							Type:        discord.OptionString,
							Name:        "id",
							Description: "ID do formulário",
							Required:    true,
						},
					},
				},
				{
					Type:        discord.OptionSubcommand,
					Name:        "aprovar",
					Description: "Aprova um formulário",
					Options: []discord.CommandOption{
						{
							Type:        discord.OptionString,
							Name:        "id",
							Description: "ID do formulário",
							Required:    true,
						},
					},
				},
				{
					Type:        discord.OptionSubcommand,
					Name:        "reprovar",
					Description: "Reprova um formulário com motivo",
					Options: []discord.CommandOption{
						{
							Type:        discord.OptionString,
							Name:        "id",
							Description: "ID do formulário",
							Required:    true,
						},
						{
							Type:        discord.OptionString,
							Name:        "motivo",
							Description: "Motivo da reprovação",
							Required:    true,
						},
					},
				},
				{
					Type:        discord.OptionSubcommand,
					Name:        "help",
					Description: "Mostra a ajuda dos comandos de whitelist",
				},
			},
		},
	}
}
