package discord

// Interaction types
const (
	InteractionPing               = 1
	InteractionApplicationCommand = 2
	InteractionMessageComponent   = 3
	InteractionModalSubmit        = 5
)

// Interaction response types
const (
	ResponsePong           = 1
	ResponseChannelMessage = 4
	ResponseUpdateMessage  = 7
	ResponseModal          = 9
)

// Component types
const (
	ComponentActionRow = 1
	ComponentButton    = 2
	ComponentTextInput = 4
)

// Button styles
const (
	ButtonSuccess   = 3
	ButtonDanger    = 4
	ButtonSecondary = 2
)

// TextInputParagraph is the multi-line text input style
const TextInputParagraph = 2

// FlagEphemeral marks a response visible only to the invoking user
const FlagEphemeral = 1 << 6

// Application command option types
const (
	OptionSubcommand = 1
	OptionString     = 3
)

// ApplicationCommand is a slash command definition for registration
type ApplicationCommand struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Options     []CommandOption `json:"options,omitempty"`
}

// CommandOption is a subcommand or parameter of an application command
type CommandOption struct {
	Type        int             `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Required    bool            `json:"required,omitempty"`
	Options     []CommandOption `json:"options,omitempty"`
}

// Message is an outgoing channel or followup message
type Message struct {
	Content    string      `json:"content,omitempty"`
	Embeds     []Embed     `json:"embeds,omitempty"`
	Components []Component `json:"components,omitempty"`
	Flags      int         `json:"flags,omitempty"`
}

// Embed is a rich message embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField is one name/value row of an embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the footer line of an embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// Component is a message component. One struct covers action rows, buttons
// and text inputs; Type decides which fields apply.
type Component struct {
	Type        int         `json:"type"`
	Components  []Component `json:"components,omitempty"`
	Style       int         `json:"style,omitempty"`
	Label       string      `json:"label,omitempty"`
	CustomID    string      `json:"custom_id,omitempty"`
	MinLength   int         `json:"min_length,omitempty"`
	MaxLength   int         `json:"max_length,omitempty"`
	Placeholder string      `json:"placeholder,omitempty"`
	Required    bool        `json:"required,omitempty"`
	Value       string      `json:"value,omitempty"`
}

// Interaction is an incoming interaction webhook payload
type Interaction struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          int             `json:"type"`
	Token         string          `json:"token"`
	Data          InteractionData `json:"data"`
	Member        *GuildMember    `json:"member"`
	User          *User           `json:"user"`
}

// InteractionData carries the command, component or modal payload
type InteractionData struct {
	Name       string              `json:"name"`
	CustomID   string              `json:"custom_id"`
	Options    []InteractionOption `json:"options"`
	Components []Component         `json:"components"`
}

// InteractionOption is a command option value, possibly nested under a
// subcommand.
type InteractionOption struct {
	Name    string              `json:"name"`
	Type    int                 `json:"type"`
	Value   string              `json:"value"`
	Options []InteractionOption `json:"options"`
}

// GuildMember wraps the invoking user when an interaction comes from a guild
type GuildMember struct {
	User *User `json:"user"`
}

// InteractionResponse is the synchronous reply to an interaction
type InteractionResponse struct {
	Type int           `json:"type"`
	Data *ResponseData `json:"data,omitempty"`
}

// ResponseData is the body of an interaction response. For modal responses
// CustomID and Title describe the modal itself.
type ResponseData struct {
	Content    string      `json:"content,omitempty"`
	Embeds     []Embed     `json:"embeds,omitempty"`
	Components []Component `json:"components,omitempty"`
	Flags      int         `json:"flags,omitempty"`
	CustomID   string      `json:"custom_id,omitempty"`
	Title      string      `json:"title,omitempty"`
}

// Invoker returns the user behind an interaction, whether it arrived from a
// guild or a DM.
func (i *Interaction) Invoker() *User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// StringOption walks the option tree (descending into the subcommand level)
// and returns the named string value.
func (d InteractionData) StringOption(name string) string {
	return findStringOption(d.Options, name)
}

func findStringOption(options []InteractionOption, name string) string {
	for _, opt := range options {
		if opt.Name == name && opt.Type == OptionString {
			return opt.Value
		}
		if v := findStringOption(opt.Options, name); v != "" {
			return v
		}
	}
	return ""
}

// Subcommand returns the invoked subcommand name, if any
func (d InteractionData) Subcommand() string {
	for _, opt := range d.Options {
		if opt.Type == OptionSubcommand {
			return opt.Name
		}
	}
	return ""
}

// TextInputValue returns the submitted value of a modal text input
func (d InteractionData) TextInputValue(customID string) string {
	for _, row := range d.Components {
		for _, comp := range row.Components {
			if comp.CustomID == customID {
				return comp.Value
			}
		}
	}
	return ""
}
