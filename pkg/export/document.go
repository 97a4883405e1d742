package export

// Document is one complete chat export as produced by DiscordChatExporter:
// the guild and channel the messages came from, export metadata, and the
// message list itself.
type Document struct {
	Guild        Guild
	Channel      Channel
	ExportedAt   *string
	MessageCount *int64
	DateRange    DateRange
	Messages     []Message
}

// Guild identifies the server the export was taken from.
type Guild struct {
	ID      *string
	Name    *string
	IconURL *string
}

// Channel identifies the exported channel.
type Channel struct {
	ID         *string
	Type       *string
	CategoryID *string
	Category   *string
	Name       *string
	Topic      *string
	IconURL    *string
}

// DateRange holds the optional export window bounds.
type DateRange struct {
	After  *string
	Before *string
}

// Participant is a user referenced anywhere in the export: message author,
// mention target, or reactor. ID is the platform identity and is never empty;
// extraction drops author/mention/reactor nodes that carry no id.
type Participant struct {
	ID            string
	Name          *string
	Discriminator *string
	Nickname      *string
	Color         *string
	IsBot         *bool
	AvatarURL     *string
}

// Message is a single exported message with all of its child entities.
// Timestamps stay in the export's string form.
type Message struct {
	ID                 *string
	Type               *string
	Timestamp          *string
	TimestampEdited    *string
	CallEndedTimestamp *string
	IsPinned           *bool
	Content            *string
	Author             *Participant
	Mentions           []Participant
	Attachments        []Attachment
	Embeds             []string
	Stickers           []Sticker
	InlineEmojis       []Emoji
	Reactions          []Reaction
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID            *string
	URL           *string
	FileName      *string
	FileSizeBytes *int64
}

// Sticker is a sticker sent with a message.
type Sticker struct {
	ID        *string
	Name      *string
	Format    *string
	SourceURL *string
}

// Emoji describes either an inline emoji or a reaction emoji. Custom emojis
// carry a platform id; unicode emojis do not, so every field is optional.
type Emoji struct {
	ID         *string
	Name       *string
	Code       *string
	IsAnimated *bool
	ImageURL   *string
}

// Reaction is one distinct emoji's reaction on a message, with the users
// who reacted.
type Reaction struct {
	Emoji Emoji
	Count *int64
	Users []Participant
}
