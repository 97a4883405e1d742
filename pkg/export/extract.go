package export

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotAnObject reports a document whose top level is not a JSON object.
	ErrNotAnObject = errors.New("export: top level is not a JSON object")
	// ErrNoMessages reports a document whose messages field is absent or not a list.
	ErrNoMessages = errors.New("export: document has no messages list")
)

// DecodeDocument parses a raw chat export into a Document. The document must
// be a JSON object with a messages list; everything else is optional, and
// absent or null fields stay nil rather than failing the decode. Decoding is
// purely in-memory, so a returned error guarantees nothing downstream has
// been touched.
func DecodeDocument(data []byte) (*Document, error) {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}

	obj, ok := root.(map[string]any)
	if !ok {
		return nil, ErrNotAnObject
	}
	rawMessages, ok := obj["messages"].([]any)
	if !ok {
		return nil, ErrNoMessages
	}

	doc := &Document{
		Guild:        guildFrom(objectField(obj, "guild")),
		Channel:      channelFrom(objectField(obj, "channel")),
		ExportedAt:   stringField(obj, "exportedAt"),
		MessageCount: intField(obj, "messageCount"),
		DateRange:    dateRangeFrom(objectField(obj, "dateRange")),
		Messages:     make([]Message, 0, len(rawMessages)),
	}
	for _, raw := range rawMessages {
		doc.Messages = append(doc.Messages, messageFrom(asObject(raw)))
	}
	return doc, nil
}

func guildFrom(obj map[string]any) Guild {
	return Guild{
		ID:      stringField(obj, "id"),
		Name:    stringField(obj, "name"),
		IconURL: stringField(obj, "iconUrl"),
	}
}

func channelFrom(obj map[string]any) Channel {
	return Channel{
		ID:         stringField(obj, "id"),
		Type:       stringField(obj, "type"),
		CategoryID: stringField(obj, "categoryId"),
		Category:   stringField(obj, "category"),
		Name:       stringField(obj, "name"),
		Topic:      stringField(obj, "topic"),
		IconURL:    stringField(obj, "iconUrl"),
	}
}

func dateRangeFrom(obj map[string]any) DateRange {
	return DateRange{
		After:  stringField(obj, "after"),
		Before: stringField(obj, "before"),
	}
}

func messageFrom(obj map[string]any) Message {
	msg := Message{
		ID:                 stringField(obj, "id"),
		Type:               stringField(obj, "type"),
		Timestamp:          stringField(obj, "timestamp"),
		TimestampEdited:    stringField(obj, "timestampEdited"),
		CallEndedTimestamp: stringField(obj, "callEndedTimestamp"),
		IsPinned:           boolField(obj, "isPinned"),
		Content:            stringField(obj, "content"),
		Author:             participantFrom(objectField(obj, "author")),
	}

	for _, raw := range listField(obj, "mentions") {
		if p := participantFrom(asObject(raw)); p != nil {
			msg.Mentions = append(msg.Mentions, *p)
		}
	}
	for _, raw := range listField(obj, "attachments") {
		msg.Attachments = append(msg.Attachments, attachmentFrom(asObject(raw)))
	}
	for _, raw := range listField(obj, "embeds") {
		// Embeds have no stable shape; keep the whole payload as JSON text.
		encoded, err := json.Marshal(raw)
		if err != nil {
			continue
		}
		msg.Embeds = append(msg.Embeds, string(encoded))
	}
	for _, raw := range listField(obj, "stickers") {
		msg.Stickers = append(msg.Stickers, stickerFrom(asObject(raw)))
	}
	for _, raw := range listField(obj, "inlineEmojis") {
		msg.InlineEmojis = append(msg.InlineEmojis, emojiFrom(asObject(raw)))
	}
	for _, raw := range listField(obj, "reactions") {
		msg.Reactions = append(msg.Reactions, reactionFrom(asObject(raw)))
	}
	return msg
}

// participantFrom returns nil when the node is absent, empty, or has no id:
// a reference that cannot be resolved to an identity is treated as no
// participant at all.
func participantFrom(obj map[string]any) *Participant {
	id := stringField(obj, "id")
	if id == nil || *id == "" {
		return nil
	}
	return &Participant{
		ID:            *id,
		Name:          stringField(obj, "name"),
		Discriminator: stringField(obj, "discriminator"),
		Nickname:      stringField(obj, "nickname"),
		Color:         stringField(obj, "color"),
		IsBot:         boolField(obj, "isBot"),
		AvatarURL:     stringField(obj, "avatarUrl"),
	}
}

func attachmentFrom(obj map[string]any) Attachment {
	return Attachment{
		ID:            stringField(obj, "id"),
		URL:           stringField(obj, "url"),
		FileName:      stringField(obj, "fileName"),
		FileSizeBytes: intField(obj, "fileSizeBytes"),
	}
}

func stickerFrom(obj map[string]any) Sticker {
	return Sticker{
		ID:        stringField(obj, "id"),
		Name:      stringField(obj, "name"),
		Format:    stringField(obj, "format"),
		SourceURL: stringField(obj, "sourceUrl"),
	}
}

// emojiFrom never fails: a deleted custom emoji may leave nothing but nulls
// behind, and that is still a valid (fully sparse) emoji record.
func emojiFrom(obj map[string]any) Emoji {
	e := Emoji{
		ID:         stringField(obj, "id"),
		Name:       stringField(obj, "name"),
		Code:       stringField(obj, "code"),
		IsAnimated: boolField(obj, "isAnimated"),
		ImageURL:   stringField(obj, "imageUrl"),
	}
	if e.ID != nil && *e.ID == "" {
		e.ID = nil
	}
	return e
}

func reactionFrom(obj map[string]any) Reaction {
	r := Reaction{
		Emoji: emojiFrom(objectField(obj, "emoji")),
		Count: intField(obj, "count"),
	}
	for _, raw := range listField(obj, "users") {
		if p := participantFrom(asObject(raw)); p != nil {
			r.Users = append(r.Users, *p)
		}
	}
	return r
}

// asObject returns the value as a JSON object, or nil for anything else.
// All field helpers below accept a nil object, so extraction of a missing
// subtree degrades to a record full of nils.
func asObject(v any) map[string]any {
	obj, _ := v.(map[string]any)
	return obj
}

func objectField(obj map[string]any, key string) map[string]any {
	if obj == nil {
		return nil
	}
	return asObject(obj[key])
}

func listField(obj map[string]any, key string) []any {
	if obj == nil {
		return nil
	}
	list, _ := obj[key].([]any)
	return list
}

func stringField(obj map[string]any, key string) *string {
	if obj == nil {
		return nil
	}
	if s, ok := obj[key].(string); ok {
		return &s
	}
	return nil
}

// boolField keeps booleans tri-state: absent and null stay nil instead of
// collapsing to false.
func boolField(obj map[string]any, key string) *bool {
	if obj == nil {
		return nil
	}
	if b, ok := obj[key].(bool); ok {
		return &b
	}
	return nil
}

func intField(obj map[string]any, key string) *int64 {
	if obj == nil {
		return nil
	}
	if f, ok := obj[key].(float64); ok {
		n := int64(f)
		return &n
	}
	return nil
}
