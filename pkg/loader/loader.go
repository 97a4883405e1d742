// Package loader walks a decoded chat export and writes it to the store as a
// normalized set of rows, parents before children.
package loader

import (
	"context"

	"github.com/TripCu/chatvault/internal/store"
	"github.com/TripCu/chatvault/pkg/export"
)

// Result counts the rows written by one load.
type Result struct {
	Messages      int
	Participants  int
	Mentions      int
	Attachments   int
	Embeds        int
	Stickers      int
	InlineEmojis  int
	Reactions     int
	ReactionUsers int
}

// Load writes one document through the given transaction in foreign-key
// dependency order: guild, channel and export metadata first, then each
// message in document order with its author before it and its children after
// it. Participants are upserted with merge semantics wherever they appear,
// so one id always resolves to one row with the latest seen field values.
//
// Embeds, inline emojis and reactions have no identity in the source data
// and are appended fresh with store-assigned rowids; loading on top of a
// database that already holds the same document duplicates those rows.
func Load(ctx context.Context, tx store.Writer, doc *export.Document) (*Result, error) {
	res := &Result{}
	seen := make(map[string]bool)

	if err := tx.UpsertGuild(ctx, &doc.Guild); err != nil {
		return nil, err
	}
	if err := tx.UpsertChannel(ctx, &doc.Channel); err != nil {
		return nil, err
	}
	if err := tx.ReplaceExportInfo(ctx, doc.ExportedAt, doc.MessageCount); err != nil {
		return nil, err
	}
	if err := tx.ReplaceDateRange(ctx, &doc.DateRange); err != nil {
		return nil, err
	}

	for i := range doc.Messages {
		if err := loadMessage(ctx, tx, &doc.Messages[i], seen, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func loadMessage(ctx context.Context, tx store.Writer, msg *export.Message, seen map[string]bool, res *Result) error {
	authorID, err := ensureParticipant(ctx, tx, msg.Author, seen, res)
	if err != nil {
		return err
	}
	if err := tx.UpsertMessage(ctx, msg, authorID); err != nil {
		return err
	}
	res.Messages++

	for i := range msg.Mentions {
		participantID, err := ensureParticipant(ctx, tx, &msg.Mentions[i], seen, res)
		if err != nil {
			return err
		}
		if participantID == nil {
			continue
		}
		if err := tx.LinkMention(ctx, msg.ID, *participantID); err != nil {
			return err
		}
		res.Mentions++
	}

	for i := range msg.Attachments {
		if err := tx.UpsertAttachment(ctx, msg.ID, &msg.Attachments[i]); err != nil {
			return err
		}
		res.Attachments++
	}

	for _, raw := range msg.Embeds {
		if _, err := tx.InsertEmbed(ctx, msg.ID, raw); err != nil {
			return err
		}
		res.Embeds++
	}

	for i := range msg.Stickers {
		if err := tx.UpsertSticker(ctx, msg.ID, &msg.Stickers[i]); err != nil {
			return err
		}
		res.Stickers++
	}

	for i := range msg.InlineEmojis {
		if _, err := tx.InsertInlineEmoji(ctx, msg.ID, &msg.InlineEmojis[i]); err != nil {
			return err
		}
		res.InlineEmojis++
	}

	for i := range msg.Reactions {
		if err := loadReaction(ctx, tx, msg.ID, &msg.Reactions[i], seen, res); err != nil {
			return err
		}
	}
	return nil
}

func loadReaction(ctx context.Context, tx store.Writer, messageID *string, r *export.Reaction, seen map[string]bool, res *Result) error {
	reactionID, err := tx.InsertReaction(ctx, messageID, r)
	if err != nil {
		return err
	}
	res.Reactions++

	for i := range r.Users {
		participantID, err := ensureParticipant(ctx, tx, &r.Users[i], seen, res)
		if err != nil {
			return err
		}
		if participantID == nil {
			continue
		}
		if err := tx.LinkReactionUser(ctx, reactionID, *participantID); err != nil {
			return err
		}
		res.ReactionUsers++
	}
	return nil
}

// ensureParticipant upserts a participant reference and returns its id, or
// nil when there is no participant. Every sighting is upserted so the last
// occurrence's field values win; the seen set only keeps the distinct count
// honest.
func ensureParticipant(ctx context.Context, tx store.Writer, p *export.Participant, seen map[string]bool, res *Result) (*string, error) {
	if p == nil {
		return nil, nil
	}
	if err := tx.UpsertParticipant(ctx, p); err != nil {
		return nil, err
	}
	if !seen[p.ID] {
		seen[p.ID] = true
		res.Participants++
	}
	return &p.ID, nil
}
