// Package assistant turns a natural-language request into shopping list
// actions with a language model. It builds the prompt, consumes the model's
// stream of partial structured replies and resolves them into a final,
// validated action set. Applying the actions is left to the caller.
package assistant

import (
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/Kerhoff/CartBot/internal/models"
)

// EmptyListSentinel stands in for the item section when the list is empty.
const EmptyListSentinel = "The shopping list is currently empty."

const instructions = `You are a shopping list assistant. Turn the user's request into a list of actions on the shopping list below and a short reply for the user.

Rules:
- "add" adds an amount to an item. If an item with the same name already exists (ignoring case), the amount is added to it; never create a second item with the same name.
- "update" sets the amount of an item that already exists to an absolute value.
- "delete" removes an item that already exists.
- "complete" toggles the completed state of an item that already exists.
- Only use "update", "delete" and "complete" on items that exist in the current list. Use the item name exactly as it appears in the list.
- "add" and "update" require a positive whole number amount. "delete" and "complete" have no amount.
- Return each item at most once per action kind.
- If the request does not call for any change, return no actions and answer in the message.`

// BuildPrompt renders the instructions, the current list, the recent
// conversation and the user's request into one prompt. Equal inputs give
// byte-identical output.
func BuildPrompt(items []*models.ShoppingListItem, recent []models.Message, userPrompt string) string {
	var b strings.Builder

	b.WriteString(instructions)
	b.WriteString("\n\nCurrent shopping list:\n")
	if len(items) == 0 {
		b.WriteString(EmptyListSentinel)
		b.WriteString("\n")
	}
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item.Name)
		b.WriteString(": ")
		b.WriteString(strconv.Itoa(item.Amount))
		if item.IsCompleted {
			b.WriteString(" (completed)")
		}
		b.WriteString("\n")
	}

	if len(recent) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, m := range recent {
			b.WriteString(m.Role.Label())
			b.WriteString(": ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nUser request:\n")
	b.WriteString(userPrompt)

	return b.String()
}

// TruncateHistory keeps the last limit non-empty messages.
func TruncateHistory(messages []models.Message, limit int) []models.Message {
	kept := lo.Filter(messages, func(m models.Message, _ int) bool {
		return strings.TrimSpace(m.Content) != ""
	})
	if limit <= 0 {
		return nil
	}
	if len(kept) <= limit {
		return kept
	}
	return kept[len(kept)-limit:]
}
