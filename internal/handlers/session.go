package handlers

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Kerhoff/CartBot/internal/models"
)

const (
	sessionTTL     = 7 * 24 * time.Hour
	sessionCleanup = time.Hour

	// maxHistory bounds the stored conversation per chat. The service
	// truncates further before building a prompt.
	maxHistory = 20
)

// Sessions keeps per-user bot state that does not belong in the database:
// the group a Telegram user is working on and their recent conversation
// with the assistant. Entries expire after a week of inactivity.
type Sessions struct {
	cache *cache.Cache
}

// NewSessions creates an empty session store.
func NewSessions() *Sessions {
	return &Sessions{cache: cache.New(sessionTTL, sessionCleanup)}
}

func groupKey(telegramID int64) string {
	return fmt.Sprintf("group:%d", telegramID)
}

func historyKey(chatID, telegramID int64) string {
	return fmt.Sprintf("history:%d:%d", chatID, telegramID)
}

// ActiveGroup returns the group the user last switched to, if any.
func (s *Sessions) ActiveGroup(telegramID int64) (string, bool) {
	v, ok := s.cache.Get(groupKey(telegramID))
	if !ok {
		return "", false
	}
	return v.(string), true
}

// SetActiveGroup remembers groupID as the user's working group.
func (s *Sessions) SetActiveGroup(telegramID int64, groupID string) {
	s.cache.SetDefault(groupKey(telegramID), groupID)
}

// ClearActiveGroup drops the user's working group so the personal list is
// used again.
func (s *Sessions) ClearActiveGroup(telegramID int64) {
	s.cache.Delete(groupKey(telegramID))
}

// History returns a copy of the stored conversation, oldest first.
func (s *Sessions) History(chatID, telegramID int64) []models.Message {
	v, ok := s.cache.Get(historyKey(chatID, telegramID))
	if !ok {
		return nil
	}
	msgs := v.([]models.Message)
	return append([]models.Message(nil), msgs...)
}

// Remember appends msgs to the conversation, keeping the newest maxHistory.
func (s *Sessions) Remember(chatID, telegramID int64, msgs ...models.Message) {
	history := append(s.History(chatID, telegramID), msgs...)
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	s.cache.SetDefault(historyKey(chatID, telegramID), history)
}

// ForgetHistory clears the conversation of a chat.
func (s *Sessions) ForgetHistory(chatID, telegramID int64) {
	s.cache.Delete(historyKey(chatID, telegramID))
}
