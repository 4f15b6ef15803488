// Package testutil provides an on-disk SQLite database, a recording chat transport and
// a settable clock for package tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"attendance/internal/database"
	"attendance/internal/model"
	"attendance/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens a migrated SQLite database in t.TempDir with foreign keys enforced.
// A single connection serializes transactions the way row locks do on postgres.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "attendance.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"), database.Config())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Employee inserts an employee straight into the store. An empty chatID leaves the
// chat identity unbound.
func Employee(t testing.TB, db *gorm.DB, email string, role model.Role, chatID string) *model.Employee {
	t.Helper()
	e := &model.Employee{
		Email:     model.NormalizeEmail(email),
		FirstName: "Ivan",
		LastName:  "Petrov",
		Role:      role,
		IsActive:  true,
	}
	if chatID != "" {
		e.ChatID = &chatID
	}
	require.NoError(t, db.Create(e).Error)
	return e
}

// ErrSendFailed is returned by Transport for recipients marked as failing.
var ErrSendFailed = errors.New("transport: delivery failed")

// SentCard is one card delivered by Transport.
type SentCard struct {
	ChatID   string
	Card     service.Card
	Delivery service.Delivery
}

// EditedCard is one card rewrite.
type EditedCard struct {
	Delivery service.Delivery
	Card     service.Card
}

// SentText is one plain direct message.
type SentText struct {
	ChatID string
	Text   string
}

// Transport records outbound messages. Recipients in FailSend and messages in FailEdit
// fail with ErrSendFailed.
type Transport struct {
	mu       sync.Mutex
	seq      int
	Cards    []SentCard
	Edits    []EditedCard
	Texts    []SentText
	FailSend map[string]bool
	FailEdit map[string]bool
}

func NewTransport() *Transport {
	return &Transport{FailSend: map[string]bool{}, FailEdit: map[string]bool{}}
}

func (f *Transport) SendCard(_ context.Context, chatID string, card service.Card) (service.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSend[chatID] {
		return service.Delivery{}, ErrSendFailed
	}
	f.seq++
	d := service.Delivery{ChatRef: "dm-" + chatID, MessageRef: fmt.Sprintf("post-%d", f.seq)}
	f.Cards = append(f.Cards, SentCard{ChatID: chatID, Card: card, Delivery: d})
	return d, nil
}

func (f *Transport) EditCard(_ context.Context, d service.Delivery, card service.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailEdit[d.MessageRef] {
		return ErrSendFailed
	}
	f.Edits = append(f.Edits, EditedCard{Delivery: d, Card: card})
	return nil
}

func (f *Transport) SendText(_ context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSend[chatID] {
		return ErrSendFailed
	}
	f.Texts = append(f.Texts, SentText{ChatID: chatID, Text: text})
	return nil
}

// CardsTo returns the cards delivered to chatID.
func (f *Transport) CardsTo(chatID string) []SentCard {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SentCard
	for _, c := range f.Cards {
		if c.ChatID == chatID {
			out = append(out, c)
		}
	}
	return out
}

// EditsOf returns the rewrites of one message.
func (f *Transport) EditsOf(messageRef string) []EditedCard {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []EditedCard
	for _, e := range f.Edits {
		if e.Delivery.MessageRef == messageRef {
			out = append(out, e)
		}
	}
	return out
}

// TextsTo returns the direct messages sent to chatID.
func (f *Transport) TextsTo(chatID string) []SentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SentText
	for _, m := range f.Texts {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}
