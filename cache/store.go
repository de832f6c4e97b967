////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package cache keeps a durable local copy of chat messages and serves
// message history from it or from the live remote feed.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"gitlab.com/elixxir/synapse/chat"
)

const (
	// Can be provided to SqlLite to create a temporary, in-memory DB.
	temporaryDbPath = "file:%s?mode=memory&cache=shared"

	// Determines maximum runtime (in seconds) of DB queries.
	dbTimeout = 3 * time.Second
)

// newContext builds a context for database operations.
func newContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}

// Cursor marks a position in a conversation. Page returns messages strictly
// older than the cursor.
type Cursor struct {
	Pending   bool
	OrderTS   int64
	MessageID string
}

// Store is the durable message cache. It is safe for concurrent use.
type Store struct {
	db *gorm.DB

	watchers map[string]map[uint64]chan struct{}
	watchID  uint64
	mux      sync.Mutex
}

// NewStore opens the cache at dbFilePath. An empty path opens an in-memory
// database.
func NewStore(dbFilePath string) (*Store, error) {
	return newStore(dbFilePath, len(dbFilePath) == 0)
}

// If useTemporary is set to true, this will use an in-RAM database named
// dbFilePath.
func newStore(dbFilePath string, useTemporary bool) (*Store, error) {
	if useTemporary {
		dbFilePath = fmt.Sprintf(temporaryDbPath, dbFilePath)
		jww.WARN.Printf("[CACHE] No database file path specified! " +
			"Using temporary in-memory database")
	}

	// Create the database connection
	db, err := gorm.Open(sqlite.Open(dbFilePath), &gorm.Config{
		Logger: logger.New(jww.TRACE, logger.Config{LogLevel: logger.Info}),
	})
	if err != nil {
		return nil, errors.Errorf(
			"Unable to initialize database backend: %+v", err)
	}

	// Enable Write Ahead Logging to enable multiple DB connections
	if !useTemporary {
		if err = db.Exec("PRAGMA journal_mode = WAL;").Error; err != nil {
			return nil, err
		}
	}

	sqlDb, err := db.DB()
	if err != nil {
		return nil, errors.Errorf(
			"Unable to configure database connection pool: %+v", err)
	}
	sqlDb.SetMaxIdleConns(5)
	sqlDb.SetMaxOpenConns(10)
	sqlDb.SetConnMaxIdleTime(5 * time.Minute)
	sqlDb.SetConnMaxLifetime(10 * time.Minute)

	if err = db.AutoMigrate(&Message{}); err != nil {
		return nil, err
	}

	jww.INFO.Println("[CACHE] Database backend initialized successfully!")
	return &Store{
		db:       db,
		watchers: make(map[string]map[uint64]chan struct{}),
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}

// Upsert inserts messages or replaces the stored copies with the same ID.
// Returns the number of rows that changed.
func (s *Store) Upsert(messages ...chat.Message) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	incoming := make(map[string]*Message, len(messages))
	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		row, err := buildMessage(msg)
		if err != nil {
			return 0, errors.WithMessagef(err, "failed to encode %s", msg.ID)
		}
		if _, exists := incoming[row.MessageID]; !exists {
			ids = append(ids, row.MessageID)
		}
		incoming[row.MessageID] = row
	}

	var changed []*Message
	ctx, cancel := newContext()
	defer cancel()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored []*Message
		if err := tx.Where("message_id IN ?", ids).Find(&stored).Error; err != nil {
			return err
		}
		byID := make(map[string]*Message, len(stored))
		for _, row := range stored {
			byID[row.MessageID] = row
		}

		for _, id := range ids {
			row := incoming[id]
			if old, exists := byID[id]; exists {
				row = merge(old, row)
				if equal(old, row) {
					continue
				}
			}
			changed = append(changed, row)
		}
		if len(changed) == 0 {
			return nil
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			UpdateAll: true,
		}).Create(&changed).Error
	})
	if err != nil {
		return 0, errors.WithMessage(err, "failed to upsert messages")
	}

	conversations := make(map[string]struct{})
	for _, row := range changed {
		conversations[row.ConversationID] = struct{}{}
	}
	for conversationID := range conversations {
		s.notify(conversationID)
	}

	jww.TRACE.Printf("[CACHE] Upserted %d of %d messages", len(changed),
		len(messages))
	return len(changed), nil
}

// Page returns up to limit messages of the conversation older than before,
// or the newest messages if before is nil. Messages are returned oldest
// first, with the cursor of the oldest row scanned and whether older rows
// exist. Rows that cannot be decoded are skipped.
func (s *Store) Page(conversationID string, before *Cursor, limit int) (
	[]chat.Message, *Cursor, bool, error) {
	ctx, cancel := newContext()
	defer cancel()

	query := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if before != nil {
		query = query.Where("(pending, order_ts, message_id) < (?, ?, ?)",
			before.Pending, before.OrderTS, before.MessageID)
	}

	var rows []*Message
	err := query.
		Order("pending DESC").Order("order_ts DESC").Order("message_id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, nil, false, errors.WithMessagef(err,
			"failed to page %s", conversationID)
	}

	hasOlder := len(rows) > limit
	if hasOlder {
		rows = rows[:limit]
	}

	var cursor *Cursor
	messages := make([]chat.Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		msg, err := rows[i].decode()
		if err != nil {
			jww.WARN.Printf("[CACHE] Skipping cached message: %+v", err)
			continue
		}
		messages = append(messages, msg)
	}
	if len(rows) > 0 {
		oldest := rows[len(rows)-1]
		cursor = &Cursor{oldest.Pending, oldest.OrderTS, oldest.MessageID}
	}

	return messages, cursor, hasOlder, nil
}

// Pending returns every message not yet acknowledged by the server, oldest
// first.
func (s *Store) Pending() ([]chat.Message, error) {
	ctx, cancel := newContext()
	defer cancel()

	var rows []*Message
	err := s.db.WithContext(ctx).
		Where("pending = ? AND deleted = ?", true, false).
		Order("created_ts ASC").Order("message_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load pending messages")
	}

	messages := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		msg, err := row.decode()
		if err != nil {
			jww.WARN.Printf("[CACHE] Skipping pending message: %+v", err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Get returns a single cached message.
func (s *Store) Get(messageID string) (chat.Message, error) {
	ctx, cancel := newContext()
	defer cancel()

	row := &Message{}
	err := s.db.WithContext(ctx).Take(row, "message_id = ?", messageID).Error
	if err != nil {
		return chat.Message{}, err
	}
	return row.decode()
}

// Watch returns a channel that receives a signal after every change to the
// conversation. Signals coalesce: a slow reader sees at least one signal
// after the latest change. Call the returned function to stop watching.
func (s *Store) Watch(conversationID string) (<-chan struct{}, func()) {
	s.mux.Lock()
	defer s.mux.Unlock()

	ch := make(chan struct{}, 1)
	id := s.watchID
	s.watchID++
	if s.watchers[conversationID] == nil {
		s.watchers[conversationID] = make(map[uint64]chan struct{})
	}
	s.watchers[conversationID][id] = ch

	return ch, func() {
		s.mux.Lock()
		defer s.mux.Unlock()
		delete(s.watchers[conversationID], id)
		if len(s.watchers[conversationID]) == 0 {
			delete(s.watchers, conversationID)
		}
	}
}

func (s *Store) notify(conversationID string) {
	s.mux.Lock()
	defer s.mux.Unlock()

	for _, ch := range s.watchers[conversationID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
