// Package store persists users, chats and messages with GORM on SQLite. It is
// the persistence collaborator behind the REST API and answers recipient
// lookups for the real-time hub.
package store

import (
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrNotFound is returned when a user, chat or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUserExists is returned when registering an email that is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrNotMember is returned when the caller is not a member of the chat.
	ErrNotMember = errors.New("not a member of this chat")
	// ErrNotAdmin is returned when a group change is attempted by a non-admin.
	ErrNotAdmin = errors.New("only the group admin can do this")
	// ErrInvalidGroup is returned for group operations on a one-to-one chat or
	// a group with too few members.
	ErrInvalidGroup = errors.New("invalid group")
	// ErrInvalidChat is returned when a one-to-one chat would have a single user.
	ErrInvalidChat = errors.New("cannot open a chat with yourself")
)

// MinGroupMembers is the number of users besides the admin a group needs.
const MinGroupMembers = 2

// Store provides access to chat storage.
type Store struct {
	db *gorm.DB
}

// New wraps an open database. The schema must already be migrated.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open opens the SQLite database at path and migrates the schema. logLevel
// "debug" makes GORM log every statement; anything else keeps it silent.
func Open(path, logLevel string) (*Store, error) {
	level := logger.Silent
	if logLevel == "debug" {
		level = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                                   logger.Default.LogMode(level),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access database handle: %w", err)
		}
		// Every pooled connection would otherwise get its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return New(db), nil
}

// Migrate creates or updates the tables for every model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}, &Chat{}, &Message{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// DB returns the underlying GORM handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
