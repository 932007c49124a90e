// Package identity provides user accounts and session management, backed by
// JSONL tables in the data dir.
package identity

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/maruel/mdwiki/internal/jsonldb"
	"github.com/maruel/mdwiki/internal/ksid"
)

// User represents a wiki account (persistent fields only).
type User struct {
	ID       ksid.ID   `json:"id"`
	Username string    `json:"username"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// userStorage is the on-disk row: the public User plus the password hash,
// which never leaves this package.
type userStorage struct {
	User
	PasswordHash string `json:"password_hash"`
}

// Clone returns a deep copy of the row.
func (u *userStorage) Clone() *userStorage {
	c := *u
	return &c
}

// GetID returns the user's ID.
func (u *userStorage) GetID() ksid.ID {
	return u.ID
}

// UserService handles user management and credential verification.
type UserService struct {
	table *jsonldb.Table[*userStorage]

	mu         sync.RWMutex
	byUsername map[string]ksid.ID
}

// NewUserService creates a new user service.
func NewUserService(tablePath string) (*UserService, error) {
	table, err := jsonldb.NewTable[*userStorage](tablePath)
	if err != nil {
		return nil, err
	}
	s := &UserService{table: table, byUsername: map[string]ksid.ID{}}
	for row := range table.All() {
		s.byUsername[row.Username] = row.ID
	}
	return s, nil
}

// Create creates a new user with a bcrypt-hashed password.
func (s *UserService) Create(username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, errCredentialsRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUsername[username]; ok {
		return nil, ErrUserExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	now := time.Now()
	stored := &userStorage{
		User: User{
			ID:       ksid.NewID(),
			Username: username,
			Created:  now,
			Modified: now,
		},
		PasswordHash: string(hash),
	}
	if err := s.table.Append(stored); err != nil {
		return nil, err
	}
	s.byUsername[username] = stored.ID
	user := stored.User
	return &user, nil
}

// Get retrieves a user by ID.
func (s *UserService) Get(id ksid.ID) (*User, error) {
	stored, ok := s.table.Get(id)
	if !ok {
		return nil, ErrUserNotFound
	}
	user := stored.User
	return &user, nil
}

// GetByUsername retrieves a user by username.
func (s *UserService) GetByUsername(username string) (*User, error) {
	s.mu.RLock()
	id, ok := s.byUsername[username]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrUserNotFound
	}
	return s.Get(id)
}

// Authenticate verifies a username and password, returning the user on
// success. The bcrypt comparison is constant time; lookup failure and hash
// mismatch are indistinguishable to the caller.
func (s *UserService) Authenticate(username, password string) (*User, error) {
	s.mu.RLock()
	id, ok := s.byUsername[username]
	s.mu.RUnlock()
	if !ok {
		// Burn a comparison so missing users cost the same as bad passwords.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrUserNotFound
	}
	stored, ok := s.table.Get(id)
	if !ok {
		return nil, ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidPassword
	}
	user := stored.User
	return &user, nil
}

// SetPassword replaces a user's password hash.
func (s *UserService) SetPassword(id ksid.ID, password string) error {
	if password == "" {
		return errCredentialsRequired
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = s.table.Modify(id, func(u *userStorage) error {
		u.PasswordHash = string(hash)
		u.Modified = time.Now()
		return nil
	})
	if errors.Is(err, jsonldb.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// Count returns the number of users.
func (s *UserService) Count() int {
	return s.table.Len()
}

// dummyHash is a valid bcrypt hash of an unguessable value, used to equalize
// timing on unknown usernames.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("mdwiki-timing-pad"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

var (
	errCredentialsRequired = errors.New("username and password are required")
	// ErrUserExists is returned when creating a user whose username is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned when a user lookup fails.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidPassword is returned when the password does not match.
	ErrInvalidPassword = errors.New("invalid password")
)
