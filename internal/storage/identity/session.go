// Handles active user sessions and token revocation.

package identity

import (
	"errors"
	"time"

	"github.com/maruel/mdwiki/internal/jsonldb"
	"github.com/maruel/mdwiki/internal/ksid"
)

// Session represents an active user session. Only the SHA-256 hash of the
// token is stored; a leaked table cannot be replayed.
type Session struct {
	ID          ksid.ID   `json:"id"`
	UserID      ksid.ID   `json:"user_id"`
	TokenHash   string    `json:"token_hash"`
	DeviceInfo  string    `json:"device_info,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	CountryCode string    `json:"country_code,omitempty"`
	Created     time.Time `json:"created"`
	LastUsed    time.Time `json:"last_used"`
	ExpiresAt   time.Time `json:"expires_at"`
	RevokedAt   time.Time `json:"revoked_at,omitzero"`
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	return &c
}

// GetID returns the session's ID.
func (s *Session) GetID() ksid.ID {
	return s.ID
}

// SessionService handles session lifecycle.
type SessionService struct {
	table *jsonldb.Table[*Session]
}

// NewSessionService creates a new session service.
func NewSessionService(tablePath string) (*SessionService, error) {
	table, err := jsonldb.NewTable[*Session](tablePath)
	if err != nil {
		return nil, err
	}
	return &SessionService{table: table}, nil
}

// CreateWithID creates a session with a pre-generated ID so the ID can be
// embedded in the JWT before the session row exists.
func (s *SessionService) CreateWithID(id, userID ksid.ID, tokenHash, deviceInfo, ipAddress, countryCode string, expiresAt time.Time) (*Session, error) {
	if id == 0 || userID == 0 {
		return nil, errSessionIDRequired
	}
	if tokenHash == "" {
		return nil, errSessionTokenHashRequired
	}
	now := time.Now()
	session := &Session{
		ID:          id,
		UserID:      userID,
		TokenHash:   tokenHash,
		DeviceInfo:  deviceInfo,
		IPAddress:   ipAddress,
		CountryCode: countryCode,
		Created:     now,
		LastUsed:    now,
		ExpiresAt:   expiresAt,
	}
	if err := s.table.Append(session); err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// Get retrieves a session by ID.
func (s *SessionService) Get(id ksid.ID) (*Session, error) {
	session, ok := s.table.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// IsValid checks if a session exists and is neither revoked nor expired.
func (s *SessionService) IsValid(id ksid.ID) bool {
	session, ok := s.table.Get(id)
	if !ok {
		return false
	}
	return session.RevokedAt.IsZero() && session.ExpiresAt.After(time.Now())
}

// Touch updates the LastUsed timestamp for a session.
func (s *SessionService) Touch(id ksid.ID) error {
	_, err := s.table.Modify(id, func(session *Session) error {
		session.LastUsed = time.Now()
		return nil
	})
	if errors.Is(err, jsonldb.ErrNotFound) {
		return ErrSessionNotFound
	}
	return err
}

// Revoke marks a session as revoked. Revoking twice is a no-op.
func (s *SessionService) Revoke(id ksid.ID) error {
	_, err := s.table.Modify(id, func(session *Session) error {
		if session.RevokedAt.IsZero() {
			session.RevokedAt = time.Now()
		}
		return nil
	})
	if errors.Is(err, jsonldb.ErrNotFound) {
		return ErrSessionNotFound
	}
	return err
}

// CountActive returns the number of live sessions.
func (s *SessionService) CountActive() int {
	now := time.Now()
	count := 0
	for session := range s.table.All() {
		if session.RevokedAt.IsZero() && session.ExpiresAt.After(now) {
			count++
		}
	}
	return count
}

// CleanupExpired removes sessions expired for longer than olderThan.
// Returns the count of removed sessions.
func (s *SessionService) CleanupExpired(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	var toDelete []ksid.ID
	for session := range s.table.All() {
		if session.ExpiresAt.Before(cutoff) {
			toDelete = append(toDelete, session.ID)
		}
	}
	count := 0
	for _, id := range toDelete {
		if err := s.table.Delete(id); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

var (
	errSessionIDRequired        = errors.New("session id and user_id are required")
	errSessionTokenHashRequired = errors.New("session token_hash is required")
	// ErrSessionNotFound is returned when a session lookup fails.
	ErrSessionNotFound = errors.New("session not found")
)
