// ABOUTME: User accounts with bearer tokens stored as SHA-256 hashes and a credit balance.
package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

const tokenPrefix = "sg_"

// HashToken returns the stored form of a bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return tokenPrefix + hex.EncodeToString(buf), nil
}

// CreateUser creates a user and returns it with its plaintext token, which
// is not retrievable afterwards.
func (s *Store) CreateUser(ctx context.Context, name string, credits int) (User, string, error) {
	token, err := newToken()
	if err != nil {
		return User{}, "", err
	}
	u := User{ID: newID(), Name: name, Credits: credits, CreatedAt: time.Now().UTC()}
	_, err = s.exec(ctx, s.db,
		`INSERT INTO users (id, name, token_hash, credits, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, HashToken(token), u.Credits, formatTime(u.CreatedAt),
	)
	if err != nil {
		return User{}, "", fmt.Errorf("insert user: %w", err)
	}
	return u, token, nil
}

// UserByToken resolves a bearer token.
func (s *Store) UserByToken(ctx context.Context, token string) (User, error) {
	return s.scanUser(s.queryRow(ctx, s.db,
		`SELECT id, name, credits, created_at FROM users WHERE token_hash = ?`, HashToken(token)))
}

// GetUser loads a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	return s.scanUser(s.queryRow(ctx, s.db,
		`SELECT id, name, credits, created_at FROM users WHERE id = ?`, id))
}

// AddCredits adjusts a user's balance by delta and returns the new balance.
func (s *Store) AddCredits(ctx context.Context, id string, delta int) (int, error) {
	var credits int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, `UPDATE users SET credits = credits + ? WHERE id = ?`, delta, id)
		if err != nil {
			return fmt.Errorf("update credits: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return s.queryRow(ctx, tx, `SELECT credits FROM users WHERE id = ?`, id).Scan(&credits)
	})
	return credits, err
}

func (s *Store) scanUser(row *sql.Row) (User, error) {
	var u User
	var created string
	if err := row.Scan(&u.ID, &u.Name, &u.Credits, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}
