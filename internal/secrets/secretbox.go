package secrets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/nacl/secretbox"
)

// DB is the narrow database surface the store needs.
// *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBStore keeps secrets in the control-plane credential_secrets table,
// encrypted with nacl/secretbox under a single process-wide key.
type DBStore struct {
	db  DB
	key [32]byte
}

// NewDBStore creates a DBStore from a base64-encoded 32-byte key.
func NewDBStore(db DB, base64Key string) (*DBStore, error) {
	raw, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("decode secretbox key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("secretbox key must be 32 bytes, got %d", len(raw))
	}
	s := &DBStore{db: db}
	copy(s.key[:], raw)
	return s, nil
}

// GenerateKey returns a new base64-encoded secretbox key.
func GenerateKey() (string, error) {
	var key [32]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return "", fmt.Errorf("generate secretbox key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key[:]), nil
}

func (s *DBStore) Get(ctx context.Context, ref string) (string, error) {
	var ciphertext []byte
	err := s.db.QueryRow(ctx,
		"SELECT ciphertext FROM credential_secrets WHERE ref = $1", ref,
	).Scan(&ciphertext)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("secret %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", ref, err)
	}

	plaintext, err := s.open(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decrypt secret %s: %w", ref, err)
	}
	return string(plaintext), nil
}

func (s *DBStore) Put(ctx context.Context, ref, value string) error {
	ciphertext, err := s.seal([]byte(value))
	if err != nil {
		return fmt.Errorf("encrypt secret %s: %w", ref, err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO credential_secrets (ref, ciphertext, created_at, updated_at)
		 VALUES ($1, $2, now(), now())
		 ON CONFLICT (ref) DO UPDATE SET ciphertext = EXCLUDED.ciphertext, updated_at = now()`,
		ref, ciphertext,
	)
	if err != nil {
		return fmt.Errorf("store secret %s: %w", ref, err)
	}
	return nil
}

// seal prepends the random nonce to the secretbox ciphertext.
func (s *DBStore) seal(plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

func (s *DBStore) open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 24 {
		return nil, errors.New("ciphertext too short")
	}
	var nonce [24]byte
	copy(nonce[:], ciphertext[:24])
	plaintext, ok := secretbox.Open(nil, ciphertext[24:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("secretbox open failed")
	}
	return plaintext, nil
}
