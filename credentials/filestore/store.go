// Package filestore persists the staff session to a local file, encrypted
// with XChaCha20-Poly1305 under a key derived from a passphrase with Argon2id.
// The session survives process restarts the way browser storage survives a
// page reload.
package filestore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/taxappeal-client/credentials"
	"github.com/jrsteele09/taxappeal-client/internal/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	formatVersion = 1
	saltLength    = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var _ credentials.Store = (*Store)(nil)

// envelope is the on-disk document. Data is the sealed JSON of the values map.
type envelope struct {
	Version int    `json:"v"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Data    []byte `json:"data"`
}

// Store is a credentials.Store backed by a single encrypted file. Reads are
// served from memory; every write replaces the file with a rename so a crash
// never leaves a half written session behind.
type Store struct {
	path   string
	salt   []byte
	key    []byte
	values map[credentials.Key]string
	lock   sync.RWMutex
}

// New opens the store at path, decrypting an existing file with passphrase.
// A missing file yields an empty store; a file that cannot be decrypted
// returns ErrStoreCorrupt.
func New(path, passphrase string) (*Store, error) {
	s := &Store{
		path:   path,
		values: make(map[credentials.Key]string),
	}

	env, err := readEnvelope(path)
	if err != nil {
		return nil, err
	}

	if env == nil {
		s.salt = make([]byte, saltLength)
		if _, err := rand.Read(s.salt); err != nil {
			return nil, fmt.Errorf("generating salt: %w", err)
		}
		s.key = deriveKey(passphrase, s.salt)
		return s, nil
	}

	s.salt = env.Salt
	s.key = deriveKey(passphrase, s.salt)
	if err := s.open(env); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Get(_ context.Context, key credentials.Key) (string, error) {
	if err := credentials.CheckKeys(key); err != nil {
		return "", err
	}
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.values[key], nil
}

func (s *Store) Set(ctx context.Context, key credentials.Key, value string) error {
	return s.SetAll(ctx, map[credentials.Key]string{key: value})
}

func (s *Store) SetAll(_ context.Context, values map[credentials.Key]string) error {
	if err := credentials.CheckValues(values); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	next := maps.Clone(s.values)
	for k, v := range values {
		if v == "" {
			delete(next, k)
			continue
		}
		next[k] = v
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.values = next
	return nil
}

func (s *Store) Delete(ctx context.Context, key credentials.Key) error {
	return s.SetAll(ctx, map[credentials.Key]string{key: ""})
}

// Clear deletes the file. The in-memory values are dropped even if the file
// is already gone.
func (s *Store) Clear(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", s.path, err)
	}
	s.values = make(map[credentials.Key]string)
	return nil
}

func (s *Store) open(env *envelope) error {
	if env.Version != formatVersion {
		return errors.Wrapf(errors.ErrStoreCorrupt, "unsupported format version %d", env.Version)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return fmt.Errorf("creating cipher: %w", err)
	}
	if len(env.Nonce) != aead.NonceSize() {
		return errors.Wrapf(errors.ErrStoreCorrupt, "bad nonce length %d", len(env.Nonce))
	}
	plain, err := aead.Open(nil, env.Nonce, env.Data, s.additionalData())
	if err != nil {
		return errors.Wrapf(errors.ErrStoreCorrupt, "decrypting %s (wrong passphrase?)", s.path)
	}
	if err := json.Unmarshal(plain, &s.values); err != nil {
		return errors.Wrapf(errors.ErrStoreCorrupt, "decoding %s", s.path)
	}
	return nil
}

func (s *Store) persist(values map[credentials.Key]string) error {
	plain, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return fmt.Errorf("creating cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}

	doc, err := json.Marshal(envelope{
		Version: formatVersion,
		Salt:    s.salt,
		Nonce:   nonce,
		Data:    aead.Seal(nil, nonce, plain, s.additionalData()),
	})
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}
	return writeFileAtomic(s.path, doc)
}

// additionalData binds the ciphertext to the format version.
func (s *Store) additionalData() []byte {
	return []byte(fmt.Sprintf("taxappeal-session-v%d", formatVersion))
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

func readEnvelope(path string) (*envelope, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrStoreUnavailable, "reading %s: %v", path, err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrapf(errors.ErrStoreCorrupt, "parsing %s", path)
	}
	return &env, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
