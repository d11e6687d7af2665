package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrCodeNotFound is returned when no live code exists for a phone.
var ErrCodeNotFound = errors.New("verification code not found")

// StoredCode is a hashed one-time code with its failed attempt counter.
type StoredCode struct {
	Hash     string
	Attempts int
}

// CodeStore persists one pending verification code per phone.
type CodeStore interface {
	Save(ctx context.Context, phone, hash string, ttl time.Duration) error
	Get(ctx context.Context, phone string) (*StoredCode, error)
	IncrementAttempts(ctx context.Context, phone string) (int, error)
	Delete(ctx context.Context, phone string) error
}

// GenerateCode returns a random numeric code of the given length.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

// HashCode hashes a verification code with configured cost.
func HashCode(code string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareCode verifies a code against its hashed value.
func CompareCode(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

type memoryCode struct {
	StoredCode
	expiresAt time.Time
}

// MemoryCodeStore is the single-process CodeStore used without Redis.
type MemoryCodeStore struct {
	mu    sync.Mutex
	now   func() time.Time
	codes map[string]memoryCode
}

// NewMemoryCodeStore builds an empty store.
func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{now: time.Now, codes: make(map[string]memoryCode)}
}

func (s *MemoryCodeStore) Save(_ context.Context, phone, hash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = memoryCode{StoredCode: StoredCode{Hash: hash}, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryCodeStore) Get(_ context.Context, phone string) (*StoredCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.live(phone)
	if !ok {
		return nil, ErrCodeNotFound
	}
	out := code.StoredCode
	return &out, nil
}

func (s *MemoryCodeStore) IncrementAttempts(_ context.Context, phone string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.live(phone)
	if !ok {
		return 0, ErrCodeNotFound
	}
	code.Attempts++
	s.codes[phone] = code
	return code.Attempts, nil
}

func (s *MemoryCodeStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, phone)
	return nil
}

func (s *MemoryCodeStore) live(phone string) (memoryCode, bool) {
	code, ok := s.codes[phone]
	if !ok {
		return memoryCode{}, false
	}
	if !s.now().Before(code.expiresAt) {
		delete(s.codes, phone)
		return memoryCode{}, false
	}
	return code, true
}
