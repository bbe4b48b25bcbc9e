package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SaltSize is the length in bytes of a generated salt.
const SaltSize = 32

// Salt is the deployment secret mixed into every identity hash. Losing or
// replacing it resets ever-unique tracking for every tenant.
type Salt []byte

// LoadOrCreateSalt reads the salt at path, generating and persisting a new
// one with mode 0600 on first start.
func LoadOrCreateSalt(path string) (Salt, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) == 0 {
			return nil, fmt.Errorf("salt file %s is empty", path)
		}
		return Salt(data), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read salt: %w", err)
	}

	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create salt directory: %w", err)
		}
	}
	// O_EXCL so two processes racing on first start cannot both write.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return LoadOrCreateSalt(path)
		}
		return nil, fmt.Errorf("create salt: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(salt); err != nil {
		return nil, fmt.Errorf("write salt: %w", err)
	}
	return Salt(salt), nil
}
