package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// tokenPrefix and tokenSuffix bound the filenames recognized as account
// credentials inside the tokens directory.
const (
	tokenPrefix = "token_"
	tokenSuffix = ".json"
)

// TokenAccountSource discovers already-authenticated accounts from a directory
// of token files. It never starts an authentication flow; accounts that are
// not enrolled yet are simply invisible to it.
type TokenAccountSource struct {
	dir    string
	logger *zap.Logger
}

// NewTokenAccountSource creates an account source over the given tokens directory
func NewTokenAccountSource(dir string, logger *zap.Logger) *TokenAccountSource {
	return &TokenAccountSource{dir: dir, logger: logger}
}

// tokenFile is the subset of a stored credential we care about.
type tokenFile struct {
	AccountEmail string `json:"account_email"`
}

// Accounts lists the account addresses with a readable token file. A missing
// tokens directory yields an empty list, not an error. Unreadable or
// malformed token files are logged and skipped.
func (s *TokenAccountSource) Accounts(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tokens directory: %w", err)
	}

	var accounts []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, tokenPrefix) || !strings.HasSuffix(name, tokenSuffix) {
			continue
		}
		account, err := s.readAccount(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warn("Skipping unreadable token file",
				zap.String("file", name),
				zap.Error(err))
			continue
		}
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts, nil
}

func (s *TokenAccountSource) readAccount(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return "", fmt.Errorf("invalid token file: %w", err)
	}
	if tf.AccountEmail == "" {
		return "", fmt.Errorf("token file has no account_email")
	}
	return tf.AccountEmail, nil
}
