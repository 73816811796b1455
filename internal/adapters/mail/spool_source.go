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

	"github.com/perry/email-evolve/internal/core"
	"github.com/perry/email-evolve/internal/utils"
)

// consumedDir is where processed spool files are moved so a crashed run can
// be replayed without losing messages. Insertion is idempotent on the store
// side, so replaying a consumed file is harmless.
const consumedDir = "consumed"

// spoolMessage is the on-disk JSON shape of one spooled message.
type spoolMessage struct {
	ProviderID     string `json:"provider_id"`
	ThreadID       string `json:"thread_id"`
	InternalDate   int64  `json:"internal_date"`
	From           string `json:"from"`
	To             string `json:"to"`
	Subject        string `json:"subject"`
	Snippet        string `json:"snippet"`
	Body           string `json:"body"`
	ProviderLabels string `json:"provider_labels"`
}

// SpoolMailSource reads normalized messages from a per-account spool
// directory. An external fetcher deposits one JSON file per message under
// <spool_dir>/<account>/; files are moved into a consumed/ subdirectory
// after a successful parse.
type SpoolMailSource struct {
	dir    string
	logger *zap.Logger
}

// NewSpoolMailSource creates a mail source over the given spool directory
func NewSpoolMailSource(dir string, logger *zap.Logger) *SpoolMailSource {
	return &SpoolMailSource{dir: dir, logger: logger}
}

// accountDir maps an account address to its spool subdirectory name.
func accountDir(account string) string {
	safe := strings.ReplaceAll(account, "@", "_")
	safe = strings.ReplaceAll(safe, ".", "_")
	return safe
}

// Fetch drains the spool directory for one account. Files that fail to parse
// are logged and left in place for inspection; everything else is returned
// and moved aside. A missing account directory yields an empty batch.
func (s *SpoolMailSource) Fetch(ctx context.Context, account string) ([]core.Email, error) {
	dir := filepath.Join(s.dir, accountDir(account))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read spool directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var emails []core.Email
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return emails, err
		}
		path := filepath.Join(dir, name)
		email, err := s.readMessage(path, account)
		if err != nil {
			s.logger.Warn("Skipping malformed spool file",
				zap.String("account", account),
				zap.String("file", name),
				zap.Error(err))
			continue
		}
		if err := s.consume(dir, name); err != nil {
			return emails, fmt.Errorf("failed to move consumed spool file: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, nil
}

func (s *SpoolMailSource) readMessage(path, account string) (core.Email, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Email{}, err
	}
	var msg spoolMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return core.Email{}, fmt.Errorf("invalid message file: %w", err)
	}
	if msg.ProviderID == "" {
		return core.Email{}, fmt.Errorf("message file has no provider_id")
	}
	return core.Email{
		ProviderID:     msg.ProviderID,
		AccountEmail:   account,
		ThreadID:       msg.ThreadID,
		InternalDate:   msg.InternalDate,
		From:           utils.SanitizeUTF8(msg.From),
		To:             utils.SanitizeUTF8(msg.To),
		Subject:        utils.SanitizeUTF8(msg.Subject),
		Snippet:        utils.SanitizeUTF8(msg.Snippet),
		Body:           utils.SanitizeUTF8(msg.Body),
		ProviderLabels: msg.ProviderLabels,
	}, nil
}

func (s *SpoolMailSource) consume(dir, name string) error {
	dest := filepath.Join(dir, consumedDir)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	return os.Rename(filepath.Join(dir, name), filepath.Join(dest, name))
}
