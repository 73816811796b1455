package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/perry/email-evolve/internal/core"
)

// MySQLStore is a MySQL implementation of the core.Store interface, for
// deployments where the database lives off-box. InnoDB's MVCC gives the
// same readers-during-writes behavior WAL provides for SQLite.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore connects to MySQL using the given DSN.
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn+"?parseTime=true")
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	s := &MySQLStore{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS emails (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			provider_id VARCHAR(128),
			account_email VARCHAR(255) DEFAULT 'unknown',
			thread_id VARCHAR(128),
			internal_date BIGINT,
			from_addr TEXT,
			to_addr TEXT,
			subject TEXT,
			snippet TEXT,
			body MEDIUMTEXT,
			provider_labels TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uk_account_provider (account_email, provider_id)
		)`,
		`CREATE TABLE IF NOT EXISTS email_labels (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			email_id BIGINT NOT NULL,
			label VARCHAR(128) NOT NULL,
			confidence DOUBLE DEFAULT 1.0,
			source VARCHAR(16) DEFAULT 'manual',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uk_email (email_id)
		)`,
		`CREATE TABLE IF NOT EXISTS model_versions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			version VARCHAR(64) NOT NULL,
			model_path VARCHAR(512) NOT NULL DEFAULT '',
			num_samples INT,
			num_categories INT,
			accuracy DOUBLE,
			macro_f1 DOUBLE,
			report_json MEDIUMTEXT,
			insufficient_data TINYINT DEFAULT 0,
			trigger_source VARCHAR(16) DEFAULT 'manual',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS category_proposals (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			proposed_name VARCHAR(128) NOT NULL,
			cluster_size INT,
			sample_email_ids TEXT,
			description TEXT,
			reasoning TEXT,
			status VARCHAR(16) DEFAULT 'pending',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX idx_emails_internal_date ON emails(internal_date)`,
		`CREATE INDEX idx_labels_confidence ON email_labels(confidence)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			// Index creation is not idempotent on MySQL; duplicates are fine.
			if strings.HasPrefix(stmt, "CREATE INDEX") && strings.Contains(err.Error(), "Duplicate") {
				continue
			}
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// InsertEmail inserts a message if absent, keyed by (account, provider id).
func (s *MySQLStore) InsertEmail(ctx context.Context, email *core.Email) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT IGNORE INTO emails
		(provider_id, account_email, thread_id, internal_date, from_addr,
		 to_addr, subject, snippet, body, provider_labels)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, email.ProviderID, email.AccountEmail, email.ThreadID, email.InternalDate,
		email.From, email.To, email.Subject, email.Snippet, email.Body, email.ProviderLabels)
	if err != nil {
		return false, fmt.Errorf("failed to insert email: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	if rows > 0 {
		if id, err := result.LastInsertId(); err == nil {
			email.ID = id
		}
	}
	return rows > 0, nil
}

// UpsertLabel inserts or replaces the label for an email.
func (s *MySQLStore) UpsertLabel(ctx context.Context, label core.Label) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO email_labels (email_id, label, confidence, source)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE label = VALUES(label),
			confidence = VALUES(confidence), source = VALUES(source)
	`, label.EmailID, label.Category, label.Confidence, string(label.Source))
	if err != nil {
		return fmt.Errorf("failed to upsert label: %w", err)
	}
	return nil
}

// ClearLabels deletes all labels.
func (s *MySQLStore) ClearLabels(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM email_labels`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear labels: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}
	s.logger.Info("Cleared labels", zap.Int64("count", deleted))
	return deleted, nil
}

// UnlabeledEmails fetches emails with no label, most recent first.
func (s *MySQLStore) UnlabeledEmails(ctx context.Context, limit int) ([]core.Email, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.provider_id, e.account_email, e.thread_id, e.internal_date,
		       e.from_addr, e.to_addr, e.subject, e.snippet, e.body, e.provider_labels
		FROM emails e
		LEFT JOIN email_labels l ON e.id = l.email_id
		WHERE l.email_id IS NULL
		ORDER BY e.internal_date DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unlabeled emails: %w", err)
	}
	defer rows.Close()

	var emails []core.Email
	for rows.Next() {
		var e core.Email
		if err := rows.Scan(&e.ID, &e.ProviderID, &e.AccountEmail, &e.ThreadID,
			&e.InternalDate, &e.From, &e.To, &e.Subject, &e.Snippet, &e.Body,
			&e.ProviderLabels); err != nil {
			return nil, fmt.Errorf("failed to scan email row: %w", err)
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

// LabeledEmails fetches every labeled email, most recent first.
func (s *MySQLStore) LabeledEmails(ctx context.Context) ([]core.LabeledEmail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+labeledEmailColumns+`
		FROM emails e
		INNER JOIN email_labels l ON e.id = l.email_id
		ORDER BY e.internal_date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query labeled emails: %w", err)
	}
	defer rows.Close()
	return scanLabeled(rows)
}

// EmailsByIDs fetches emails (with labels, if any) by internal id.
func (s *MySQLStore) EmailsByIDs(ctx context.Context, ids []int64) ([]core.LabeledEmail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+labeledEmailColumns+`
		FROM emails e
		LEFT JOIN email_labels l ON e.id = l.email_id
		WHERE e.id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query emails by id: %w", err)
	}
	defer rows.Close()
	return scanLabeled(rows)
}

// LowConfidenceEmails fetches labeled emails below the confidence threshold.
func (s *MySQLStore) LowConfidenceEmails(ctx context.Context, threshold float64, limit int) ([]core.LabeledEmail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+labeledEmailColumns+`
		FROM emails e
		INNER JOIN email_labels l ON e.id = l.email_id
		WHERE l.confidence < ?
		ORDER BY l.confidence ASC
		LIMIT ?
	`, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query low-confidence emails: %w", err)
	}
	defer rows.Close()
	return scanLabeled(rows)
}

// LabelsByProviderIDs is the batch lookup used by the serving API.
func (s *MySQLStore) LabelsByProviderIDs(ctx context.Context, providerIDs []string) (map[string]core.Label, error) {
	if len(providerIDs) == 0 {
		return map[string]core.Label{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(providerIDs)), ",")
	args := make([]any, len(providerIDs))
	for i, id := range providerIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.provider_id, l.email_id, l.label, l.confidence, l.source
		FROM emails e
		INNER JOIN email_labels l ON e.id = l.email_id
		WHERE e.provider_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels by provider id: %w", err)
	}
	defer rows.Close()

	out := make(map[string]core.Label)
	for rows.Next() {
		var providerID, label, source string
		var emailID int64
		var confidence float64
		if err := rows.Scan(&providerID, &emailID, &label, &confidence, &source); err != nil {
			return nil, fmt.Errorf("failed to scan label row: %w", err)
		}
		out[providerID] = core.Label{
			EmailID:    emailID,
			Category:   label,
			Confidence: confidence,
			Source:     core.LabelSource(source),
		}
	}
	return out, rows.Err()
}

func (s *MySQLStore) scalar(ctx context.Context, query string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to query count: %w", err)
	}
	return n, nil
}

// LabeledCount returns the number of labeled emails.
func (s *MySQLStore) LabeledCount(ctx context.Context) (int, error) {
	return s.scalar(ctx, `SELECT COUNT(*) FROM email_labels`)
}

// UnlabeledCount returns the number of emails without a label.
func (s *MySQLStore) UnlabeledCount(ctx context.Context) (int, error) {
	return s.scalar(ctx, `
		SELECT COUNT(*)
		FROM emails e
		LEFT JOIN email_labels l ON e.id = l.email_id
		WHERE l.email_id IS NULL`)
}

// TotalEmailCount returns the total number of stored emails.
func (s *MySQLStore) TotalEmailCount(ctx context.Context) (int, error) {
	return s.scalar(ctx, `SELECT COUNT(*) FROM emails`)
}

// LabelSummary returns the label distribution.
func (s *MySQLStore) LabelSummary(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, COUNT(*) FROM email_labels GROUP BY label ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query label summary: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		out[label] = count
	}
	return out, rows.Err()
}

// AppendModelVersion records a training run.
func (s *MySQLStore) AppendModelVersion(ctx context.Context, mv *core.ModelVersion) error {
	insufficient := 0
	if mv.InsufficientData {
		insufficient = 1
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO model_versions
		(version, model_path, num_samples, num_categories, accuracy, macro_f1,
		 report_json, insufficient_data, trigger_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, mv.Version, mv.ModelPath, mv.NumSamples, mv.NumCategories, mv.Accuracy,
		mv.MacroF1, mv.ReportJSON, insufficient, string(mv.Trigger))
	if err != nil {
		return fmt.Errorf("failed to record model version: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		mv.ID = id
	}
	return nil
}

// LatestModelVersion returns the most recent version row, or nil.
func (s *MySQLStore) LatestModelVersion(ctx context.Context) (*core.ModelVersion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+modelVersionColumns+`
		FROM model_versions ORDER BY id DESC LIMIT 1
	`)
	mv, err := scanModelVersion(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest model version: %w", err)
	}
	return mv, nil
}

// ModelVersionCount returns the number of recorded training runs.
func (s *MySQLStore) ModelVersionCount(ctx context.Context) (int, error) {
	return s.scalar(ctx, `SELECT COUNT(*) FROM model_versions`)
}

// ModelVersionHistory returns recent versions for trend monitoring.
func (s *MySQLStore) ModelVersionHistory(ctx context.Context, limit int) ([]core.ModelVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+modelVersionColumns+`
		FROM model_versions ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query model history: %w", err)
	}
	defer rows.Close()

	var out []core.ModelVersion
	for rows.Next() {
		mv, err := scanModelVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model version row: %w", err)
		}
		out = append(out, *mv)
	}
	return out, rows.Err()
}

// AppendProposal records a proposed new category.
func (s *MySQLStore) AppendProposal(ctx context.Context, p *core.CategoryProposal) error {
	sampleIDs, err := json.Marshal(p.SampleEmailIDs)
	if err != nil {
		return fmt.Errorf("failed to encode sample ids: %w", err)
	}
	if p.Status == "" {
		p.Status = core.ProposalPending
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO category_proposals
		(proposed_name, cluster_size, sample_email_ids, description, reasoning, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ProposedName, p.ClusterSize, string(sampleIDs), p.Description, p.Reasoning, string(p.Status))
	if err != nil {
		return fmt.Errorf("failed to record category proposal: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		p.ID = id
	}
	s.logger.Info("Saved category proposal",
		zap.String("name", p.ProposedName), zap.Int("cluster_size", p.ClusterSize))
	return nil
}

// PendingProposals returns unreviewed proposals, newest first.
func (s *MySQLStore) PendingProposals(ctx context.Context) ([]core.CategoryProposal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, proposed_name, cluster_size, sample_email_ids, description,
		       reasoning, status, created_at
		FROM category_proposals
		WHERE status = 'pending'
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending proposals: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryProposal
	for rows.Next() {
		var p core.CategoryProposal
		var sampleIDs, status string
		if err := rows.Scan(&p.ID, &p.ProposedName, &p.ClusterSize, &sampleIDs,
			&p.Description, &p.Reasoning, &status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan proposal row: %w", err)
		}
		p.Status = core.ProposalStatus(status)
		if sampleIDs != "" {
			if err := json.Unmarshal([]byte(sampleIDs), &p.SampleEmailIDs); err != nil {
				s.logger.Warn("Malformed sample ids on proposal",
					zap.Int64("id", p.ID), zap.Error(err))
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProposalStatus transitions a pending proposal to accepted or
// rejected. Terminal statuses never transition again.
func (s *MySQLStore) UpdateProposalStatus(ctx context.Context, id int64, status core.ProposalStatus) error {
	if status != core.ProposalAccepted && status != core.ProposalRejected {
		return fmt.Errorf("invalid proposal status %q", status)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE category_proposals SET status = ? WHERE id = ? AND status = 'pending'
	`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update proposal status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("proposal %d is not pending", id)
	}
	return nil
}

// Close closes the underlying database.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
