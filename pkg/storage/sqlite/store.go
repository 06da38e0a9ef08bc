// Package sqlite persists scan history for later inspection.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"k8s-zombie-detector/pkg/detector"
)

// Store writes scan reports to a SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens (and migrates) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReport persists the scan summary and one row per finding atomically.
func (s *Store) SaveReport(r detector.Report) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO scans (started_at, duration_ms, containers_scanned, findings_count)
		 VALUES (?, ?, ?, ?)`,
		r.StartedAt, r.Duration.Milliseconds(), r.ContainersScanned, len(r.Findings),
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	scanID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("scan id: %w", err)
	}

	for _, f := range r.Findings {
		ruleScores := make(map[string]float64, len(f.Verdict.Rules))
		evidence := make(map[string]map[string]any, len(f.Verdict.Rules))
		for name, outcome := range f.Verdict.Rules {
			ruleScores[name] = outcome.Score
			evidence[name] = outcome.Evidence
		}
		ruleScoresJSON, err := json.Marshal(ruleScores)
		if err != nil {
			return fmt.Errorf("marshal rule scores: %w", err)
		}
		evidenceJSON, err := json.Marshal(evidence)
		if err != nil {
			return fmt.Errorf("marshal evidence: %w", err)
		}

		_, err = tx.Exec(
			`INSERT INTO findings
			   (scan_id, namespace, pod, container, node, score, classification, rule_scores_json, evidence_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			scanID,
			f.Container.Namespace, f.Container.Pod, f.Container.Container, f.Container.Node,
			f.Verdict.Score, string(f.Verdict.Classification),
			string(ruleScoresJSON), string(evidenceJSON),
		)
		if err != nil {
			return fmt.Errorf("insert finding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// StoredFinding is one historical finding row.
type StoredFinding struct {
	ScanID         int64
	Namespace      string
	Pod            string
	Container      string
	Node           string
	Score          float64
	Classification string
	RuleScores     map[string]float64
}

// RecentFindings returns the newest findings, most recent scan first.
func (s *Store) RecentFindings(limit int) ([]StoredFinding, error) {
	rows, err := s.db.Query(
		`SELECT scan_id, namespace, pod, container, node, score, classification, rule_scores_json
		 FROM findings ORDER BY scan_id DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var findings []StoredFinding
	for rows.Next() {
		var f StoredFinding
		var ruleScoresJSON string
		if err := rows.Scan(
			&f.ScanID, &f.Namespace, &f.Pod, &f.Container, &f.Node,
			&f.Score, &f.Classification, &ruleScoresJSON,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(ruleScoresJSON), &f.RuleScores); err != nil {
			return nil, fmt.Errorf("parse rule scores: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}
