package sqlite

// Schema creates the scan history tables.
const Schema = `
CREATE TABLE IF NOT EXISTS scans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	containers_scanned INTEGER NOT NULL,
	findings_count INTEGER NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS findings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scan_id INTEGER NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
	namespace TEXT NOT NULL,
	pod TEXT NOT NULL,
	container TEXT NOT NULL,
	node TEXT NOT NULL,
	score REAL NOT NULL,
	classification TEXT NOT NULL,
	rule_scores_json TEXT NOT NULL,
	evidence_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_findings_scan ON findings(scan_id);
CREATE INDEX IF NOT EXISTS idx_findings_identity ON findings(namespace, pod, container);
`
