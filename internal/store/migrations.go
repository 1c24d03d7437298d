package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Assessments table - one row per analyzed frame
		`CREATE TABLE IF NOT EXISTS assessments (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL CHECK(source IN ('keypoints', 'image', 'monitor')),
			profile TEXT NOT NULL,
			shoulder_balance REAL NOT NULL,
			neck_position REAL NOT NULL,
			back_position REAL NOT NULL,
			overall_score REAL NOT NULL,
			is_good INTEGER NOT NULL,
			quality TEXT NOT NULL,
			feedback TEXT NOT NULL DEFAULT '[]',
			issues TEXT NOT NULL DEFAULT '[]',
			recommendations TEXT NOT NULL DEFAULT '[]',
			keypoints TEXT NOT NULL DEFAULT '{}',
			created_at_ms INTEGER NOT NULL
		)`,

		// Alerts table - notifier plugin dispatches triggered by an assessment
		`CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			assessment_id TEXT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
			event TEXT NOT NULL,
			plugin_name TEXT NOT NULL,
			success INTEGER NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_assessments_created_at ON assessments(created_at_ms)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_assessment_id ON alerts(assessment_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
