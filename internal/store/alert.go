package store

import (
	"database/sql"
	"time"
)

// Alert records one notifier plugin dispatch triggered by an assessment.
type Alert struct {
	ID           int64     `json:"id"`
	AssessmentID string    `json:"assessmentId"`
	Event        string    `json:"event"`
	PluginName   string    `json:"pluginName"`
	Success      bool      `json:"success"`
	Message      string    `json:"message,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AlertRepository provides access to the alert log.
type AlertRepository struct {
	db *sql.DB
}

// Alerts returns the alert repository for this store.
func (s *Store) Alerts() *AlertRepository {
	return &AlertRepository{db: s.db}
}

// Create inserts a new alert. The assessment must already exist.
func (r *AlertRepository) Create(a *Alert) error {
	a.CreatedAt = time.Now().UTC()

	result, err := r.db.Exec(
		`INSERT INTO alerts (assessment_id, event, plugin_name, success, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.AssessmentID, a.Event, a.PluginName, a.Success, a.Message, a.CreatedAt,
	)
	if err != nil {
		return err
	}

	a.ID, err = result.LastInsertId()
	return err
}

// ListByAssessment returns the alerts raised for an assessment, oldest first.
func (r *AlertRepository) ListByAssessment(assessmentID string) ([]Alert, error) {
	rows, err := r.db.Query(
		`SELECT id, assessment_id, event, plugin_name, success, message, created_at
		 FROM alerts WHERE assessment_id = ? ORDER BY id`,
		assessmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := []Alert{}
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.AssessmentID, &a.Event, &a.PluginName, &a.Success, &a.Message, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}
