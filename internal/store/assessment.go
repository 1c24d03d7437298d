package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/sitwell/internal/pose"
	"github.com/ayusman/sitwell/internal/posture"
)

// Source records where an assessment's keypoints came from.
type Source string

const (
	// SourceKeypoints is an analysis of client-supplied keypoints.
	SourceKeypoints Source = "keypoints"
	// SourceImage is an analysis of an uploaded image.
	SourceImage Source = "image"
	// SourceMonitor is an analysis of a frame captured by the live monitor.
	SourceMonitor Source = "monitor"
)

// Assessment is a persisted posture analysis.
type Assessment struct {
	ID        string                   `json:"id"`
	Source    Source                   `json:"source"`
	Analysis  posture.Analysis         `json:"analysis"`
	Keypoints map[string]pose.Keypoint `json:"keypoints"`
	CreatedAt time.Time                `json:"createdAt"`
}

// Summary aggregates assessments over a time window.
type Summary struct {
	Total        int     `json:"total"`
	Good         int     `json:"good"`
	AverageScore float64 `json:"averageScore"`
	GoodRatio    float64 `json:"goodRatio"`
}

// AssessmentRepository provides CRUD operations for assessments.
type AssessmentRepository struct {
	db *sql.DB
}

// Assessments returns the assessment repository for this store.
func (s *Store) Assessments() *AssessmentRepository {
	return &AssessmentRepository{db: s.db}
}

const assessmentColumns = `id, source, profile, shoulder_balance, neck_position, back_position,
	overall_score, is_good, quality, feedback, issues, recommendations, keypoints, created_at_ms`

// Create inserts a new assessment. An empty ID is filled with a new UUID and
// a zero CreatedAt with the current time.
func (r *AssessmentRepository) Create(a *Assessment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC().Truncate(time.Millisecond)

	encoded, err := encodeLists(a)
	if err != nil {
		return err
	}

	an := a.Analysis
	_, err = r.db.Exec(
		`INSERT INTO assessments (`+assessmentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Source), string(an.Profile), an.ShoulderBalance, an.NeckPosition, an.BackPosition,
		an.OverallScore, an.IsGoodPosture, string(an.Quality),
		encoded[0], encoded[1], encoded[2], encoded[3], a.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

// GetByID retrieves an assessment by its ID.
func (r *AssessmentRepository) GetByID(id string) (*Assessment, error) {
	row := r.db.QueryRow(`SELECT `+assessmentColumns+` FROM assessments WHERE id = ?`, id)

	a, err := scanAssessment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// List returns assessments newest first. A limit of zero or less returns everything.
func (r *AssessmentRepository) List(limit, offset int) ([]*Assessment, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(
		`SELECT `+assessmentColumns+` FROM assessments
		 ORDER BY created_at_ms DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assessments := []*Assessment{}
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assessments, nil
}

// Count returns the number of stored assessments.
func (r *AssessmentRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM assessments`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Delete removes an assessment by its ID.
func (r *AssessmentRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM assessments WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Summary aggregates every assessment created at or after since.
// A zero since covers the whole history.
func (r *AssessmentRepository) Summary(since time.Time) (*Summary, error) {
	var sinceMs int64
	if !since.IsZero() {
		sinceMs = since.UnixMilli()
	}

	s := &Summary{}
	err := r.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(is_good), 0), COALESCE(AVG(overall_score), 0)
		 FROM assessments WHERE created_at_ms >= ?`,
		sinceMs,
	).Scan(&s.Total, &s.Good, &s.AverageScore)
	if err != nil {
		return nil, err
	}

	if s.Total > 0 {
		s.GoodRatio = float64(s.Good) / float64(s.Total)
	}
	return s, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*Assessment, error) {
	a := &Assessment{}
	var (
		source, profile, quality                     string
		feedback, issues, recommendations, keypoints string
		isGood                                       bool
		createdMs                                    int64
	)

	err := row.Scan(
		&a.ID, &source, &profile,
		&a.Analysis.ShoulderBalance, &a.Analysis.NeckPosition, &a.Analysis.BackPosition,
		&a.Analysis.OverallScore, &isGood, &quality,
		&feedback, &issues, &recommendations, &keypoints, &createdMs,
	)
	if err != nil {
		return nil, err
	}

	a.Source = Source(source)
	a.Analysis.Profile = posture.Profile(profile)
	a.Analysis.Quality = posture.Quality(quality)
	a.Analysis.IsGoodPosture = isGood
	a.CreatedAt = time.UnixMilli(createdMs).UTC()

	if err := json.UnmarshalFromString(feedback, &a.Analysis.Feedback); err != nil {
		return nil, fmt.Errorf("decode feedback: %w", err)
	}
	if err := json.UnmarshalFromString(issues, &a.Analysis.Issues); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	if err := json.UnmarshalFromString(recommendations, &a.Analysis.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	if err := json.UnmarshalFromString(keypoints, &a.Keypoints); err != nil {
		return nil, fmt.Errorf("decode keypoints: %w", err)
	}

	return a, nil
}

// encodeLists serializes the JSON columns in column order.
func encodeLists(a *Assessment) ([4]string, error) {
	var out [4]string

	values := [4]any{
		nonNil(a.Analysis.Feedback),
		nonNil(a.Analysis.Issues),
		nonNil(a.Analysis.Recommendations),
		a.Keypoints,
	}
	if a.Keypoints == nil {
		values[3] = map[string]pose.Keypoint{}
	}

	for i, v := range values {
		s, err := json.MarshalToString(v)
		if err != nil {
			return out, fmt.Errorf("encode assessment: %w", err)
		}
		out[i] = s
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
