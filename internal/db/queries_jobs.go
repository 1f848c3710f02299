package db

import (
	"database/sql"

	"github.com/maevik/fingermark/internal/model"
)

func EnqueueJob(database *sql.DB, j *model.Job) error {
	_, err := database.Exec(
		`INSERT INTO jobs (id, job_type, state, payload, threshold, input_key, input_name, input_mime)
		 VALUES (?, ?, 'PENDING', ?, ?, ?, ?, ?)`,
		j.ID, j.JobType, j.Payload, j.Threshold, j.InputKey, j.InputName, j.InputMime,
	)
	return err
}

// ClaimNextJob atomically flips the oldest pending job of one of the given
// types to RUNNING and returns it. Returns nil when the queue is empty.
func ClaimNextJob(database *sql.DB, jobTypes []string) (*model.Job, error) {
	if len(jobTypes) == 0 {
		return nil, nil
	}

	query := `
		UPDATE jobs
		SET state = 'RUNNING', started_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = (
			SELECT id FROM jobs
			WHERE state = 'PENDING' AND job_type IN (`

	args := make([]interface{}, len(jobTypes))
	for i, jt := range jobTypes {
		if i > 0 {
			query += ","
		}
		query += "?"
		args[i] = jt
	}
	query += `) ORDER BY created_at ASC LIMIT 1
		)
		RETURNING id, job_type, state, progress, payload, threshold,
		          COALESCE(input_key, ''), COALESCE(input_name, ''), COALESCE(input_mime, ''),
		          COALESCE(result_key, ''), COALESCE(result_mime, ''), COALESCE(result_data, ''),
		          created_at, started_at`

	j := &model.Job{}
	var createdAt, startedAt SQLiteTime
	err := database.QueryRow(query, args...).Scan(
		&j.ID, &j.JobType, &j.State, &j.Progress, &j.Payload, &j.Threshold,
		&j.InputKey, &j.InputName, &j.InputMime,
		&j.ResultKey, &j.ResultMime, &j.ResultData,
		&createdAt, &startedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.CreatedAt = createdAt.Time
	j.StartedAt = &startedAt.Time
	return j, nil
}

func CompleteJob(database *sql.DB, id string) error {
	_, err := database.Exec(
		`UPDATE jobs SET state = 'COMPLETED', progress = 100, completed_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		 WHERE id = ?`, id,
	)
	return err
}

func FailJob(database *sql.DB, id, errorMsg string) error {
	_, err := database.Exec(
		`UPDATE jobs SET state = 'FAILED', error_message = ?, completed_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		 WHERE id = ?`, errorMsg, id,
	)
	return err
}

func UpdateJobProgress(database *sql.DB, id string, progress int) error {
	_, err := database.Exec(`UPDATE jobs SET progress = ? WHERE id = ?`, progress, id)
	return err
}

func SetJobResult(database *sql.DB, id, resultKey, resultMime, resultJSON string) error {
	_, err := database.Exec(
		`UPDATE jobs SET result_key = ?, result_mime = ?, result_data = ? WHERE id = ?`,
		resultKey, resultMime, resultJSON, id,
	)
	return err
}

func GetJob(database *sql.DB, id string) (*model.Job, error) {
	j := &model.Job{}
	var createdAt SQLiteTime
	var startedAt, completedAt sql.NullString
	err := database.QueryRow(`
		SELECT id, job_type, state, progress, payload, threshold,
		       COALESCE(error_message, ''),
		       COALESCE(input_key, ''), COALESCE(input_name, ''), COALESCE(input_mime, ''),
		       COALESCE(result_key, ''), COALESCE(result_mime, ''), COALESCE(result_data, ''),
		       created_at, started_at, completed_at
		FROM jobs WHERE id = ?`, id,
	).Scan(
		&j.ID, &j.JobType, &j.State, &j.Progress, &j.Payload, &j.Threshold,
		&j.ErrorMessage,
		&j.InputKey, &j.InputName, &j.InputMime,
		&j.ResultKey, &j.ResultMime, &j.ResultData,
		&createdAt, &startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.CreatedAt = createdAt.Time
	if startedAt.Valid {
		var st SQLiteTime
		st.Scan(startedAt.String)
		j.StartedAt = &st.Time
	}
	if completedAt.Valid {
		var ct SQLiteTime
		ct.Scan(completedAt.String)
		j.CompletedAt = &ct.Time
	}
	return j, nil
}

func ListRecentJobs(database *sql.DB, limit int) ([]model.Job, error) {
	rows, err := database.Query(`
		SELECT id, job_type, state, progress, COALESCE(error_message, ''),
		       COALESCE(input_name, ''), created_at
		FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		var createdAt SQLiteTime
		if err := rows.Scan(&j.ID, &j.JobType, &j.State, &j.Progress,
			&j.ErrorMessage, &j.InputName, &createdAt); err != nil {
			return nil, err
		}
		j.CreatedAt = createdAt.Time
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func CountJobsByState(database *sql.DB) (pending, running, completed, failed int, err error) {
	err = database.QueryRow(`
		SELECT
		  COALESCE(SUM(CASE WHEN state = 'PENDING' THEN 1 ELSE 0 END), 0),
		  COALESCE(SUM(CASE WHEN state = 'RUNNING' THEN 1 ELSE 0 END), 0),
		  COALESCE(SUM(CASE WHEN state = 'COMPLETED' THEN 1 ELSE 0 END), 0),
		  COALESCE(SUM(CASE WHEN state = 'FAILED' THEN 1 ELSE 0 END), 0)
		FROM jobs`,
	).Scan(&pending, &running, &completed, &failed)
	return
}

// ListExpiredJobs returns completed or failed jobs older than the cutoff, so
// the cleaner can drop their blobs and rows.
func ListExpiredJobs(database *sql.DB, cutoff string) ([]model.Job, error) {
	rows, err := database.Query(`
		SELECT id, COALESCE(input_key, ''), COALESCE(result_key, '')
		FROM jobs
		WHERE state IN ('COMPLETED', 'FAILED') AND created_at < ?`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.InputKey, &j.ResultKey); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func DeleteJob(database *sql.DB, id string) error {
	_, err := database.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	return err
}
