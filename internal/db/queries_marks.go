package db

import (
	"database/sql"

	"github.com/maevik/fingermark/internal/model"
)

func InsertMark(database *sql.DB, m *model.Mark) error {
	_, err := database.Exec(
		`INSERT OR IGNORE INTO marks (id, digest_hex, payload, job_id, input_name, output_mime, psnr)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.DigestHex, m.Payload, m.JobID, m.InputName, m.OutputMime, m.PSNR,
	)
	return err
}

// LookupMarkByDigest finds the embed record whose fingerprint matches a
// recovered digest exactly.
func LookupMarkByDigest(database *sql.DB, digestHex string) (*model.Mark, error) {
	m := &model.Mark{}
	var createdAt SQLiteTime
	err := database.QueryRow(`
		SELECT id, digest_hex, payload, job_id, input_name, output_mime, psnr, created_at
		FROM marks WHERE digest_hex = ? ORDER BY created_at DESC LIMIT 1`, digestHex,
	).Scan(&m.ID, &m.DigestHex, &m.Payload, &m.JobID, &m.InputName, &m.OutputMime, &m.PSNR, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.CreatedAt = createdAt.Time
	return m, nil
}

// LookupMarkFuzzy returns the stored mark whose digest differs from the
// recovered one in the fewest hex characters, provided the difference stays
// within maxDiffChars. Re-encoding can flip a couple of digest bits past the
// repetition code; a near match is still actionable for tracing.
func LookupMarkFuzzy(database *sql.DB, digestHex string, maxDiffChars int) (*model.Mark, int, error) {
	rows, err := database.Query(`
		SELECT id, digest_hex, payload, job_id, input_name, output_mime, psnr, created_at
		FROM marks`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var best *model.Mark
	bestDiff := maxDiffChars + 1
	for rows.Next() {
		m := &model.Mark{}
		var createdAt SQLiteTime
		if err := rows.Scan(&m.ID, &m.DigestHex, &m.Payload, &m.JobID, &m.InputName,
			&m.OutputMime, &m.PSNR, &createdAt); err != nil {
			continue
		}
		m.CreatedAt = createdAt.Time
		diff := hexCharDiff(m.DigestHex, digestHex)
		if diff < bestDiff {
			bestDiff = diff
			best = m
		}
	}
	if best == nil || bestDiff > maxDiffChars {
		return nil, 0, rows.Err()
	}
	return best, bestDiff, rows.Err()
}

func ListRecentMarks(database *sql.DB, limit int) ([]model.Mark, error) {
	rows, err := database.Query(`
		SELECT id, digest_hex, payload, job_id, input_name, output_mime, psnr, created_at
		FROM marks ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var marks []model.Mark
	for rows.Next() {
		var m model.Mark
		var createdAt SQLiteTime
		if err := rows.Scan(&m.ID, &m.DigestHex, &m.Payload, &m.JobID, &m.InputName,
			&m.OutputMime, &m.PSNR, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = createdAt.Time
		marks = append(marks, m)
	}
	return marks, rows.Err()
}

// hexCharDiff counts differing hex characters between two equal-length
// strings. Returns len(a)+1 if lengths differ.
func hexCharDiff(a, b string) int {
	if len(a) != len(b) {
		return len(a) + 1
	}
	diff := 0
	for i := range a {
		if a[i] != b[i] {
			diff++
		}
	}
	return diff
}
