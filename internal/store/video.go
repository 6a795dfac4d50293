package store

import (
	"database/sql"
	"fmt"
	"strings"

	"vetarchive/models"
)

// Column names are table-qualified so the list stays valid inside the
// search join, where videos_fts carries columns with the same names.
const videoColumns = `videos.id, videos.title, videos.person_name, videos.category,
	videos.type, videos.path, videos.transcript, videos.thumbnail_path,
	videos.colab_task_id, videos.source_name, videos.created_at`

// Create inserts a new video and returns its assigned id. Optional
// fields left empty by the caller are stored as NULL.
func (s *Store) Create(v models.NewVideo) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO videos
		(title, person_name, category, type, path, transcript, thumbnail_path, colab_task_id, source_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
		v.Title,
		nullable(v.PersonName),
		nullable(v.Category),
		v.Type,
		v.Path,
		nullable(v.Transcript),
		nullable(v.ThumbnailPath),
		nullable(v.SourceName),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting video: %w", err)
	}
	return res.LastInsertId()
}

// Get returns the video with the given id, or ErrNotFound.
func (s *Store) Get(id int64) (*models.Video, error) {
	row := s.db.QueryRow(`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	v, err := scanVideo(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching video %d: %w", id, err)
	}
	return v, nil
}

// List returns all videos, newest first, optionally restricted to an
// exact category match. An empty category means no filter.
func (s *Store) List(category string) ([]models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos`
	var args []interface{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}
	defer rows.Close()
	return collectVideos(rows, false)
}

// Search runs a full-text query over title, transcript and person name.
// The final token is matched as a prefix so partially typed words still
// hit; results are ordered by FTS rank and each carries a highlighted
// snippet from the transcript column.
func (s *Store) Search(query, category string) ([]models.Video, error) {
	match := buildMatchQuery(query)
	if match == "" {
		return s.List(category)
	}

	sqlQuery := `SELECT ` + videoColumns + `,
		snippet(videos_fts, 1, '<mark>', '</mark>', '...', 10) AS snippet
		FROM videos
		JOIN videos_fts ON videos.id = videos_fts.rowid
		WHERE videos_fts MATCH ?`
	args := []interface{}{match}
	if category != "" {
		sqlQuery += ` AND category = ?`
		args = append(args, category)
	}
	sqlQuery += ` ORDER BY rank`

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("searching videos: %w", err)
	}
	defer rows.Close()
	return collectVideos(rows, true)
}

// UpdateTranscript replaces the transcript for a video. The FTS update
// trigger re-indexes the row as a side effect.
func (s *Store) UpdateTranscript(id int64, text string) error {
	return s.updateField(id, "transcript", text)
}

// UpdateThumbnail records the generated thumbnail filename for a video.
func (s *Store) UpdateThumbnail(id int64, filename string) error {
	return s.updateField(id, "thumbnail_path", filename)
}

// UpdateJobID stores the external transcription task id for a video.
func (s *Store) UpdateJobID(id int64, taskID string) error {
	return s.updateField(id, "colab_task_id", taskID)
}

func (s *Store) updateField(id int64, column, value string) error {
	res, err := s.db.Exec(`UPDATE videos SET `+column+` = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("updating %s for video %d: %w", column, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a video. The FTS delete trigger drops its index entry.
func (s *Store) Delete(id int64) error {
	res, err := s.db.Exec(`DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting video %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// buildMatchQuery turns free-form user input into an FTS5 MATCH
// expression: tokens are double-quoted to neutralise FTS operators and
// the last token gets a * so it matches as a prefix.
func buildMatchQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		if i == len(fields)-1 {
			parts[i] = `"` + f + `"*`
		} else {
			parts[i] = `"` + f + `"`
		}
	}
	return strings.Join(parts, " ")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVideo(r rowScanner) (*models.Video, error) {
	var v models.Video
	err := r.Scan(
		&v.ID, &v.Title, &v.PersonName, &v.Category, &v.Type, &v.Path,
		&v.Transcript, &v.ThumbnailPath, &v.ColabTaskID, &v.SourceName, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func collectVideos(rows *sql.Rows, withSnippet bool) ([]models.Video, error) {
	videos := []models.Video{}
	for rows.Next() {
		var v models.Video
		dest := []interface{}{
			&v.ID, &v.Title, &v.PersonName, &v.Category, &v.Type, &v.Path,
			&v.Transcript, &v.ThumbnailPath, &v.ColabTaskID, &v.SourceName, &v.CreatedAt,
		}
		if withSnippet {
			dest = append(dest, &v.Snippet)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning video row: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
