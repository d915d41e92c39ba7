package store

import (
	"database/sql"

	"github.com/iptvault/iptvault/internal/catalog"
)

const categoryCols = `id, playlist_id, external_id, name, content_type, sort_order`

func scanCategory(row interface{ Scan(...any) error }) (catalog.Category, error) {
	var c catalog.Category
	var ct string
	if err := row.Scan(&c.ID, &c.PlaylistID, &c.ExternalID, &c.Name, &ct, &c.SortOrder); err != nil {
		return catalog.Category{}, err
	}
	c.Type = catalog.ContentType(ct)
	return c, nil
}

// UpsertCategories writes the batch atomically; rows whose primary key
// already exists are fully replaced.
func (s *Store) UpsertCategories(cats []catalog.Category) error {
	if len(cats) == 0 {
		return nil
	}
	return s.inTx([]string{tableCategories}, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO categories (` + categoryCols + `)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				playlist_id=excluded.playlist_id, external_id=excluded.external_id,
				name=excluded.name, content_type=excluded.content_type,
				sort_order=excluded.sort_order`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, c := range cats {
			if _, err := stmt.Exec(c.ID, c.PlaylistID, c.ExternalID, c.Name, string(c.Type), c.SortOrder); err != nil {
				return err
			}
		}
		return nil
	})
}

// Categories lists a playlist's categories for one content type.
func (s *Store) Categories(playlistID string, kind catalog.ContentType) ([]catalog.Category, error) {
	rows, err := s.db.Query(`SELECT `+categoryCols+` FROM categories
		WHERE playlist_id = ? AND content_type = ?
		ORDER BY sort_order, name, id`, playlistID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCategory removes the category. Content that referenced it keeps
// its rows with a nulled category reference (schema ON DELETE SET NULL);
// content is never deleted just because its category disappeared.
func (s *Store) DeleteCategory(id string) error {
	return s.inTx([]string{tableCategories, tableChannels, tableMovies, tableSeries}, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM categories WHERE id = ?`, id)
		return err
	})
}
