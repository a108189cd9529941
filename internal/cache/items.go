package cache

import (
	"context"
	"fmt"

	"attune/internal/media"
)

const itemColumns = `path, base, title, artist, album, album_artist, composer, genre,
	comment, year, track, track_total, disc, disc_total, duration, bitrate,
	sample_rate, channels, mb_album_id, mb_artist_id, mb_track_id, acoustid,
	acoustid_fp, rating, size, mod_time, inode, missing`

// LoadItems reads every persisted item. Read failures are treated as
// corruption: the result is an empty slice, never an error that would
// block startup.
func (s *Store) LoadItems(ctx context.Context) []media.Item {
	rows, err := s.db.QueryContext(ctx, "SELECT "+itemColumns+" FROM items")
	if err != nil {
		return nil
	}
	defer rows.Close()

	var items []media.Item
	for rows.Next() {
		var it media.Item
		var modTime int64
		var missing int
		if err := rows.Scan(
			&it.Path, &it.Base, &it.Title, &it.Artist, &it.Album, &it.AlbumArtist,
			&it.Composer, &it.Genre, &it.Comment, &it.Year, &it.Track, &it.TrackTotal,
			&it.Disc, &it.DiscTotal, &it.Duration, &it.Bitrate, &it.SampleRate,
			&it.Channels, &it.MBAlbumID, &it.MBArtistID, &it.MBTrackID, &it.AcoustID,
			&it.AcoustIDFp, &it.Rating, &it.Size, &modTime, &it.Inode, &missing,
		); err != nil {
			return nil
		}
		it.ModTime = unixToModTime(modTime)
		it.Missing = missing != 0
		items = append(items, it)
	}
	if rows.Err() != nil {
		return nil
	}
	return items
}

// SaveItems atomically rewrites the full item set in one transaction.
// Every column is written even when zero so the on-disk shape stays
// stable across versions.
func (s *Store) SaveItems(ctx context.Context, items []media.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM items"); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO items (`+itemColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		missing := 0
		if it.Missing {
			missing = 1
		}
		if _, err := stmt.ExecContext(ctx,
			it.Path, it.Base, it.Title, it.Artist, it.Album, it.AlbumArtist,
			it.Composer, it.Genre, it.Comment, it.Year, it.Track, it.TrackTotal,
			it.Disc, it.DiscTotal, it.Duration, it.Bitrate, it.SampleRate,
			it.Channels, it.MBAlbumID, it.MBArtistID, it.MBTrackID, it.AcoustID,
			it.AcoustIDFp, it.Rating, it.Size, modTimeToUnix(it.ModTime), it.Inode, missing,
		); err != nil {
			return fmt.Errorf("insert item %s: %w", it.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}
