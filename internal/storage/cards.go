package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/tango/internal/domain"
)

// Card is a stored vocabulary card. The embedded domain fields map onto the
// columns of the same lowercased name.
type Card struct {
	domain.Card
	Favorite bool          `db:"favorite"`
	SourceID sql.NullInt64 `db:"source_id"`
}

const cardColumns = `hash, word, reading, meaning, example, favorite, source_id`

// InsertCard inserts a new card belonging to sourceID.
func (db *DB) InsertCard(card domain.Card, sourceID int64) error {
	_, err := db.conn.Exec(`
		INSERT INTO cards (hash, word, reading, meaning, example, source_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		card.Hash,
		card.Word,
		card.Reading,
		card.Meaning,
		card.Example,
		sourceID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.Hash, err)
	}
	return nil
}

// FindCardByHash retrieves a card by its hash, or nil if there is none.
func (db *DB) FindCardByHash(hash string) (*Card, error) {
	var c Card
	err := db.conn.Get(&c, `SELECT `+cardColumns+` FROM cards WHERE hash = ?`, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find card by hash %s: %w", hash, err)
	}
	return &c, nil
}

// GetCardsBySourceID retrieves all cards imported from a source.
func (db *DB) GetCardsBySourceID(sourceID int64) ([]Card, error) {
	var cards []Card
	err := db.conn.Select(&cards, `SELECT `+cardColumns+` FROM cards WHERE source_id = ? ORDER BY word`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	return cards, nil
}

// GetFavorites retrieves all cards marked as favorite.
func (db *DB) GetFavorites() ([]Card, error) {
	var cards []Card
	if err := db.conn.Select(&cards, `SELECT `+cardColumns+` FROM cards WHERE favorite = 1 ORDER BY word`); err != nil {
		return nil, fmt.Errorf("failed to get favorite cards: %w", err)
	}
	return cards, nil
}

// ToggleFavorite flips the favorite flag of a card and returns the new value.
func (db *DB) ToggleFavorite(hash string) (bool, error) {
	tx, err := db.conn.Beginx()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE cards SET favorite = 1 - favorite WHERE hash = ?`, hash)
	if err != nil {
		return false, fmt.Errorf("failed to toggle favorite for %s: %w", hash, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return false, fmt.Errorf("card %s: %w", hash, ErrNotFound)
	}

	var favorite bool
	if err := tx.Get(&favorite, `SELECT favorite FROM cards WHERE hash = ?`, hash); err != nil {
		return false, fmt.Errorf("failed to read favorite for %s: %w", hash, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit favorite for %s: %w", hash, err)
	}
	return favorite, nil
}

// DeleteCardByHash removes a card, its schedule and its review history.
func (db *DB) DeleteCardByHash(hash string) error {
	_, err := db.conn.Exec(`DELETE FROM cards WHERE hash = ?`, hash)
	if err != nil {
		return fmt.Errorf("failed to delete card with hash %s: %w", hash, err)
	}
	return nil
}
