package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Apiverde/ApiverdeDemo/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanSession scans a session snapshot from a single sql.Row.
func scanSession(row *sql.Row) (*models.SessionSnapshot, error) {
	var snap models.SessionSnapshot
	var phase string
	var primaryChoice, secondaryChoice, freeformContext, avoidancesJSON, lastError sql.NullString
	err := row.Scan(
		&snap.SessionID, &phase, &primaryChoice, &secondaryChoice,
		&freeformContext, &avoidancesJSON, &lastError, &snap.CreatedAt, &snap.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	snap.Phase = models.Phase(phase)
	snap.PrimaryChoice = primaryChoice.String
	snap.SecondaryChoice = secondaryChoice.String
	snap.FreeformContext = freeformContext.String
	snap.LastError = lastError.String
	if avoidancesJSON.Valid && avoidancesJSON.String != "" {
		if err := json.Unmarshal([]byte(avoidancesJSON.String), &snap.Constraints); err != nil {
			return nil, fmt.Errorf("failed to decode avoidances for %s: %w", snap.SessionID, err)
		}
	}
	return &snap, nil
}
