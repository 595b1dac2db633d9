package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/garyjia/discussion-review/internal/domain/apperr"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/mattn/go-sqlite3"
)

// handleDBError maps driver errors onto application error kinds
func handleDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(op, "record not found")
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) && sqErr.Code == sqlite3.ErrConstraint {
		switch sqErr.ExtendedCode {
		case sqlite3.ErrConstraintForeignKey:
			return apperr.NotFound(op, "referenced discussion does not exist")
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return apperr.Conflict(op, "record already exists")
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return apperr.Validation(op, "constraint violated: %v", sqErr)
		}
	}
	return apperr.Store(op, err)
}

// decodeStoredData reads a stored payload, lifting any legacy reserved keys out of it
func decodeStoredData(taskID int, raw string) (entity.TaskData, entity.ConsensusMetadata, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, entity.ConsensusMetadata{}, err
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	data, meta := entity.LiftMetadata(fields)
	td, err := entity.DecodeTaskData(taskID, data)
	return td, meta, err
}

func encodeData(d entity.TaskData) (string, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(d.Fields())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func timeOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
