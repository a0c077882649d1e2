package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	mustExec(t, db, "CREATE TABLE uniq (id TEXT PRIMARY KEY, name TEXT UNIQUE)")
	mustExec(t, db, "INSERT INTO uniq (id, name) VALUES ('a', 'x')")

	_, pkErr := db.ExecContext(ctx, "INSERT INTO uniq (id, name) VALUES ('a', 'y')")
	_, uniqErr := db.ExecContext(ctx, "INSERT INTO uniq (id, name) VALUES ('b', 'x')")
	_, nullErr := db.ExecContext(ctx, "INSERT INTO missing_table (id) VALUES ('c')")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sqlite primary key", pkErr, true},
		{"sqlite unique", uniqErr, true},
		{"wrapped sqlite unique", fmt.Errorf("insert: %w", uniqErr), true},
		{"sqlite other error", nullErr, false},
		{"postgres unique", &pq.Error{Code: "23505"}, true},
		{"postgres other", &pq.Error{Code: "23503"}, false},
		{"plain error", errors.New("UNIQUE constraint failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
