package db

import "testing"

func TestMigrationURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@localhost:5432/records?sslmode=disable", "pgx5://u:p@localhost:5432/records?sslmode=disable"},
		{"postgresql://u@db/records", "pgx5://u@db/records"},
		{"pgx5://already", "pgx5://already"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := MigrationURL(tt.in); got != tt.want {
				t.Errorf("MigrationURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
