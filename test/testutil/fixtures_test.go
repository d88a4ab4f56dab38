package testutil

import "testing"

func TestSeedCounts(t *testing.T) {
	s := Seed{Tenants: 2, UsersPerTenant: 6, OrdersPerUser: 3, Depts: 3}
	if got := s.OrdersPerTenant(); got != 18 {
		t.Errorf("OrdersPerTenant() = %d, want 18", got)
	}
	if got := s.OrdersPerDept(); got != 6 {
		t.Errorf("OrdersPerDept() = %d, want 6", got)
	}
}

func TestReplaceDBName(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://u:p@localhost:5432/postgres?sslmode=disable", "postgres://u:p@localhost:5432/other?sslmode=disable"},
		{"postgres://u@localhost/postgres", "postgres://u@localhost/other"},
	}
	for _, tt := range tests {
		if got := replaceDBName(tt.dsn, "other"); got != tt.want {
			t.Errorf("replaceDBName(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestGetDatabaseConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_HOST", "")
	if got := GetDatabaseConfig(); got.URL != "" {
		t.Errorf("GetDatabaseConfig().URL = %q, want empty", got.URL)
	}

	t.Setenv("DATABASE_HOST", "db")
	t.Setenv("DATABASE_PORT", "6543")
	t.Setenv("DATABASE_USER", "app")
	t.Setenv("DATABASE_PASSWORD", "")
	t.Setenv("DATABASE_NAME", "")
	t.Setenv("DATABASE_SSLMODE", "disable")
	if got, want := GetDatabaseConfig().URL, "postgres://app@db:6543/postgres?sslmode=disable"; got != want {
		t.Errorf("GetDatabaseConfig().URL = %q, want %q", got, want)
	}

	t.Setenv("DATABASE_URL", "postgres://x@y/z")
	if got := GetDatabaseConfig().URL; got != "postgres://x@y/z" {
		t.Errorf("GetDatabaseConfig().URL = %q, want DATABASE_URL", got)
	}
}
