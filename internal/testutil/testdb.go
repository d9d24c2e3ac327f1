package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/sports-wager-platform/internal/shared/config"
	"github.com/radieske/sports-wager-platform/internal/shared/db"
)

var testSchemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// OpenTestDB cria um schema isolado, aplica a migração inicial e devolve a conexão.
// Sem POSTGRES_TEST_DSN o teste é pulado.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil || cfg.PostgresDSN == "" {
		t.Skipf("skip test db: %v", err)
	}
	dsn := cfg.PostgresDSN
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())

	base, err := db.ConnectPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open base db: %v", err)
	}
	createSQL, err := schemaDDL("CREATE SCHEMA %s", schema)
	if err != nil {
		base.Close()
		t.Fatalf("invalid schema name: %v", err)
	}
	if _, err := base.Exec(createSQL); err != nil {
		base.Close()
		t.Fatalf("create schema: %v", err)
	}

	conn, err := db.ConnectPostgres(context.Background(), withSearchPath(dsn, schema))
	if err != nil {
		base.Close()
		t.Fatalf("open schema db: %v", err)
	}
	if err := applySchema(conn); err != nil {
		conn.Close()
		base.Close()
		t.Fatalf("apply schema: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		if dropSQL, err := schemaDDL("DROP SCHEMA %s CASCADE", schema); err == nil {
			_, _ = base.Exec(dropSQL)
		}
		base.Close()
	})
	return conn
}

func applySchema(conn *sql.DB) error {
	path, err := findInitMigrationPath()
	if err != nil {
		return err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = conn.Exec(string(b))
	return err
}

func findInitMigrationPath() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		p := filepath.Join(dir, "migrations", "000001_init.up.sql")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("000001_init.up.sql not found from %s", dir)
}

func withSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}

func schemaDDL(format, schema string) (string, error) {
	if !testSchemaNamePattern.MatchString(schema) {
		return "", fmt.Errorf("schema %q does not match required pattern", schema)
	}
	return fmt.Sprintf(format, pq.QuoteIdentifier(schema)), nil
}
