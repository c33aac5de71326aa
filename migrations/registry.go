package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	persistence "github.com/goliatone/go-persistence-bun"

	billgate "github.com/goliatone/go-billgate"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const schemaDir = "data/sql/migrations"

// Source is the migration tree of one dialect. Postgres files sit at the
// schema root and sqlite overrides live in its sqlite/ subdirectory.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// Sources resolves both dialect trees under root, or under the embedded
// schema when root is nil. Each tree must carry at least one up migration.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = billgate.GetMigrationsFS()
	}
	base, basePath, err := schemaRoot(root)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite tree: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: basePath, FS: base},
		{Dialect: DialectSQLite, Path: strings.TrimPrefix(basePath+"/"+DialectSQLite, "./"), FS: sqliteFS},
	}
	for _, source := range sources {
		matches, err := fs.Glob(source.FS, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", source.Path, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: %s tree %q has no *.up.sql files", source.Dialect, source.Path)
		}
	}
	return sources, nil
}

// SourceFor returns the embedded tree for dialect.
func SourceFor(dialect string) (Source, error) {
	dialect = strings.TrimSpace(strings.ToLower(dialect))
	sources, err := Sources(nil)
	if err != nil {
		return Source{}, err
	}
	for _, source := range sources {
		if source.Dialect == dialect {
			return source, nil
		}
	}
	return Source{}, fmt.Errorf("migrations: unsupported dialect %q", dialect)
}

// Apply registers the tree for dialect on client and runs pending migrations.
func Apply(ctx context.Context, client *persistence.Client, dialect string) error {
	if client == nil {
		return fmt.Errorf("migrations: persistence client is required")
	}
	source, err := SourceFor(dialect)
	if err != nil {
		return err
	}
	client.RegisterSQLMigrations(source.FS)
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("migrations: apply %s: %w", source.Dialect, err)
	}
	return nil
}

// schemaRoot accepts either the module filesystem or a tree that already
// holds the .sql files at its root.
func schemaRoot(root fs.FS) (fs.FS, string, error) {
	sub, err := fs.Sub(root, schemaDir)
	if err == nil {
		if _, statErr := fs.Stat(sub, "."); statErr == nil {
			return sub, schemaDir, nil
		}
	}
	entries, readErr := fs.ReadDir(root, ".")
	if readErr == nil {
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
				return root, ".", nil
			}
		}
	}
	return nil, "", fmt.Errorf("migrations: %s not found", schemaDir)
}
