package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/finscale/internal/model"
	"github.com/Veraticus/finscale/internal/storage"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// openStore opens the database and brings its schema up to date.
func openStore(ctx context.Context, dbPath string) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return store, nil
}

// findOwner resolves an --owner flag given as a numeric id or an email.
func findOwner(ctx context.Context, store *storage.SQLiteStorage, ref string) (*model.User, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return store.FindUserByID(ctx, id)
	}
	return store.FindUserByEmail(ctx, ref)
}
