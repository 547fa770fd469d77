package profile

import (
	"context"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&Profile{}))
	return db
}

func strPtr(s string) *string { return &s }

func TestGetOrCreate_CreatesOnce(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	p, err := repo.GetOrCreate(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "u1", p.ID)
	require.Equal(t, LangJapanese, p.PreferredLanguage)

	again, err := repo.GetOrCreate(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, p.CreatedAt.Unix(), again.CreatedAt.Unix())
}

func TestUpdate_PartialFields(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	p, err := repo.Update(ctx, "u1", Update{DisplayName: strPtr("Aiko"), Bio: strPtr("Biology student")})
	require.NoError(t, err)
	require.Equal(t, "Aiko", p.DisplayName)
	require.Equal(t, "Biology student", p.Bio)
	require.Equal(t, LangJapanese, p.PreferredLanguage)

	p, err = repo.Update(ctx, "u1", Update{PreferredLanguage: strPtr(LangEnglish)})
	require.NoError(t, err)
	require.Equal(t, "Aiko", p.DisplayName)
	require.Equal(t, LangEnglish, p.PreferredLanguage)
}
