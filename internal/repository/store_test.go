package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/ids"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
)

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) (Store, string) {
		return NewMemoryStore(), "things"
	})
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("DEPTMS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("DEPTMS_TEST_MONGO_URI not set")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	database := "deptms_test_" + ids.New()
	t.Cleanup(func() {
		ctx := context.Background()
		_ = client.Database(database).Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	runStoreContract(t, func(t *testing.T) (Store, string) {
		return NewMongoStore(client, database), "things_" + ids.New()
	})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DEPTMS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DEPTMS_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewPostgresStore(pool)
	require.NoError(t, store.Migrate(ctx))

	runStoreContract(t, func(t *testing.T) (Store, string) {
		return store, "things_" + ids.New()
	})
}

func runStoreContract(t *testing.T, open func(t *testing.T) (Store, string)) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	t.Run("insert assigns id and timestamps", func(t *testing.T) {
		store, col := open(t)
		doc, err := store.Insert(ctx, col, models.Document{"code": "A1", "ignored": nil})
		require.NoError(t, err)

		assert.NotEmpty(t, doc.ID())
		assert.False(t, doc.Time(models.FieldCreatedAt).IsZero())
		assert.Equal(t, doc.Time(models.FieldCreatedAt), doc.Time(models.FieldUpdatedAt))
		assert.NotContains(t, doc, "ignored")

		found, err := store.FindByID(ctx, col, doc.ID())
		require.NoError(t, err)
		assert.Equal(t, "A1", found.String("code"))
	})

	t.Run("explicit id is kept and cannot repeat", func(t *testing.T) {
		store, col := open(t)
		_, err := store.Insert(ctx, col, models.Document{models.FieldID: "fixed", "v": "1"})
		require.NoError(t, err)
		_, err = store.Insert(ctx, col, models.Document{models.FieldID: "fixed", "v": "2"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("unique index rejects duplicates and ignores absent keys", func(t *testing.T) {
		store, col := open(t)
		require.NoError(t, store.EnsureIndex(ctx, col, Index{Name: "code_key", Fields: []string{"code"}, Unique: true}))

		first, err := store.Insert(ctx, col, models.Document{"code": "A1"})
		require.NoError(t, err)
		_, err = store.Insert(ctx, col, models.Document{"code": "A1"})
		assert.ErrorIs(t, err, ErrDuplicate)

		_, err = store.Insert(ctx, col, models.Document{"name": "no code"})
		require.NoError(t, err)
		_, err = store.Insert(ctx, col, models.Document{"name": "no code either"})
		require.NoError(t, err)

		second, err := store.Insert(ctx, col, models.Document{"code": "B2"})
		require.NoError(t, err)
		_, err = store.Update(ctx, col, second.ID(), nil, models.Document{"code": "A1"})
		assert.ErrorIs(t, err, ErrDuplicate)

		_, err = store.Update(ctx, col, first.ID(), nil, models.Document{"code": "A1", "extra": "x"})
		assert.NoError(t, err)
	})

	t.Run("compound unique index", func(t *testing.T) {
		store, col := open(t)
		require.NoError(t, store.EnsureIndex(ctx, col, Index{Name: "pair_key", Fields: []string{"a", "b"}, Unique: true}))

		_, err := store.Insert(ctx, col, models.Document{"a": "1", "b": "x"})
		require.NoError(t, err)
		_, err = store.Insert(ctx, col, models.Document{"a": "1", "b": "y"})
		require.NoError(t, err)
		_, err = store.Insert(ctx, col, models.Document{"a": "1", "b": "x"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("update sets and unsets fields", func(t *testing.T) {
		store, col := open(t)
		doc, err := store.Insert(ctx, col, models.Document{"a": "1", "b": "2"})
		require.NoError(t, err)

		updated, err := store.Update(ctx, col, doc.ID(), nil, models.Document{"a": "10", "b": nil})
		require.NoError(t, err)
		assert.Equal(t, "10", updated.String("a"))
		assert.NotContains(t, updated, "b")
		assert.Equal(t, doc.Time(models.FieldCreatedAt), updated.Time(models.FieldCreatedAt))
	})

	t.Run("conditional update", func(t *testing.T) {
		store, col := open(t)
		doc, err := store.Insert(ctx, col, models.Document{"token": "t1"})
		require.NoError(t, err)

		_, err = store.Update(ctx, col, doc.ID(), Match{"token": "t1"}, models.Document{"token": "t2"})
		require.NoError(t, err)

		_, err = store.Update(ctx, col, doc.ID(), Match{"token": "t1"}, models.Document{"token": "t3"})
		assert.ErrorIs(t, err, ErrNotFound)

		current, err := store.FindByID(ctx, col, doc.ID())
		require.NoError(t, err)
		assert.Equal(t, "t2", current.String("token"))
	})

	t.Run("missing documents", func(t *testing.T) {
		store, col := open(t)
		_, err := store.FindByID(ctx, col, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.FindOne(ctx, col, Match{"a": "b"})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.Update(ctx, col, "nope", nil, models.Document{"a": "b"})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.Delete(ctx, col, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("find filters and sorts", func(t *testing.T) {
		store, col := open(t)
		for _, name := range []string{"Physics", "Algebra", "Chemistry"} {
			_, err := store.Insert(ctx, col, models.Document{"name": name, "kind": "core"})
			require.NoError(t, err)
		}
		_, err := store.Insert(ctx, col, models.Document{"name": "Art", "kind": "elective"})
		require.NoError(t, err)

		docs, err := store.Find(ctx, col, FindOptions{Match: Match{"kind": "core"}, SortBy: "name"})
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "Algebra", docs[0].String("name"))
		assert.Equal(t, "Physics", docs[2].String("name"))

		one, err := store.FindOne(ctx, col, Match{"name": "Art"})
		require.NoError(t, err)
		assert.Equal(t, "elective", one.String("kind"))

		n, err := store.Count(ctx, col)
		require.NoError(t, err)
		assert.EqualValues(t, 4, n)
	})

	t.Run("delete returns the removed document", func(t *testing.T) {
		store, col := open(t)
		doc, err := store.Insert(ctx, col, models.Document{"a": "1"})
		require.NoError(t, err)

		removed, err := store.Delete(ctx, col, doc.ID())
		require.NoError(t, err)
		assert.Equal(t, doc.ID(), removed.ID())

		n, err := store.Count(ctx, col)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("nested values round trip", func(t *testing.T) {
		store, col := open(t)
		doc, err := store.Insert(ctx, col, models.Document{
			"prefs": map[string]any{"email": true, "sms": false},
			"tags":  []string{"x", "y"},
			"score": 7.5,
		})
		require.NoError(t, err)

		found, err := store.FindByID(ctx, col, doc.ID())
		require.NoError(t, err)
		prefs, ok := found["prefs"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, prefs["email"])
		assert.EqualValues(t, 7.5, found["score"])
	})
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	doc, err := store.Insert(ctx, "things", models.Document{"prefs": map[string]any{"email": true}})
	require.NoError(t, err)

	doc["prefs"].(map[string]any)["email"] = false

	found, err := store.FindByID(ctx, "things", doc.ID())
	require.NoError(t, err)
	assert.Equal(t, true, found["prefs"].(map[string]any)["email"])
}
