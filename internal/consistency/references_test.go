package consistency

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/domain"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/store/storetest"
)

func TestReferences_AllPresent(t *testing.T) {
	c := newTestCatalog(t)
	seedAuthor(t, c, "author-1", "Frank Herbert")
	seedCategory(t, c, "cat-1", "Science Fiction")

	refs := NewReferences(c, testLogger())
	err := refs.Validate(context.Background(),
		Ref("author_id", domain.KindAuthor, "author-1"),
		Ref("category_ids", domain.KindCategory, "cat-1", "cat-1"),
	)
	assert.NoError(t, err)
}

func TestReferences_CollectsEveryMiss(t *testing.T) {
	c := newTestCatalog(t)
	seedCategory(t, c, "cat-1", "Science Fiction")

	refs := NewReferences(c, testLogger())
	err := refs.Validate(context.Background(),
		Ref("author_id", domain.KindAuthor, "author-x"),
		Ref("category_ids", domain.KindCategory, "cat-1", "cat-2", "cat-3"),
	)
	require.Error(t, err)
	require.True(t, errors.Is(err, domainerrors.ErrInvalidReference))

	var derr *domainerrors.Error
	require.True(t, errors.As(err, &derr))
	details, ok := derr.Details.(domainerrors.ReferenceErrors)
	require.True(t, ok)
	assert.Equal(t, []string{"Author with ID author-x does not exist"}, details["author_id"])
	assert.Equal(t, []string{
		"Category with ID cat-2 does not exist",
		"Category with ID cat-3 does not exist",
	}, details["category_ids"])
}

func TestReferences_NoRefs(t *testing.T) {
	refs := NewReferences(newTestCatalog(t), testLogger())
	assert.NoError(t, refs.Validate(context.Background()))
	assert.NoError(t, refs.Validate(context.Background(), Ref("category_ids", domain.KindCategory)))
}

func TestReferences_StoreFailureIsInternal(t *testing.T) {
	c := newTestCatalog(t)
	c.Fail(domain.KindAuthor, storetest.OpGetMany, "", errors.New("disk on fire"))

	refs := NewReferences(c, testLogger())
	err := refs.Validate(context.Background(), Ref("author_id", domain.KindAuthor, "author-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrInternal))
	assert.False(t, errors.Is(err, domainerrors.ErrInvalidReference))
}

func TestReferences_DoesNotWrite(t *testing.T) {
	c := newTestCatalog(t)
	refs := NewReferences(c, testLogger())

	_ = refs.Validate(context.Background(), Ref("author_id", domain.KindAuthor, "author-x"))

	assert.Zero(t, c.Calls(domain.KindAuthor, storetest.OpUpdate))
	assert.Zero(t, c.Calls(domain.KindAuthor, storetest.OpIncrement))
}
