package kb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freechat/session-go/internal/models"
)

func newTestToggles() *Toggles {
	return NewToggles(NewMemoryToggleStore())
}

func kbs(ids ...string) []models.KnowledgeBase {
	out := make([]models.KnowledgeBase, len(ids))
	for i, id := range ids {
		out[i] = models.KnowledgeBase{ID: id, Name: id}
	}
	return out
}

func TestToggle_AddAndRemove(t *testing.T) {
	toggles := newTestToggles()
	ctx := context.Background()

	ids, err := toggles.Toggle(ctx, "u1", "kb-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"kb-a"}, ids)

	ids, err = toggles.Toggle(ctx, "u1", "kb-b")
	require.NoError(t, err)
	assert.Equal(t, []string{"kb-a", "kb-b"}, ids)

	// 再次切换同一个ID即移除
	ids, err = toggles.Toggle(ctx, "u1", "kb-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"kb-b"}, ids)
}

func TestSetAll_Dedupes(t *testing.T) {
	toggles := newTestToggles()
	ctx := context.Background()

	require.NoError(t, toggles.SetAll(ctx, "u1", []string{"kb-a", "kb-b", "kb-a"}))

	ids, err := toggles.Enabled(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"kb-a", "kb-b"}, ids)
}

func TestClear(t *testing.T) {
	toggles := newTestToggles()
	ctx := context.Background()

	require.NoError(t, toggles.SetAll(ctx, "u1", []string{"kb-a"}))
	require.NoError(t, toggles.Clear(ctx, "u1"))

	ids, err := toggles.Enabled(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestToggleAll_AllSelectedClears(t *testing.T) {
	toggles := newTestToggles()
	ctx := context.Background()
	available := kbs("kb-a", "kb-b", "kb-c")

	require.NoError(t, toggles.SetAll(ctx, "u1", []string{"kb-a", "kb-b", "kb-c"}))

	ids, err := toggles.ToggleAll(ctx, "u1", available)
	require.NoError(t, err)
	assert.Empty(t, ids, "toggling with everything selected must clear the set")
}

func TestToggleAll_PartialSelectsAll(t *testing.T) {
	toggles := newTestToggles()
	ctx := context.Background()
	available := kbs("kb-a", "kb-b", "kb-c")

	require.NoError(t, toggles.SetAll(ctx, "u1", []string{"kb-b"}))

	ids, err := toggles.ToggleAll(ctx, "u1", available)
	require.NoError(t, err)
	assert.Equal(t, []string{"kb-a", "kb-b", "kb-c"}, ids)
}

func TestToggleAll_ExcludesTagCategories(t *testing.T) {
	toggles := newTestToggles()
	ctx := context.Background()

	available := []models.KnowledgeBase{
		{ID: "kb-a", Name: "docs"},
		{ID: "kb-tags", Name: "tags", ParserID: "tag"},
		{ID: "kb-b", Name: "wiki"},
	}

	ids, err := toggles.ToggleAll(ctx, "u1", available)
	require.NoError(t, err)
	assert.Equal(t, []string{"kb-a", "kb-b"}, ids, "tag categories are not selectable")

	// 可选全集已全部启用，再来一次清空
	ids, err = toggles.ToggleAll(ctx, "u1", available)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestToggleAll_StaleIDCountsAsNotAllSelected(t *testing.T) {
	toggles := newTestToggles()
	ctx := context.Background()
	available := kbs("kb-a", "kb-b")

	// 含已下线的kb-old：覆盖了全集但基数不同
	require.NoError(t, toggles.SetAll(ctx, "u1", []string{"kb-a", "kb-b", "kb-old"}))

	ids, err := toggles.ToggleAll(ctx, "u1", available)
	require.NoError(t, err)
	assert.Equal(t, []string{"kb-a", "kb-b"}, ids, "stale ids are replaced by the selectable set")
}
