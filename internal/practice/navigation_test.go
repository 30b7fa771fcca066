package practice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/studyhub/internal/kv"
	"github.com/pavelanni/studyhub/internal/model"
)

func cacheList(t *testing.T, env *testEnv, list model.FilteredQuestionList) {
	t.Helper()
	list.Timestamp = env.clock.Now()
	require.NoError(t, kv.SetJSON(context.Background(), env.store, keyFilteredList, list))
}

func TestNavigationCachedListAppendsMissingID(t *testing.T) {
	env := newTestEnv(t)
	filters := model.FilterSpec{Years: []string{"2022"}}
	var refs []model.QuestionRef
	for i := 1; i <= 50; i++ {
		refs = append(refs, model.QuestionRef{ID: int64(i * 10)})
	}
	cacheList(t, env, model.FilteredQuestionList{Questions: refs, Filters: filters, ActualTotal: 50})

	nav, err := env.engine.Navigator().Build(context.Background(), NavRequest{QuestionID: 999, Filters: filters, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, StrategyCached, nav.Strategy)
	require.Len(t, nav.Questions, 51)
	assert.Equal(t, int64(999), nav.Questions[50].ID)
	assert.Equal(t, 50, nav.Index)
	assert.Equal(t, 3, nav.Page)
	assert.Equal(t, 3, nav.PageCount())
	assert.Len(t, nav.PageItems(3), 11)

	// The append is not persisted.
	cached, err := load[*model.FilteredQuestionList](context.Background(), env.engine.nav.slots, keyFilteredList)
	require.NoError(t, err)
	assert.Len(t, cached.Questions, 50)
}

func TestNavigationIndexHint(t *testing.T) {
	env := newTestEnv(t)
	refs := []model.QuestionRef{{ID: 5}, {ID: 6}, {ID: 7}, {ID: 6}}
	cacheList(t, env, model.FilteredQuestionList{Questions: refs, ActualTotal: 4})

	idx := func(i int) *int { return &i }
	tests := []struct {
		name string
		hint *int
		want int
	}{
		{"no hint", nil, 1},
		{"matching hint", idx(3), 3},
		{"hint at other id", idx(2), 1},
		{"hint out of range", idx(10), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav, err := env.engine.Navigator().Build(context.Background(), NavRequest{QuestionID: 6, Index: tt.hint})
			require.NoError(t, err)
			assert.Equal(t, tt.want, nav.Index)
		})
	}
}

func TestNavigationIgnoresStaleOrMismatchedCache(t *testing.T) {
	env := newTestEnv(t)
	filters := model.FilterSpec{Years: []string{"2022"}}
	cacheList(t, env, model.FilteredQuestionList{Questions: []model.QuestionRef{{ID: 1}, {ID: 2}}, Filters: filters, ActualTotal: 2})

	nav, err := env.engine.Navigator().Build(context.Background(), NavRequest{QuestionID: 1, Filters: model.FilterSpec{Years: []string{"2021"}}, TotalHint: 40})
	require.NoError(t, err)
	assert.Equal(t, StrategyFallback, nav.Strategy)
	assert.Len(t, nav.Questions, 40)

	env.clock.Advance(time.Hour)
	nav, err = env.engine.Navigator().Build(context.Background(), NavRequest{QuestionID: 1, Filters: filters, TotalHint: 40})
	require.NoError(t, err)
	assert.Equal(t, StrategyFallback, nav.Strategy)
}

func TestNavigationPartial(t *testing.T) {
	env := newTestEnv(t)
	cacheList(t, env, model.FilteredQuestionList{Partial: true, ActualTotal: 300})

	tests := []struct {
		id   int64
		want int
	}{
		{1, 0},
		{150, 149},
		{300, 299},
		{5000, 299},
	}
	for _, tt := range tests {
		nav, err := env.engine.Navigator().Build(context.Background(), NavRequest{QuestionID: tt.id})
		require.NoError(t, err)
		assert.Equal(t, StrategyPartial, nav.Strategy)
		assert.True(t, nav.Partial)
		assert.Len(t, nav.Questions, 300)
		assert.Equal(t, tt.want, nav.Index, "id %d", tt.id)
	}
}

func TestNavigationFallback(t *testing.T) {
	env := newTestEnv(t)
	env.questions.offline = true

	nav, err := env.engine.Navigator().Build(context.Background(), NavRequest{QuestionID: 7})
	require.NoError(t, err)
	assert.Equal(t, StrategyFallback, nav.Strategy)
	assert.Len(t, nav.Questions, 25)
	assert.Equal(t, 6, nav.Index)

	nav, err = env.engine.Navigator().Build(context.Background(), NavRequest{QuestionID: 40})
	require.NoError(t, err)
	assert.Len(t, nav.Questions, 26)
	assert.Equal(t, 25, nav.Index)

	env.questions.offline = false
	nav, err = env.engine.Navigator().Build(context.Background(), NavRequest{QuestionID: 7})
	require.NoError(t, err)
	assert.Len(t, nav.Questions, 30, "remote count sizes the list")
}

func TestNavigationEmptyIsLoading(t *testing.T) {
	env := newTestEnv(t)
	nav, err := env.engine.Navigator().Build(context.Background(), NavRequest{Source: model.SourceFavorites})
	require.NoError(t, err)
	assert.True(t, nav.Loading)
	_, ok := nav.Current()
	assert.False(t, ok)
}

func TestNavigationCachedEmptyResult(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	filters := model.FilterSpec{Years: []string{"1999"}}
	cacheList(t, env, model.FilteredQuestionList{Filters: filters})

	nav, err := env.engine.Navigator().Build(ctx, NavRequest{Filters: filters})
	require.NoError(t, err)
	assert.Equal(t, StrategyCached, nav.Strategy)
	assert.True(t, nav.Loading)
	assert.Empty(t, nav.Questions)

	nav, err = env.engine.Navigator().Build(ctx, NavRequest{QuestionID: 12, Filters: filters})
	require.NoError(t, err)
	assert.Equal(t, StrategyCached, nav.Strategy)
	require.Len(t, nav.Questions, 1)
	assert.Equal(t, int64(12), nav.Questions[0].ID)
}

func TestNavigationNextPrev(t *testing.T) {
	env := newTestEnv(t)
	cacheList(t, env, model.FilteredQuestionList{Questions: []model.QuestionRef{{ID: 3}, {ID: 4}, {ID: 9}}, ActualTotal: 3})

	nav, err := env.engine.Navigator().Build(context.Background(), NavRequest{QuestionID: 4})
	require.NoError(t, err)
	next, ok := nav.Next()
	require.True(t, ok)
	assert.Equal(t, int64(9), next.ID)
	prev, ok := nav.Prev()
	require.True(t, ok)
	assert.Equal(t, int64(3), prev.ID)
}

func TestRefreshFullAndPartial(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.questions.questions = append(makeQuestions(250, "2021"), makeQuestions(30, "2022")...)
	for i := range env.questions.questions {
		env.questions.questions[i].ID = int64(i + 1)
	}

	list, err := env.engine.Refresh(ctx, model.FilterSpec{Years: []string{"2022"}})
	require.NoError(t, err)
	assert.False(t, list.Partial)
	assert.Len(t, list.Questions, 30)
	assert.Equal(t, int64(251), list.Questions[0].ID)

	list, err = env.engine.Refresh(ctx, model.FilterSpec{Years: []string{"2021"}})
	require.NoError(t, err)
	assert.True(t, list.Partial)
	assert.Empty(t, list.Questions)
	assert.Equal(t, 250, list.ActualTotal)

	list, err = env.engine.Refresh(ctx, model.FilterSpec{Years: []string{"2021"}, Search: "question"})
	require.NoError(t, err)
	assert.False(t, list.Partial, "explicit search materializes the whole list")
	assert.Len(t, list.Questions, 250)
}

func TestRefreshDiscardsStaleResponse(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	block := make(chan struct{})
	env.questions.block = block

	var wg sync.WaitGroup
	var staleErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, staleErr = env.engine.Refresh(ctx, model.FilterSpec{Years: []string{"2021"}})
	}()
	require.Eventually(t, func() bool {
		env.questions.mu.Lock()
		defer env.questions.mu.Unlock()
		return env.questions.searches == 1
	}, time.Second, time.Millisecond)

	env.questions.mu.Lock()
	env.questions.block = nil
	env.questions.mu.Unlock()
	latest, err := env.engine.Refresh(ctx, model.FilterSpec{Years: []string{"2022"}})
	require.NoError(t, err)

	close(block)
	wg.Wait()
	assert.ErrorIs(t, staleErr, ErrStaleResponse)

	cached, err := load[*model.FilteredQuestionList](ctx, env.engine.nav.slots, keyFilteredList)
	require.NoError(t, err)
	assert.Equal(t, latest.Filters, cached.Filters)
}

func TestQueueRefreshDebounces(t *testing.T) {
	env := newTestEnv(t)
	done := make(chan model.FilterSpec, 4)
	for _, kw := range []string{"a", "ab", "abc"} {
		env.engine.QueueRefresh(model.FilterSpec{Keyword: kw}, func(list model.FilteredQuestionList, err error) {
			done <- list.Filters
		})
	}
	select {
	case f := <-done:
		assert.Equal(t, "abc", f.Keyword)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced refresh did not run")
	}
	env.questions.mu.Lock()
	defer env.questions.mu.Unlock()
	assert.Equal(t, 1, env.questions.searches)
}

func TestNavigationInvalidate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	cacheList(t, env, model.FilteredQuestionList{Questions: []model.QuestionRef{{ID: 3}, {ID: 4}}, ActualTotal: 2})

	require.NoError(t, env.engine.Navigator().Invalidate(ctx))

	nav, err := env.engine.Navigator().Build(ctx, NavRequest{QuestionID: 3})
	require.NoError(t, err)
	assert.Equal(t, StrategyFallback, nav.Strategy)
	assert.Len(t, nav.Questions, 30)
}
