package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"pet_chat/internal/domain"
	"pet_chat/internal/repository"
	"pet_chat/internal/testutil"
	apperrors "pet_chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConversation(t *testing.T, repo repository.ConversationRepository, petID, a, b uuid.UUID, createdAt time.Time) *domain.Conversation {
	t.Helper()
	conv := domain.NewConversation(petID, a, b, createdAt)
	require.NoError(t, repo.Create(context.Background(), conv))
	return conv
}

func TestConversationRepository_CreateAndFindActive(t *testing.T) {
	store := testutil.NewTestSQLiteStore(t)
	repo := store.Repos.Conversation
	ctx := context.Background()

	petID, owner, requester := uuid.New(), uuid.New(), uuid.New()
	conv := newConversation(t, repo, petID, requester, owner, repository.Now())

	t.Run("pair order does not matter", func(t *testing.T) {
		found, err := repo.FindActive(ctx, petID, owner, requester)
		require.NoError(t, err)
		assert.Equal(t, conv.ID, found.ID)

		found, err = repo.FindActive(ctx, petID, requester, owner)
		require.NoError(t, err)
		assert.Equal(t, conv.ID, found.ID)
		assert.True(t, found.IsActive)
		assert.Nil(t, found.LastMessage)
		assert.Equal(t, domain.NormalizePair(owner, requester), found.Participants)
	})

	t.Run("second active conversation for the same key conflicts", func(t *testing.T) {
		dup := domain.NewConversation(petID, owner, requester, repository.Now())
		err := repo.Create(ctx, dup)
		assert.True(t, errors.Is(err, apperrors.ErrConflict))
	})

	t.Run("other pet is a different key", func(t *testing.T) {
		_, err := repo.FindActive(ctx, uuid.New(), owner, requester)
		assert.True(t, errors.Is(err, apperrors.ErrConversationNotFound))
	})
}

func TestConversationRepository_AppendMessage(t *testing.T) {
	store := testutil.NewTestSQLiteStore(t)
	repo := store.Repos.Conversation
	ctx := context.Background()

	owner, requester := uuid.New(), uuid.New()
	conv := newConversation(t, repo, uuid.New(), owner, requester, repository.Now())

	contents := []string{"Hi", "Is he still available?", "Yes!"}
	senders := []uuid.UUID{requester, requester, owner}
	var appended []*domain.Message
	for i, content := range contents {
		msg, err := repo.AppendMessage(ctx, conv.ID, senders[i], content)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), msg.Seq)
		assert.NotEmpty(t, msg.ID)
		appended = append(appended, msg)
	}

	messages, err := repo.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, len(contents))
	for i, msg := range messages {
		assert.Equal(t, appended[i].ID, msg.ID)
		assert.Equal(t, contents[i], msg.Content)
		assert.Equal(t, senders[i], msg.SenderID)
		assert.True(t, appended[i].CreatedAt.Equal(msg.CreatedAt), "timestamp must survive the round trip")
		assert.False(t, msg.IsRead)
		if i > 0 {
			assert.False(t, msg.CreatedAt.Before(messages[i-1].CreatedAt))
		}
	}

	got, err := repo.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessage)
	tail := messages[len(messages)-1]
	assert.Equal(t, tail.Content, got.LastMessage.Content)
	assert.Equal(t, tail.SenderID, got.LastMessage.SenderID)
	assert.True(t, tail.CreatedAt.Equal(got.LastMessage.Timestamp))
	assert.Equal(t, int64(len(contents)), got.MessageCount)
}

func TestConversationRepository_AppendMessageUnknownConversation(t *testing.T) {
	store := testutil.NewTestSQLiteStore(t)

	_, err := store.Repos.Conversation.AppendMessage(context.Background(), uuid.New(), uuid.New(), "hello")
	assert.True(t, errors.Is(err, apperrors.ErrConversationNotFound))
}

func TestConversationRepository_ListForUser(t *testing.T) {
	store := testutil.NewTestSQLiteStore(t)
	repo := store.Repos.Conversation
	ctx := context.Background()

	user := uuid.New()
	base := repository.Now().Add(-time.Hour)
	oldest := newConversation(t, repo, uuid.New(), user, uuid.New(), base)
	middle := newConversation(t, repo, uuid.New(), user, uuid.New(), base.Add(time.Minute))
	newest := newConversation(t, repo, uuid.New(), uuid.New(), user, base.Add(2*time.Minute))
	// Чужая переписка в список не попадает
	newConversation(t, repo, uuid.New(), uuid.New(), uuid.New(), base)

	// Сообщение поднимает самую старую переписку наверх
	other := oldest.Participants[0]
	if other == user {
		other = oldest.Participants[1]
	}
	_, err := repo.AppendMessage(ctx, oldest.ID, other, "ping")
	require.NoError(t, err)
	_, err = repo.AppendMessage(ctx, oldest.ID, other, "ping again")
	require.NoError(t, err)
	_, err = repo.AppendMessage(ctx, oldest.ID, user, "pong")
	require.NoError(t, err)

	list, err := repo.ListForUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, oldest.ID, list[0].Conversation.ID)
	assert.Equal(t, newest.ID, list[1].Conversation.ID)
	assert.Equal(t, middle.ID, list[2].Conversation.ID)

	assert.Equal(t, int64(2), list[0].UnreadCount)
	assert.Equal(t, int64(0), list[1].UnreadCount)

	t.Run("mark read only touches messages of the other side", func(t *testing.T) {
		updated, err := repo.MarkRead(ctx, oldest.ID, user)
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated)

		list, err := repo.ListForUser(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, int64(0), list[0].UnreadCount)

		otherList, err := repo.ListForUser(ctx, other)
		require.NoError(t, err)
		require.Len(t, otherList, 1)
		assert.Equal(t, int64(1), otherList[0].UnreadCount)
	})
}

func TestConversationRepository_RetireByPet(t *testing.T) {
	store := testutil.NewTestSQLiteStore(t)
	repo := store.Repos.Conversation
	ctx := context.Background()

	petID, owner := uuid.New(), uuid.New()
	first := newConversation(t, repo, petID, owner, uuid.New(), repository.Now())
	second := newConversation(t, repo, petID, owner, uuid.New(), repository.Now())
	untouched := newConversation(t, repo, uuid.New(), owner, uuid.New(), repository.Now())

	retired, err := repo.RetireByPet(ctx, petID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, retired)

	_, err = repo.FindActive(ctx, petID, first.Participants[0], first.Participants[1])
	assert.True(t, errors.Is(err, apperrors.ErrConversationNotFound))

	_, err = repo.AppendMessage(ctx, first.ID, owner, "too late")
	assert.True(t, errors.Is(err, apperrors.ErrConversationNotFound))

	// Заголовок остается доступен по идентификатору
	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	list, err := repo.ListForUser(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, untouched.ID, list[0].Conversation.ID)

	t.Run("repeat retire is a no-op", func(t *testing.T) {
		retired, err := repo.RetireByPet(ctx, petID)
		require.NoError(t, err)
		assert.Empty(t, retired)
	})

	t.Run("key is free again after retirement", func(t *testing.T) {
		newConversation(t, repo, petID, first.Participants[0], first.Participants[1], repository.Now())
	})
}
