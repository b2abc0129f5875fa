package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"pet_chat/internal/domain"
	"pet_chat/internal/repository"
	"pet_chat/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditRow struct {
	eventType string
	role      string
	actor     *string
	conv      *string
	payload   map[string]interface{}
}

func (f *fixture) auditRows(t *testing.T) []auditRow {
	t.Helper()
	rows, err := f.store.DB.Query(`
		SELECT event_type, actor_role, actor_user_id, conversation_id, payload FROM audit_log ORDER BY id
	`)
	require.NoError(t, err)
	defer rows.Close()

	var out []auditRow
	for rows.Next() {
		var (
			row     auditRow
			payload string
		)
		require.NoError(t, rows.Scan(&row.eventType, &row.role, &row.actor, &row.conv, &payload))
		require.NoError(t, json.Unmarshal([]byte(payload), &row.payload))
		out = append(out, row)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestAuditService_ConversationCreated(t *testing.T) {
	f := newFixture(t)
	conv := domain.NewConversation(f.petID, f.adopter, f.owner, repository.Now())

	// Запись журнала переживает отмену запроса
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, f.services.Audit.ConversationCreated(ctx, conv, f.adopter))

	rows := f.auditRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.EventTypeConversationCreated, rows[0].eventType)
	assert.Equal(t, domain.ActorRoleUser, rows[0].role)
	require.NotNil(t, rows[0].actor)
	assert.Equal(t, f.adopter.String(), *rows[0].actor)
	require.NotNil(t, rows[0].conv)
	assert.Equal(t, conv.ID.String(), *rows[0].conv)
	assert.Equal(t, f.petID.String(), rows[0].payload["pet_id"])
	assert.Equal(t, f.owner.String(), rows[0].payload["owner_id"])
}

func TestAuditService_ConversationsRetired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	retired := []uuid.UUID{uuid.New()}

	require.NoError(t, f.services.Audit.ConversationsRetired(ctx, service.Actor{}, []uuid.UUID{f.petID}, retired))

	rows := f.auditRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.EventTypeConversationsRetired, rows[0].eventType)
	// Без роли событие приписывается системе
	assert.Equal(t, domain.ActorRoleSystem, rows[0].role)
	assert.Nil(t, rows[0].actor)
	assert.Nil(t, rows[0].conv)
	assert.Equal(t, []interface{}{f.petID.String()}, rows[0].payload["pet_ids"])
	assert.Equal(t, []interface{}{retired[0].String()}, rows[0].payload["conversation_ids"])
	assert.Equal(t, float64(1), rows[0].payload["retired"])
}
