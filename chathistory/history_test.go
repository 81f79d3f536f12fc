package chathistory

import (
	"context"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/alloydbpg/engine"
)

func historySchemaRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"column_name", "data_type"}).
		AddRow("id", "integer").
		AddRow("session_id", "text").
		AddRow("data", "jsonb").
		AddRow("type", "text")
}

func newMockHistory(t *testing.T) (*History, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectQuery(regexp.QuoteMeta("information_schema.columns")).
		WithArgs("message_store", "public").
		WillReturnRows(historySchemaRows())

	h, err := New(context.Background(), engine.NewWithPool(mock), "session-1", "message_store", "")
	assert.NoError(t, err)
	return h, mock
}

func TestNew_MissingColumn(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"column_name", "data_type"}).
		AddRow("id", "integer").
		AddRow("session_id", "text")
	mock.ExpectQuery(regexp.QuoteMeta("information_schema.columns")).
		WithArgs("message_store", "public").
		WillReturnRows(rows)

	_, err = New(context.Background(), engine.NewWithPool(mock), "session-1", "message_store", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "data"`)
}

func TestNew_RequiresSessionID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mock.Close()

	_, err = New(context.Background(), engine.NewWithPool(mock), "", "message_store", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "session id is required")
}

func TestAddUserAndAIMessages(t *testing.T) {
	h, mock := newMockHistory(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "public"."message_store" (session_id, data, type) VALUES ($1, $2, $3)`)).
		WithArgs("session-1", `{"content":"hello"}`, "human").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "public"."message_store" (session_id, data, type) VALUES ($1, $2, $3)`)).
		WithArgs("session-1", `{"content":"hi there"}`, "ai").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, h.AddUserMessage(ctx, "hello"))
	assert.NoError(t, h.AddAIMessage(ctx, "hi there"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessages_Roundtrip(t *testing.T) {
	h, mock := newMockHistory(t)
	ctx := context.Background()

	rows := pgxmock.NewRows([]string{"data", "type"}).
		AddRow(`{"content":"hello"}`, "human").
		AddRow(`{"content":"hi there"}`, "ai").
		AddRow(`{"content":"be brief"}`, "system").
		AddRow(`{"content":"{}","name":"lookup"}`, "function").
		AddRow(`{"content":"42","id":"call-1"}`, "tool").
		AddRow(`{"content":"note","role":"moderator"}`, "generic")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data, type FROM "public"."message_store" WHERE session_id = $1 ORDER BY id`)).
		WithArgs("session-1").
		WillReturnRows(rows)

	messages, err := h.Messages(ctx)
	assert.NoError(t, err)
	assert.Len(t, messages, 6)
	assert.Equal(t, llms.HumanChatMessage{Content: "hello"}, messages[0])
	assert.Equal(t, llms.AIChatMessage{Content: "hi there"}, messages[1])
	assert.Equal(t, llms.SystemChatMessage{Content: "be brief"}, messages[2])
	assert.Equal(t, llms.FunctionChatMessage{Content: "{}", Name: "lookup"}, messages[3])
	assert.Equal(t, llms.ToolChatMessage{Content: "42", ID: "call-1"}, messages[4])
	assert.Equal(t, llms.GenericChatMessage{Content: "note", Role: "moderator"}, messages[5])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessages_UnknownType(t *testing.T) {
	h, mock := newMockHistory(t)
	ctx := context.Background()

	rows := pgxmock.NewRows([]string{"data", "type"}).
		AddRow(`{"content":"x"}`, "alien")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data, type FROM "public"."message_store"`)).
		WithArgs("session-1").
		WillReturnRows(rows)

	_, err := h.Messages(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `unknown message type "alien"`)
}

func TestClear(t *testing.T) {
	h, mock := newMockHistory(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "public"."message_store" WHERE session_id = $1`)).
		WithArgs("session-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	assert.NoError(t, h.Clear(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetMessages(t *testing.T) {
	h, mock := newMockHistory(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "public"."message_store" WHERE session_id = $1`)).
		WithArgs("session-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "public"."message_store"`)).
		WithArgs("session-1", `{"content":"fresh start"}`, "human").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := h.SetMessages(ctx, []llms.ChatMessage{
		llms.HumanChatMessage{Content: "fresh start"},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
