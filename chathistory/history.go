package chathistory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/smallnest/alloydbpg/engine"
)

// History stores the messages of one chat session in a table created with
// Engine.InitChatHistoryTable. It implements schema.ChatMessageHistory.
type History struct {
	pool engine.DBPool

	sessionID  string
	tableName  string
	schemaName string
}

var _ schema.ChatMessageHistory = (*History)(nil)

// messageRecord is the JSON shape stored in the data column.
type messageRecord struct {
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role,omitempty"`
	ID      string `json:"id,omitempty"`
}

// New creates a History for one session. The table must exist with the
// expected columns; initialize it with Engine.InitChatHistoryTable.
func New(ctx context.Context, eng *engine.Engine, sessionID, tableName, schemaName string) (*History, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("chat history: session id is required")
	}
	if tableName == "" {
		return nil, fmt.Errorf("chat history: table name is required")
	}
	if schemaName == "" {
		schemaName = engine.DefaultSchemaName
	}

	columns, err := eng.LoadTableSchema(ctx, tableName, schemaName)
	if err != nil {
		return nil, err
	}
	for _, required := range []string{"id", "session_id", "data", "type"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf(
				"chat history: table %q.%q is missing column %q; create it with "+
					"(id SERIAL PRIMARY KEY, session_id TEXT NOT NULL, data JSONB NOT NULL, type TEXT NOT NULL)",
				schemaName, tableName, required)
		}
	}

	return &History{
		pool:       eng.Pool(),
		sessionID:  sessionID,
		tableName:  tableName,
		schemaName: schemaName,
	}, nil
}

// AddMessage appends a message to the session.
func (h *History) AddMessage(ctx context.Context, message llms.ChatMessage) error {
	record := messageRecord{Content: message.GetContent()}
	switch m := message.(type) {
	case llms.GenericChatMessage:
		record.Role = m.Role
		record.Name = m.Name
	case llms.FunctionChatMessage:
		record.Name = m.Name
	case llms.ToolChatMessage:
		record.ID = m.ID
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	stmt := fmt.Sprintf("INSERT INTO %q.%q (session_id, data, type) VALUES ($1, $2, $3)",
		h.schemaName, h.tableName)
	if _, err := h.pool.Exec(ctx, stmt, h.sessionID, string(data), string(message.GetType())); err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

// AddUserMessage appends a human message.
func (h *History) AddUserMessage(ctx context.Context, text string) error {
	return h.AddMessage(ctx, llms.HumanChatMessage{Content: text})
}

// AddAIMessage appends an AI message.
func (h *History) AddAIMessage(ctx context.Context, text string) error {
	return h.AddMessage(ctx, llms.AIChatMessage{Content: text})
}

// Messages returns the session's messages in insertion order.
func (h *History) Messages(ctx context.Context) ([]llms.ChatMessage, error) {
	stmt := fmt.Sprintf("SELECT data, type FROM %q.%q WHERE session_id = $1 ORDER BY id",
		h.schemaName, h.tableName)
	rows, err := h.pool.Query(ctx, stmt, h.sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var messages []llms.ChatMessage
	for rows.Next() {
		var data, msgType string
		if err := rows.Scan(&data, &msgType); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		message, err := decodeMessage(data, msgType)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return messages, nil
}

// SetMessages replaces the session's messages.
func (h *History) SetMessages(ctx context.Context, messages []llms.ChatMessage) error {
	if err := h.Clear(ctx); err != nil {
		return err
	}
	for _, message := range messages {
		if err := h.AddMessage(ctx, message); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every message of the session.
func (h *History) Clear(ctx context.Context) error {
	stmt := fmt.Sprintf("DELETE FROM %q.%q WHERE session_id = $1", h.schemaName, h.tableName)
	if _, err := h.pool.Exec(ctx, stmt, h.sessionID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}

func decodeMessage(data, msgType string) (llms.ChatMessage, error) {
	var record messageRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}

	switch llms.ChatMessageType(msgType) {
	case llms.ChatMessageTypeAI:
		return llms.AIChatMessage{Content: record.Content}, nil
	case llms.ChatMessageTypeHuman:
		return llms.HumanChatMessage{Content: record.Content}, nil
	case llms.ChatMessageTypeSystem:
		return llms.SystemChatMessage{Content: record.Content}, nil
	case llms.ChatMessageTypeFunction:
		return llms.FunctionChatMessage{Content: record.Content, Name: record.Name}, nil
	case llms.ChatMessageTypeTool:
		return llms.ToolChatMessage{Content: record.Content, ID: record.ID}, nil
	case llms.ChatMessageTypeGeneric:
		return llms.GenericChatMessage{Content: record.Content, Role: record.Role, Name: record.Name}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", msgType)
	}
}
