// Package chathistory persists chat messages per session in a database
// table, implementing langchaingo's schema.ChatMessageHistory.
//
// Create the backing table with engine.InitChatHistoryTable, then open a
// History scoped to one session id:
//
//	history, err := chathistory.New(ctx, eng, "session-42", "message_store", "")
//	err = history.AddUserMessage(ctx, "hello")
//	messages, err := history.Messages(ctx)
package chathistory
