package state

// Rooms are namespaced by purpose. Every connection auto-joins its own
// user room at registration so targeted delivery needs no lookup beyond
// the room index.

func UserRoom(userID string) string { return "user:" + userID }

func ConversationRoom(conversationID string) string { return "conversation:" + conversationID }

func TournamentRoom(tournamentID string) string { return "tournament:" + tournamentID }
