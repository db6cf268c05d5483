package watcher

import (
	"encoding/json"
	"os"
	"sync"
)

// sessionsFileName is the mapping file maintained by the gateway in the
// transcripts directory.
const sessionsFileName = "sessions.json"

// sessionEntry is the part of a sessions.json record we care about.
type sessionEntry struct {
	SessionID string `json:"sessionId"`
}

// sessionMap resolves transcript session IDs (the .jsonl basenames)
// back to the gateway's session keys. sessions.json maps sessionKey to
// an entry carrying the sessionId, so the index is inverted on load.
type sessionMap struct {
	mu   sync.RWMutex
	keys map[string]string // sessionId -> sessionKey
}

func newSessionMap() *sessionMap {
	return &sessionMap{keys: make(map[string]string)}
}

// load replaces the mapping wholesale from the given sessions.json
// path. A missing file is not an error; the map is left unchanged.
func (m *sessionMap) load(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var raw map[string]sessionEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, err
	}

	keys := make(map[string]string, len(raw))
	for sessionKey, entry := range raw {
		if entry.SessionID != "" {
			keys[entry.SessionID] = sessionKey
		}
	}

	m.mu.Lock()
	m.keys = keys
	m.mu.Unlock()
	return len(keys), nil
}

// keyFor returns the session key for a transcript session ID, or a
// stable "unknown:<id>" placeholder when no mapping exists yet.
func (m *sessionMap) keyFor(sessionID string) string {
	m.mu.RLock()
	key, ok := m.keys[sessionID]
	m.mu.RUnlock()
	if !ok {
		return "unknown:" + sessionID
	}
	return key
}
