package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"fred-chat/modules/core/chat"
)

// Key names match the browser storage keys of the web client
var (
	bucketLocal         = []byte("local")
	keySidebarCollapsed = []byte("isSidebarCollapsed")
	keyDarkMode         = []byte("darkMode")
	keyCurrentAgent     = []byte("currentAgenticFlow")
	keyCurrentSession   = []byte("currentChatBotSession")
	tabBucketPrefix     = "session/"
)

// Preferences survive across tabs
type Preferences struct {
	SidebarCollapsed bool `json:"isSidebarCollapsed"`
	DarkMode         bool `json:"darkMode"`
}

// Store is the persisted client state
type Store struct {
	db *bolt.DB
}

// Open opens or creates the state file
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("state path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open state %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLocal)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the state file
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Preferences returns the cross-tab preferences, zero values when unset
func (s *Store) Preferences() (Preferences, error) {
	var prefs Preferences
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocal)
		if b == nil {
			return nil
		}
		if err := getJSON(b, keySidebarCollapsed, &prefs.SidebarCollapsed); err != nil {
			return err
		}
		return getJSON(b, keyDarkMode, &prefs.DarkMode)
	})
	return prefs, err
}

// SetSidebarCollapsed persists the sidebar preference
func (s *Store) SetSidebarCollapsed(collapsed bool) error {
	return s.putLocal(keySidebarCollapsed, collapsed)
}

// SetDarkMode persists the theme preference
func (s *Store) SetDarkMode(dark bool) error {
	return s.putLocal(keyDarkMode, dark)
}

func (s *Store) putLocal(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocal)
		if b == nil {
			return errors.New("local bucket missing")
		}
		return b.Put(key, raw)
	})
}

// Tab returns the state scoped to one tab
func (s *Store) Tab(name string) *TabState {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "main"
	}
	return &TabState{db: s.db, bucket: []byte(tabBucketPrefix + name)}
}

// Tabs lists the tabs that have saved state
func (s *Store) Tabs() ([]string, error) {
	var tabs []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if tab, ok := strings.CutPrefix(string(name), tabBucketPrefix); ok {
				tabs = append(tabs, tab)
			}
			return nil
		})
	})
	return tabs, err
}

// TabState holds the selection of one tab: current agent and session
type TabState struct {
	db     *bolt.DB
	bucket []byte
}

// CurrentSession returns the saved session, nil when none
func (t *TabState) CurrentSession() (*chat.Session, error) {
	var session *chat.Session
	err := t.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(t.bucket)
		if b == nil {
			return nil
		}
		return getJSON(b, keyCurrentSession, &session)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// SaveCurrentSession saves the active session, nil clears it
func (t *TabState) SaveCurrentSession(session *chat.Session) error {
	if session == nil {
		return t.delete(keyCurrentSession)
	}
	return t.put(keyCurrentSession, session)
}

// CurrentAgent returns the saved agent name, empty when none
func (t *TabState) CurrentAgent() (string, error) {
	var name string
	err := t.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(t.bucket)
		if b == nil {
			return nil
		}
		return getJSON(b, keyCurrentAgent, &name)
	})
	return name, err
}

// SaveCurrentAgent saves the selected agent
func (t *TabState) SaveCurrentAgent(name string) error {
	if name == "" {
		return t.delete(keyCurrentAgent)
	}
	return t.put(keyCurrentAgent, name)
}

// Clear forgets everything saved for the tab
func (t *TabState) Clear() error {
	return t.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(t.bucket) == nil {
			return nil
		}
		return tx.DeleteBucket(t.bucket)
	})
}

func (t *TabState) put(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return t.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(t.bucket)
		if err != nil {
			return err
		}
		return b.Put(key, raw)
	})
}

func (t *TabState) delete(key []byte) error {
	return t.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(t.bucket)
		if b == nil {
			return nil
		}
		return b.Delete(key)
	})
}

// getJSON decodes a key into target, leaving it untouched when absent
func getJSON(b *bolt.Bucket, key []byte, target interface{}) error {
	raw := b.Get(key)
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("corrupt state key %s: %w", key, err)
	}
	return nil
}
