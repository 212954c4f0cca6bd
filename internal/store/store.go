package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"
)

const (
	auditLogCap    = 1000
	kdfIterations  = 100_000
	kdfKeyLen      = 32
	defaultMaskBar = "━━━━━━━━━━━━"
)

// Static salt preserved from the original deployment format; rotating it
// would orphan every existing encrypted store file.
var kdfSalt = []byte("q_bot_salt_2024")

var ErrFilterNotFound = errors.New("filter not found")

// AuditEntry is one row of the bounded in-document audit log.
type AuditEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	Details   map[string]interface{} `json:"details"`
}

// Mask holds the auto-reply configuration.
type Mask struct {
	ChannelID *string `json:"channel_id"`
	ReplyText string  `json:"reply_text"`
}

// Document is the entire persisted state. IDs are decimal strings.
type Document struct {
	WatchedUsers    []string               `json:"watched_users"`
	Whitelist       []string               `json:"whitelist"`
	Filters         map[string]bool        `json:"filters"`
	Mask            Mask                   `json:"mask"`
	SecretChannelID *string                `json:"secret_channel_id"`
	QuickActions    map[string]interface{} `json:"quick_actions"`
	Stats           map[string]int64       `json:"stats"`
	AuditLog        []AuditEntry           `json:"audit_log"`
}

// Store owns the document. Every read-modify-write cycle runs under one
// mutex so concurrent handlers cannot lose updates.
type Store struct {
	mu      sync.Mutex
	doc     *Document
	path    string
	encrypt bool
	key     []byte
	log     *zap.Logger
}

// DefaultFilters returns the nine category toggles, all enabled.
func DefaultFilters() map[string]bool {
	return map[string]bool{
		"roles":      true,
		"channels":   true,
		"members":    true,
		"messages":   true,
		"moderation": true,
		"server":     true,
		"bots":       true,
		"invites":    true,
		"voice":      true,
	}
}

func defaultDocument() *Document {
	return &Document{
		WatchedUsers: []string{},
		Whitelist:    []string{},
		Filters:      DefaultFilters(),
		Mask:         Mask{ReplyText: defaultMaskBar},
		QuickActions: map[string]interface{}{},
		Stats: map[string]int64{
			"total_alerts":    0,
			"bot_additions":   0,
			"role_changes":    0,
			"channel_changes": 0,
			"bans":            0,
			"kicks":           0,
		},
		AuditLog: []AuditEntry{},
	}
}

// Open loads the document at path, creating a default one when the file is
// missing or unreadable. Decryption failures fall back to plaintext JSON,
// then to a regenerated default; startup is never blocked.
func Open(path, password string, encrypt bool, log *zap.Logger) *Store {
	s := &Store{
		path:    path,
		encrypt: encrypt,
		log:     log,
	}
	if encrypt {
		s.key = pbkdf2.Key([]byte(password), kdfSalt, kdfIterations, kdfKeyLen, sha256.New)
	}

	s.doc = s.load()
	return s
}

func (s *Store) load() *Document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Error("read store file", zap.Error(err))
		}
		doc := defaultDocument()
		s.persist(doc)
		return doc
	}

	if s.encrypt {
		if plain, err := s.decrypt(data); err == nil {
			data = plain
		} else {
			s.log.Warn("store decrypt failed, trying plaintext", zap.Error(err))
		}
	}

	if !gjson.ValidBytes(data) {
		s.log.Error("store file is not valid JSON, regenerating default")
		doc := defaultDocument()
		s.persist(doc)
		return doc
	}

	doc := defaultDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		s.log.Error("unmarshal store file, regenerating default", zap.Error(err))
		doc = defaultDocument()
	}
	if doc.Filters == nil {
		doc.Filters = DefaultFilters()
	}
	if doc.Stats == nil {
		doc.Stats = map[string]int64{}
	}
	return doc
}

// persist writes the document atomically via a temp file + rename.
// Callers must hold s.mu (or be on the single-threaded open path).
func (s *Store) persist(doc *Document) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		s.log.Error("marshal store", zap.Error(err))
		return
	}

	if s.encrypt {
		data = s.seal(data)
	}

	tmp := filepath.Join(filepath.Dir(s.path), "."+filepath.Base(s.path)+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		s.log.Error("write store temp file", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.log.Error("rename store file", zap.Error(err))
	}
}

func (s *Store) seal(plain []byte) []byte {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		s.log.Error("store cipher init", zap.Error(err))
		return plain
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		s.log.Error("store gcm init", zap.Error(err))
		return plain
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		s.log.Error("store nonce", zap.Error(err))
		return plain
	}
	sealed := gcm.Seal(nonce, nonce, plain, nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(out, sealed)
	return out
}

func (s *Store) decrypt(data []byte) ([]byte, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(raw, data)
	if err != nil {
		return nil, fmt.Errorf("base64: %w", err)
	}
	raw = raw[:n]

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	return gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
}

// ---- watch list ----

func idKey(userID int64) string { return strconv.FormatInt(userID, 10) }

// Watch adds a user to the watch list. Returns false if already present.
func (s *Store) Watch(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := idKey(userID)
	for _, id := range s.doc.WatchedUsers {
		if id == key {
			return false
		}
	}
	s.doc.WatchedUsers = append(s.doc.WatchedUsers, key)
	s.persist(s.doc)
	return true
}

// Unwatch removes a user from the watch list. Returns false if absent.
func (s *Store) Unwatch(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := idKey(userID)
	for i, id := range s.doc.WatchedUsers {
		if id == key {
			s.doc.WatchedUsers = append(s.doc.WatchedUsers[:i], s.doc.WatchedUsers[i+1:]...)
			s.persist(s.doc)
			return true
		}
	}
	return false
}

func (s *Store) IsWatched(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := idKey(userID)
	for _, id := range s.doc.WatchedUsers {
		if id == key {
			return true
		}
	}
	return false
}

func (s *Store) WatchedUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.doc.WatchedUsers...)
}

// ---- whitelist ----

func (s *Store) AddWhitelist(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := idKey(userID)
	for _, id := range s.doc.Whitelist {
		if id == key {
			return false
		}
	}
	s.doc.Whitelist = append(s.doc.Whitelist, key)
	s.persist(s.doc)
	return true
}

func (s *Store) RemoveWhitelist(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := idKey(userID)
	for i, id := range s.doc.Whitelist {
		if id == key {
			s.doc.Whitelist = append(s.doc.Whitelist[:i], s.doc.Whitelist[i+1:]...)
			s.persist(s.doc)
			return true
		}
	}
	return false
}

func (s *Store) IsWhitelisted(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := idKey(userID)
	for _, id := range s.doc.Whitelist {
		if id == key {
			return true
		}
	}
	return false
}

func (s *Store) WhitelistUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.doc.Whitelist...)
}

// ---- filters ----

// FilterEnabled reports a category's toggle; unknown categories default on.
func (s *Store) FilterEnabled(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	enabled, ok := s.doc.Filters[name]
	if !ok {
		return true
	}
	return enabled
}

func (s *Store) SetFilter(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Filters[name]; !ok {
		return ErrFilterNotFound
	}
	s.doc.Filters[name] = enabled
	s.persist(s.doc)
	return nil
}

func (s *Store) EnableAllFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.doc.Filters {
		s.doc.Filters[k] = true
	}
	s.persist(s.doc)
}

// DisableAllFilters turns every filter off except the given critical
// categories, which stay enabled.
func (s *Store) DisableAllFilters(critical []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]bool, len(critical))
	for _, k := range critical {
		keep[k] = true
	}
	for k := range s.doc.Filters {
		if !keep[k] {
			s.doc.Filters[k] = false
		}
	}
	s.persist(s.doc)
}

func (s *Store) ResetFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Filters = DefaultFilters()
	s.persist(s.doc)
}

func (s *Store) Filters() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]bool, len(s.doc.Filters))
	for k, v := range s.doc.Filters {
		out[k] = v
	}
	return out
}

// ---- audit log & stats ----

// AppendAudit records an event, trimming the log to its cap on write.
func (s *Store) AppendAudit(eventType string, details map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.AuditLog = append(s.doc.AuditLog, AuditEntry{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Details:   details,
	})
	if len(s.doc.AuditLog) > auditLogCap {
		s.doc.AuditLog = s.doc.AuditLog[len(s.doc.AuditLog)-auditLogCap:]
	}
	s.persist(s.doc)
}

func (s *Store) IncrementStat(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Stats[name]++
	s.persist(s.doc)
}

func (s *Store) Stats() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.doc.Stats))
	for k, v := range s.doc.Stats {
		out[k] = v
	}
	return out
}

func (s *Store) AuditLogLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.doc.AuditLog)
}

// UserAuditEntries returns the most recent entries whose details reference
// the given user, newest last, capped at limit.
func (s *Store) UserAuditEntries(userID int64, limit int) []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []AuditEntry
	for _, e := range s.doc.AuditLog {
		if matchesUser(e.Details, userID) {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func matchesUser(details map[string]interface{}, userID int64) bool {
	v, ok := details["user_id"]
	if !ok {
		return false
	}
	switch id := v.(type) {
	case int64:
		return id == userID
	case float64:
		return int64(id) == userID
	case string:
		return id == strconv.FormatInt(userID, 10)
	case json.Number:
		n, err := id.Int64()
		return err == nil && n == userID
	default:
		return false
	}
}

// ---- mask ----

func (s *Store) MaskConfig() Mask {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy the channel pointer so no caller holds a reference into the
	// document outside the lock.
	m := s.doc.Mask
	if m.ChannelID != nil {
		id := *m.ChannelID
		m.ChannelID = &id
	}
	return m
}

func (s *Store) SetMaskChannel(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Mask.ChannelID = &channelID
	s.persist(s.doc)
}

func (s *Store) SetMaskReply(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Mask.ReplyText = text
	s.persist(s.doc)
}

func (s *Store) ClearMask() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Mask = Mask{ReplyText: defaultMaskBar}
	s.persist(s.doc)
}
