package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

func FormatUser(u *discordgo.User) string {
	if u == nil {
		return "Unknown"
	}
	return fmt.Sprintf("%s (%s)", u.Username, u.ID)
}

func FormatChannel(c *discordgo.Channel) string {
	if c == nil {
		return "Unknown"
	}
	return fmt.Sprintf("#%s (%s)", c.Name, c.ID)
}

func FormatRole(r *discordgo.Role) string {
	if r == nil {
		return "Unknown"
	}
	return fmt.Sprintf("@%s (%s)", r.Name, r.ID)
}

// UserCreatedAt derives the account creation time from the snowflake id.
func UserCreatedAt(userID string) time.Time {
	ts, err := discordgo.SnowflakeTimestamp(userID)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// AccountAge describes how old an account is, flagging fresh accounts.
func AccountAge(createdAt time.Time) string {
	if createdAt.IsZero() {
		return "Unknown"
	}
	age := time.Since(createdAt)
	switch {
	case age < 24*time.Hour:
		return fmt.Sprintf("⚠️ %d hours old (NEW!)", int(age.Hours()))
	case age < 7*24*time.Hour:
		return fmt.Sprintf("⚠️ %d days old (RECENT)", int(age.Hours()/24))
	case age < 30*24*time.Hour:
		return fmt.Sprintf("%d days old", int(age.Hours()/24))
	case age < 365*24*time.Hour:
		return fmt.Sprintf("%d months old", int(age.Hours()/24/30))
	default:
		return fmt.Sprintf("%d years old", int(age.Hours()/24/365))
	}
}

// MemberAge describes how long ago a member joined the guild.
func MemberAge(joinedAt time.Time) string {
	if joinedAt.IsZero() {
		return "Unknown"
	}
	age := time.Since(joinedAt)
	switch {
	case age < time.Hour:
		return fmt.Sprintf("⚠️ %d minutes ago (JUST JOINED!)", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("⚠️ %d hours ago", int(age.Hours()))
	case age < 30*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(age.Hours()/24))
	default:
		return fmt.Sprintf("%d months ago", int(age.Hours()/24/30))
	}
}

// IsSuspicious flags accounts under 7 days old or without a custom avatar.
func IsSuspicious(u *discordgo.User) (bool, string) {
	created := UserCreatedAt(u.ID)
	if !created.IsZero() {
		if age := time.Since(created); age < 7*24*time.Hour {
			return true, fmt.Sprintf("New account (%d days old)", int(age.Hours()/24))
		}
	}
	if u.Avatar == "" {
		return true, "No custom avatar"
	}
	return false, "OK"
}

// TruncateText caps text at maxLen bytes without splitting a rune.
func TruncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:runeBoundary(text, maxLen-3)] + "..."
}

// runeBoundary backs max off to the nearest rune start so a byte-offset cut
// never produces invalid UTF-8.
func runeBoundary(s string, max int) int {
	if max >= len(s) {
		return len(s)
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return max
}

func FormatList(items []string, maxItems int) string {
	if len(items) == 0 {
		return "None"
	}
	if len(items) <= maxItems {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:maxItems], ", ") + fmt.Sprintf(" ... and %d more", len(items)-maxItems)
}

// ParseUserID accepts a raw snowflake or a mention wrapper (<@id>, <@!id>).
func ParseUserID(text string) (int64, bool) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "<@") && strings.HasSuffix(text, ">") {
		text = strings.TrimSuffix(strings.TrimPrefix(text, "<@"), ">")
		text = strings.TrimPrefix(text, "!")
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// FormatDuration renders seconds as a compact human duration.
func FormatDuration(seconds int) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	case seconds < 86400:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	default:
		return fmt.Sprintf("%dd %dh", seconds/86400, (seconds%86400)/3600)
	}
}

// Chunk splits a message into pieces that fit under Discord's size cap.
func Chunk(msg string, size int) []string {
	if size <= 0 {
		size = MaxMessageLen
	}
	if len(msg) <= size {
		return []string{msg}
	}
	var chunks []string
	for len(msg) > size {
		cut := runeBoundary(msg, size)
		if cut == 0 {
			// Invalid leading bytes; emit as-is rather than loop forever.
			cut = size
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	if len(msg) > 0 {
		chunks = append(chunks, msg)
	}
	return chunks
}

// AuditEmoji maps an audit event type to a display emoji.
func AuditEmoji(eventType string) string {
	m := map[string]string{
		"member_join":    "📥",
		"member_leave":   "📤",
		"member_ban":     "🔨",
		"member_unban":   "🔓",
		"member_kick":    "👢",
		"member_update":  "✏️",
		"bot_add":        "🤖",
		"role_create":    "➕",
		"role_delete":    "➖",
		"role_update":    "✏️",
		"channel_create": "📁",
		"channel_delete": "🗑️",
		"channel_update": "✏️",
		"message_delete": "❌",
		"message_edit":   "✏️",
	}
	if e, ok := m[eventType]; ok {
		return e
	}
	return "📋"
}
