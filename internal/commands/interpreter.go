package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/cocogogo0101-tech/CueBot/internal/alert"
	"github.com/cocogogo0101-tech/CueBot/internal/database"
	"github.com/cocogogo0101-tech/CueBot/internal/policy"
	"github.com/cocogogo0101-tech/CueBot/internal/quickactions"
	"github.com/cocogogo0101-tech/CueBot/internal/store"
	"github.com/cocogogo0101-tech/CueBot/internal/utils"
)

// Directory is the REST surface the info commands read from.
// *discordgo.Session satisfies it.
type Directory interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

// History serves archived audit entries that outlived the in-document
// ring. *database.Archive satisfies it.
type History interface {
	EventsForSubject(subjectID string, limit int) ([]database.ArchivedEvent, error)
}

// Settings is the slice of runtime configuration the settings command
// reports.
type Settings struct {
	BotName       string
	GuildID       string
	DMAlerts      bool
	EncryptStore  bool
	QuickActions  bool
	CoverCommands bool
}

// Interpreter parses operator DMs into administrative actions. Every
// message from anyone but the operator, or from a guild channel, is
// dropped before parsing starts.
type Interpreter struct {
	store    *store.Store
	policy   *policy.Policy
	actions  *quickactions.Registry
	mod      quickactions.Moderator
	dir      Directory
	sender   alert.Sender
	history  History
	log      *zap.Logger
	settings Settings

	prefix  string
	ownerID string

	table map[string]func(args []string, raw string)
}

func NewInterpreter(s *store.Store, p *policy.Policy, r *quickactions.Registry, mod quickactions.Moderator, dir Directory, sender alert.Sender, log *zap.Logger, settings Settings, prefix, ownerID string) *Interpreter {
	i := &Interpreter{
		store:    s,
		policy:   p,
		actions:  r,
		mod:      mod,
		dir:      dir,
		sender:   sender,
		log:      log,
		settings: settings,
		prefix:   prefix,
		ownerID:  ownerID,
	}
	i.table = i.buildTable()
	return i
}

// SetHistory enables the logs command to read the long-term archive once
// the in-document ring has rotated an entry out. Optional.
func (i *Interpreter) SetHistory(h History) {
	i.history = h
}

// buildTable maps each canonical keyword and its aliases to one handler.
func (i *Interpreter) buildTable() map[string]func(args []string, raw string) {
	table := make(map[string]func(args []string, raw string))
	bind := func(h func(args []string, raw string), names ...string) {
		for _, n := range names {
			table[n] = h
		}
	}

	bind(i.cmdHelp, "help", "مساعدة", "مساعده")
	bind(i.cmdWatch, "watch", "راقب")
	bind(i.cmdUnwatch, "unwatch", "الغاء", "إلغاء")
	bind(i.cmdListWatched, "list", "قائمة", "قايمة")
	bind(i.cmdWhitelist, "whitelist", "موثوق")
	bind(i.cmdUnwhitelist, "unwhitelist", "حذف_موثوق")
	bind(i.cmdListWhitelist, "listwhite", "قايمة_موثوق")
	bind(i.cmdFilter, "filter", "فلتر")
	bind(i.cmdFilters, "filters", "الفلاتر")
	bind(i.cmdInfo, "info", "معلومات")
	bind(i.cmdLogs, "logs", "سجل")
	bind(i.cmdStats, "stats", "احصائيات")
	bind(i.cmdStrip, "strip", "سحب")
	bind(i.cmdBan, "ban", "حظر")
	bind(i.cmdKick, "kick", "طرد")
	bind(i.cmdTimeout, "timeout", "كتم")
	bind(i.cmdChannels, "channels", "قنوات")
	bind(i.cmdRoles, "roles", "رتب", "الرتب")
	bind(i.cmdMembers, "members", "اعضاء")
	bind(i.cmdSettings, "settings", "اعدادات")
	bind(i.cmdMask, "mask")
	return table
}

// reply sends text back to the operator, chunked under the message cap.
func (i *Interpreter) reply(text string) {
	for _, chunk := range utils.Chunk(text, utils.MaxMessageLen) {
		if err := i.sender.SendText(chunk); err != nil {
			i.log.Warn("reply failed", zap.Error(err))
			return
		}
	}
}

// HandleMessage processes one inbound message. guildID must be empty
// (a DM) and authorID must match the operator for anything to happen.
func (i *Interpreter) HandleMessage(authorID, guildID, content string) {
	if guildID != "" {
		return
	}
	if i.ownerID == "" || authorID != i.ownerID {
		return
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return
	}

	// Bare number: resolve against the newest pending action.
	if choice, err := strconv.Atoi(content); err == nil && i.actions.PendingCount() > 0 {
		i.resolveNewest(choice)
		return
	}

	// "<6-char id> <number>": explicit resolution.
	parts := strings.Fields(content)
	if len(parts) == 2 && len(parts[0]) == 6 && isAlnum(parts[0]) {
		if choice, err := strconv.Atoi(parts[1]); err == nil {
			i.resolve(strings.ToUpper(parts[0]), choice)
			return
		}
	}

	if !strings.HasPrefix(content, i.prefix) {
		return
	}
	rest := strings.TrimPrefix(content, i.prefix)
	parts = strings.Fields(rest)
	if len(parts) == 0 {
		return
	}

	keyword := strings.ToLower(parts[0])
	handler, ok := i.table[keyword]
	if !ok {
		i.reply(fmt.Sprintf("❌ Unknown command: `%s`\nSend `%shelp` for list.", keyword, i.prefix))
		return
	}
	handler(parts[1:], rest)
}

func (i *Interpreter) resolveNewest(choice int) {
	id, ok := i.actions.NewestID()
	if !ok {
		i.reply("❌ No pending quick actions")
		return
	}
	i.resolve(id, choice)
}

func (i *Interpreter) resolve(actionID string, choice int) {
	result, err := i.actions.Resolve(actionID, choice)
	switch {
	case err == quickactions.ErrNotFound:
		i.reply("❌ Action expired or not found")
	case err == quickactions.ErrExpired:
		i.reply("❌ Action expired")
	case err == quickactions.ErrInvalidChoice:
		i.reply("❌ Invalid choice number")
	case err != nil:
		i.reply(fmt.Sprintf("❌ %v", err))
	default:
		i.reply(result)
	}
}

func isAlnum(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}
