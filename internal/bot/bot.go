// Package bot owns the Discord session: gateway intents, event routing,
// presence, and the cover-facing slash commands. Everything the agent
// reports or acts on flows through the components wired up here.
package bot

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/cocogogo0101-tech/CueBot/internal/alert"
	"github.com/cocogogo0101-tech/CueBot/internal/cache"
	"github.com/cocogogo0101-tech/CueBot/internal/commands"
	"github.com/cocogogo0101-tech/CueBot/internal/config"
	"github.com/cocogogo0101-tech/CueBot/internal/database"
	"github.com/cocogogo0101-tech/CueBot/internal/mask"
	"github.com/cocogogo0101-tech/CueBot/internal/metrics"
	"github.com/cocogogo0101-tech/CueBot/internal/monitor"
	"github.com/cocogogo0101-tech/CueBot/internal/policy"
	"github.com/cocogogo0101-tech/CueBot/internal/quickactions"
	"github.com/cocogogo0101-tech/CueBot/internal/redis"
	"github.com/cocogogo0101-tech/CueBot/internal/store"
)

type Bot struct {
	Session     *discordgo.Session
	Store       *store.Store
	Policy      *policy.Policy
	Dispatcher  *alert.Dispatcher
	Monitor     *monitor.Monitor
	Interpreter *commands.Interpreter
	Mask        *mask.Responder
	Metrics     *metrics.Metrics

	cfg       config.Config
	log       *zap.Logger
	startTime time.Time
}

// New builds the session and wires every component to it. rdb, cacheLayer
// and archive may be nil when Redis/Postgres are not configured.
func New(cfg config.Config, st *store.Store, rdb *redis.Client, cacheLayer *cache.Cache, archive *database.Archive, m *metrics.Metrics, log *zap.Logger) (*Bot, error) {
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("session error: %w", err)
	}

	s.Client = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     120 * time.Second,
			ForceAttemptHTTP2:   true,
		},
		Timeout: 15 * time.Second,
	}

	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildInvites |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent

	// State tracking supplies the before-images for member, channel,
	// voice and message update events. Message caching is what makes
	// deleted-message content recoverable at all.
	s.StateEnabled = true
	s.State.TrackMembers = true
	s.State.TrackRoles = true
	s.State.TrackChannels = true
	s.State.TrackVoice = true
	s.State.MaxMessageCount = 2048

	s.ShouldReconnectOnError = true
	s.ShouldRetryOnRateLimit = true
	s.MaxRestRetries = 3

	sender := alert.NewDMSender(s, cfg.OwnerID)
	dispatcher := alert.NewDispatcher(sender, alert.Config{
		Enabled:      cfg.DMAlerts,
		Cooldown:     cfg.AlertCooldown,
		MaxPerMinute: cfg.MaxAlertsPerMinute,
	}, st, m, log)
	if rdb != nil {
		dispatcher.SetDeduper(rdb)
	}
	if archive != nil {
		dispatcher.SetRecorder(archive)
	}

	mod := quickactions.NewDiscordModerator(s)
	registry := quickactions.NewRegistry(mod, st, m, log, cfg.QuickActions, cfg.QuickActionTimeout)
	pol := policy.New(st)

	mon := monitor.New(s, st, pol, dispatcher, registry, cacheLayer, archive, m, log, cfg.GuildID)

	interp := commands.NewInterpreter(st, pol, registry, mod, s, sender, log, commands.Settings{
		BotName:       cfg.BotName,
		GuildID:       cfg.GuildID,
		DMAlerts:      cfg.DMAlerts,
		EncryptStore:  cfg.EncryptStore,
		QuickActions:  cfg.QuickActions,
		CoverCommands: cfg.CoverCommands,
	}, cfg.Prefix, cfg.OwnerID)
	if archive != nil {
		interp.SetHistory(archive)
	}

	b := &Bot{
		Session:     s,
		Store:       st,
		Policy:      pol,
		Dispatcher:  dispatcher,
		Monitor:     mon,
		Interpreter: interp,
		Mask:        mask.NewResponder(st, sessionPoster{s}, log, cfg.GuildID),
		Metrics:     m,
		cfg:         cfg,
		log:         log,
		startTime:   time.Now(),
	}

	b.registerHandlers()
	return b, nil
}

// Start opens the gateway connection and blocks until SIGINT or SIGTERM.
func (b *Bot) Start() error {
	b.log.Info("connecting to gateway")
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("gateway connection failed: %w", err)
	}

	if b.Session.State.User == nil {
		u, err := b.Session.User("@me")
		if err != nil {
			return fmt.Errorf("fetch self: %w", err)
		}
		b.Session.State.User = u
	}
	b.log.Info("logged in",
		zap.String("user", b.Session.State.User.Username),
		zap.String("id", b.Session.State.User.ID))

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	return b.Close()
}

func (b *Bot) Close() error {
	b.log.Info("shutting down")
	b.log.Sync()
	return b.Session.Close()
}

// sessionPoster adapts the session to the mask package's Poster.
type sessionPoster struct {
	s *discordgo.Session
}

func (p sessionPoster) Post(channelID, content string) error {
	_, err := p.s.ChannelMessageSend(channelID, content)
	return err
}
