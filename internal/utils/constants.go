package utils

const (
	// Emojis
	EmojiTick    = "✅"
	EmojiCross   = "❌"
	EmojiWarn    = "⚠️"
	EmojiEye     = "👁️"
	EmojiBot     = "🤖"
	EmojiHammer  = "🔨"
	EmojiVoice   = "🔊"
	EmojiList    = "📋"
	EmojiStats   = "📊"
	EmojiLightning = "⚡"

	// Colors
	ColorDark  = 0x2f3136
	ColorGreen = 0x00FF00
	ColorAmber = 0xFFAA00
	ColorRed   = 0xFF0000

	// Discord caps messages at 2000 chars; leave headroom for markdown.
	MaxMessageLen = 1900
)
