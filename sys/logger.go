package sys

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// --- Globals & Styles ---

var (
	// Level colors
	infoColor  = color.New()
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	fatalColor = color.New(color.FgRed, color.Bold)
	debugColor = color.New(color.FgHiBlack)

	// Component colors
	componentColors = map[string]*color.Color{
		"DATABASE": color.New(),
		"PLAYER":   color.New(color.FgGreen),
		"VOICE":    color.New(color.FgMagenta),
		"NOTIFIER": color.New(color.FgMagenta),
		"SEARCH":   color.New(color.FgBlue),
		"EVENTS":   color.New(color.FgBlue),
		"STATUS":   color.New(color.FgBlue),
		"PRESENCE": color.New(color.FgCyan),
	}
	attrColor = color.New(color.FgHiBlack)

	// Global state
	DefaultTimeFormat = "15:04:05"
	IsSilent          = false
	LogToFile         = false
	Logger            *slog.Logger

	// Internal state
	logFile *os.File
	logMu   sync.Mutex
)

const LevelFatal = slog.LevelError + 4

// --- Initialization ---

func init() {
	InitLogger(false, false)
}

// InitLogger initializes the global structured logger
func InitLogger(silent bool, saveToFile bool) {
	logMu.Lock()
	defer logMu.Unlock()

	IsSilent = silent
	LogToFile = saveToFile
	level := slog.LevelInfo
	if strings.ToLower(os.Getenv("DEBUG")) == "true" {
		level = slog.LevelDebug
	}

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writer io.Writer = os.Stdout
	var err error

	if LogToFile {
		exePath, exeErr := os.Executable()
		logName := GetProjectName() + ".log"
		if exeErr == nil {
			logName = filepath.Base(exePath) + ".log"
		}

		logFile, err = os.OpenFile(logName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", logName, err)
		} else {
			writer = io.MultiWriter(os.Stdout, NewStripANSIWriter(logFile))
		}
	}

	handler := NewBotLogHandler(writer, &BotLogHandlerOptions{
		Silent: IsSilent,
		Level:  level,
	})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func GetLogPath() string {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile == nil {
		return ""
	}
	return logFile.Name()
}

// --- Public Logging API ---

func LogInfo(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...))
}

func LogWarn(format string, v ...any) {
	slog.Warn(fmt.Sprintf(format, v...))
}

func LogError(format string, v ...any) {
	slog.Error(fmt.Sprintf(format, v...))
}

func LogFatal(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	slog.Log(context.Background(), LevelFatal, msg)
	panic(msg)
}

func LogDebug(format string, v ...any) {
	slog.Debug(fmt.Sprintf(format, v...))
}

// Component Loggers

func LogDatabase(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "database"))
}

func LogPlayer(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "player"))
}

func LogVoice(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "voice"))
}

func LogNotifier(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "notifier"))
}

func LogEvents(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "events"))
}

func LogStatus(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "status"))
}

func LogPresence(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "presence"))
}

// ComponentLogger returns a logger whose records are tagged with name.
func ComponentLogger(name string) *slog.Logger {
	return slog.Default().With(slog.String("component", name))
}

// --- Log Handler Implementation ---

type BotLogHandlerOptions struct {
	Silent bool
	Level  slog.Leveler
}

type BotLogHandler struct {
	w     io.Writer
	opts  *BotLogHandlerOptions
	mu    *sync.Mutex
	attrs []slog.Attr
	group string
}

func NewBotLogHandler(w io.Writer, opts *BotLogHandlerOptions) *BotLogHandler {
	if opts == nil {
		opts = &BotLogHandlerOptions{Level: slog.LevelInfo}
	}
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	return &BotLogHandler{
		w:    w,
		opts: opts,
		mu:   &sync.Mutex{},
	}
}

func (h *BotLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.opts.Silent {
		return false
	}
	return level >= h.opts.Level.Level()
}

func (h *BotLogHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.opts.Silent {
		return nil
	}

	timeStr := r.Time.Format(DefaultTimeFormat)
	if r.Time.IsZero() {
		timeStr = time.Now().Format(DefaultTimeFormat)
	}
	levelStr, levelColor := levelStyle(r.Level)

	component := ""
	var extra []string
	collect := func(a slog.Attr) bool {
		if a.Key == "component" {
			component = strings.ToUpper(a.Value.String())
			return true
		}
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		extra = append(extra, fmt.Sprintf("%s=%v", key, a.Value.Any()))
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(collect)

	suffix := ""
	if len(extra) > 0 {
		suffix = " " + attrColor.Sprint(strings.Join(extra, " "))
	}

	fmt.Fprintf(h.w, "%s", timeStr)

	if component != "" {
		if levelStr != "INFO" {
			fmt.Fprintf(h.w, " %s", levelColor.Sprintf("[%s]", levelStr))
		}
		fmt.Fprintf(h.w, " %s%s\n", colorizeWithResets(getComponentColor(component), fmt.Sprintf("[%s] %s", component, r.Message)), suffix)
	} else {
		fmt.Fprintf(h.w, " %s%s\n", colorizeWithResets(levelColor, fmt.Sprintf("[%s] %s", levelStr, r.Message)), suffix)
	}

	return nil
}

func (h *BotLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	nh := *h
	nh.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &nh
}

func (h *BotLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	if nh.group != "" {
		nh.group += "." + name
	} else {
		nh.group = name
	}
	return &nh
}

// --- Formatting Helpers ---

func levelStyle(l slog.Level) (string, *color.Color) {
	switch {
	case l >= LevelFatal:
		return "FATAL", fatalColor
	case l >= slog.LevelError:
		return "ERROR", errorColor
	case l >= slog.LevelWarn:
		return "WARN", warnColor
	case l >= slog.LevelInfo:
		return "INFO", infoColor
	default:
		return "DEBUG", debugColor
	}
}

func getComponentColor(name string) *color.Color {
	if c, ok := componentColors[name]; ok {
		return c
	}
	return color.New(color.FgCyan)
}

func colorizeWithResets(c *color.Color, text string) string {
	if !strings.Contains(text, "\x1b[0m") {
		return c.Sprint(text)
	}

	marker := "@@@MSG@@@"
	wrapped := c.Sprint(marker)
	idx := strings.Index(wrapped, marker)
	if idx <= 0 {
		return text
	}
	startSeq := wrapped[:idx]

	modifiedText := strings.ReplaceAll(text, "\x1b[0m", "\x1b[0m"+startSeq)
	return c.Sprint(modifiedText)
}

// --- ANSI Stripper ---

type StripANSIWriter struct {
	w  io.Writer
	re *regexp.Regexp
}

func NewStripANSIWriter(w io.Writer) *StripANSIWriter {
	return &StripANSIWriter{
		w:  w,
		re: regexp.MustCompile(`\x1b\[[0-9;]*m`),
	}
}

func (s *StripANSIWriter) Write(p []byte) (n int, err error) {
	clean := s.re.ReplaceAll(p, []byte(""))
	_, err = s.w.Write(clean)
	return len(p), err
}

// --- Message Constants ---

const (
	// --- Infrastructure & Lifecycle ---
	MsgConfigFailedToLoad  = "Failed to load config: %v"
	MsgConfigMissingToken  = "DISCORD_TOKEN is not set in .env file"
	MsgConfigOverlayLoaded = "Loaded config overlay from %s"
	MsgDatabaseInitSuccess = "Database initialized successfully (%s)"
	MsgDatabaseTableError  = "Failed to create table: %w"
	MsgDatabasePragmaError = "Failed to set pragma %s: %w"
	MsgDaemonStarting      = "Starting..."
	MsgBotStarting         = "Starting %s..."
	MsgBotReady            = "%s is ready! (ID: %s) (PID: %d) (Took: %dms)"
	MsgBotShutdown         = "Shutting down %s..."
	MsgBotKillingOld       = "Killing running instance... (PID: %d)"
	MsgBotKillFail         = "Failed to kill old instance: %v"
	MsgBotOldTerminated    = "Old instance terminated."
	MsgBotPIDWriteFail     = "Failed to write PID file: %v"
	MsgBotRegisterFail     = "Command registration failed: %v"
	MsgGenericError        = "%v"

	// --- Command Loader & Registry ---
	MsgLoaderSyncCommands   = "Syncing %s commands..."
	MsgLoaderUpToDate       = "Commands are up to date, skipping sync"
	MsgLoaderDevRegistered  = "[DEV] Registered: %s"
	MsgLoaderDevFail        = "[DEV] Registration failed: %v"
	MsgLoaderProdRegistered = "[PROD] Registered: %s"
	MsgLoaderProdFail       = "[PROD] Global registration failed: %w"
	MsgLoaderPanicRecovered = "Panic recovered in handler: %v"
	MsgLoaderCleanup        = "Clearing stale commands from guild %s"
	MsgLoaderGlobalClear    = "Clearing global commands for guild mode"

	// --- Player ---
	MsgPlayerNowPlaying      = "Now playing **%s**"
	MsgPlayerNowPlayingLink  = "Now playing **[%s](<%s>)** `%s`"
	MsgPlayerQueued          = "Queued **%s** at position **%d**"
	MsgPlayerPlaylistStarted = "Playing **%s** and queued **%d** more from **%s**"
	MsgPlayerPlaylistQueued  = "Queued **%d** tracks from **%s**"
	MsgPlayerSkipped         = "Skipped **%d** track(s)"
	MsgPlayerSkippedToEnd    = "Skipped **%d** track(s), the queue is now empty"
	MsgPlayerSkippedNext     = "Skipped **%d** track(s), now playing **%s**"
	MsgPlayerStopped         = "Stopped playback and cleared the queue"
	MsgPlayerShuffled        = "Shuffled **%d** tracks"
	MsgPlayerVolumeSet       = "Volume set to **%d%%**"
	MsgPlayerVolumeCurrent   = "Volume is **%d%%**"
	MsgPlayerVolumeNotSaved  = "Volume set to **%d%%** (it could not be saved and will reset on restart)"
	MsgPlayerQueueHeader     = "**Queue** (%d tracks)\n"
	MsgPlayerQueueItem       = "`%d.` %s `%s`\n"
	MsgPlayerQueueMore       = "> ...and %d more."
	MsgPlayerQueueEmpty      = "The queue is empty."
	MsgPlayerJoined          = "Joined <#%s>"
	MsgPlayerLeft            = "Left the voice channel"
	MsgPlayerPickPrompt      = "Pick a track for **%s**"
	MsgPlayerPickPlaceholder = "Select a result"
	MsgPlayerPickExpired     = "Selection timed out."
	MsgPlayerSearching       = "Searching for **%s**..."
	ErrPlayerNotPlaying      = "Nothing is playing right now."
	ErrPlayerAlreadyPlaying  = "Something is already playing."
	ErrPlayerEmptyQueue      = "The queue is empty."
	ErrPlayerEngine          = "Playback failed. Try another track."
	ErrPlayerNotInVoice      = "Join a voice channel first."
	ErrPlayerNoResults       = "No results found."
	ErrPlayerSearchFailed    = "Search is unavailable right now. Try again later."
	ErrPlayerGuildOnly       = "This command can only be used in a server."
	ErrPlayerPickInvalid     = "That selection is no longer available."
	ErrPlayerJoinFailed      = "Could not join your voice channel."
	ErrPlayerVoiceBusy       = "I'm already playing in <#%s>."
	ErrPlayerWrongChannel    = "Join <#%s> to control playback."
	ErrPlayerPickNotYours    = "Only the person who searched can pick a result."
	ErrBotNotReady           = "Still starting up, try again in a moment."

	// --- Voice ---
	MsgVoiceJoined       = "Joined channel %s in guild %s"
	MsgVoiceLeft         = "Left voice in guild %s"
	MsgVoiceDisconnected = "Voice connection closed externally in guild %s"
	MsgVoiceMoved        = "Moved to channel %s in guild %s"
	MsgVoiceEngineError  = "Transcoder error for %s: %v"
	MsgVoiceStreamError  = "Stream error for %s: %v"

	// --- Notifier ---
	MsgNotifyCreated        = "You will be notified at `%s`"
	MsgNotifyCreatedNote    = "You will be notified at `%s`\n> %s"
	MsgNotifyDelivery       = "Hey <@%s>, you wanted to be notified at `%s`\n> Requested at `%s` | [Message](%s)"
	MsgNotifyDeliveryNote   = "\n```%s```"
	MsgNotifyListHeader     = "**Your Notifications** (%d pending)\n\n"
	MsgNotifyListItem       = "`%s` - %s (`%s`)\n"
	MsgNotifyNone           = "You have no pending notifications. Create one with `/notify set`!"
	MsgNotifyCancelled      = "Notification cancelled."
	MsgNotifyDaemonStarted  = "Sweeping every %s (max %d attempts)"
	MsgNotifyDeliverFail    = "Failed to deliver notification %s: %v"
	ErrNotifyInvalidFormat  = "Invalid time format. Use `1mo 15s`, `2d 4h`, `30m`, `24-12-2024`, `24-12-2024_15:30`, `tomorrow` or `week`."
	ErrNotifySaveFailed     = "Failed to save the notification. Please try again."
	ErrNotifyNotFound       = "Notification not found."
	ErrNotifyOriginNotFound = "Could not find the message to attach the notification to."

	// --- Events & Status ---
	MsgEventsConnected     = "Publishing player events to %s"
	MsgEventsPublishFail   = "Failed to publish event: %v"
	MsgEventsDropped       = "Event buffer full, dropped %s for guild %s"
	MsgStatusListening     = "Status API listening on %s"
	MsgStatusServeFail     = "Status API stopped: %v"
	MsgStatusGuildNotFound = "no player for guild"

	// --- Presence ---
	MsgPresenceRotated    = "Presence set to %q (next in %s)"
	MsgPresenceUpdateFail = "Failed to update presence: %v"
)
