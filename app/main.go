package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tbapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/verist/tg-guard/app/bot"
	"github.com/verist/tg-guard/app/events"
	"github.com/verist/tg-guard/app/server"
	"github.com/verist/tg-guard/app/storage"
	"github.com/verist/tg-guard/app/storage/engine"
	"github.com/verist/tg-guard/lib/modguard"
	"github.com/verist/tg-guard/lib/track"
)

type options struct {
	Telegram struct {
		Token    string `long:"token" env:"TOKEN" description:"telegram bot token" required:"true"`
		Group    string `long:"group" env:"GROUP" description:"group name/id" required:"true"`
		Honeypot string `long:"honeypot" env:"HONEYPOT" description:"honeypot group name/id, posters are banned"`
	} `group:"telegram" namespace:"telegram" env-namespace:"TELEGRAM"`

	AuditGroup   string            `long:"audit.group" env:"AUDIT_GROUP" description:"audit group name or channel id"`
	SuperUsers   events.SuperUsers `long:"super" env:"SUPER_USER" env-delim:"," description:"super-users, exempt from moderation"`
	ExemptUserID int64             `long:"exempt-id" env:"EXEMPT_ID" description:"user id never acted on, e.g. the channel relay bot"`

	Detector struct {
		RecentAccount   time.Duration `long:"recent-account" env:"RECENT_ACCOUNT" default:"1h" description:"accounts younger than this are suspicious"`
		HistorySize     int           `long:"history-size" env:"HISTORY_SIZE" default:"3" description:"recent messages kept per user"`
		ContextWindow   time.Duration `long:"context-window" env:"CONTEXT_WINDOW" default:"5m" description:"how far back history counts as context"`
		AllowListFile   string        `long:"allow-list" env:"ALLOW_LIST" description:"trusted domains file, one per line, builtin set if empty"`
		WatchInterval   time.Duration `long:"watch-interval" env:"WATCH_INTERVAL" default:"5s" description:"allow-list file watch debounce"`
		LuaRuleFile     string        `long:"lua-rule" env:"LUA_RULE" description:"optional lua suspicion rule file"`
	} `group:"detector" namespace:"detector" env-namespace:"DETECTOR"`

	Dispatch struct {
		SpamTimeout time.Duration `long:"spam-timeout" env:"SPAM_TIMEOUT" default:"24h" description:"mute duration for confirmed spam"`
		HoneypotBan time.Duration `long:"honeypot-ban" env:"HONEYPOT_BAN" default:"168h" description:"ban duration for honeypot posters"`
	} `group:"dispatch" namespace:"dispatch" env-namespace:"DISPATCH"`

	Report struct {
		Emoji     string        `long:"emoji" env:"EMOJI" default:"🚩" description:"reaction emoji counting as a report"`
		Threshold int           `long:"threshold" env:"THRESHOLD" default:"4" description:"distinct reactors to trigger a timeout"`
		Window    time.Duration `long:"window" env:"WINDOW" default:"10m" description:"report counting window"`
		Timeout   time.Duration `long:"timeout" env:"TIMEOUT" default:"15m" description:"mute duration on report trigger"`
	} `group:"report" namespace:"report" env-namespace:"REPORT"`

	OpenAI struct {
		Token             string `long:"token" env:"TOKEN" description:"openai token, disabled if not set"`
		Prompt            string `long:"prompt" env:"PROMPT" default:"" description:"openai system prompt, if empty uses builtin default"`
		Model             string `long:"model" env:"MODEL" default:"gpt-4o-mini" description:"openai model"`
		MaxTokensResponse int    `long:"max-tokens-response" env:"MAX_TOKENS_RESPONSE" default:"1024" description:"openai max tokens in response"`
		MaxTokensRequest  int    `long:"max-tokens-request" env:"MAX_TOKENS_REQUEST" default:"2048" description:"openai max tokens in request"`
		MaxSymbolsRequest int    `long:"max-symbols-request" env:"MAX_SYMBOLS_REQUEST" default:"8192" description:"openai max symbols in request, failback if tokenizer failed"`
		Assist            bool   `long:"assist" env:"ASSIST" description:"enable !assist command"`
		Roadmaps          bool   `long:"roadmaps" env:"ROADMAPS" description:"enable roadmap replies for roadmap requests"`
	} `group:"openai" namespace:"openai" env-namespace:"OPENAI"`

	Gemini struct {
		Token  string `long:"token" env:"TOKEN" description:"gemini token, used instead of openai if set"`
		Prompt string `long:"prompt" env:"PROMPT" default:"" description:"gemini system prompt, if empty uses builtin default"`
		Model  string `long:"model" env:"MODEL" default:"gemini-2.0-flash" description:"gemini model"`
	} `group:"gemini" namespace:"gemini" env-namespace:"GEMINI"`

	Storage struct {
		Conn string `long:"conn" env:"CONN" default:"tg-guard.db" description:"sqlite file or postgres:// connection string"`
	} `group:"storage" namespace:"storage" env-namespace:"STORAGE"`

	Logger struct {
		Enabled    bool   `long:"enabled" env:"ENABLED" description:"enable rotated audit json log"`
		FileName   string `long:"file" env:"FILE" default:"tg-guard.log" description:"location of audit log"`
		MaxSize    string `long:"max-size" env:"MAX_SIZE" default:"100M" description:"maximum size before it gets rotated"`
		MaxBackups int    `long:"max-backups" env:"MAX_BACKUPS" default:"10" description:"maximum number of old log files to retain"`
	} `group:"logger" namespace:"logger" env-namespace:"LOGGER"`

	Server struct {
		Enabled    bool   `long:"enabled" env:"ENABLED" description:"enable rest server"`
		ListenAddr string `long:"listen" env:"LISTEN" default:":8080" description:"listen address"`
		Secret     string `long:"secret" env:"SECRET" description:"secret key to sign unban tokens"`
		URL        string `long:"url" env:"URL" default:"http://localhost:8080" description:"root url"`
	} `group:"server" namespace:"server" env-namespace:"SERVER"`

	Message struct {
		Startup string `long:"startup" env:"STARTUP" default:"" description:"startup message"`
		Warn    string `long:"warn" env:"WARN" default:"" description:"warning template, %s replaced with user name"`
	} `group:"message" namespace:"message" env-namespace:"MESSAGE"`

	Dry   bool `long:"dry" env:"DRY" description:"dry mode, no actual bans or deletions"`
	Dbg   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	TGDbg bool `long:"tg-dbg" env:"TG_DEBUG" description:"telegram debug mode"`
}

var revision = "local"

func main() {
	fmt.Printf("tg-guard %s\n", revision)
	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	p.SubcommandsOptional = true
	if _, err := p.Parse(); err != nil {
		if err.(*flags.Error).Type != flags.ErrHelp {
			log.Printf("[ERROR] cli error: %v", err)
		}
		os.Exit(2)
	}

	setupLog(opts.Dbg, opts.Telegram.Token, opts.OpenAI.Token, opts.Gemini.Token, opts.Server.Secret)
	log.Printf("[DEBUG] options: %+v", opts)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		// catch signal and invoke graceful termination
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Printf("[WARN] interrupt signal")
		cancel()
	}()

	if err := execute(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, opts options) error {
	if opts.Dry {
		log.Print("[WARN] dry mode, no actual bans or deletions")
	}

	tbAPI, err := tbapi.NewBotAPI(opts.Telegram.Token)
	if err != nil {
		return fmt.Errorf("can't make telegram bot, %w", err)
	}
	tbAPI.Debug = opts.TGDbg

	db, err := makeDB(opts.Storage.Conn)
	if err != nil {
		return fmt.Errorf("can't open storage, %w", err)
	}
	defer db.Close()

	auditStore, err := storage.NewAuditLog(ctx, db)
	if err != nil {
		return fmt.Errorf("can't make audit store, %w", err)
	}
	reportStore, err := storage.NewReports(ctx, db)
	if err != nil {
		return fmt.Errorf("can't make report store, %w", err)
	}

	detector, joins, history, closer, err := makeDetector(ctx, opts)
	if err != nil {
		return fmt.Errorf("can't make detector, %w", err)
	}
	defer closer()

	auditWr, err := makeAuditLogWriter(opts)
	if err != nil {
		return fmt.Errorf("can't make audit log writer, %w", err)
	}
	defer auditWr.Close()

	auditChatID := int64(0)
	if opts.AuditGroup != "" {
		if auditChatID, err = getChatID(tbAPI, opts.AuditGroup); err != nil {
			return fmt.Errorf("can't get audit chat ID, %w", err)
		}
	}

	dispatcher := events.NewActionDispatcher(tbAPI, &auditRecorder{store: auditStore, wr: auditWr},
		events.DispatcherParams{
			AuditChatID:  auditChatID,
			SpamTimeout:  opts.Dispatch.SpamTimeout,
			HoneypotBan:  opts.Dispatch.HoneypotBan,
			ExemptUserID: opts.ExemptUserID,
			WarnTemplate: opts.Message.Warn,
			Dry:          opts.Dry,
		})

	var assistant events.Assistant
	if opts.OpenAI.Assist && opts.OpenAI.Token != "" {
		assistant = bot.NewAssistant(openai.NewClient(opts.OpenAI.Token), bot.AssistConfig{Model: opts.OpenAI.Model})
		log.Printf("[INFO] assist command enabled, model %s", opts.OpenAI.Model)
	}

	var roadmapper events.Roadmapper
	if opts.OpenAI.Roadmaps && opts.OpenAI.Token != "" {
		roadmapper = bot.NewRoadmapper(openai.NewClient(opts.OpenAI.Token), history, bot.RoadmapConfig{
			Model:         opts.OpenAI.Model,
			ContextWindow: opts.Detector.ContextWindow,
		})
		log.Printf("[INFO] roadmap replies enabled, model %s", opts.OpenAI.Model)
	}

	if opts.Server.Enabled {
		srv, serr := server.NewWeb(tbAPI, auditStore, server.Params{
			Secret:     opts.Server.Secret,
			URL:        opts.Server.URL,
			ListenAddr: opts.Server.ListenAddr,
			TgGroup:    opts.Telegram.Group,
			Version:    revision,
		})
		if serr != nil {
			return fmt.Errorf("can't make rest server, %w", serr)
		}
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("[ERROR] rest server failed, %v", err)
			}
		}()
	}

	tgListener := events.TelegramListener{
		TbAPI:       tbAPI,
		Detector:    detector,
		Dispatcher:  dispatcher,
		Joins:       joins,
		Assistant:   assistant,
		Roadmapper:  roadmapper,
		ReportStore: reportStore,
		ReportParams: events.ReportParams{
			Emoji:     opts.Report.Emoji,
			Threshold: opts.Report.Threshold,
			Window:    opts.Report.Window,
			Timeout:   opts.Report.Timeout,
			Dry:       opts.Dry,
		},
		Group:      opts.Telegram.Group,
		Honeypot:   opts.Telegram.Honeypot,
		SuperUsers: opts.SuperUsers,
		StartupMsg: opts.Message.Startup,
		Dry:        opts.Dry,
	}

	// run telegram listener and event processor loop
	if err := tgListener.Do(ctx); err != nil {
		return fmt.Errorf("telegram listener failed, %w", err)
	}
	return nil
}

// makeDetector builds the moderation detector with classifier, allow-list and
// optional lua rule. The join registry and history window are returned too,
// they are shared with the listener and the roadmap responder. The returned
// closer releases the lua state.
func makeDetector(ctx context.Context, opts options) (*modguard.Detector, *track.JoinRegistry, *track.HistoryWindow, func(), error) {
	var classifier modguard.Classifier
	switch {
	case opts.Gemini.Token != "":
		gc, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: opts.Gemini.Token, Backend: genai.BackendGeminiAPI})
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("can't make gemini client, %w", err)
		}
		classifier = modguard.NewGeminiClassifier(gc.Models, modguard.GeminiConfig{
			Model:        opts.Gemini.Model,
			SystemPrompt: opts.Gemini.Prompt,
		})
		log.Printf("[INFO] gemini classifier enabled, model %s", opts.Gemini.Model)
	case opts.OpenAI.Token != "":
		classifier = modguard.NewOpenAIClassifier(openai.NewClient(opts.OpenAI.Token), modguard.OpenAIConfig{
			Model:             opts.OpenAI.Model,
			SystemPrompt:      opts.OpenAI.Prompt,
			MaxTokensResponse: opts.OpenAI.MaxTokensResponse,
			MaxTokensRequest:  opts.OpenAI.MaxTokensRequest,
			MaxSymbolsRequest: opts.OpenAI.MaxSymbolsRequest,
		})
		log.Printf("[INFO] openai classifier enabled, model %s", opts.OpenAI.Model)
	default:
		log.Print("[WARN] no classifier configured, suspicious messages won't be confirmed")
	}

	allowList := modguard.NewAllowList()
	if opts.Detector.AllowListFile != "" {
		var err error
		if allowList, err = modguard.NewAllowListFromFile(opts.Detector.AllowListFile); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("can't load allow-list, %w", err)
		}
		go func() {
			if err := allowList.Watch(ctx, opts.Detector.WatchInterval); err != nil {
				log.Printf("[WARN] allow-list watcher failed: %v", err)
			}
		}()
	}

	history := track.NewHistoryWindow(opts.Detector.HistorySize)
	joins := track.NewJoinRegistry()
	detector := modguard.NewDetector(modguard.Config{
		RecentAccountThreshold: opts.Detector.RecentAccount,
		ContextWindow:          opts.Detector.ContextWindow,
	}, classifier, allowList, history, joins)

	closer := func() {}
	if opts.Detector.LuaRuleFile != "" {
		rule, err := modguard.NewLuaRule(opts.Detector.LuaRuleFile)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("can't load lua rule, %w", err)
		}
		detector.WithLuaRule(rule)
		closer = rule.Close
		log.Printf("[INFO] lua rule loaded from %s", opts.Detector.LuaRuleFile)
	}
	return detector, joins, history, closer, nil
}

func makeDB(conn string) (*engine.SQL, error) {
	if strings.HasPrefix(conn, "postgres://") || strings.HasPrefix(conn, "postgresql://") {
		return engine.NewPostgres(conn)
	}
	return engine.NewSqlite(conn)
}

func getChatID(tbAPI events.TbAPI, group string) (int64, error) {
	chatID, err := strconv.ParseInt(group, 10, 64)
	if err == nil {
		return chatID, nil
	}
	chat, err := tbAPI.GetChat(tbapi.ChatInfoConfig{ChatConfig: tbapi.ChatConfig{SuperGroupUsername: "@" + group}})
	if err != nil {
		return 0, fmt.Errorf("can't get chat for %s: %w", group, err)
	}
	return chat.ID, nil
}

// auditRecorder saves audit entries to the store and appends them as json
// lines to the rotated log file.
type auditRecorder struct {
	store *storage.AuditLog
	wr    io.Writer
}

// Save implements events.Auditor
func (a *auditRecorder) Save(ctx context.Context, entry storage.AuditEntry) error {
	m := struct {
		TimeStamp string `json:"ts"`
		UserName  string `json:"user_name"`
		UserID    int64  `json:"user_id"`
		Verdict   string `json:"verdict"`
		Reason    string `json:"reason,omitempty"`
		Text      string `json:"text"`
	}{
		TimeStamp: time.Now().In(time.Local).Format(time.RFC3339),
		UserName:  entry.UserName,
		UserID:    entry.UserID,
		Verdict:   entry.Verdict,
		Reason:    entry.Reason,
		Text:      strings.TrimSpace(strings.ReplaceAll(entry.Text, "\n", " ")),
	}
	if line, err := json.Marshal(&m); err == nil {
		if _, err := a.wr.Write(append(line, '\n')); err != nil {
			log.Printf("[WARN] can't write to audit log, %v", err)
		}
	}
	return a.store.Save(ctx, entry)
}

// makeAuditLogWriter creates the rotated json-lines audit log writer
func makeAuditLogWriter(opts options) (io.WriteCloser, error) {
	if !opts.Logger.Enabled {
		return nopWriteCloser{io.Discard}, nil
	}

	sizeParse := func(inp string) (uint64, error) {
		if inp == "" {
			return 0, errors.New("empty value")
		}
		for i, sfx := range []string{"k", "m", "g", "t"} {
			if strings.HasSuffix(inp, strings.ToUpper(sfx)) || strings.HasSuffix(inp, strings.ToLower(sfx)) {
				val, err := strconv.Atoi(inp[:len(inp)-1])
				if err != nil {
					return 0, fmt.Errorf("can't parse %s: %w", inp, err)
				}
				return uint64(float64(val) * math.Pow(float64(1024), float64(i+1))), nil
			}
		}
		return strconv.ParseUint(inp, 10, 64)
	}

	maxSize, perr := sizeParse(opts.Logger.MaxSize)
	if perr != nil {
		return nil, fmt.Errorf("can't parse logger MaxSize: %w", perr)
	}

	maxSize /= 1048576

	log.Printf("[INFO] audit logger enabled for %s, max size %dM", opts.Logger.FileName, maxSize)
	return &lumberjack.Logger{
		Filename:   opts.Logger.FileName,
		MaxSize:    int(maxSize), // in MB
		MaxBackups: opts.Logger.MaxBackups,
		Compress:   true,
		LocalTime:  true,
	}, nil
}

type nopWriteCloser struct{ io.Writer }

func (n nopWriteCloser) Close() error { return nil }

func setupLog(dbg bool, secrets ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	nonEmpty := []string{}
	for _, s := range secrets {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) > 0 {
		logOpts = append(logOpts, lgr.Secret(nonEmpty...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
