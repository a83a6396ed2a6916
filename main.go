package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"

	"github.com/ptgott/mailsend/email"
	"github.com/ptgott/mailsend/journal"
	"github.com/ptgott/mailsend/storage"
	"github.com/ptgott/mailsend/userconfig"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Log with filename and line number. This writes to stderr, so it should
	// be thread safe.
	log.Logger = log.With().Caller().Logger()

	configPath := flag.String(
		"config",
		"./config.yaml",
		"path to a JSON or YAML file containing your configuration",
	)
	to := flag.String(
		"to",
		"",
		"recipient addresses separated by commas or semicolons",
	)
	subject := flag.String(
		"subject",
		"",
		"subject of the message",
	)
	body := flag.String(
		"body",
		"",
		"body of the message",
	)
	bodyFile := flag.String(
		"body-file",
		"",
		"path to a file containing the body of the message. Overrides -body",
	)
	isHTML := flag.Bool(
		"html",
		false,
		"treat the body as HTML",
	)
	from := flag.String(
		"from",
		"",
		"sender address. Defaults to the sender in your configuration",
	)
	level := flag.String(
		"level",
		"",
		`log level: "info", "debug", "warn", or "error". Overrides the configuration`,
	)
	failures := flag.Bool(
		"failures",
		false,
		"print recorded send failures as JSON lines instead of sending",
	)
	flag.Parse()

	os.Exit(run(runOptions{
		configPath: *configPath,
		to:         *to,
		subject:    *subject,
		body:       *body,
		bodyFile:   *bodyFile,
		isHTML:     *isHTML,
		from:       *from,
		level:      *level,
		failures:   *failures,
	}))
}

// runOptions holds the command-line flags.
type runOptions struct {
	configPath string
	to         string
	subject    string
	body       string
	bodyFile   string
	isHTML     bool
	from       string
	level      string
	failures   bool
}

// run carries out one invocation and returns the process exit code.
func run(opts runOptions) int {
	f, err := os.Open(opts.configPath)
	if err != nil {
		log.Error().
			Str("config-path", opts.configPath).
			Err(err).
			Msg("We can't open the application config file")
		return 1
	}

	config, err := userconfig.Parse(f)
	f.Close()
	if err != nil {
		log.Error().
			Err(err).
			Msg("Problem parsing your config")
		return 1
	}

	if opts.level != "" {
		config.LogLevel = opts.level
	}

	checkedConfig, err := config.CheckAndSetDefaults()
	if err != nil {
		log.Error().
			Err(err).
			Msg("Problem validating your config")
		return 1
	}

	// CheckAndSetDefaults has already validated the level
	lvl, _ := zerolog.ParseLevel(checkedConfig.LogLevel)
	log.Logger = log.Logger.Level(lvl)

	log.Info().Str("configPath", opts.configPath).Msg("successfully validated the config")

	db, err := openStorage(checkedConfig.Journal)
	if err != nil {
		log.Error().
			Err(err).
			Msg("can't open the failure journal")
		return 1
	}
	defer func() {
		if err := db.Cleanup(); err != nil {
			log.Warn().Err(err).Msg("can't clean up the failure journal")
		}
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("can't close the failure journal")
		}
	}()
	j := journal.New(db)

	if opts.failures {
		return printFailures(j)
	}

	if opts.bodyFile != "" {
		b, err := os.ReadFile(opts.bodyFile)
		if err != nil {
			log.Error().
				Str("body-file", opts.bodyFile).
				Err(err).
				Msg("can't read the message body")
			return 1
		}
		opts.body = string(b)
	}

	// Stop waiting on the server if we're interrupted before the send
	// begins.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := email.NewClient(checkedConfig.Email)
	defer c.Close()

	err = c.SendEmail(ctx, opts.to, opts.subject, opts.body, opts.isHTML, opts.from)
	if err == nil {
		log.Info().Str("to", opts.to).Msg("sent the message")
		return 0
	}

	var se *email.SendError
	if !errors.As(err, &se) {
		log.Error().Err(err).Msg("can't send the message")
		return 1
	}

	e, jerr := j.Record(se)
	switch {
	case jerr == nil:
		log.Info().Str("id", e.ID.String()).Msg("recorded the failure in the journal")
	case checkedConfig.Journal != nil:
		log.Warn().Err(jerr).Msg("can't record the failure in the journal")
	}
	return 1
}

// openStorage opens the database behind the failure journal, or a NoOpDB
// if no journal is configured.
func openStorage(c *storage.KVConfig) (storage.KeyValue, error) {
	if c == nil {
		return &storage.NoOpDB{}, nil
	}
	db, err := storage.NewBadgerDB(c)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// printFailures writes every journal entry to stdout as a line of JSON.
func printFailures(j *journal.Journal) int {
	entries, err := j.List()
	if err != nil {
		log.Error().Err(err).Msg("can't read the failure journal")
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			log.Error().Err(err).Msg("can't print a journal entry")
			return 1
		}
	}
	log.Debug().Int("count", len(entries)).Msg("printed the failure journal")
	return 0
}
