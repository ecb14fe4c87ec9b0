package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/sadopc/taskdeck/internal/api"
	"github.com/sadopc/taskdeck/internal/config"
	"github.com/sadopc/taskdeck/internal/logging"
	"github.com/sadopc/taskdeck/internal/store"
	"github.com/sadopc/taskdeck/internal/tasks"
	"github.com/sadopc/taskdeck/internal/tui"
)

// environment is everything a command needs, opened once per run.
type environment struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   *store.Store
	client  *api.Client
	tasks   *tasks.Store
	notices tui.NoticeQueue // nil outside the TUI

	closers []io.Closer
}

// openEnvironment wires config, logging, the local database, the API client
// and the task store. With interactive set, notices are queued for the TUI;
// otherwise successes are printed to out.
func openEnvironment(cfg *config.Config, console, interactive bool, out io.Writer) (*environment, error) {
	log, logCloser, err := logging.New(cfg.LogFile, cfg.LogLevel, console)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	client := api.New(cfg.APIURL, st,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(log.With().Str("component", "api").Logger()),
	)

	e := &environment{
		cfg:     cfg,
		log:     log,
		store:   st,
		client:  client,
		closers: []io.Closer{st, logCloser},
	}

	notifiers := tasks.Notifiers{recordNotices(st, log)}
	if interactive {
		e.notices = tui.NewNoticeQueue(32)
		notifiers = append(notifiers, e.notices)
	} else {
		notifiers = append(notifiers, printNotices(out))
	}
	e.tasks = tasks.NewStore(client,
		tasks.WithNotifier(notifiers),
		tasks.WithLogger(log.With().Str("component", "tasks").Logger()),
	)
	return e, nil
}

func (e *environment) Close() error {
	var errs []error
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// recordNotices keeps every notice in the local database for the
// notifications screen.
func recordNotices(s *store.Store, log zerolog.Logger) tasks.Notifier {
	return tasks.NotifierFunc(func(n tasks.Notice) {
		if _, err := s.AddNotification(n.Level.String(), n.Message, n.TaskID, n.At); err != nil {
			log.Warn().Err(err).Msg("record notification")
		}
	})
}

// printNotices echoes confirmations. Failures are returned as errors by
// the command and printed once by Execute.
func printNotices(w io.Writer) tasks.Notifier {
	return tasks.NotifierFunc(func(n tasks.Notice) {
		if n.Level == tasks.LevelSuccess {
			fmt.Fprintln(w, "✓ "+n.Message)
		}
	})
}
