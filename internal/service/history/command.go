package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/oshokin/smart-lock/internal/config"
	"github.com/oshokin/smart-lock/internal/domain/presence"
	"github.com/oshokin/smart-lock/internal/logger"
	"github.com/oshokin/smart-lock/internal/repository/episode"
)

// Options controls the history command.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// StorePath overrides the database path from the settings.
	StorePath string
	// Limit is the number of episodes to print.
	Limit int
	// Output receives the table.
	Output io.Writer
}

// errNoStore indicates that the episode log is disabled.
var errNoStore = errors.New("episode store is not configured")

// Run prints the newest episodes, newest first.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "smart-lock-history")

	storePath := opts.StorePath
	if storePath == "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		storePath = cfg.Store.Path
	}

	if storePath == "" {
		return errNoStore
	}

	repo, err := episode.Open(ctx, storePath)
	if err != nil {
		return fmt.Errorf("open episode store: %w", err)
	}

	defer func() {
		_ = repo.Close()
	}()

	episodes, err := repo.List(ctx, opts.Limit)
	if err != nil {
		return err
	}

	return Print(opts.Output, episodes)
}

// Print writes episodes as an aligned table.
func Print(w io.Writer, episodes []presence.Episode) error {
	table := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(table, "STARTED\tOUTCOME\tLABEL\tCONFIDENCE\tLOCK\tDURATION\tFAILURES")

	for _, e := range episodes {
		_, _ = fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.StartedAt.Local().Format(time.DateTime),
			e.Outcome,
			dash(e.Label),
			strconv.FormatFloat(e.Confidence, 'f', 2, 64),
			dash(positionText(e)),
			e.Duration().Round(time.Millisecond),
			dash(failures(e)),
		)
	}

	return table.Flush()
}

func positionText(e presence.Episode) string {
	if e.Outcome == presence.OutcomeAborted {
		return ""
	}

	return e.Position.String()
}

func failures(e presence.Episode) string {
	stages := []struct {
		stage presence.Stage
		text  string
	}{
		{presence.StageCapture, e.CaptureError},
		{presence.StageClassify, e.ClassifierError},
		{presence.StageActuate, e.ActuatorError},
		{presence.StageNotify, e.NotifyError},
	}

	result := ""

	for _, s := range stages {
		if s.text == "" {
			continue
		}

		if result != "" {
			result += "; "
		}

		result += string(s.stage) + ": " + s.text
	}

	return result
}

func dash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
