package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ncm-converter/internal/convert"
	"ncm-converter/internal/decoder"
	"ncm-converter/internal/domain"
	"ncm-converter/internal/jobs"
	"ncm-converter/internal/runlock"
	"ncm-converter/internal/session"
)

const ncmExtension = ".ncm"

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var decoderBinary string
	var openAfter bool

	cmd := &cobra.Command{
		Use:   "convert <file|dir>...",
		Short: "Convert NCM files and report the result of each",
		Long: "Convert every given .ncm file, and every .ncm file found under given directories,\n" +
			"into the output directory. Exits non-zero when any file fails.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			inputs, err := expandInputs(args)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no %s files found in %s", ncmExtension, strings.Join(args, ", "))
			}

			target := strings.TrimSpace(outputDir)
			if target == "" {
				target = cfg.Output.Dir
			}
			binary := strings.TrimSpace(decoderBinary)
			if binary == "" {
				binary = cfg.Decoder.Binary
			}

			dec := decoder.NewExecDecoder(binary, cfg.Decoder.Args, logger)
			opts := session.Options{
				Logger:    logger,
				MaxEvents: 2*len(inputs) + 16,
			}
			if cfg.Run.LockPath != "" {
				opts.Lock = runlock.New(cfg.Run.LockPath)
			}
			controller := session.New(convert.New(dec, logger), opts)
			controller.AddFiles(inputs...)
			controller.SetOutputDir(target)

			report, err := runConversion(controller, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderResults(report))
			if report.runErr != "" {
				return fmt.Errorf("conversion failed: %s", report.runErr)
			}

			if openAfter {
				if err := controller.OpenOutputDir(); err != nil {
					logger.Warn("open output directory failed", "error", err)
				}
			}
			if report.failed > 0 {
				return fmt.Errorf("%d of %d file(s) failed", report.failed, report.total)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (defaults to output.dir from config)")
	cmd.Flags().StringVar(&decoderBinary, "decoder", "", "Decoder executable (defaults to decoder.binary from config)")
	cmd.Flags().BoolVar(&openAfter, "open", false, "Open the output directory when the run finishes")
	return cmd
}

// runReport collects what a finished run published.
type runReport struct {
	results   []jobs.Event
	failed    int
	runErr    string
	total     int
	attempted int
}

// runConversion starts a run, renders progress until it finishes, and returns
// the published results.
func runConversion(controller *session.Controller, progressOut io.Writer) (runReport, error) {
	updates, cancel := controller.Subscribe()
	defer cancel()

	run, err := controller.StartRun()
	if err != nil {
		return runReport{}, err
	}

	progress := newProgressRenderer(progressOut, run.Total)
	done := make(chan struct{})
	go func() {
		controller.Wait()
		close(done)
	}()

	show := func(ev jobs.Event) {
		if ev.RunID == run.ID && ev.Type == jobs.EventTypeProgress {
			progress.Update(ev.Percent)
		}
	}
	finished := false
	for !finished {
		select {
		case ev := <-updates:
			show(ev)
		case <-done:
			finished = true
		}
	}
	// everything the run published is already buffered
	for drained := false; !drained; {
		select {
		case ev := <-updates:
			show(ev)
		default:
			drained = true
		}
	}
	progress.Finish()

	report := runReport{total: run.Total}
	if summary, ok := controller.LastSummary(); ok {
		report.attempted = summary.Attempted()
	}
	for _, ev := range controller.Events(0) {
		if ev.RunID != run.ID {
			continue
		}
		switch ev.Type {
		case jobs.EventTypeJobResult:
			report.results = append(report.results, ev)
			if ev.JobStatus == domain.JobStatusFailed {
				report.failed++
			}
		case jobs.EventTypeRunError:
			report.runErr = ev.Message
		}
	}
	return report, nil
}

// renderResults formats one row per job plus a totals footer.
func renderResults(report runReport) string {
	rows := make([][]string, 0, len(report.results))
	var total uint64
	for _, ev := range report.results {
		size := "-"
		output := "-"
		detail := ""
		if ev.JobStatus == domain.JobStatusSucceeded {
			output = ev.OutputPath
			if info, err := os.Stat(ev.OutputPath); err == nil {
				total += uint64(info.Size())
				size = humanize.Bytes(uint64(info.Size()))
			}
		} else {
			detail = ev.Message
		}
		rows = append(rows, []string{ev.DisplayName, string(ev.JobStatus), output, size, detail})
	}

	succeeded := len(report.results) - report.failed
	return renderTable(tableSpec{
		headers: []string{"File", "Status", "Output", "Size", "Error"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		footer: []string{
			fmt.Sprintf("%d of %d file(s)", report.attempted, report.total),
			fmt.Sprintf("%d ok, %d failed", succeeded, report.failed),
			"",
			humanize.Bytes(total),
			"",
		},
	})
}

// expandInputs resolves files and directories to .ncm paths. Directory
// contents are walked recursively and sorted; explicit files are kept as given.
func expandInputs(args []string) ([]string, error) {
	var inputs []string
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve input %s: %w", arg, err)
		}
		if !info.IsDir() {
			inputs = append(inputs, arg)
			continue
		}

		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				if errors.Is(walkErr, fs.ErrPermission) {
					if d != nil && d.IsDir() {
						return fs.SkipDir
					}
					return nil
				}
				return walkErr
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ncmExtension) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", arg, err)
		}
		sort.Strings(found)
		inputs = append(inputs, found...)
	}
	return inputs, nil
}
