package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"imagededup/cleaner"
	"imagededup/config"
	"imagededup/database"
	"imagededup/executor"
	"imagededup/imageprocessor"
	"imagededup/logging"
	"imagededup/policy"
	"imagededup/scanner"
	"imagededup/signalhandler"
	"imagededup/similarity"
	"imagededup/types"
	"imagededup/utils"
	"imagededup/viewer"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var version = "dev"

// Exit codes
const (
	exitOK          = 0
	exitUsage       = 2
	exitScanFailed  = 3
	exitSetupFailed = 4
	exitInterrupted = signalhandler.ExitInterrupted
)

// exitError carries the process exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func fail(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps a command error to the process exit status
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// cobra's own argument and flag errors
	return exitUsage
}

func main() {
	runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

	cmd := newRootCmd(afero.NewOsFs())
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func newRootCmd(fsys afero.Fs) *cobra.Command {
	flagOptions := config.Default()
	var configPath string

	cmd := &cobra.Command{
		Use:   "imagededup <folder_path>",
		Short: "Find and remove near-duplicate images",
		Long: `Scan a folder recursively for images, group the ones that look alike and
remove all but one image of each group.

Two images are similar when their perceptual hashes differ in fewer than
--threshold bits. Each group is resolved pair by pair, either by asking
(--interactive) or by keeping the larger or smaller file.

Examples:
  imagededup ~/Pictures                              # keep the larger file of each pair
  imagededup ~/Pictures --auto_keep_smaller          # keep the smaller file instead
  imagededup ~/Pictures --trash_folder ~/dupes       # move instead of delete
  imagededup ~/Pictures --interactive --viewer feh   # decide each pair yourself
  imagededup ~/Pictures --dry_run --report run.db    # record what would happen

Recognised extensions: ` + strings.Join(imageprocessor.GetSupportedExtensions(), " "),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			options := config.Default()
			if configPath != "" {
				file, err := config.Load(fsys, configPath)
				if err != nil {
					return fail(exitUsage, err)
				}
				file.ApplyTo(&options)
			}
			overlayFlags(cmd.Flags(), &options, flagOptions)

			if err := options.Validate(); err != nil {
				return fail(exitUsage, err)
			}
			return handleRun(cmd, fsys, args[0], options)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "YAML file with default options")
	flags.IntVar(&flagOptions.Threshold, "threshold", flagOptions.Threshold, "images whose hashes differ in fewer bits are similar")
	flags.BoolVar(&flagOptions.Interactive, "interactive", false, "ask which image of each pair to remove")
	flags.BoolVar(&flagOptions.AutoKeepLarger, "auto_keep_larger", false, "keep the larger file of each pair (default)")
	flags.BoolVar(&flagOptions.AutoKeepSmaller, "auto_keep_smaller", false, "keep the smaller file of each pair")
	flags.StringVar(&flagOptions.TrashFolder, "trash_folder", "", "move removed images here instead of deleting them")
	flags.StringVar(&flagOptions.LogFile, "log_file", flagOptions.LogFile, "append the run log to this file")
	flags.StringVar(&flagOptions.Report, "report", "", "write a SQLite report of all actions to this file")
	flags.StringVar(&flagOptions.Hasher, "hasher", flagOptions.Hasher, fmt.Sprintf("perceptual hash %v", imageprocessor.AvailableHashers()))
	flags.IntVar(&flagOptions.HashSize, "hash_size", flagOptions.HashSize, "hash side length, 8 (64 bits) or 16 (256 bits)")
	flags.IntVar(&flagOptions.Workers, "workers", 0, "parallel decoders (default derived from CPU count)")
	flags.StringVar(&flagOptions.Viewer, "viewer", "", "external viewer opened with both images in interactive mode")
	flags.BoolVar(&flagOptions.DryRun, "dry_run", false, "decide and record, never touch files")
	flags.BoolVar(&flagOptions.Debug, "debug", false, "log per-image hash values")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("imagededup version %s\n", version)
		},
	})

	return cmd
}

// overlayFlags copies every flag given on the command line onto options
func overlayFlags(flags *pflag.FlagSet, options *config.Options, given config.Options) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "threshold":
			options.Threshold = given.Threshold
		case "interactive":
			options.Interactive = given.Interactive
		case "auto_keep_larger":
			options.AutoKeepLarger = given.AutoKeepLarger
		case "auto_keep_smaller":
			options.AutoKeepSmaller = given.AutoKeepSmaller
		case "trash_folder":
			options.TrashFolder = given.TrashFolder
		case "log_file":
			options.LogFile = given.LogFile
		case "report":
			options.Report = given.Report
		case "hasher":
			options.Hasher = given.Hasher
		case "hash_size":
			options.HashSize = given.HashSize
		case "workers":
			options.Workers = given.Workers
		case "viewer":
			options.Viewer = given.Viewer
		case "dry_run":
			options.DryRun = given.DryRun
		case "debug":
			options.Debug = given.Debug
		}
	})
}

func handleRun(cmd *cobra.Command, fsys afero.Fs, folderPath string, options config.Options) error {
	if err := utils.ValidateRoot(fsys, folderPath); err != nil {
		return fail(exitUsage, err)
	}

	hasher, err := imageprocessor.NewHasher(options.Hasher, options.HashSize)
	if err != nil {
		return fail(exitUsage, err)
	}

	runID := uuid.NewString()
	if err := logging.SetupLogger(options.LogFile, runID, options.Debug); err != nil {
		return fail(exitSetupFailed, fmt.Errorf("failed to setup logging: %w", err))
	}
	defer logging.CloseLogger()

	keepLarger := options.KeepLarger()
	mode := utils.ModeName(options.Interactive, keepLarger)
	startTime := time.Now()
	logging.LogInfo("Run %s started: folder=%s threshold=%d mode=%s hasher=%s trash=%q dry_run=%v",
		runID, folderPath, options.Threshold, mode, hasher.Name(), options.TrashFolder, options.DryRun)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stopSignals := signalhandler.SetupHandler(cancel)
	defer stopSignals()

	paths, err := scanner.ListImageFiles(fsys, folderPath)
	if err != nil {
		return fail(exitScanFailed, err)
	}
	paths = scanner.ExcludeFolder(paths, options.TrashFolder)

	workers := options.Workers
	if workers == 0 {
		workers = signalhandler.GetOptimalProcs()
	}

	registry := imageprocessor.NewImageLoaderRegistry()
	fingerprinter := imageprocessor.NewFingerprinter(registry, hasher)
	defer fingerprinter.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanning %d image files in %s...\n", len(paths), folderPath)

	index, stats, err := scanner.BuildIndex(ctx, paths, fingerprinter, scanner.ScanOptions{
		MaxWorkers:   workers,
		ShowProgress: true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return fail(exitInterrupted, errors.New("interrupted while hashing images"))
		}
		return fail(exitScanFailed, err)
	}

	groups := findGroups(index, options.Threshold)
	logging.LogInfo("Found %d groups of similar images", len(groups))

	resolver, closeResolver, err := newPolicy(fsys, options, keepLarger, cancel)
	if err != nil {
		return fail(exitSetupFailed, err)
	}
	defer closeResolver()

	remover := executor.New(fsys, executor.Options{
		QuarantineDir: options.TrashFolder,
		DryRun:        options.DryRun,
	})
	session := cleaner.NewSession(fsys, index, resolver, remover)
	summary, runErr := session.Run(ctx, groups)
	summary.RunID = runID
	summary.Scanned = stats.Scanned
	summary.Skipped = stats.Skipped
	summary.RawImages = stats.RawSeen

	printSummary(out, summary, options)
	logging.LogInfo("Run %s finished in %v: %d groups, %d actions, %d failures",
		runID, time.Since(startTime), summary.Groups, len(summary.Actions), len(summary.Failures()))

	if options.Report != "" {
		run := database.RunInfo{
			ID:         runID,
			Root:       folderPath,
			StartedAt:  startTime,
			FinishedAt: time.Now(),
			Threshold:  options.Threshold,
			Mode:       mode,
			Images:     stats.Hashed,
			Groups:     summary.Groups,
		}
		if err := database.Report(options.Report, run, summary.Actions); err != nil {
			return fail(exitSetupFailed, fmt.Errorf("failed to write report: %w", err))
		}
		fmt.Fprintf(out, "Report written to: %s\n", options.Report)
	}

	if runErr != nil {
		return fail(exitInterrupted, errors.New("interrupted, completed actions were kept"))
	}
	return nil
}

// findGroups compares all pairs with a progress bar
func findGroups(index *types.FingerprintIndex, threshold int) []types.DuplicateGroup {
	n := index.Len()
	bar := scanner.NewProgressBar(n*(n-1)/2, "Comparing", n > 1)
	grouper := similarity.NewGrouper(threshold)
	grouper.OnCompare = func() { bar.Add(1) }
	groups := grouper.Group(index)
	bar.Finish()
	return groups
}

// newPolicy builds the resolution policy and a func releasing what it holds
func newPolicy(fsys afero.Fs, options config.Options, keepLarger bool, cancel func()) (policy.Policy, func(), error) {
	if !options.Interactive {
		return policy.NewAutomatic(fsys, keepLarger), func() {}, nil
	}

	prompt, err := viewer.NewTerminalPrompt(fsys, viewer.Options{
		ViewerCommand: options.Viewer,
		OnInterrupt:   cancel,
	})
	if err != nil {
		return nil, nil, err
	}
	return policy.NewInteractive(prompt), func() { prompt.Close() }, nil
}

func printSummary(w io.Writer, summary types.Summary, options config.Options) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	fmt.Fprintln(w)
	bold.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "- Images scanned: %d\n", summary.Scanned)
	if summary.RawImages > 0 {
		fmt.Fprintf(w, "- RAW images: %d\n", summary.RawImages)
	}
	if summary.Skipped > 0 {
		yellow.Fprintf(w, "- Images skipped: %d\n", summary.Skipped)
	}
	fmt.Fprintf(w, "- Duplicate groups: %d\n", summary.Groups)
	bold.Fprintf(w, "Total similar images found: %d\n", summary.SimilarImages)

	if options.DryRun {
		yellow.Fprintf(w, "- Would remove: %d\n", summary.Count(types.ActionDryRun))
	}
	green.Fprintf(w, "- Removed: %d\n", summary.Count(types.ActionRemoved))
	green.Fprintf(w, "- Moved to %s: %d\n", displayFolder(options.TrashFolder), summary.Count(types.ActionQuarantined))
	fmt.Fprintf(w, "- Already gone: %d\n", summary.Count(types.ActionAlreadyGone))
	fmt.Fprintf(w, "- Pairs kept: %d\n", summary.KeptPairs)

	failures := summary.Failures()
	if len(failures) > 0 {
		red.Fprintf(w, "- Failures: %d\n", len(failures))
		for _, f := range failures {
			red.Fprintf(w, "    %s: %v\n", f.Path, f.Err)
		}
	}
	fmt.Fprintf(w, "Log file created: %s\n", options.LogFile)
}

func displayFolder(dir string) string {
	if dir == "" {
		return "trash folder"
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}
