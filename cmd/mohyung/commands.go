package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/cbcruk/mohyung"
)

// maxListed bounds the paths printed per category unless --verbose is set.
const maxListed = 10

func runPack(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("pack", pflag.ContinueOnError)
	source := fs.StringP("source", "s", "", "node_modules directory to pack (default ./node_modules)")
	output := fs.StringP("output", "o", "", "archive to write (default ./node_modules.db)")
	level := fs.IntP("compression", "c", 0, "compression level 1-9 (default 6)")
	codec := fs.String("codec", "", "compression codec: zstd, gzip, or lz4 (default zstd)")
	lockfile := fs.Bool("include-lockfile", false, "record the fingerprint of the project lockfile")
	workers := fs.IntP("jobs", "j", 0, "number of parallel workers (default: number of CPUs)")
	if err := a.parse(fs, args); err != nil {
		return err
	}

	cfg := a.cfg
	if fs.Changed("source") {
		cfg.Source = *source
	}
	if fs.Changed("output") {
		cfg.Archive = *output
	}
	if fs.Changed("compression") {
		cfg.Compression.Level = *level
	}
	if fs.Changed("codec") {
		cfg.Compression.Codec = *codec
	}
	if fs.Changed("include-lockfile") {
		cfg.Lockfile.Include = *lockfile
	}
	if fs.Changed("jobs") {
		cfg.Workers = *workers
	}

	c, err := mohyung.ParseCodec(cfg.Compression.Codec)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stderr, "Packing %s...\n", cfg.Source)
	res, err := mohyung.Pack(ctx, cfg.Source, cfg.Archive,
		mohyung.PackWithLevel(cfg.Compression.Level),
		mohyung.PackWithCodec(c),
		mohyung.PackWithLockfile(cfg.Lockfile.Include),
		mohyung.PackWithLockfileNames(cfg.Lockfile.Names...),
		mohyung.PackWithWorkers(cfg.Workers),
		mohyung.PackWithLogger(a.log),
		mohyung.PackWithProgress(progressLogger(a.log)),
	)
	if err != nil {
		return err
	}

	lines := []string{
		fmt.Sprintf("Output: %s", res.Archive),
		fmt.Sprintf("Packages: %d (%s layout)", res.Packages, res.Layout),
		fmt.Sprintf("Files: %d", res.Files),
		fmt.Sprintf("Original: %s", humanize.IBytes(res.TotalSize)),
		fmt.Sprintf("Archive size: %s", humanize.IBytes(uint64(res.ArchiveSize))), //nolint:gosec // file sizes are non-negative
		fmt.Sprintf("Compression: %.1f%%", res.CompressionRatio()),
		fmt.Sprintf("Deduplicated: %d", res.Deduplicated),
	}
	if res.Skipped > 0 {
		lines = append(lines, fmt.Sprintf("Skipped (unreadable): %d", res.Skipped))
	}
	if res.Lockfile != "" {
		lines = append(lines, fmt.Sprintf("Lockfile: %s", res.Lockfile))
	}
	lines = append(lines, fmt.Sprintf("Time: %.1fs", res.Duration.Seconds()))
	fmt.Fprintln(a.stderr, box("Pack Complete", lines, colorSuccess))
	return nil
}

func runUnpack(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("unpack", pflag.ContinueOnError)
	input := fs.StringP("input", "i", "", "archive to read (default ./node_modules.db)")
	output := fs.StringP("output", "o", "", "directory to restore into (default ./node_modules)")
	force := fs.BoolP("force", "f", false, "remove the output directory if it exists")
	preserveTimes := fs.Bool("preserve-times", false, "restore recorded modification times")
	workers := fs.IntP("jobs", "j", 0, "number of parallel writers (default: number of CPUs)")
	if err := a.parse(fs, args); err != nil {
		return err
	}

	cfg := a.cfg
	if fs.Changed("input") {
		cfg.Archive = *input
	}
	if fs.Changed("output") {
		cfg.Source = *output
	}
	if fs.Changed("preserve-times") {
		cfg.Extract.PreserveTimes = *preserveTimes
	}
	if fs.Changed("jobs") {
		cfg.Workers = *workers
	}

	info, err := mohyung.Inspect(ctx, cfg.Archive)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stderr, box("Archive Info", infoLines(info), colorInfo))

	start := time.Now()
	res, err := mohyung.Unpack(ctx, cfg.Archive, cfg.Source,
		mohyung.UnpackWithForce(*force),
		mohyung.UnpackWithWorkers(cfg.Workers),
		mohyung.UnpackWithCacheThreshold(cfg.Extract.CacheThreshold),
		mohyung.UnpackWithBatchBytes(cfg.Extract.BatchBytes),
		mohyung.UnpackWithPreserveTimes(cfg.Extract.PreserveTimes),
		mohyung.UnpackWithLogger(a.log),
		mohyung.UnpackWithProgress(progressLogger(a.log)),
	)
	if err != nil {
		if errors.Is(err, mohyung.ErrOutputExists) {
			return fmt.Errorf("%w; use --force to overwrite", err)
		}
		return err
	}

	lines := []string{
		fmt.Sprintf("Extracted: %d files (%s)", res.Written, humanize.IBytes(res.TotalBytes)),
		fmt.Sprintf("Time: %.1fs", time.Since(start).Seconds()),
	}
	color := colorSuccess
	if res.Skipped > 0 || len(res.Failures) > 0 {
		color = colorWarning
		lines = append(lines, fmt.Sprintf("Missing blobs: %d", res.Skipped), fmt.Sprintf("Failed: %d", len(res.Failures)))
		for i, f := range res.Failures {
			if i == maxListed && !a.verbose {
				lines = append(lines, "  ...")
				break
			}
			lines = append(lines, fmt.Sprintf("  ! %s: %v", f.Path, f.Err))
		}
	}
	fmt.Fprintln(a.stderr, box("Unpack Complete", lines, color))
	return nil
}

func runStatus(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("status", pflag.ContinueOnError)
	db := fs.String("db", "", "archive to compare against (default ./node_modules.db)")
	tree := fs.StringP("node-modules", "n", "", "node_modules directory to check (default ./node_modules)")
	untracked := fs.Bool("untracked", false, "also list package files that are not in the archive")
	workers := fs.IntP("jobs", "j", 0, "number of parallel workers (default: number of CPUs)")
	if err := a.parse(fs, args); err != nil {
		return err
	}

	cfg := a.cfg
	if fs.Changed("db") {
		cfg.Archive = *db
	}
	if fs.Changed("node-modules") {
		cfg.Source = *tree
	}
	if fs.Changed("untracked") {
		cfg.Status.Untracked = *untracked
	}
	if fs.Changed("jobs") {
		cfg.Workers = *workers
	}

	res, err := mohyung.Status(ctx, cfg.Archive, cfg.Source,
		mohyung.StatusWithUntracked(cfg.Status.Untracked),
		mohyung.StatusWithWorkers(cfg.Workers),
		mohyung.StatusWithLogger(a.log),
		mohyung.StatusWithProgress(progressLogger(a.log)),
	)
	if errors.Is(err, mohyung.ErrTreeNotFound) {
		fmt.Fprintf(a.stderr, "node_modules not found: %s\n", cfg.Source)
		fmt.Fprintln(a.stderr, `Run "mohyung unpack" to restore from the archive.`)
		return nil
	}
	if err != nil {
		return err
	}

	lines := []string{
		fmt.Sprintf("Unchanged: %d", res.Unchanged),
		fmt.Sprintf("Modified: %d", len(res.Modified)),
		fmt.Sprintf("Only in archive: %d", len(res.OnlyInArchive)),
	}
	if cfg.Status.Untracked {
		lines = append(lines, fmt.Sprintf("Only in node_modules: %d", len(res.OnlyInFilesystem)))
	}
	if res.LockfileDrift {
		lines = append(lines, "Lockfile: changed since pack")
	}

	truncated := false
	lines, truncated = appendPaths(lines, "Modified files:", "M", res.Modified, a.verbose, truncated)
	lines, truncated = appendPaths(lines, "Only in archive (deleted locally):", "D", res.OnlyInArchive, a.verbose, truncated)
	lines, truncated = appendPaths(lines, "Only in node_modules:", "?", res.OnlyInFilesystem, a.verbose, truncated)
	if truncated {
		lines = append(lines, "", "(Use --verbose for the full list)")
	}

	color := colorSuccess
	if !res.Clean() || res.LockfileDrift {
		color = colorWarning
	}
	fmt.Fprintln(a.stderr, box("Status", lines, color))
	if res.Clean() && !res.LockfileDrift {
		fmt.Fprintln(a.stderr, "All files match!")
	}
	return nil
}

// appendPaths lists paths under heading. Lists longer than maxListed are
// omitted unless all is set, and truncated is set instead.
func appendPaths(lines []string, heading, marker string, paths []string, all, truncated bool) ([]string, bool) {
	if len(paths) == 0 {
		return lines, truncated
	}
	if len(paths) > maxListed && !all {
		return lines, true
	}
	lines = append(lines, "", heading)
	for _, p := range paths {
		lines = append(lines, fmt.Sprintf("  %s %s", marker, p))
	}
	return lines, truncated
}

func runInfo(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("info", pflag.ContinueOnError)
	db := fs.String("db", "", "archive to inspect (default ./node_modules.db)")
	list := fs.BoolP("list", "l", false, "list archived packages and files")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if fs.Changed("db") {
		a.cfg.Archive = *db
	}

	info, err := mohyung.Inspect(ctx, a.cfg.Archive)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, box("Archive Info", infoLines(info), colorInfo))
	if !*list {
		return nil
	}

	contents, err := mohyung.List(ctx, a.cfg.Archive)
	if err != nil {
		return err
	}
	writeContents(a.stdout, contents)
	return nil
}

// writeContents prints each package followed by its files, indented.
func writeContents(w io.Writer, c *mohyung.Contents) {
	byPackage := make(map[string][]mohyung.FileRecord, len(c.Packages))
	for _, f := range c.Files {
		byPackage[f.PackagePath] = append(byPackage[f.PackagePath], f)
	}
	for _, p := range c.Packages {
		fmt.Fprintf(w, "%s@%s (%s)\n", p.Name, p.Version, p.Path)
		for _, f := range byPackage[p.Path] {
			fmt.Fprintf(w, "  %04o %s\n", f.Mode, f.RelativePath)
		}
	}
}

func infoLines(info *mohyung.ArchiveInfo) []string {
	created := "unknown"
	if !info.CreatedAt.IsZero() {
		created = info.CreatedAt.Format(time.RFC3339)
	}
	lines := []string{
		fmt.Sprintf("Created: %s", created),
		fmt.Sprintf("Source: %s", info.SourcePath),
		fmt.Sprintf("Packages: %d", info.Packages),
		fmt.Sprintf("Files: %d", info.Files),
		fmt.Sprintf("Blobs: %d", info.Blobs.TotalBlobs),
		fmt.Sprintf("Original size: %s", humanize.IBytes(info.Blobs.TotalOriginalSize)),
		fmt.Sprintf("Compressed size: %s (%s)", humanize.IBytes(info.Blobs.TotalCompressedSize), info.Codec),
		fmt.Sprintf("Archive size: %s", humanize.IBytes(uint64(info.Size))), //nolint:gosec // file sizes are non-negative
	}
	if info.LockfileName != "" {
		lines = append(lines, fmt.Sprintf("Lockfile: %s", info.LockfileName))
	}
	return lines
}
