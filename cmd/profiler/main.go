package main

import (
	"context"
	"fmt"
	"log"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/felixge/fgprof"
	"github.com/spf13/pflag"

	"github.com/cbcruk/mohyung"
)

type config struct {
	mode        string
	packages    int
	files       int
	fileSize    int
	codec       string
	level       int
	pattern     string
	workers     int
	fgProfile   string
	duration    time.Duration
	iterations  int
	pprofAddr   string
	cpuProfile  string
	memProfile  string
	traceFile   string
	tempDir     string
	keepTemp    bool
	randomSeed  int64
	modifyEvery int
}

//nolint:gocognit,gocyclo // main function complexity is acceptable for CLI tool
func main() {
	cfg := parseFlags()

	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", cfg.pprofAddr)
			//nolint:gosec // intentional pprof server without timeouts for profiling
			if err := http.ListenAndServe(cfg.pprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	dir, cleanup, err := setupTempDir(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler
	}

	tree := filepath.Join(dir, "node_modules")
	archive := filepath.Join(dir, "node_modules.db")
	if err := makeTree(tree, cfg); err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is intentional - cleanup is best-effort
	}

	codec, err := mohyung.ParseCodec(cfg.codec)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if cfg.mode != "pack" {
		if _, err := mohyung.Pack(ctx, tree, archive, packOptions(cfg, codec)...); err != nil {
			log.Fatal(err)
		}
	}
	if cfg.mode == "status" && cfg.modifyEvery > 0 {
		if err := touchTree(tree, cfg); err != nil {
			log.Fatal(err)
		}
	}

	var stopFG func() error
	if cfg.fgProfile != "" {
		fgFile, fgErr := os.Create(cfg.fgProfile)
		if fgErr != nil {
			log.Fatal(fgErr)
		}
		stopFG = fgprof.Start(fgFile, fgprof.FormatPprof)
		defer func() {
			if err := stopFG(); err != nil {
				log.Printf("fgprof stop error: %v", err)
			}
			_ = fgFile.Close()
		}()
	}

	if cfg.cpuProfile != "" {
		cpuFile, cpuErr := os.Create(cfg.cpuProfile)
		if cpuErr != nil {
			log.Fatal(cpuErr)
		}
		if cpuErr = pprof.StartCPUProfile(cpuFile); cpuErr != nil {
			log.Fatal(cpuErr)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	if cfg.traceFile != "" {
		traceFile, traceErr := os.Create(cfg.traceFile)
		if traceErr != nil {
			log.Fatal(traceErr)
		}
		if traceErr = trace.Start(traceFile); traceErr != nil {
			log.Fatal(traceErr)
		}
		defer func() {
			trace.Stop()
			_ = traceFile.Close()
		}()
	}

	stats, err := runProfile(ctx, cfg, codec, tree, archive, dir)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(cfg.memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		_ = f.Close()
	}

	fmt.Printf("mode=%s ops=%d files=%d bytes=%d elapsed=%s throughput=%.2f MB/s\n",
		cfg.mode,
		stats.ops,
		stats.files,
		stats.bytes,
		stats.elapsed,
		float64(stats.bytes)/(1024*1024)/stats.elapsed.Seconds(),
	)
}

type profileStats struct {
	ops     int
	files   int
	bytes   int64
	elapsed time.Duration
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func runProfile(ctx context.Context, cfg config, codec mohyung.Codec, tree, archive, dir string) (profileStats, error) {
	start := time.Now()
	var stats profileStats

	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return stats.ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}

	switch cfg.mode {
	case "pack":
		out := filepath.Join(dir, "profile.db")
		for shouldContinue() {
			res, err := mohyung.Pack(ctx, tree, out, packOptions(cfg, codec)...)
			if err != nil {
				return profileStats{}, err
			}
			stats.files += res.Files
			stats.bytes += int64(res.TotalSize) //nolint:gosec // tree size is bounded by the generated dataset
			stats.ops++
		}

	case "unpack":
		out := filepath.Join(dir, "restored")
		for shouldContinue() {
			res, err := mohyung.Unpack(ctx, archive, out,
				mohyung.UnpackWithForce(true),
				mohyung.UnpackWithWorkers(cfg.workers),
			)
			if err != nil {
				return profileStats{}, err
			}
			stats.files += res.Written
			stats.bytes += int64(res.TotalBytes) //nolint:gosec // tree size is bounded by the generated dataset
			stats.ops++
		}

	case "status":
		for shouldContinue() {
			res, err := mohyung.Status(ctx, archive, tree, mohyung.StatusWithWorkers(cfg.workers))
			if err != nil {
				return profileStats{}, err
			}
			stats.files += res.Unchanged + len(res.Modified) + len(res.OnlyInArchive)
			stats.ops++
		}

	default:
		return profileStats{}, fmt.Errorf("unknown mode: %s", cfg.mode)
	}

	stats.elapsed = time.Since(start)
	return stats, nil
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func packOptions(cfg config, codec mohyung.Codec) []mohyung.PackOption {
	return []mohyung.PackOption{
		mohyung.PackWithCodec(codec),
		mohyung.PackWithLevel(cfg.level),
		mohyung.PackWithWorkers(cfg.workers),
	}
}

func parseFlags() config {
	var cfg config
	fs := pflag.NewFlagSet("profiler", pflag.ExitOnError)
	fs.StringVar(&cfg.mode, "mode", "pack", "mode: pack, unpack, status")
	fs.IntVar(&cfg.packages, "packages", 64, "number of packages")
	fs.IntVar(&cfg.files, "files", 32, "files per package")
	fs.IntVar(&cfg.fileSize, "file-size", 8<<10, "file size in bytes")
	fs.StringVar(&cfg.codec, "codec", "zstd", "codec: zstd, gzip, lz4")
	fs.IntVar(&cfg.level, "level", mohyung.DefaultLevel, "compression level")
	fs.StringVar(&cfg.pattern, "pattern", "compressible", "pattern: compressible or random")
	fs.IntVar(&cfg.workers, "workers", 0, "workers: 0 uses GOMAXPROCS")
	fs.StringVar(&cfg.fgProfile, "fgprofile", "", "write fgprof (wall clock) profile to file")
	fs.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	fs.IntVar(&cfg.iterations, "iterations", 0, "number of iterations to run")
	fs.StringVar(&cfg.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	fs.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	fs.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	fs.StringVar(&cfg.traceFile, "trace", "", "write trace to file")
	fs.StringVar(&cfg.tempDir, "temp-dir", "", "directory to use for dataset")
	fs.BoolVar(&cfg.keepTemp, "keep-temp", false, "keep temp dir after run")
	fs.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	fs.IntVar(&cfg.modifyEvery, "modify-every", 0, "status mode: rewrite every Nth file after packing")
	_ = fs.Parse(os.Args[1:])
	return cfg
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func setupTempDir(cfg config) (string, func() error, error) {
	if cfg.tempDir != "" {
		return cfg.tempDir, nil, os.MkdirAll(cfg.tempDir, 0o755) //nolint:gosec // 0o755 is intentional for profiler temp dirs
	}
	dir, err := os.MkdirTemp("", "mohyung-profiler-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() error {
		if cfg.keepTemp {
			return nil
		}
		return os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}

const license = "MIT License\n\nPermission is hereby granted, free of charge, to any person obtaining a copy.\n"

// makeTree writes a flat node_modules tree. Every package carries the same
// LICENSE so archives exercise blob deduplication.
//
//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func makeTree(root string, cfg config) error {
	rng := rand.New(rand.NewSource(cfg.randomSeed)) //nolint:gosec // intentional use for reproducible benchmarks
	for p := range cfg.packages {
		name := fmt.Sprintf("pkg%04d", p)
		if p%4 == 0 {
			name = fmt.Sprintf("@scope%02d/%s", p%16, name)
		}
		pkgDir := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Join(pkgDir, "lib"), 0o755); err != nil { //nolint:gosec // 0o755 is intentional for profiler
			return err
		}
		descriptor := fmt.Sprintf(`{"name":%q,"version":"1.0.%d"}`, name, p)
		if err := writeFile(filepath.Join(pkgDir, "package.json"), []byte(descriptor)); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(pkgDir, "LICENSE"), []byte(license)); err != nil {
			return err
		}
		for i := range cfg.files {
			content, err := fileContent(rng, cfg, p*cfg.files+i)
			if err != nil {
				return err
			}
			if err := writeFile(filepath.Join(pkgDir, "lib", fmt.Sprintf("mod%04d.js", i)), content); err != nil {
				return err
			}
		}
	}
	return nil
}

// touchTree rewrites every modifyEvery-th library file so status has drift
// to report.
//
//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func touchTree(root string, cfg config) error {
	for p := range cfg.packages {
		name := fmt.Sprintf("pkg%04d", p)
		if p%4 == 0 {
			name = fmt.Sprintf("@scope%02d/%s", p%16, name)
		}
		for i := range cfg.files {
			if (p*cfg.files+i)%cfg.modifyEvery != 0 {
				continue
			}
			path := filepath.Join(root, filepath.FromSlash(name), "lib", fmt.Sprintf("mod%04d.js", i))
			if err := writeFile(path, []byte("// modified\n")); err != nil {
				return err
			}
		}
	}
	return nil
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func fileContent(rng *rand.Rand, cfg config, i int) ([]byte, error) {
	content := make([]byte, cfg.fileSize)
	switch cfg.pattern {
	case "random":
		if _, err := rng.Read(content); err != nil {
			return nil, err
		}
	default:
		fillByte := byte('a' + (i % 26))
		for j := range content {
			content[j] = fillByte
		}
		if len(content) > 0 {
			content[0] = byte(i)
		}
	}
	return content, nil
}

func writeFile(path string, content []byte) error {
	return os.WriteFile(path, content, 0o644) //nolint:gosec // 0o644 is intentional for profiler test files
}
