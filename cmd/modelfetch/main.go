package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/apoorvam/goterminal"
	"github.com/dustin/go-humanize"

	"github.com/edgekit-ml/edgekit/internal/catalog"
	"github.com/edgekit-ml/edgekit/internal/config"
	"github.com/edgekit-ml/edgekit/internal/convert"
	"github.com/edgekit-ml/edgekit/internal/hub"
	"github.com/edgekit-ml/edgekit/pkg/models"
)

// modelfetch downloads Hugging Face models for local inference and, when the
// repo has no ONNX export, drives the optimum exporter to produce one.

var (
	configPath string
	repo       string
	revision   string
	task       string
	outDir     string
	doConvert  bool
	tokenEnv   string
	endpoint   string
	python     string
)

func init() {
	flag.StringVar(&configPath, "config", config.GetConfigPath(), "Path to configuration file")
	flag.StringVar(&repo, "repo", "", "Hub repository, e.g. dslim/bert-base-NER")
	flag.StringVar(&revision, "revision", "main", "Branch, tag or commit to fetch")
	flag.StringVar(&task, "task", "token-classification", "Model task (passed to the exporter)")
	flag.StringVar(&outDir, "out", "", "Destination directory (default: <model_dir>/<owner>--<name>)")
	flag.BoolVar(&doConvert, "convert", false, "Convert with optimum when the repo has no ONNX export")
	flag.StringVar(&tokenEnv, "token-env", "", "Environment variable holding the hub token; overrides config")
	flag.StringVar(&endpoint, "endpoint", "", "Hub endpoint; overrides config")
	flag.StringVar(&python, "python", "python3", "Python interpreter for conversion")
}

func main() {
	flag.Parse()

	if repo == "" {
		fmt.Fprintln(os.Stderr, "Error: -repo required")
		fmt.Fprintln(os.Stderr, "\nUsage: modelfetch -repo dslim/bert-base-NER [-convert]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if endpoint != "" {
		cfg.HubEndpoint = endpoint
	}
	if tokenEnv != "" {
		cfg.TokenEnv = tokenEnv
	}
	if outDir == "" {
		outDir = hub.LocalDir(cfg.ModelDir, repo)
	}

	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer cat.Close()

	writer := goterminal.New(os.Stdout)
	client := hub.NewClient(cfg.HubEndpoint,
		hub.WithToken(os.Getenv(cfg.TokenEnv)),
		hub.WithProgress(func(path string, written, total int64) {
			writer.Clear()
			if total > 0 {
				fmt.Fprintf(writer, "Downloading %s... %s / %s\n",
					path, humanize.Bytes(uint64(written)), humanize.Bytes(uint64(total)))
			} else {
				fmt.Fprintf(writer, "Downloading %s... %s\n", path, humanize.Bytes(uint64(written)))
			}
			writer.Print()
		}),
	)

	ctx := context.Background()
	fmt.Printf("Fetching %s@%s from %s\n", repo, revision, cfg.HubEndpoint)

	manifest, err := client.FetchModel(ctx, repo, revision, task, outDir)
	writer.Reset()
	if err != nil {
		cat.RecordSync("fetch "+repo, "failed", err.Error())
		log.Fatalf("Fetch failed: %v", err)
	}
	cat.RecordSync("fetch "+repo, "success", "")

	for _, f := range manifest.Files {
		fmt.Printf("✓ %s\n", f)
	}

	if !manifest.Converted {
		if !doConvert {
			fmt.Println("\nRepository has no ONNX export. Re-run with -convert to produce one.")
			os.Exit(1)
		}
		if err := runConversion(ctx, manifest); err != nil {
			cat.RecordSync("convert "+repo, "failed", err.Error())
			log.Fatalf("Conversion failed: %v", err)
		}
		cat.RecordSync("convert "+repo, "success", "")
		manifest.Converted = true
		if err := models.WriteManifest(outDir, manifest); err != nil {
			log.Fatalf("Failed to update manifest: %v", err)
		}
		fmt.Println("✓ Converted to ONNX")
	}

	rec := models.ModelRecord{
		ID:           repo,
		Repo:         repo,
		Task:         task,
		Revision:     manifest.Revision,
		Path:         outDir,
		SizeBytes:    dirSize(outDir),
		SHA:          manifest.Revision,
		DownloadedAt: time.Now(),
	}
	if err := cat.Put(rec); err != nil {
		log.Fatalf("Failed to record model: %v", err)
	}

	fmt.Printf("\n✓ %s ready (%s)\n", repo, humanize.Bytes(uint64(rec.SizeBytes)))
	fmt.Printf("Run: edgekit -model %q \"your text here\"\n", repo)
}

func runConversion(ctx context.Context, manifest *models.Manifest) error {
	conv := convert.New()
	conv.Python = python

	fmt.Println("\nNo ONNX export found, converting with optimum...")
	if err := conv.Check(ctx); err != nil {
		return err
	}
	return conv.Run(ctx, manifest.Repo, manifest.Task, outDir)
}

func dirSize(dir string) int64 {
	var total int64
	filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}
