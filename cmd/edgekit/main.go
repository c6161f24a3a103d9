package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/edgekit-ml/edgekit/internal/catalog"
	"github.com/edgekit-ml/edgekit/internal/config"
	"github.com/edgekit-ml/edgekit/internal/hub"
	"github.com/edgekit-ml/edgekit/internal/ner"
	"github.com/edgekit-ml/edgekit/internal/trace"
)

var (
	version = "1.0.0"

	configPath    string
	modelID       string
	backendName   string
	minConfidence float64
	jsonOutput    bool
	listModels    bool
	showInfo      bool
	showVersion   bool
)

func init() {
	flag.StringVar(&configPath, "config", config.GetConfigPath(), "Path to configuration file")
	flag.StringVar(&modelID, "model", "", "Model id from the catalog, or a model directory path")
	flag.StringVar(&backendName, "backend", "", "Inference backend (onnx, coreml, nnapi); overrides config")
	flag.Float64Var(&minConfidence, "min-confidence", -1, "Drop entities below this confidence; overrides config")
	flag.BoolVar(&jsonOutput, "json", false, "Print entities as JSON")
	flag.BoolVar(&listModels, "list", false, "List cataloged models")
	flag.BoolVar(&showInfo, "info", false, "Print the model's input/output tensors")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Printf("EdgeKit v%s\n", version)
		fmt.Println("Local token-classification over ONNX Runtime")
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if backendName != "" {
		cfg.Backend = backendName
	}
	if minConfidence >= 0 {
		cfg.MinConfidence = minConfidence
	}

	if listModels {
		if err := printCatalog(cfg); err != nil {
			log.Fatalf("Failed to list models: %v", err)
		}
		return
	}

	modelDir, err := resolveModelDir(cfg, modelID)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()
	pipeline, err := ner.Load(ctx, cfg, modelDir)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	defer pipeline.Close()

	if showInfo {
		printSessionInfo(pipeline, modelDir)
		return
	}

	text := strings.Join(flag.Args(), " ")
	if strings.TrimSpace(text) == "" {
		fmt.Fprintln(os.Stderr, "Usage: edgekit -model <id> [flags] \"text to analyze\"")
		flag.PrintDefaults()
		os.Exit(1)
	}

	tracer := trace.New(trace.DefaultPath(), cfg.TraceEnabled)
	run := trace.NewRun(filepath.Base(modelDir), cfg.Backend)
	run.InputChars = len(text)

	entities, timings, err := pipeline.Recognize(ctx, text)
	run.TokenizeMs = timings.Tokenize.Milliseconds()
	run.InferMs = timings.Run.Milliseconds()
	run.DecodeMs = timings.Decode.Milliseconds()
	if err != nil {
		run.Error = err.Error()
		tracer.Record(run)
		log.Fatalf("Inference failed: %v", err)
	}
	run.EntityCount = len(entities)
	tracer.Record(run)

	if jsonOutput {
		out, err := json.MarshalIndent(entities, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode entities: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	if len(entities) == 0 {
		fmt.Println("No entities found.")
		return
	}
	for _, e := range entities {
		fmt.Printf("%-12s %q (tokens %d-%d, confidence %.3f)\n",
			e.Type, e.Text, e.StartToken, e.EndToken, e.Confidence)
	}
}

// resolveModelDir accepts either a catalog id or a directory path
func resolveModelDir(cfg *config.Config, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("no model specified - use -model or run 'edgekit -list'")
	}

	if info, err := os.Stat(id); err == nil && info.IsDir() {
		return id, nil
	}

	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return "", fmt.Errorf("failed to open catalog: %w", err)
	}
	defer cat.Close()

	rec, err := cat.Get(id)
	if err != nil {
		// Fall back to the conventional cache layout
		dir := hub.LocalDir(cfg.ModelDir, id)
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			return dir, nil
		}
		return "", fmt.Errorf("model %q not found - run 'modelfetch -repo %s' first", id, id)
	}
	return rec.Path, nil
}

func printCatalog(cfg *config.Config) error {
	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return err
	}
	defer cat.Close()

	records, err := cat.List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No models in catalog. Run 'modelfetch -repo <owner/name>' to fetch one.")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%-40s %-24s %8s  %s\n",
			rec.Repo, rec.Task, humanize.Bytes(uint64(rec.SizeBytes)), rec.Path)
	}
	return nil
}

func printSessionInfo(pipeline *ner.Pipeline, modelDir string) {
	fmt.Printf("Model: %s\n", modelDir)
	fmt.Printf("Labels (%d): %s\n", len(pipeline.Labels()), strings.Join(pipeline.Labels(), " "))
	fmt.Println("Inputs:")
	for _, t := range pipeline.Session().Inputs() {
		fmt.Printf("  %-20s %v\n", t.Name, t.Shape)
	}
	fmt.Println("Outputs:")
	for _, t := range pipeline.Session().Outputs() {
		fmt.Printf("  %-20s %v\n", t.Name, t.Shape)
	}
}
