package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"snapfixer/internal/catalog"
	"snapfixer/internal/config"
	"snapfixer/internal/database"
	"snapfixer/internal/jobs"
	"snapfixer/internal/photo"
	"snapfixer/internal/storage"
	"snapfixer/internal/worker"
)

const usage = `usage:
  admin process --rule <slug> --in <file> --out <file> [--skip-bg] [--original]
  admin sweep
  admin rules`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	var err error
	switch os.Args[1] {
	case "process":
		err = runProcess(os.Args[2:], logger)
	case "sweep":
		err = runSweep(logger)
	case "rules":
		err = runRules(os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

// runProcess 在本地跑一遍处理流水线，不经过队列与对象存储。
func runProcess(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	var (
		ruleSlug     = fs.String("rule", "", "证件规则 slug（必填）")
		in           = fs.String("in", "", "输入图片路径（必填）")
		out          = fs.String("out", "", "输出 PNG 路径（必填）")
		skipBg       = fs.Bool("skip-bg", false, "跳过背景移除")
		original     = fs.Bool("original", false, "保持原图尺寸")
		catalogPath  = fs.String("catalog", "", "规则目录 YAML（可选，默认读 RULE_CATALOG_PATH）")
		segEndpoint  = fs.String("segmenter", "", "rembg 地址（可选，默认读 SEGMENTER_ENDPOINT）")
		segModel     = fs.String("model", "", "分割模型（可选，默认读 SEGMENTER_MODEL）")
		cascadePath  = fs.String("cascade", "", "人脸 cascade 文件（可选，默认读 FACE_CASCADE_PATH）")
		faceMinSize  = fs.Int("face-min-size", 0, "人脸最小尺寸（可选，默认读 FACE_MIN_SIZE）")
		processLimit = fs.Duration("timeout", 5*time.Minute, "处理超时")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*ruleSlug) == "" || strings.TrimSpace(*in) == "" || strings.TrimSpace(*out) == "" {
		return errors.New("missing required flag: --rule, --in and --out are required")
	}

	rules, err := catalog.Load(firstNonEmpty(*catalogPath, os.Getenv("RULE_CATALOG_PATH")))
	if err != nil {
		return fmt.Errorf("load rule catalog: %w", err)
	}
	entry, err := rules.Lookup(*ruleSlug)
	if err != nil {
		return err
	}
	rule := entry.Rule()
	rule.SkipBackgroundRemoval = *skipBg
	rule.UseOriginalDimensions = *original

	segCfg, faceCfg, err := loadPipelineConfig(*segEndpoint, *segModel, *cascadePath, *faceMinSize)
	if err != nil {
		return fmt.Errorf("load pipeline config: %w", err)
	}
	processor, err := worker.NewPipeline(segCfg, faceCfg, logger)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *processLimit)
	defer cancel()

	start := time.Now()
	png, err := processor.Process(ctx, data, rule)
	if err != nil {
		return fmt.Errorf("process (%s): %w", photo.KindOf(err), err)
	}
	if err := os.WriteFile(*out, png, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	fmt.Printf("已生成 %s（规则 %s，%d 字节，耗时 %s）\n", *out, entry.Slug, len(png), time.Since(start).Round(time.Millisecond))
	return nil
}

// runSweep 立即执行一次过期任务清理。
func runSweep(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		return fmt.Errorf("init storage client: %w", err)
	}

	service := jobs.NewService(db, storageClient, logger, jobs.Config{
		Retention: cfg.Jobs.Retention,
		Queue:     cfg.Jobs.Queue,
	})
	deleted, err := service.Sweep(context.Background())
	fmt.Printf("已清理 %d 个过期任务\n", deleted)
	return err
}

func runRules(args []string) error {
	fs := flag.NewFlagSet("rules", flag.ExitOnError)
	catalogPath := fs.String("catalog", "", "规则目录 YAML（可选，默认读 RULE_CATALOG_PATH）")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rules, err := catalog.Load(firstNonEmpty(*catalogPath, os.Getenv("RULE_CATALOG_PATH")))
	if err != nil {
		return err
	}
	for _, entry := range rules.Entries() {
		width, height := entry.Rule().TargetPixels()
		fmt.Printf("%-20s %gx%g mm  %dx%d px  %s\n", entry.Slug, entry.WidthMM, entry.HeightMM, width, height, entry.Name)
	}
	return nil
}

func loadPipelineConfig(endpoint, model, cascade string, minSize int) (config.SegmenterConfig, config.FaceConfig, error) {
	endpoint = firstNonEmpty(endpoint, os.Getenv("SEGMENTER_ENDPOINT"), "http://localhost:7000")
	model = firstNonEmpty(model, os.Getenv("SEGMENTER_MODEL"), "u2net_human")
	cascade = firstNonEmpty(cascade, os.Getenv("FACE_CASCADE_PATH"))

	if minSize <= 0 {
		if env := strings.TrimSpace(os.Getenv("FACE_MIN_SIZE")); env != "" {
			n, err := strconv.Atoi(env)
			if err != nil {
				return config.SegmenterConfig{}, config.FaceConfig{}, fmt.Errorf("parse FACE_MIN_SIZE: %w", err)
			}
			minSize = n
		}
	}
	if minSize <= 0 {
		minSize = 20
	}

	timeout := 2 * time.Minute
	if env := strings.TrimSpace(os.Getenv("SEGMENTER_TIMEOUT")); env != "" {
		d, err := time.ParseDuration(env)
		if err != nil {
			return config.SegmenterConfig{}, config.FaceConfig{}, fmt.Errorf("parse SEGMENTER_TIMEOUT: %w", err)
		}
		timeout = d
	}

	return config.SegmenterConfig{Endpoint: endpoint, Model: model, Timeout: timeout},
		config.FaceConfig{CascadePath: cascade, MinSize: minSize, QualityThreshold: 5.0},
		nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
