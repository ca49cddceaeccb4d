package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/hitoshi/truthlens/internal/config"
	"github.com/hitoshi/truthlens/internal/handler"
	"github.com/hitoshi/truthlens/internal/ingest"
	"github.com/hitoshi/truthlens/internal/model"
)

// CheckOptions はcheckコマンドの入力。いずれか1つを指定する。
type CheckOptions struct {
	Text     string
	URL      string
	Social   string
	Platform string
	File     string
}

// ParseCheckArgs はcheckコマンドのフラグを解析する。
func ParseCheckArgs(args []string) (CheckOptions, error) {
	var opts CheckOptions
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.Text, "text", "", "解析するテキスト")
	fs.StringVar(&opts.URL, "url", "", "解析するニュース記事のURL")
	fs.StringVar(&opts.Social, "social", "", "解析するSNS・動画のURL")
	fs.StringVar(&opts.Platform, "platform", "", "SNSのプラットフォーム名（省略時はURLから推定）")
	fs.StringVar(&opts.File, "file", "", "解析するメディアファイルのパス")
	if err := fs.Parse(args); err != nil {
		return CheckOptions{}, fmt.Errorf("invalid check arguments: %w", err)
	}

	set := 0
	for _, v := range []string{opts.Text, opts.URL, opts.Social, opts.File} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return CheckOptions{}, errors.New("check requires exactly one of --text, --url, --social, --file")
	}
	return opts, nil
}

// runCheck は1件のコンテンツをサーバーを起動せずに解析し、結果をJSONでwに書き込む。
func runCheck(cfg *config.Config, opts CheckOptions, w io.Writer) error {
	log := slog.Default()
	p := buildPipeline(cfg, nil, log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.AnalysisTimeout+cfg.AnalysisLatency+30*cfg.UploadTick)
	defer cancel()
	defer p.close(context.Background())

	item, err := ingestForCheck(p.ingestor, opts)
	if err != nil {
		return err
	}
	if _, err := p.scheduler.Submit(item); err != nil {
		return err
	}

	job, err := p.scheduler.Await(ctx, item.ID)
	if err != nil {
		return err
	}
	if job.State == model.JobFailed {
		return fmt.Errorf("analysis failed (%s): %s", job.ErrorCode, job.Error)
	}

	result, err := p.results.FindByItemID(ctx, item.ID)
	if err != nil {
		return err
	}
	if result == nil {
		return model.NewResultNotFoundError(item.ID)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(handler.ToResultResponse(result))
}

func ingestForCheck(ing *ingest.Ingestor, opts CheckOptions) (*model.ContentItem, error) {
	switch {
	case opts.Text != "":
		return ing.IngestText(opts.Text)
	case opts.URL != "":
		return ing.IngestURL(opts.URL)
	case opts.Social != "":
		return ing.IngestSocial(ingest.SocialSubmission{URL: opts.Social, Platform: opts.Platform})
	}

	info, err := os.Stat(opts.File)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > model.MaxBinarySize {
		return nil, model.NewSizeLimitError(filepath.Base(opts.File), info.Size())
	}
	data, err := os.ReadFile(opts.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ing.IngestFile(ingest.FileSubmission{
		Data:      data,
		MediaType: mime.TypeByExtension(filepath.Ext(opts.File)),
		SizeBytes: info.Size(),
		Filename:  filepath.Base(opts.File),
	})
}
