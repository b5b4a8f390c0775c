package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"opencap/internal/config"
	"opencap/internal/logging"
	"opencap/internal/opencapapi"
	"opencap/internal/processing"
	"opencap/internal/services"
	"opencap/internal/trials"
	"opencap/internal/workspace"
)

// ResultStore is the part of the API client the publisher needs.
type ResultStore interface {
	PostResult(ctx context.Context, upload opencapapi.Upload) (*opencapapi.Result, error)
	DeleteResultsByTag(ctx context.Context, trialID, tag string) (int, error)
}

// Options controls upload behaviour.
type Options struct {
	ReplaceExisting bool
	DeviceID        string
}

// TrialResult identifies a processed trial whose outputs are on disk.
type TrialResult struct {
	SessionID     string
	Trial         trials.Trial
	Configuration processing.Configuration
}

// Upload records one file sent to the server.
type Upload struct {
	Tag      string
	Path     string
	ResultID int64
	Replaced int
}

// Publisher uploads motion data and visualization files for processed trials.
type Publisher struct {
	store  ResultStore
	layout workspace.Layout
	opts   Options
	logger *slog.Logger
}

// New constructs a Publisher.
func New(store ResultStore, layout workspace.Layout, opts Options, logger *slog.Logger) *Publisher {
	if strings.TrimSpace(opts.DeviceID) == "" {
		opts.DeviceID = "all"
	}
	return &Publisher{
		store:  store,
		layout: layout,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "publish"),
	}
}

// NewFromConfig constructs a Publisher using the publish section of cfg.
func NewFromConfig(cfg *config.Config, store ResultStore, logger *slog.Logger) *Publisher {
	return New(store, workspace.New(cfg.Paths.DataDir), Options{
		ReplaceExisting: cfg.Publish.ReplaceExisting,
		DeviceID:        cfg.Publish.DeviceID,
	}, logger)
}

// PublishTrial uploads the trial's motion data and then its visualization
// file. Calibration trials have nothing to publish. The first failure stops
// the trial and is returned.
func (p *Publisher) PublishTrial(ctx context.Context, result TrialResult) ([]Upload, error) {
	if result.Trial.Kind == trials.KindCalibration {
		return nil, nil
	}
	logger := logging.WithContext(ctx, p.logger)

	var uploads []Upload
	for _, file := range p.files(result) {
		upload, err := p.upload(ctx, result, file)
		if err != nil {
			return uploads, err
		}
		logger.Info("result published",
			logging.String("tag", upload.Tag),
			logging.String("file", filepath.Base(upload.Path)),
			logging.Int("replaced", upload.Replaced),
		)
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

type resultFile struct {
	tag  string
	path string
	err  error
}

func (p *Publisher) files(result TrialResult) []resultFile {
	session, name := result.SessionID, result.Trial.Name
	var files []resultFile
	if result.Trial.Kind == trials.KindStatic {
		model, err := p.layout.ModelPath(session)
		files = append(files, resultFile{tag: opencapapi.TagOpenSimModel, path: model, err: err})
		files = append(files, resultFile{tag: opencapapi.TagKinematics, path: p.layout.KinematicsPath(session, name)})
	} else {
		files = append(files,
			resultFile{tag: opencapapi.TagKinematics, path: p.layout.KinematicsPath(session, name)},
			resultFile{tag: opencapapi.TagMarkerData, path: p.layout.MarkerDataPath(session, name)},
		)
	}
	return append(files, resultFile{tag: opencapapi.TagVisualizerJSON, path: p.layout.VisualizerPath(session, name)})
}

func (p *Publisher) upload(ctx context.Context, result TrialResult, file resultFile) (Upload, error) {
	if file.err != nil {
		return Upload{}, file.err
	}
	if _, err := os.Stat(file.path); err != nil {
		return Upload{}, services.Wrap(services.ErrNotFound, "publish", file.tag,
			fmt.Sprintf("missing output %s", file.path), err)
	}

	out := Upload{Tag: file.tag, Path: file.path}
	if p.opts.ReplaceExisting {
		deleted, err := p.store.DeleteResultsByTag(ctx, result.Trial.ID, file.tag)
		if err != nil {
			return out, fmt.Errorf("replace %s: %w", file.tag, err)
		}
		out.Replaced = deleted
	}

	posted, err := p.store.PostResult(ctx, opencapapi.Upload{
		TrialID:  result.Trial.ID,
		Tag:      file.tag,
		DeviceID: p.opts.DeviceID,
		Path:     file.path,
		Meta:     meta(result),
	})
	if err != nil {
		return out, fmt.Errorf("upload %s: %w", file.tag, err)
	}
	out.ResultID = posted.ID
	return out, nil
}

func meta(result TrialResult) map[string]any {
	conf := result.Configuration
	return map[string]any{
		"trial_name":    result.Trial.Name,
		"neutral":       result.Trial.Kind == trials.KindStatic,
		"pose_detector": string(conf.PoseDetector),
		"resolution":    string(conf.EffectiveResolution()),
	}
}
