package services

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatcherService 监听策略文档目录，文件新增或修改后触发重新入库。
// 事件做简单防抖；实际入库仍由DocumentService的互斥锁串行化。
type WatcherService struct {
	documents *DocumentService
	dir       string
	debounce  time.Duration
	logger    *zap.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcherService 创建目录监听服务
func NewWatcherService(documents *DocumentService, dir string, logger *zap.Logger) *WatcherService {
	if logger == nil {
		logger = zap.L()
	}
	return &WatcherService{
		documents: documents,
		dir:       dir,
		debounce:  2 * time.Second,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start 启动监听。目录不存在时返回错误。
func (s *WatcherService) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher

	go s.loop(ctx)
	s.logger.Info("policy directory watcher started", zap.String("directory", s.dir))
	return nil
}

// Stop 停止监听
func (s *WatcherService) Stop() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *WatcherService) loop(ctx context.Context) {
	var timer *time.Timer
	trigger := make(chan struct{}, 1)

	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(s.debounce, func() {
			select {
			case trigger <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !s.documents.parser.Supports(event.Name) {
				continue
			}
			s.logger.Info("policy file changed", zap.String("file", event.Name))
			schedule()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", zap.Error(err))
		case <-trigger:
			if _, err := s.documents.RebuildDirectory(ctx, s.dir); err != nil {
				s.logger.Error("automatic re-ingestion failed", zap.Error(err))
			}
		}
	}
}
