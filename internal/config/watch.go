package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 200 * time.Millisecond

// Watch следит за файлом конфига и вызывает onChange с перечитанным конфигом
// после каждого сохранения. Следим за каталогом: редакторы сохраняют через
// переименование, и наблюдение за самим файлом теряется. Конфиг с ошибкой
// логируется и пропускается. Блокирует до отмены ctx.
func Watch(ctx context.Context, path string, log zerolog.Logger, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config watcher: watch %s: %w", filepath.Dir(abs), err)
	}

	// несколько событий на одно сохранение схлопываются в одну перезагрузку
	debounce := time.NewTimer(reloadDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(reloadDebounce)
		case <-debounce.C:
			c, err := Load(abs)
			if err != nil {
				log.Error().Err(err).Str("path", abs).Msg("config reload failed, keeping previous")
				continue
			}
			log.Info().Str("path", abs).Msg("config reloaded")
			onChange(c)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("config watcher error")
		}
	}
}
