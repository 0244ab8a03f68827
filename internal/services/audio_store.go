package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/lectern-backend/internal/clients/gcp"
	"github.com/yungbote/lectern-backend/internal/platform/apierr"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

// StoredAudio locates a lecture recording. Path is on local disk; Object is
// the archived bucket key and is empty without a bucket.
type StoredAudio struct {
	Path   string
	Object string
}

type AudioStore interface {
	Save(ctx context.Context, lectureID uuid.UUID, filename string, r io.Reader) (StoredAudio, error)
	// SaveTemp writes a short-lived file, e.g. a live chunk, and returns its
	// path with a cleanup func.
	SaveTemp(ctx context.Context, filename string, r io.Reader) (string, func(), error)
	// Local returns a readable local path, downloading the archived copy when
	// the local file is gone.
	Local(ctx context.Context, a StoredAudio) (string, func(), error)
	Remove(ctx context.Context, a StoredAudio)
}

type audioStore struct {
	log    *logger.Logger
	dir    string
	bucket gcp.AudioBucket
}

// NewAudioStore keeps recordings under dir/audio. bucket may be nil.
func NewAudioStore(log *logger.Logger, dir string, bucket gcp.AudioBucket) (AudioStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("audio directory required")
	}
	if err := os.MkdirAll(filepath.Join(dir, "audio"), 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("create tmp dir: %w", err)
	}
	return &audioStore{
		log:    log.With("service", "AudioStore"),
		dir:    dir,
		bucket: bucket,
	}, nil
}

func audioExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if ext == "" || len(ext) > 6 {
		return ".bin"
	}
	return ext
}

func (s *audioStore) Save(ctx context.Context, lectureID uuid.UUID, filename string, r io.Reader) (StoredAudio, error) {
	name := uuid.NewString() + audioExt(filename)
	lectureDir := filepath.Join(s.dir, "audio", lectureID.String())
	if err := os.MkdirAll(lectureDir, 0o755); err != nil {
		return StoredAudio{}, fmt.Errorf("create lecture audio dir: %w", err)
	}
	path := filepath.Join(lectureDir, name)
	if err := writeFile(path, r); err != nil {
		return StoredAudio{}, err
	}
	out := StoredAudio{Path: path}

	if s.bucket != nil {
		key := "lectures/" + lectureID.String() + "/" + name
		f, err := os.Open(path)
		if err != nil {
			return out, fmt.Errorf("reopen audio: %w", err)
		}
		defer f.Close()
		if err := s.bucket.Upload(ctx, key, f); err != nil {
			// The local copy is enough to run the pipeline.
			s.log.Warn("Audio archive upload failed", "lecture_id", lectureID.String(), "error", err.Error())
			return out, nil
		}
		out.Object = key
	}
	return out, nil
}

func (s *audioStore) SaveTemp(ctx context.Context, filename string, r io.Reader) (string, func(), error) {
	path := filepath.Join(s.dir, "tmp", uuid.NewString()+audioExt(filename))
	if err := writeFile(path, r); err != nil {
		return "", func() {}, err
	}
	return path, func() { _ = os.Remove(path) }, nil
}

func (s *audioStore) Local(ctx context.Context, a StoredAudio) (string, func(), error) {
	noop := func() {}
	if a.Path != "" {
		if _, err := os.Stat(a.Path); err == nil {
			return a.Path, noop, nil
		}
	}
	if a.Object == "" || s.bucket == nil {
		return "", noop, fmt.Errorf("audio %q not found locally and not archived", a.Path)
	}
	rc, err := s.bucket.Download(ctx, a.Object)
	if err != nil {
		return "", noop, fmt.Errorf("download archived audio: %w", err)
	}
	defer rc.Close()
	return s.SaveTemp(ctx, a.Object, rc)
}

func (s *audioStore) Remove(ctx context.Context, a StoredAudio) {
	if a.Path != "" {
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
			s.log.Warn("Remove local audio failed", "path", a.Path, "error", err.Error())
		}
	}
	if a.Object != "" && s.bucket != nil {
		if err := s.bucket.Delete(ctx, a.Object); err != nil {
			s.log.Warn("Remove archived audio failed", "key", a.Object, "error", err.Error())
		}
	}
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if n == 0 {
		_ = os.Remove(path)
		return apierr.BadRequest("empty_audio", "audio upload is empty")
	}
	return nil
}
