// Package assembler turns the files a backend produced into a single artifact.
package assembler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"jusdown/internal/config"
	"jusdown/internal/consts"
	"jusdown/internal/entity"
	"jusdown/internal/errs"
	"jusdown/internal/workspace"

	"github.com/klauspost/compress/zip"
)

const (
	mimeZip     = "application/zip"
	mimeAudio   = "audio/mpeg"
	mimeVideo   = "video/mp4"
	mimeDefault = "application/octet-stream"
)

// container types that the system mime table may not know
var videoTypes = map[string]string{
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
}

// Assembler builds the artifact handed to the response layer.
type Assembler struct {
	log     *slog.Logger
	brand   string
	maxName int
}

// New creates an Assembler.
func New(log *slog.Logger, cfg *config.Config) *Assembler {
	return &Assembler{
		log:     log.With(slog.String("package", "assembler")),
		brand:   cfg.App.Brand,
		maxName: cfg.Backend.MaxNameLength,
	}
}

// Assemble returns the single file in res, or a zip of all of them when there
// are several. Only files still present inside ws are considered.
func (a *Assembler) Assemble(
	ctx context.Context,
	ws *workspace.Workspace,
	res *entity.ExtractionResult,
	req entity.DownloadRequest,
) (*entity.OutputArtifact, error) {
	files := present(ws.Dir, res.Files)

	switch len(files) {
	case 0:
		return nil, errs.ErrNoFilesProduced
	case 1:
		return a.single(files[0], res.Metadata, req)
	default:
		return a.archive(ctx, ws, files)
	}
}

func (a *Assembler) single(path string, meta entity.Metadata, req entity.DownloadRequest) (*entity.OutputArtifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	ext := filepath.Ext(path)

	title := meta.Title
	if strings.TrimSpace(title) == "" {
		title = strings.TrimSuffix(filepath.Base(path), ext)
	}

	return &entity.OutputArtifact{
		Path:     path,
		Name:     DisplayName(a.brand, title, req.Type, req.Quality, ext, a.maxName),
		MIMEType: MIMEType(req.Type, ext),
		Size:     info.Size(),
	}, nil
}

func (a *Assembler) archive(ctx context.Context, ws *workspace.Workspace, files []string) (*entity.OutputArtifact, error) {
	path := ws.NewArchivePath(a.brand+consts.ArchivePrefix, ".zip")

	if err := writeZip(ctx, path, ws.Dir, files); err != nil {
		return nil, fmt.Errorf("write archive: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	a.log.DebugContext(ctx, "archive written",
		slog.String("path", path),
		slog.Int("members", len(files)),
		slog.Int64("size", info.Size()))

	return &entity.OutputArtifact{
		Path:     path,
		Name:     a.brand + " - " + consts.ArchiveDisplayName + ".zip",
		MIMEType: mimeZip,
		Size:     info.Size(),
		Archive:  true,
	}, nil
}

func writeZip(ctx context.Context, path, base string, files []string) (err error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(out)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		name, err := filepath.Rel(base, file)
		if err != nil {
			return err
		}

		if err := addFile(zw, file, filepath.ToSlash(name)); err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
	}

	return zw.Close()
}

func addFile(zw *zip.Writer, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	_, err = io.Copy(w, in)

	return err
}

// MIMEType resolves the response content type for a file of ext.
func MIMEType(ct entity.ContentType, ext string) string {
	ext = strings.ToLower(ext)

	switch ct {
	case entity.ContentAudio:
		return mimeAudio
	case entity.ContentVideo:
		if t, ok := videoTypes[ext]; ok {
			return t
		}

		return mimeVideo
	case entity.ContentImage:
	}

	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}

	return mimeDefault
}

// present keeps the files that still exist as regular files inside dir.
func present(dir string, files []string) []string {
	out := make([]string, 0, len(files))

	for _, file := range files {
		rel, err := filepath.Rel(dir, file)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}

		if info, err := os.Stat(file); err == nil && info.Mode().IsRegular() {
			out = append(out, file)
		}
	}

	return out
}
