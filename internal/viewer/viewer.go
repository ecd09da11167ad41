// Package viewer draws an image's annotation over it and shows the result,
// one image at a time, in a native window or a browser.
package viewer

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"faceann/internal/annotation"
	"faceann/internal/codec/jsonann"
	"faceann/internal/codec/voc"
	"faceann/internal/config"
	"faceann/internal/convert"
	"faceann/internal/imageio"
	"faceann/internal/logger"
	"faceann/internal/overlay"

	"gocv.io/x/gocv"
)

// All selects every image in sequence.
const All = -1

var (
	ErrNoImage      = errors.New("image not found")
	ErrNoAnnotation = errors.New("annotation not found")
	ErrBadIndex     = errors.New("invalid index")
	// ErrQuit is returned by a Display when the user asks to stop.
	ErrQuit = errors.New("viewer closed")
)

// Format is the annotation file format of a directory.
type Format int

const (
	FormatVOC Format = iota
	FormatJSON
)

// Ext is the annotation file extension.
func (f Format) Ext() string {
	if f == FormatJSON {
		return jsonann.Ext
	}
	return voc.Ext
}

func (f Format) String() string {
	if f == FormatJSON {
		return convert.FormatJSON
	}
	return convert.FormatVOC
}

// DetectFormat picks JSON for directories named JSON_<dataset> and VOC
// otherwise.
func DetectFormat(annDir string) Format {
	if convert.DetectFormat(annDir) == convert.FormatJSON {
		return FormatJSON
	}
	return FormatVOC
}

// LoadAnnotation reads one annotation file in the given format.
func LoadAnnotation(path string, format Format, opts jsonann.Options) (*annotation.Annotation, error) {
	if format == FormatJSON {
		return jsonann.ReadFile(path, opts)
	}
	ann, _, err := voc.ReadFile(path)
	return ann, err
}

// ParseIndex accepts a non-negative index, or "all" / -1 for every image.
func ParseIndex(s string) (int, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return All, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadIndex, s)
	}
	if i < All {
		return 0, fmt.Errorf("%w: %d", ErrBadIndex, i)
	}
	return i, nil
}

// Display shows one rendered image and blocks until the user moves on.
type Display interface {
	Show(title string, img gocv.Mat, index, total int) error
	Close() error
}

// Viewer pairs the images of one directory with their annotations.
type Viewer struct {
	imageDir string
	annDir   string
	format   Format
	jsonOpts jsonann.Options
	imageExt string
	maxSide  int
	display  Display
	logger   *logger.Logger
}

// New builds a Viewer over imageDir and annDir. The annotation format is
// detected from annDir's name.
func New(cfg *config.Config, logger *logger.Logger, display Display, imageDir, annDir string) (*Viewer, error) {
	dialect, err := jsonann.ParseDialect(cfg.JSONDialect)
	if err != nil {
		return nil, err
	}
	conv, err := annotation.ParseConvention(cfg.BoxConvention)
	if err != nil {
		return nil, err
	}
	ext := cfg.ImageExtension
	if ext == "" {
		ext = ".jpg"
	}

	return &Viewer{
		imageDir: imageDir,
		annDir:   annDir,
		format:   DetectFormat(annDir),
		jsonOpts: jsonann.Options{Dialect: dialect, Convention: conv},
		imageExt: ext,
		maxSide:  cfg.ViewerMaxSide,
		display:  display,
		logger:   logger,
	}, nil
}

// Images lists the directory's images in display order.
func (v *Viewer) Images() ([]string, error) {
	images, err := imageio.List(v.imageDir, v.imageExt)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return images, nil
}

// ShowIndex shows the index-th image of the sorted listing, or every image
// when index is All.
func (v *Viewer) ShowIndex(index int) error {
	if index == All {
		return v.ShowAll()
	}
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrBadIndex, index)
	}

	images, err := v.Images()
	if err != nil {
		return err
	}
	if index >= len(images) {
		return fmt.Errorf("%w: index %d of %d images in %s", ErrNoImage, index, len(images), v.imageDir)
	}
	if err := v.show(images[index], index, len(images)); err != nil && !errors.Is(err, ErrQuit) {
		return err
	}
	return nil
}

// ShowAll shows every image in order. Images without an annotation and
// unreadable annotations are skipped.
func (v *Viewer) ShowAll() error {
	images, err := v.Images()
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return fmt.Errorf("%w: no %s files in %s", ErrNoImage, v.imageExt, v.imageDir)
	}

	for i, path := range images {
		err := v.show(path, i, len(images))
		switch {
		case err == nil:
		case errors.Is(err, ErrQuit):
			return nil
		case errors.Is(err, ErrNoImage), errors.Is(err, ErrNoAnnotation):
			v.logger.Warning("Skipping %s: %v", path, err)
		default:
			v.logger.Error("Skipping %s: %v", path, err)
		}
	}
	return nil
}

// Show displays one image with its annotation.
func (v *Viewer) Show(imagePath string) error {
	err := v.show(imagePath, 0, 1)
	if errors.Is(err, ErrQuit) {
		return nil
	}
	return err
}

func (v *Viewer) show(imagePath string, index, total int) error {
	if !imageio.Exists(imagePath) {
		return fmt.Errorf("%w: %s", ErrNoImage, imagePath)
	}
	annPath := filepath.Join(v.annDir, imageio.WithExt(imagePath, v.format.Ext()))
	if _, err := os.Stat(annPath); err != nil {
		return fmt.Errorf("%w: %s", ErrNoAnnotation, annPath)
	}

	ann, err := LoadAnnotation(annPath, v.format, v.jsonOpts)
	if err != nil {
		return err
	}

	mat, err := Render(imagePath, ann, v.maxSide)
	if err != nil {
		return err
	}
	defer mat.Close()

	v.logger.Info("Showing %s (%d/%d, %d objects)", filepath.Base(imagePath), index+1, total, len(ann.Objects))
	return v.display.Show(filepath.Base(imagePath), mat, index, total)
}

// Render reads the image, draws the annotation over it and scales the
// result down to maxSide. The caller closes the returned Mat.
func Render(imagePath string, ann *annotation.Annotation, maxSide int) (gocv.Mat, error) {
	mat := gocv.IMRead(imagePath, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, fmt.Errorf("failed to decode image %s", imagePath)
	}

	if err := Draw(&mat, overlay.Layout(ann, mat.Cols(), mat.Rows())); err != nil {
		mat.Close()
		return gocv.Mat{}, err
	}

	w, h := overlay.Scale(mat.Cols(), mat.Rows(), maxSide)
	if w == mat.Cols() && h == mat.Rows() {
		return mat, nil
	}
	scaled := gocv.NewMat()
	gocv.Resize(mat, &scaled, image.Pt(w, h), 0, 0, gocv.InterpolationArea)
	mat.Close()
	return scaled, nil
}

// Draw renders frame onto mat.
func Draw(mat *gocv.Mat, frame overlay.Frame) error {
	for _, box := range frame.Boxes {
		for _, label := range box.Labels {
			err := gocv.PutText(mat, label.Value, label.Origin, gocv.FontHersheySimplex, frame.FontScale, frame.TextColor, frame.TextThickness)
			if err != nil {
				return fmt.Errorf("failed to draw text: %v", err)
			}
		}
		err := gocv.Rectangle(mat, box.Rect, frame.BoxColor, frame.Thickness)
		if err != nil {
			return fmt.Errorf("failed to draw rectangle: %v", err)
		}
	}
	return nil
}
