package packager

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
)

var imageIndex = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
    <img src="{{.Image}}" alt="{{.Title}}" style="width: 100%; max-width: 1200px;" />
</body>
</html>
`))

// WriteImageIndex writes an index.html into dir that shows a single image
// file (relative to dir) at full width.
func WriteImageIndex(dir, image, title string) error {
	f, err := os.Create(filepath.Join(dir, "index.html"))
	if err != nil {
		return fmt.Errorf("create index.html: %w", err)
	}
	if err := imageIndex.Execute(f, struct{ Image, Title string }{image, title}); err != nil {
		_ = f.Close()
		return fmt.Errorf("render index.html: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close index.html: %w", err)
	}
	return nil
}
