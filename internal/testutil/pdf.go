package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"testing"
)

// MinimalPDF builds a PDF with one page per image. Each page shows its image as
// a DCTDecode XObject at native size.
func MinimalPDF(t testing.TB, images ...image.Image) []byte {
	t.Helper()

	var objects []string
	add := func(body string) int {
		objects = append(objects, body)
		return len(objects)
	}

	add("") // catalog, filled below
	add("") // page tree, filled below

	var kids []string
	for _, img := range images {
		var jpg bytes.Buffer
		if err := jpeg.Encode(&jpg, img, &jpeg.Options{Quality: 95}); err != nil {
			t.Fatalf("encode jpeg: %v", err)
		}
		w, h := img.Bounds().Dx(), img.Bounds().Dy()

		imgID := add(fmt.Sprintf(
			"<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB "+
				"/BitsPerComponent 8 /Filter /DCTDecode /Length %d >>\nstream\n%s\nendstream",
			w, h, jpg.Len(), jpg.String()))

		content := fmt.Sprintf("q %d 0 0 %d 0 0 cm /Im1 Do Q", w, h)
		contentID := add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))

		pageID := add(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] "+
				"/Resources << /XObject << /Im1 %d 0 R >> >> /Contents %d 0 R >>",
			w, h, imgID, contentID))
		kids = append(kids, fmt.Sprintf("%d 0 R", pageID))
	}

	objects[0] = "<< /Type /Catalog /Pages 2 0 R >>"
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
