package support

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/MeKo-Tech/cutout/internal/testutil"
	"github.com/cucumber/godog"
)

type part struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

// RegisterUploadSteps registers the request steps.
func (tc *TestContext) RegisterUploadSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I upload a (\d+)x(\d+) (PNG|JPEG) image to "([^"]*)"$`, tc.iUploadAnImage)
	sc.Step(`^I upload (\d+) PNG images to "([^"]*)"$`, tc.iUploadPNGImages)
	sc.Step(`^I upload (\d+) PNG images? and (\d+) text files? to "([^"]*)"$`, tc.iUploadPNGImagesAndTextFiles)
	sc.Step(`^I upload an invalid image to "([^"]*)"$`, tc.iUploadAnInvalidImage)
	sc.Step(`^I upload a PDF with (\d+) embedded images? to "([^"]*)"$`, tc.iUploadAPDF)
	sc.Step(`^I send a POST request to "([^"]*)" without a file$`, tc.iPostWithoutAFile)
	sc.Step(`^I send a GET request to "([^"]*)"$`, tc.iSendAGETRequest)
	sc.Step(`^I send an OPTIONS request to "([^"]*)"$`, tc.iSendAnOPTIONSRequest)
}

func (tc *TestContext) pngPart(field string, i, w, h int) part {
	return part{
		field:       field,
		filename:    fmt.Sprintf("photo_%d.png", i),
		contentType: "image/png",
		data:        testutil.EncodePNG(tc.t, testutil.SubjectImage(w, h)),
	}
}

func (tc *TestContext) iUploadAnImage(w, h int, format, path string) error {
	img := testutil.SubjectImage(w, h)
	p := part{field: "image", filename: "photo.png", contentType: "image/png"}
	if format == "JPEG" {
		p.filename, p.contentType = "photo.jpg", "image/jpeg"
		p.data = testutil.EncodeJPEG(tc.t, img)
	} else {
		p.data = testutil.EncodePNG(tc.t, img)
	}
	return tc.postMultipart(path, []part{p}, nil)
}

func (tc *TestContext) iUploadPNGImages(n int, path string) error {
	parts := make([]part, 0, n)
	for i := range n {
		parts = append(parts, tc.pngPart("images", i, 24+i, 20))
	}
	return tc.postMultipart(path, parts, nil)
}

func (tc *TestContext) iUploadPNGImagesAndTextFiles(images, texts int, path string) error {
	var parts []part
	for i := range images {
		parts = append(parts, tc.pngPart("images", i, 20, 20))
	}
	for i := range texts {
		parts = append(parts, part{
			field:       "images",
			filename:    fmt.Sprintf("notes_%d.txt", i),
			contentType: "text/plain",
			data:        []byte("not an image"),
		})
	}
	return tc.postMultipart(path, parts, nil)
}

func (tc *TestContext) iUploadAnInvalidImage(path string) error {
	field := "image"
	if strings.Contains(path, "batch") {
		field = "images"
	}
	return tc.postMultipart(path, []part{{
		field:       field,
		filename:    "broken.png",
		contentType: "image/png",
		data:        []byte("\x89PNG definitely not a png"),
	}}, nil)
}

func (tc *TestContext) iUploadAPDF(n int, path string) error {
	images := make([]image.Image, n)
	for i := range images {
		images[i] = testutil.SubjectImage(40+8*i, 30)
	}
	return tc.postMultipart(path, []part{{
		field:       "pdf",
		filename:    "catalogue.pdf",
		contentType: "application/pdf",
		data:        testutil.MinimalPDF(tc.t, images...),
	}}, map[string]string{"format": "json"})
}

func (tc *TestContext) iPostWithoutAFile(path string) error {
	return tc.postMultipart(path, nil, map[string]string{"note": "empty"})
}

func (tc *TestContext) iSendAGETRequest(path string) error {
	return tc.do(http.MethodGet, path, nil, "")
}

func (tc *TestContext) iSendAnOPTIONSRequest(path string) error {
	return tc.do(http.MethodOptions, path, nil, "")
}

func (tc *TestContext) postMultipart(path string, parts []part, fields map[string]string) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		h.Set("Content-Type", p.contentType)
		w, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err := w.Write(p.data); err != nil {
			return err
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return tc.do(http.MethodPost, path, &body, mw.FormDataContentType())
}

func (tc *TestContext) do(method, path string, body io.Reader, contentType string) error {
	if tc.Server == nil {
		return errServerNotRunning
	}
	req, err := http.NewRequest(method, tc.Server.URL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Origin", "http://example.test")

	resp, err := tc.Server.Client().Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	tc.LastStatus = resp.StatusCode
	tc.LastHeaders = resp.Header
	tc.LastBody, err = io.ReadAll(resp.Body)
	return err
}
