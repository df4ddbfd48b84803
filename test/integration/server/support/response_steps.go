package support

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/cutout/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
)

// RegisterResponseSteps registers the assertions on the last HTTP response.
func (tc *TestContext) RegisterResponseSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	sc.Step(`^the response content type should be "([^"]*)"$`, tc.theResponseContentTypeShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, tc.theResponseHeaderShouldBe)
	sc.Step(`^the response header "([^"]*)" should match "([^"]*)"$`, tc.theResponseHeaderShouldMatch)
	sc.Step(`^the response should be a (\d+)x(\d+) PNG with a transparent background$`, tc.theResponseShouldBeACutout)
	sc.Step(`^the response should be a ZIP containing "([^"]*)"$`, tc.theResponseShouldBeAZipContaining)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, tc.theJSONFieldShouldBe)
	sc.Step(`^the error message should be "([^"]*)"$`, tc.theErrorMessageShouldBe)
	sc.Step(`^the response body should not contain "([^"]*)"$`, tc.theResponseBodyShouldNotContain)
	sc.Step(`^the response body should contain "([^"]*)"$`, tc.theResponseBodyShouldContain)
}

func (tc *TestContext) theResponseStatusShouldBe(code int) error {
	if tc.LastStatus != code {
		return fmt.Errorf("expected status %d, got %d: %s", code, tc.LastStatus, truncate(tc.LastBody))
	}
	return nil
}

func (tc *TestContext) theResponseContentTypeShouldBe(want string) error {
	got := tc.LastHeaders.Get("Content-Type")
	if !strings.HasPrefix(got, want) {
		return fmt.Errorf("expected content type %q, got %q", want, got)
	}
	return nil
}

func (tc *TestContext) theResponseHeaderShouldBe(name, want string) error {
	if got := tc.LastHeaders.Get(name); got != want {
		return fmt.Errorf("expected header %s=%q, got %q", name, want, got)
	}
	return nil
}

func (tc *TestContext) theResponseHeaderShouldMatch(name, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	if got := tc.LastHeaders.Get(name); !re.MatchString(got) {
		return fmt.Errorf("header %s=%q does not match %s", name, got, pattern)
	}
	return nil
}

func (tc *TestContext) theResponseShouldBeACutout(w, h int) error {
	return checkCutout(tc.LastBody, w, h)
}

// checkCutout decodes data as PNG and requires the given size with both
// transparent background and opaque subject pixels.
func checkCutout(data []byte, w, h int) error {
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("response is not a PNG: %w", err)
	}
	img := imaging.Clone(decoded)
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		return fmt.Errorf("expected %dx%d, got %dx%d", w, h, b.Dx(), b.Dy())
	}
	transparent, opaque, _ := testutil.AlphaHistogram(img)
	if transparent == 0 || opaque == 0 {
		return fmt.Errorf("expected a cutout, got %d transparent and %d opaque pixels", transparent, opaque)
	}
	return nil
}

func (tc *TestContext) theResponseShouldBeAZipContaining(list string) error {
	zr, err := zip.NewReader(bytes.NewReader(tc.LastBody), int64(len(tc.LastBody)))
	if err != nil {
		return fmt.Errorf("response is not a ZIP: %w", err)
	}

	var names []string
	for _, f := range zr.File {
		if f.Method != zip.Store {
			return fmt.Errorf("entry %s is compressed", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return err
		}
		if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("entry %s is not an image: %w", f.Name, err)
		}
		names = append(names, f.Name)
	}

	want := strings.Split(list, ", ")
	sort.Strings(names)
	sort.Strings(want)
	if strings.Join(names, ",") != strings.Join(want, ",") {
		return fmt.Errorf("expected entries %v, got %v", want, names)
	}
	return nil
}

func (tc *TestContext) jsonBody() (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(tc.LastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w: %s", err, truncate(tc.LastBody))
	}
	return doc, nil
}

func (tc *TestContext) theJSONFieldShouldBe(field, want string) error {
	doc, err := tc.jsonBody()
	if err != nil {
		return err
	}
	v, ok := doc[field]
	if !ok {
		return fmt.Errorf("field %q missing in %s", field, truncate(tc.LastBody))
	}
	var got string
	switch x := v.(type) {
	case string:
		got = x
	case float64:
		got = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		got = fmt.Sprint(x)
	}
	if got != want {
		return fmt.Errorf("expected %s=%q, got %q", field, want, got)
	}
	return nil
}

func (tc *TestContext) theErrorMessageShouldBe(want string) error {
	return tc.theJSONFieldShouldBe("error", want)
}

func (tc *TestContext) theResponseBodyShouldContain(s string) error {
	if !bytes.Contains(tc.LastBody, []byte(s)) {
		return fmt.Errorf("body does not contain %q: %s", s, truncate(tc.LastBody))
	}
	return nil
}

func (tc *TestContext) theResponseBodyShouldNotContain(s string) error {
	if bytes.Contains(tc.LastBody, []byte(s)) {
		return fmt.Errorf("body unexpectedly contains %q", s)
	}
	return nil
}

func truncate(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
