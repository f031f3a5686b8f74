package discovery_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/endpointeval/internal/discovery"
	. "github.com/smartystreets/goconvey/convey"
)

const root = "https://www.example.com"

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestEnsureFullURL(t *testing.T) {
	Convey("Given raw manifest entries", t, func() {
		Convey("Then absolute URLs are kept and paths are prefixed", func() {
			So(discovery.EnsureFullURL("https://a.example/x", root), ShouldEqual, "https://a.example/x")
			So(discovery.EnsureFullURL("http://b.example/", root), ShouldEqual, "http://b.example/")
			So(discovery.EnsureFullURL("/health", root), ShouldEqual, "https://www.example.com/health")
		})
	})
}

func TestDiscover(t *testing.T) {
	Convey("Given a manifest directory with every supported format", t, func() {
		ctx := context.Background()
		dir := t.TempDir()

		write(t, dir, "a-urls.txt", "https://a.example/\n\n/about\nhttps://a.example/\n")
		write(t, dir, "b-sitemap.xml", `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://www.example.com/about</loc></url>
  <url><loc>/contact</loc></url>
</urlset>`)
		write(t, dir, "c-openapi.json", `{"openapi":"3.0.0","paths":{"/z-last":{"get":{}},"/a-first":{"get":{}}}}`)
		write(t, dir, "d-endpoints.json", `{"paths":[{"path":"/status"},{"path":"https://api.example/v1"}]}`)
		write(t, dir, "e-openapi.yaml", "openapi: 3.1.0\npaths:\n  /yaml-b: {}\n  /yaml-a: {}\n")
		write(t, dir, "f-unknown.json", `{"hello":"world"}`)
		write(t, dir, "g-readme.md", "# not a manifest")
		write(t, dir, discovery.ConfigFileName, `{"defaultRootUrl":"https://ignored.example","paths":[{"path":"/nope"}]}`)
		So(os.Mkdir(filepath.Join(dir, "nested"), 0o700), ShouldBeNil)
		write(t, filepath.Join(dir, "nested"), "skip.txt", "https://nested.example/")

		Convey("When discovering", func() {
			urls, err := discovery.Discover(ctx, dir, root)

			Convey("Then URLs are collected in file then document order without duplicates", func() {
				So(err, ShouldBeNil)
				So(urls, ShouldResemble, []string{
					"https://a.example/",
					"https://www.example.com/about",
					"https://www.example.com/contact",
					"https://www.example.com/z-last",
					"https://www.example.com/a-first",
					"https://www.example.com/status",
					"https://api.example/v1",
					"https://www.example.com/yaml-b",
					"https://www.example.com/yaml-a",
				})
			})
		})
	})

	Convey("Given problem directories", t, func() {
		ctx := context.Background()

		Convey("When the directory does not exist", func() {
			_, err := discovery.Discover(ctx, filepath.Join(t.TempDir(), "missing"), root)

			Convey("Then there are no sources", func() {
				So(errors.Is(err, discovery.ErrNoSources), ShouldBeTrue)
			})
		})

		Convey("When only config.json is present", func() {
			dir := t.TempDir()
			write(t, dir, discovery.ConfigFileName, `{"defaultRootUrl":"x"}`)
			_, err := discovery.Discover(ctx, dir, root)

			Convey("Then there are no sources", func() {
				So(errors.Is(err, discovery.ErrNoSources), ShouldBeTrue)
			})
		})

		Convey("When a JSON manifest is malformed", func() {
			dir := t.TempDir()
			write(t, dir, "broken.json", `{"paths": [`)
			_, err := discovery.Discover(ctx, dir, root)

			Convey("Then parsing fails with the file name", func() {
				So(errors.Is(err, discovery.ErrParseManifest), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "broken.json")
			})
		})

		Convey("When a sitemap is malformed", func() {
			dir := t.TempDir()
			write(t, dir, "sitemap.xml", `<urlset><url><loc>`)
			_, err := discovery.Discover(ctx, dir, root)

			Convey("Then parsing fails", func() {
				So(errors.Is(err, discovery.ErrParseManifest), ShouldBeTrue)
			})
		})

		Convey("When a YAML file is not an OpenAPI document", func() {
			dir := t.TempDir()
			write(t, dir, "values.yaml", "replicas: 3\n")
			write(t, dir, "urls.txt", "https://ok.example/\n")
			urls, err := discovery.Discover(ctx, dir, root)

			Convey("Then it is skipped", func() {
				So(err, ShouldBeNil)
				So(urls, ShouldResemble, []string{"https://ok.example/"})
			})
		})
	})
}
